// Command callgrade-tone is a headless demo: it synthesizes a pure tone as
// a stand-in for a user take, feeds it through the engine in fixed-size
// chunks exactly like a live caller would, and prints the similarity score
// and coaching feedback at the end. Useful for smoke-testing a master-call
// library without a microphone.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/sagebrush-audio/callgrade"
)

func main() {
	var (
		masterRoot = pflag.String("master-root", "./calls", "directory of .mfc master-call files")
		callID     = pflag.String("call-id", "", "master call id to load (filename stem under master-root)")
		sampleRate = pflag.Int("sample-rate", 16000, "audio sample rate in Hz")
		freqHz     = pflag.Float64("freq", 440.0, "tone frequency in Hz")
		durationS  = pflag.Float64("duration", 2.0, "tone duration in seconds")
		chunkMs    = pflag.Int("chunk-ms", 32, "size of each simulated audio chunk in milliseconds")
		verbose    = pflag.Bool("verbose", false, "enable debug logging")
	)
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if *callID == "" {
		logger.Fatal("--call-id is required")
	}

	engine := callgrade.NewEngine(
		callgrade.WithMasterRoot(*masterRoot, 16),
		callgrade.WithLogger(logger),
	)

	id, err := engine.CreateSession(*sampleRate)
	if err != nil {
		logger.Fatal("create session failed", "err", err)
	}
	defer engine.DestroySession(id)

	if err := engine.LoadMasterCall(id, *callID); err != nil {
		logger.Fatal("load master call failed", "call_id", *callID, "err", err)
	}

	chunkSize := *sampleRate * (*chunkMs) / 1000
	total := int(*durationS * float64(*sampleRate))
	phase := 0.0
	phaseStep := 2 * math.Pi * (*freqHz) / float64(*sampleRate)

	for offset := 0; offset < total; offset += chunkSize {
		n := chunkSize
		if offset+n > total {
			n = total - offset
		}
		chunk := make([]float32, n)
		for i := range chunk {
			chunk[i] = float32(math.Sin(phase))
			phase += phaseStep
		}
		if err := engine.ProcessAudioChunk(id, chunk); err != nil {
			logger.Fatal("process chunk failed", "err", err)
		}

		if snap, err := engine.GetSimilarityScores(id); err == nil {
			logger.Debug("running score", "overall", snap.Overall, "peak", snap.Peak)
		}
	}

	if err := engine.FinalizeSessionAnalysis(id); err != nil {
		logger.Fatal("finalize failed", "err", err)
	}

	snap, err := engine.GetSimilarityScores(id)
	if err != nil {
		logger.Fatal("get similarity scores failed", "err", err)
	}
	fmt.Printf("overall=%.3f offset=%.3f dtw=%.3f mean=%.3f subsequence=%.3f peak=%.3f reliable=%v match=%v\n",
		snap.Overall, snap.Offset, snap.DTW, snap.Mean, snap.Subsequence, snap.Peak, snap.IsReliable, snap.IsMatch)

	suggestions, err := engine.GetCoachingFeedback(id)
	if err != nil {
		logger.Fatal("get coaching feedback failed", "err", err)
	}
	for _, s := range suggestions {
		fmt.Println("-", s)
	}
}
