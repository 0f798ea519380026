// Command callgrade-live is a microphone-driven demo: it captures audio
// from the default input device, streams it through the engine exactly as
// an embedding application would, and prints the running similarity score
// while recording. On Ctrl-C or when --duration elapses it finalizes the
// session, prints coaching feedback, and (optionally) auditions the
// recorded take back through the default output device.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-audio/wav"
	"github.com/spf13/pflag"

	"github.com/sagebrush-audio/callgrade"
	"github.com/sagebrush-audio/callgrade/internal/audio"
)

func main() {
	var (
		masterRoot = pflag.String("master-root", "./calls", "directory of .mfc master-call files")
		callID     = pflag.String("call-id", "", "master call id to load (filename stem under master-root)")
		sampleRate = pflag.Int("sample-rate", 16000, "audio sample rate in Hz")
		durationS  = pflag.Float64("duration", 5.0, "recording duration in seconds (Ctrl-C also stops early)")
		playback   = pflag.Bool("playback", true, "audition the recorded take after finalizing")
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*durationS*float64(time.Second)))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	capturer, err := audio.NewCapturer(*sampleRate, func(samples []float32) {
		if err := engine.ProcessAudioChunk(id, samples); err != nil {
			logger.Warn("process chunk failed", "err", err)
			return
		}
		if snap, err := engine.GetSimilarityScores(id); err == nil {
			fmt.Printf("\rscore=%.3f peak=%.3f   ", snap.Overall, snap.Peak)
		}
	})
	if err != nil {
		logger.Fatal("capturer init failed", "err", err)
	}
	defer capturer.Close()

	logger.Info("recording started", "duration_s", *durationS)
	if err := capturer.Start(); err != nil {
		logger.Fatal("capturer start failed", "err", err)
	}

	select {
	case <-ctx.Done():
	case <-sigChan:
	}
	capturer.Stop()
	fmt.Println()

	if err := engine.FinalizeSessionAnalysis(id); err != nil {
		logger.Fatal("finalize failed", "err", err)
	}

	snap, err := engine.GetSimilarityScores(id)
	if err != nil {
		logger.Fatal("get similarity scores failed", "err", err)
	}
	fmt.Printf("final score=%.3f peak=%.3f reliable=%v match=%v\n", snap.Overall, snap.Peak, snap.IsReliable, snap.IsMatch)

	suggestions, err := engine.GetCoachingFeedback(id)
	if err != nil {
		logger.Fatal("get coaching feedback failed", "err", err)
	}
	for _, s := range suggestions {
		fmt.Println("-", s)
	}

	wavBytes, err := engine.ExportRecordingWAV(id)
	if err != nil {
		logger.Warn("export recording failed", "err", err)
		return
	}
	if err := os.WriteFile("recording.wav", wavBytes, 0o644); err != nil {
		logger.Warn("write recording.wav failed", "err", err)
	}

	if *playback {
		auditionRecording(logger, wavBytes, *sampleRate)
	}
}

func auditionRecording(logger *log.Logger, wavBytes []byte, sampleRate int) {
	dec := wav.NewDecoder(bytes.NewReader(wavBytes))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		logger.Warn("decode recording failed", "err", err)
		return
	}
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768.0
	}

	player, err := audio.NewPlayer(sampleRate, 0, nil)
	if err != nil {
		logger.Warn("player init failed", "err", err)
		return
	}
	defer player.Close()

	logger.Info("auditioning recorded take")
	if err := player.Play(audio.AudioBuffer{Samples: samples, SampleRate: sampleRate}); err != nil {
		logger.Warn("playback failed", "err", err)
	}
}
