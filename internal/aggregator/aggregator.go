// Package aggregator combines the offset/dtw/mean/subsequence similarity
// components into one bounded score (spec §4.6), with weight
// renormalization over whichever components are currently valid. Grounded
// the same way the teacher's llm/client.go combines multiple optional
// response fields defensively — each component here is computed only when
// its data preconditions hold, and absence never panics downstream code.
package aggregator

import (
	"gonum.org/v1/gonum/floats"

	"github.com/sagebrush-audio/callgrade/internal/dtw"
	"github.com/sagebrush-audio/callgrade/internal/status"
)

// OffsetFrames is K, the number of leading frames compared for the
// lightweight "offset" component (§4.6).
const OffsetFrames = 8

// MinMeanFrames is the minimum frame count for the "mean" component to be
// considered valid (§4.6).
const MinMeanFrames = 4

// Weights are the per-component weights; renormalized across valid
// components at scoring time.
type Weights struct {
	Offset      float32
	DTW         float32
	Mean        float32
	Subsequence float32
}

// Config controls the aggregator's thresholds (§4.6, §6 defaults).
type Config struct {
	Weights           Weights
	MinFramesRequired int
	MinScoreForMatch  float32
}

// Snapshot is the published similarity state for a session (§3
// similarity_snapshot, §4.6 output fields). Invalid components are
// reported as a negative sentinel.
type Snapshot struct {
	Overall     float32
	Offset      float32
	DTW         float32
	Mean        float32
	Subsequence float32
	Peak        float32
	IsReliable  bool
	IsMatch     bool
}

const invalidSentinel = float32(-1)

// Score computes a fresh Snapshot from the current session/reference
// feature matrices. windowRatio is the DTW band configuration; framesObserved
// is the realtime frame counter gating is_reliable.
func Score(
	cfg Config,
	userFrames, refFrames []dtw.Frame,
	windowRatio float32,
	framesObserved int,
	priorPeak float32,
) (Snapshot, float32, error) {
	m := len(userFrames)
	n := len(refFrames)

	type component struct {
		value  float32
		weight float32
		valid  bool
	}

	components := []component{
		{weight: cfg.Weights.Offset},
		{weight: cfg.Weights.DTW},
		{weight: cfg.Weights.Mean},
		{weight: cfg.Weights.Subsequence},
	}

	// offset: first K frames of user vs. reference prefix.
	if m >= OffsetFrames && n >= OffsetFrames {
		k := OffsetFrames
		cost := dtw.Full(userFrames[:k], refFrames[:k], windowRatio)
		components[0].value = dtw.Similarity(cost)
		components[0].valid = true
	}

	// dtw: banded full DTW similarity over the whole accumulated prefix.
	if m >= cfg.MinFramesRequired {
		cost := dtw.Full(userFrames, refFrames, windowRatio)
		components[1].value = dtw.Similarity(cost)
		components[1].valid = true
	}

	// mean: cosine similarity of time-averaged 13-vectors.
	if m >= MinMeanFrames && n >= MinMeanFrames {
		components[2].value = meanCosineSimilarity(userFrames, refFrames)
		components[2].valid = true
	}

	// subsequence: user as query must fit within reference length.
	if m <= n && m >= OffsetFrames {
		cost := dtw.Subsequence(userFrames, refFrames, windowRatio)
		components[3].value = dtw.Similarity(cost)
		components[3].valid = true
	}

	var weightSum float32
	for _, c := range components {
		if c.valid {
			weightSum += c.weight
		}
	}
	if weightSum <= 0 {
		return Snapshot{}, 0, status.InsufficientData.Err()
	}

	var overall float32
	for _, c := range components {
		if c.valid {
			overall += (c.weight / weightSum) * c.value
		}
	}
	if overall < 0 {
		overall = 0
	}
	if overall > 1 {
		overall = 1
	}

	peak := priorPeak
	if overall > peak {
		peak = overall
	}

	snap := Snapshot{
		Overall:     overall,
		Offset:      sentinelOr(components[0].valid, components[0].value),
		DTW:         sentinelOr(components[1].valid, components[1].value),
		Mean:        sentinelOr(components[2].valid, components[2].value),
		Subsequence: sentinelOr(components[3].valid, components[3].value),
		Peak:        peak,
		IsReliable:  framesObserved >= cfg.MinFramesRequired,
		IsMatch:     overall >= cfg.MinScoreForMatch,
	}
	return snap, peak, nil
}

func sentinelOr(valid bool, v float32) float32 {
	if !valid {
		return invalidSentinel
	}
	return v
}

func meanCosineSimilarity(a, b []dtw.Frame) float32 {
	meanA := meanVector(a)
	meanB := meanVector(b)

	denom := floats.Norm(meanA, 2) * floats.Norm(meanB, 2)
	if denom == 0 {
		return 0
	}
	cos := floats.Dot(meanA, meanB) / denom
	// Cosine similarity lies in [-1,1]; rescale to [0,1] to keep it
	// compatible with the other bounded components (§4.6 "each in [0,1]").
	return float32((cos + 1) / 2)
}

func meanVector(frames []dtw.Frame) []float64 {
	sum := make([]float64, dtw.NumCoefficients)
	for _, f := range frames {
		for i := 0; i < dtw.NumCoefficients; i++ {
			sum[i] += float64(f[i])
		}
	}
	floats.Scale(1/float64(len(frames)), sum)
	return sum
}
