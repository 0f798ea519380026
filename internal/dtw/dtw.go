// Package dtw computes banded dynamic-time-warping cost between sequences
// of 13-dimensional MFCC frames (spec §4.5). No DTW implementation was
// found anywhere in the retrieval pack, so the banded recurrence here is
// hand-rolled against the spec's recurrence definition directly, keeping
// only two rolling rows in memory the way the teacher's streaming audio
// buffers (internal/audio/capture.go, playback.go) keep bounded working
// sets instead of whole-history allocations.
package dtw

import "math"

// NumCoefficients is the fixed MFCC frame dimensionality.
const NumCoefficients = 13

// Frame is a single 13-dimensional MFCC feature frame.
type Frame = []float32

const infCost = math.MaxFloat64

// bandHalfWidth computes ⌈max(m,n)·windowRatio⌉ per §4.5. windowRatio=0
// gives band width 0: only the exact diagonal cells (i,i) are computed, so
// sequences of unequal length get an infinite cost; windowRatio=1 means the
// full matrix.
func bandHalfWidth(m, n int, windowRatio float32) int {
	maxLen := m
	if n > maxLen {
		maxLen = n
	}
	return int(math.Ceil(float64(maxLen) * float64(windowRatio)))
}

func sqEuclidean(a, b []float32) float64 {
	sum := 0.0
	for i := 0; i < NumCoefficients; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Full computes the banded DTW cost between A (length m) and B (length n),
// both endpoints anchored, normalized by m+n (§4.5 "full(A,B) -> cost").
func Full(a, b []Frame, windowRatio float32) float32 {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return float32(math.Inf(1))
	}
	return FullBand(a, b, bandHalfWidth(m, n, windowRatio))
}

// FullBand computes the full DTW cost using an explicit band half-width
// instead of a window ratio, used by finalize's hard-capped unbanded pass
// (§4.7: "capped at a hard maximum of 4×min(m,n)").
func FullBand(a, b []Frame, half int) float32 {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return float32(math.Inf(1))
	}

	prev := make([]float64, n+1)
	cur := make([]float64, n+1)
	for j := range prev {
		prev[j] = infCost
	}
	prev[0] = 0

	for i := 1; i <= m; i++ {
		lo, hi := bandRange(i, n, half)
		for j := range cur {
			cur[j] = infCost
		}
		for j := lo; j <= hi; j++ {
			if j == 0 {
				continue // column 0 stays unreachable except the anchored (0,0)
			}
			cost := sqEuclidean(a[i-1], b[j-1])
			best := prev[j-1] // diagonal
			if prev[j] < best {
				best = prev[j] // down (consume a[i-1], reuse b[j-1])
			}
			if cur[j-1] < best {
				best = cur[j-1] // right (consume b[j-1], reuse a[i-1])
			}
			cur[j] = best + cost
		}
		prev, cur = cur, prev
	}

	final := prev[n]
	if final >= infCost {
		return float32(math.Inf(1))
	}
	return float32(final / float64(m+n))
}

// bandRange returns the inclusive column range reachable for row i under a
// Sakoe-Chiba band of half-width half around column i (the unscaled
// diagonal).
func bandRange(i, n, half int) (int, int) {
	// Use row index directly; callers pass equal-scale bands (m,n close in
	// practice for streaming comparisons), matching the spec's fixed
	// half-width definition rather than a slope-scaled band.
	lo := i - half
	hi := i + half
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

// Subsequence computes the best-matching contiguous alignment of query A
// (length m, the user recording) against haystack B (length n, the
// reference), relaxing B's start/end boundary conditions: cost = min over
// j of DTW_subseq[m,j] / m (§4.5).
func Subsequence(query, haystack []Frame, windowRatio float32) float32 {
	m, n := len(query), len(haystack)
	if m == 0 || n == 0 {
		return float32(math.Inf(1))
	}
	return SubsequenceBand(query, haystack, bandHalfWidth(m, n, windowRatio))
}

// SubsequenceBand computes the subsequence DTW cost using an explicit band
// half-width (see FullBand).
func SubsequenceBand(query, haystack []Frame, half int) float32 {
	m, n := len(query), len(haystack)
	if m == 0 || n == 0 {
		return float32(math.Inf(1))
	}

	prev := make([]float64, n+1)
	cur := make([]float64, n+1)
	// Row 0: every starting column is free (B's start boundary relaxed).
	for j := range prev {
		prev[j] = 0
	}

	for i := 1; i <= m; i++ {
		lo, hi := bandRange(i, n, half)
		for j := range cur {
			cur[j] = infCost
		}
		for j := lo; j <= hi; j++ {
			if j == 0 {
				cur[0] = infCost // query must consume at least one haystack column
				continue
			}
			cost := sqEuclidean(query[i-1], haystack[j-1])
			best := prev[j-1]
			if prev[j] < best {
				best = prev[j]
			}
			if cur[j-1] < best {
				best = cur[j-1]
			}
			cur[j] = best + cost
		}
		prev, cur = cur, prev
	}

	minCost := infCost
	for j := 1; j <= n; j++ { // B's end boundary relaxed: scan the whole last row
		if prev[j] < minCost {
			minCost = prev[j]
		}
	}
	if minCost >= infCost {
		return float32(math.Inf(1))
	}
	return float32(minCost / float64(m))
}

// SimilarityConstant is the exponential-decay constant k in
// sim = exp(-k*cost) (§4.5). Chosen so that a known-good master compared
// against itself (cost ~ 0) maps close to 1, and typical cross-utterance
// costs decay into the low similarity range. k=1 is the unscaled default,
// which keeps cost and -ln(similarity) identical.
const SimilarityConstant = 1.0

// Similarity maps a DTW cost to a bounded [0,1] similarity score via
// sim = exp(-k*cost).
func Similarity(cost float32) float32 {
	return float32(math.Exp(-SimilarityConstant * float64(cost)))
}
