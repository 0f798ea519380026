package masterstore

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sagebrush-audio/callgrade/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeMfc(frames, coeffs int, fill func(i int) float32) []byte {
	var buf bytes.Buffer
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(frames))
	binary.LittleEndian.PutUint32(header[4:8], uint32(coeffs))
	buf.Write(header[:])
	for i := 0; i < frames*coeffs; i++ {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(fill(i)))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func writeMfc(t *testing.T, dir, id string, frames, coeffs int) {
	t.Helper()
	data := encodeMfc(frames, coeffs, func(i int) float32 { return float32(i) * 0.5 })
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".mfc"), data, 0o644))
}

func TestParseMfcRoundTrips(t *testing.T) {
	data := encodeMfc(4, NumCoefficients, func(i int) float32 { return float32(i) })
	m, err := ParseMfc(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Frames)
	assert.Equal(t, NumCoefficients, m.Coefficients)
	assert.Equal(t, float32(13), m.Frame(1)[0])
}

func TestParseMfcRejectsZeroFrames(t *testing.T) {
	data := encodeMfc(0, NumCoefficients, func(i int) float32 { return 0 })
	_, err := ParseMfc(bytes.NewReader(data))
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.InvalidFormat, st)
}

func TestParseMfcRejectsWrongCoefficientCount(t *testing.T) {
	data := encodeMfc(4, 12, func(i int) float32 { return 0 })
	_, err := ParseMfc(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestParseMfcRejectsTruncatedFile(t *testing.T) {
	data := encodeMfc(4, NumCoefficients, func(i int) float32 { return 0 })
	_, err := ParseMfc(bytes.NewReader(data[:len(data)-10]))
	assert.Error(t, err)
}

func TestStoreLoadCachesAndReloadIsSameMatrix(t *testing.T) {
	dir := t.TempDir()
	writeMfc(t, dir, "buck_grunt", 10, NumCoefficients)

	s := New(dir, 16)
	m1, err := s.Load("buck_grunt")
	require.NoError(t, err)
	m2, err := s.Load("buck_grunt")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, 1, s.Len())
}

func TestStoreLoadMissingFileReturnsFileNotFound(t *testing.T) {
	s := New(t.TempDir(), 16)
	_, err := s.Load("no_such_call")
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.FileNotFound, st)
}

func TestStoreRejectsInvalidIDs(t *testing.T) {
	s := New(t.TempDir(), 16)
	for _, id := range []string{"", "../escape", "a/b", "a\\b", "..", string(make([]byte, 300))} {
		_, err := s.Load(id)
		assert.Error(t, err, "id %q should be rejected", id)
	}
}

func TestStoreEvictsLeastRecentlyUsedWhenUnreferenced(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"a", "b", "c"} {
		writeMfc(t, dir, id, 5, NumCoefficients)
	}
	s := New(dir, 2)

	_, err := s.Load("a")
	require.NoError(t, err)
	s.Release("a")
	_, err = s.Load("b")
	require.NoError(t, err)
	s.Release("b")
	_, err = s.Load("c") // should evict "a" (least recently used, unreferenced)
	require.NoError(t, err)
	s.Release("c")

	assert.Equal(t, 2, s.Len())
}

func TestStoreDoesNotEvictReferencedEntries(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"a", "b", "c"} {
		writeMfc(t, dir, id, 5, NumCoefficients)
	}
	s := New(dir, 2)

	_, err := s.Load("a") // refs=1, never released
	require.NoError(t, err)
	_, err = s.Load("b")
	require.NoError(t, err)
	s.Release("b")
	_, err = s.Load("c")
	require.NoError(t, err)
	s.Release("c")

	// "a" is still referenced, so it cannot have been evicted.
	m, err := s.Load("a")
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestConcurrentLoadsCoalesce(t *testing.T) {
	dir := t.TempDir()
	writeMfc(t, dir, "doe_grunt", 20, NumCoefficients)
	s := New(dir, 16)

	const n = 16
	results := make([]*FeatureMatrix, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			m, err := s.Load("doe_grunt")
			require.NoError(t, err)
			results[i] = m
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}
