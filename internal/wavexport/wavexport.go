// Package wavexport writes a session's accumulated recording buffer out as
// a 16-bit PCM mono WAV file, using go-audio/wav the same way the
// retrieval pack's audio decoders (emer-auditory/sound, the cvoalex mel
// processor) use its counterpart Decoder. This is a supplemented feature:
// the original hunting-call engine's preprocessing CLI reads/writes this
// format, and it is a natural export path for auditioning a session's
// captured recording outside the spec's core scope.
package wavexport

import (
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ExportRecording encodes samples (in [-1,1]) as 16-bit PCM mono WAV at
// sampleRate, writing the result to w.
func ExportRecording(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	intData := make([]int, len(samples))
	for i, s := range samples {
		intData[i] = floatToPCM16(s)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           intData,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func floatToPCM16(s float32) int {
	v := float64(s)
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(math.Round(v * 32767))
}

// ExportRecordingBytes is a convenience wrapper around ExportRecording for
// callers (like Engine.ExportRecordingWAV) that want an in-memory result
// rather than a caller-supplied file handle.
func ExportRecordingBytes(samples []float32, sampleRate int) ([]byte, error) {
	buf := &memWriteSeeker{}
	if err := ExportRecording(buf, samples, sampleRate); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// memWriteSeeker is a minimal io.WriteSeeker over a growable byte slice,
// needed because wav.Encoder seeks back to patch the RIFF/data chunk sizes
// after writing the full sample payload.
type memWriteSeeker struct {
	data []byte
	pos  int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(m.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(m.data)) + offset
	}
	m.pos = int(newPos)
	return newPos, nil
}
