// Package masterstore reads and caches reference MFCC feature matrices
// keyed by master-call id (spec §4.4, wire format §3). The LRU eviction
// and refcounted sharing follow the session-registry pattern in the
// retrieval pack's asr_server session manager (map + mutex, per-entry
// bookkeeping, concurrent-load coalescing via an in-flight marker), applied
// here to a read-mostly cache instead of a session table.
package masterstore

import (
	"container/list"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sagebrush-audio/callgrade/internal/status"
)

// NumCoefficients is the required coefficient count per frame (§3: "Loader
// fails with a typed error if ... C≠13").
const NumCoefficients = 13

const maxIDLength = 256

// FeatureMatrix is an immutable, shared reference feature matrix: F frames
// of NumCoefficients coefficients, frame-major row order.
type FeatureMatrix struct {
	Frames      int
	Coefficients int
	Data        []float32 // len == Frames*Coefficients
}

// Frame returns the i'th frame as a sub-slice view (no copy).
func (m *FeatureMatrix) Frame(i int) []float32 {
	start := i * m.Coefficients
	return m.Data[start : start+m.Coefficients]
}

// Store caches FeatureMatrix values loaded from a configured root
// directory, evicting least-recently-used entries once the cap is
// exceeded, coalescing concurrent loads of the same id into one parse.
type Store struct {
	root string
	cap  int

	mu      sync.Mutex
	entries map[string]*list.Element // id -> lru list element
	lru     *list.List               // front = most recently used

	inflight map[string]*loadResult
}

type cacheEntry struct {
	id      string
	matrix  *FeatureMatrix
	refs    int
}

type loadResult struct {
	done   chan struct{}
	matrix *FeatureMatrix
	err    error
}

// DefaultCap is the spec-mandated default LRU capacity (§4.4).
const DefaultCap = 16

// New creates a Store rooted at root with the given LRU capacity. A
// capacity <= 0 uses DefaultCap.
func New(root string, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{
		root:     root,
		cap:      capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		inflight: make(map[string]*loadResult),
	}
}

// validateID rejects empty ids, embedded path separators, "..", and ids
// longer than 256 bytes (§4.4).
func validateID(id string) error {
	if id == "" {
		return status.InvalidParams.Err()
	}
	if len(id) > maxIDLength {
		return status.InvalidParams.Err()
	}
	if strings.ContainsRune(id, '/') || strings.ContainsRune(id, '\\') {
		return status.InvalidParams.Err()
	}
	if id == "." || id == ".." || strings.Contains(id, "..") {
		return status.InvalidParams.Err()
	}
	return nil
}

// Load resolves id to a feature matrix, from cache if present, otherwise
// by parsing the .mfc file under the store's root. The returned matrix is
// shared and must not be mutated by the caller.
func (s *Store) Load(id string) (*FeatureMatrix, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if el, ok := s.entries[id]; ok {
		s.lru.MoveToFront(el)
		entry := el.Value.(*cacheEntry)
		entry.refs++
		m := entry.matrix
		s.mu.Unlock()
		return m, nil
	}
	if lr, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		<-lr.done
		if lr.err != nil {
			return nil, lr.err
		}
		return lr.matrix, nil
	}
	lr := &loadResult{done: make(chan struct{})}
	s.inflight[id] = lr
	s.mu.Unlock()

	matrix, err := s.loadFromDisk(id)

	s.mu.Lock()
	delete(s.inflight, id)
	if err == nil {
		s.insertLocked(id, matrix)
	}
	lr.matrix, lr.err = matrix, err
	s.mu.Unlock()
	close(lr.done)

	return matrix, err
}

func (s *Store) insertLocked(id string, matrix *FeatureMatrix) {
	el := s.lru.PushFront(&cacheEntry{id: id, matrix: matrix, refs: 1})
	s.entries[id] = el
	for s.lru.Len() > s.cap {
		before := s.lru.Len()
		s.evictOneLocked()
		if s.lru.Len() == before {
			break // every entry is still referenced; stay over cap for now
		}
	}
}

// evictOneLocked drops the least-recently-used entry with a zero refcount,
// scanning back-to-front; if every entry is referenced, nothing is
// evicted (callers still holding a reference keep it valid per §4.4
// "shared-immutable reference counted pointer").
func (s *Store) evictOneLocked() {
	for el := s.lru.Back(); el != nil; el = el.Prev() {
		entry := el.Value.(*cacheEntry)
		if entry.refs == 0 {
			s.lru.Remove(el)
			delete(s.entries, entry.id)
			return
		}
	}
}

// Release decrements a previously Load-ed matrix's refcount, permitting
// eviction once it reaches zero. Sessions call this on reset/destroy or
// when swapping masters (§4.4, I4).
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[id]
	if !ok {
		return
	}
	entry := el.Value.(*cacheEntry)
	if entry.refs > 0 {
		entry.refs--
	}
}

// Len reports the number of entries currently cached.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Store) loadFromDisk(id string) (*FeatureMatrix, error) {
	path := filepath.Join(s.root, id+".mfc")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.FileNotFound.Err()
		}
		return nil, status.ProcessingError.Err()
	}
	defer f.Close()
	return ParseMfc(f)
}

// ParseMfc reads the master feature record binary format described in
// §3: two little-endian uint32s (frame count F, coefficient count C)
// followed by F*C little-endian float32s in frame-major order.
func ParseMfc(r io.Reader) (*FeatureMatrix, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, status.InvalidFormat.Err()
	}
	frames := binary.LittleEndian.Uint32(header[0:4])
	coeffs := binary.LittleEndian.Uint32(header[4:8])

	if frames == 0 || coeffs != NumCoefficients {
		return nil, status.InvalidFormat.Err()
	}

	total := int(frames) * int(coeffs)
	raw := make([]byte, total*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, status.InvalidFormat.Err()
	}

	data := make([]float32, total)
	for i := range data {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		data[i] = math.Float32frombits(bits)
	}

	return &FeatureMatrix{Frames: int(frames), Coefficients: int(coeffs), Data: data}, nil
}
