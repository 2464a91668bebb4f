// Package flat implements an exact nearest-neighbour vectorstore.Store:
// every query computes the L2 distance against every stored vector.
// Grounded on rhythmai's FAISSStore (original_source/rhythmai/stores/faiss_store.py):
// same index+metadata-sidecar persistence split, same clear-by-recreate
// semantics, same similarity formula.
package flat

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"rhythmai/internal/vectorstore"
)

const (
	indexFileName    = "flat.index.gob"
	metadataFileName = "flat.metadata.gob"
)

type entry struct {
	ID        string
	Metadata  map[string]string
	Embedding []float32
}

// persisted is the on-disk shape of both files combined for simplicity of
// atomic replace (a single gob-encoded struct written to a temp file and
// renamed into place).
type persisted struct {
	Entries []entry
}

type store struct {
	mu      sync.RWMutex
	dir     string
	dim     int
	entries []entry
	ids     map[string]int
}

// Open opens or creates a flat store rooted at dir. A corrupt on-disk file
// is logged and the store re-initialises empty; the corrupt files are left
// in place for post-mortem.
func Open(dir string, dim int) (vectorstore.Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flat: creating store dir: %w", err)
	}
	s := &store{dir: dir, dim: dim, ids: make(map[string]int)}
	if err := s.load(); err != nil {
		fmt.Printf("flat: corrupt store at %s, reinitialising empty: %v\n", dir, err)
		s.entries = nil
		s.ids = make(map[string]int)
	}
	return s, nil
}

func (s *store) path() string {
	return filepath.Join(s.dir, indexFileName)
}

func (s *store) load() error {
	f, err := os.Open(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var p persisted
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return err
	}
	s.entries = p.Entries
	s.ids = make(map[string]int, len(p.Entries))
	for i, e := range p.Entries {
		s.ids[e.ID] = i
	}
	return nil
}

// saveLocked persists the store via write-temp-then-rename so a crash mid
// write never corrupts the previous generation. Caller must hold s.mu.
func (s *store) saveLocked() error {
	tmp := s.path() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("flat: creating temp file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(persisted{Entries: s.entries}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flat: encoding store: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("flat: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("flat: renaming temp file into place: %w", err)
	}
	return nil
}

func (s *store) Add(_ context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if len(r.Embedding) != s.dim {
			return fmt.Errorf("%w: got %d want %d", vectorstore.ErrDimensionMismatch, len(r.Embedding), s.dim)
		}
		if _, exists := s.ids[r.ID]; exists {
			return fmt.Errorf("%w: %s", vectorstore.ErrDuplicateTrackID, r.ID)
		}
		if _, exists := seen[r.ID]; exists {
			return fmt.Errorf("%w: %s", vectorstore.ErrDuplicateTrackID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	// Stage into a copy so a later failure leaves the live state untouched
	// (atomic-per-batch).
	staged := append([]entry(nil), s.entries...)
	stagedIDs := make(map[string]int, len(s.ids)+len(records))
	for k, v := range s.ids {
		stagedIDs[k] = v
	}
	for _, r := range records {
		vec := append([]float32(nil), r.Embedding...)
		normalize(vec)
		stagedIDs[r.ID] = len(staged)
		staged = append(staged, entry{ID: r.ID, Metadata: r.Metadata, Embedding: vec})
	}

	prevEntries, prevIDs := s.entries, s.ids
	s.entries, s.ids = staged, stagedIDs
	if err := s.saveLocked(); err != nil {
		s.entries, s.ids = prevEntries, prevIDs
		return err
	}
	return nil
}

func (s *store) Search(_ context.Context, query []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}

	q := append([]float32(nil), query...)
	normalize(q)

	type scored struct {
		idx  int
		dist float64
		sim  float64
	}
	candidates := make([]scored, 0, len(s.entries))
	for i, e := range s.entries {
		if !matches(e.Metadata, filter) {
			continue
		}
		dist := l2Distance(q, e.Embedding)
		sim := cosine(q, e.Embedding)
		candidates = append(candidates, scored{idx: i, dist: dist, sim: sim})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].sim > candidates[b].sim
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]vectorstore.Result, 0, len(candidates))
	for _, c := range candidates {
		e := s.entries[c.idx]
		results = append(results, vectorstore.Result{
			ID:         e.ID,
			Metadata:   e.Metadata,
			Similarity: 1.0 / (1.0 + c.dist),
			Distance:   c.dist,
		})
	}
	return results, nil
}

func (s *store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *store) Genres() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := map[string]struct{}{}
	for _, e := range s.entries {
		if g, ok := e.Metadata["genre"]; ok && g != "" {
			set[g] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func (s *store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.ids = make(map[string]int)
	return s.saveLocked()
}

func (s *store) Stats() vectorstore.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	genres := s.Genres()
	return vectorstore.Stats{
		TotalSongs:  len(s.entries),
		TotalGenres: len(genres),
		Genres:      genres,
		StoreType:   "flat",
		Dimension:   s.dim,
		Path:        s.dir,
	}
}

func (s *store) Close() error { return nil }

func matches(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
