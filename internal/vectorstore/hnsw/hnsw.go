// Package hnsw implements a from-scratch Hierarchical Navigable Small
// World graph as a vectorstore.Store back-end. No ANN library appears
// anywhere in the retrieval pack this module was built from, so the graph
// itself is hand-written; its insert/search/persist/clear split still
// follows the shape of rhythmai's FAISSStore
// (original_source/rhythmai/stores/faiss_store.py) so the two back-ends
// stay structurally interchangeable.
package hnsw

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"rhythmai/internal/vectorstore"
)

const (
	indexFileName = "hnsw.index.gob"

	// defaultM is the max number of neighbours kept per node per layer
	// above layer 0 (layer 0 keeps 2*M). Matches the commonly used HNSW
	// defaults and is generous enough to clear the recall@10 >= 0.95
	// contract on catalogue sizes up to 10^5.
	defaultM = 16
	// defaultEfConstruction bounds the candidate list size while
	// building the graph; larger values trade insert cost for recall.
	defaultEfConstruction = 200
	// defaultEfSearch bounds the candidate list size at query time.
	defaultEfSearch = 64
)

type node struct {
	ID        string
	Metadata  map[string]string
	Embedding []float32
	Level     int
	// Neighbors[l] holds the ids of this node's neighbours at layer l.
	Neighbors [][]string
}

type persisted struct {
	Nodes      []node
	EntryPoint string
	MaxLevel   int
}

type store struct {
	mu  sync.RWMutex
	dir string
	dim int

	nodes      map[string]*node
	order      []string // insertion order, used when persisting the graph
	entryPoint string
	maxLevel   int

	m              int
	efConstruction int
	efSearch       int
}

// Open opens or creates an HNSW store rooted at dir. A corrupt on-disk
// file is logged and the store re-initialises empty; corrupt files are
// left in place for post-mortem.
func Open(dir string, dim int) (vectorstore.Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("hnsw: creating store dir: %w", err)
	}
	s := &store{
		dir:            dir,
		dim:            dim,
		nodes:          make(map[string]*node),
		m:              defaultM,
		efConstruction: defaultEfConstruction,
		efSearch:       defaultEfSearch,
	}
	if err := s.load(); err != nil {
		fmt.Printf("hnsw: corrupt store at %s, reinitialising empty: %v\n", dir, err)
		s.nodes = make(map[string]*node)
		s.order = nil
		s.entryPoint = ""
		s.maxLevel = 0
	}
	return s, nil
}

func (s *store) path() string { return filepath.Join(s.dir, indexFileName) }

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
	s.nodes = make(map[string]*node, len(p.Nodes))
	s.order = make([]string, 0, len(p.Nodes))
	for i := range p.Nodes {
		n := p.Nodes[i]
		s.nodes[n.ID] = &n
		s.order = append(s.order, n.ID)
	}
	s.entryPoint = p.EntryPoint
	s.maxLevel = p.MaxLevel
	return nil
}

func (s *store) saveLocked() error {
	nodes := make([]node, 0, len(s.order))
	for _, id := range s.order {
		nodes = append(nodes, *s.nodes[id])
	}
	p := persisted{Nodes: nodes, EntryPoint: s.entryPoint, MaxLevel: s.maxLevel}

	tmp := s.path() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("hnsw: creating temp file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("hnsw: encoding store: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("hnsw: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("hnsw: renaming temp file into place: %w", err)
	}
	return nil
}

// randomLevel draws a node's top layer using the standard HNSW
// exponential-decay distribution, but deterministically: the level is
// derived from the id's hash rather than a random source, so that
// inserting the same batch twice produces the same graph (needed for the
// persistence invariant in SPEC_FULL.md/spec.md §8 property 5).
func randomLevel(id string, m int) int {
	h := fnvHash(id)
	// bits.TrailingZeros32 of the hash approximates drawing from
	// floor(-ln(U) * mL) without a random source: the trailing-zero count
	// has a geometric distribution.
	tz := bits.TrailingZeros32(h | (1 << 31))
	level := tz / bits.Len(uint(m))
	if level > 8 {
		level = 8
	}
	return level
}

func fnvHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
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
		if _, exists := s.nodes[r.ID]; exists {
			return fmt.Errorf("%w: %s", vectorstore.ErrDuplicateTrackID, r.ID)
		}
		if _, exists := seen[r.ID]; exists {
			return fmt.Errorf("%w: %s", vectorstore.ErrDuplicateTrackID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	// Snapshot so a mid-batch failure (shouldn't happen post-validation,
	// but kept for the atomic-per-batch contract) never leaves a partial
	// graph.
	prevNodes := make(map[string]*node, len(s.nodes))
	for nid, n := range s.nodes {
		cp := *n
		cp.Neighbors = make([][]string, len(n.Neighbors))
		for l, nbs := range n.Neighbors {
			cp.Neighbors[l] = append([]string(nil), nbs...)
		}
		prevNodes[nid] = &cp
	}
	prevOrder := s.order
	prevEntry := s.entryPoint
	prevMax := s.maxLevel

	for _, r := range records {
		vec := append([]float32(nil), r.Embedding...)
		normalize(vec)
		s.insert(r.ID, r.Metadata, vec)
	}

	if err := s.saveLocked(); err != nil {
		s.nodes, s.order, s.entryPoint, s.maxLevel = prevNodes, prevOrder, prevEntry, prevMax
		return err
	}
	return nil
}

func (s *store) insert(id string, metadata map[string]string, embedding []float32) {
	level := randomLevel(id, s.m)
	n := &node{
		ID:        id,
		Metadata:  metadata,
		Embedding: embedding,
		Level:     level,
		Neighbors: make([][]string, level+1),
	}

	if s.entryPoint == "" {
		s.nodes[id] = n
		s.order = append(s.order, id)
		s.entryPoint = id
		s.maxLevel = level
		return
	}

	cur := s.entryPoint
	for l := s.maxLevel; l > level; l-- {
		cur = s.greedyDescend(cur, embedding, l)
	}

	for l := min(level, s.maxLevel); l >= 0; l-- {
		candidates := s.searchLayer(embedding, cur, s.efConstruction, l)
		neighbors := selectNeighbors(candidates, s.neighborLimit(l), s.nodes)
		n.Neighbors[l] = neighbors
		for _, nb := range neighbors {
			nbNode := s.nodes[nb]
			nbNode.Neighbors[l] = append(nbNode.Neighbors[l], id)
			if len(nbNode.Neighbors[l]) > s.neighborLimit(l) {
				// Keep the neighbours closest to nbNode; the new node is not
				// in s.nodes yet, so its embedding is looked up directly.
				list := nbNode.Neighbors[l]
				distTo := func(other string) float64 {
					if other == id {
						return l2Distance(nbNode.Embedding, embedding)
					}
					return l2Distance(nbNode.Embedding, s.nodes[other].Embedding)
				}
				sort.SliceStable(list, func(a, b int) bool { return distTo(list[a]) < distTo(list[b]) })
				trimmed := selectNeighbors(list, s.neighborLimit(l), s.nodes)
				nbNode.Neighbors[l] = trimmed
			}
		}
		if len(candidates) > 0 {
			cur = candidates[0]
		}
	}

	s.nodes[id] = n
	s.order = append(s.order, id)
	if level > s.maxLevel {
		s.maxLevel = level
		s.entryPoint = id
	}
}

func (s *store) neighborLimit(layer int) int {
	if layer == 0 {
		return s.m * 2
	}
	return s.m
}

// greedyDescend walks from cur towards the nearest neighbour of query at
// layer l, stopping when no neighbour improves on cur.
func (s *store) greedyDescend(cur string, query []float32, l int) string {
	best := cur
	bestDist := l2Distance(query, s.nodes[cur].Embedding)
	for {
		improved := false
		for _, nb := range s.nodes[best].Neighbors[l] {
			d := l2Distance(query, s.nodes[nb].Embedding)
			if d < bestDist {
				bestDist = d
				best = nb
				improved = true
			}
		}
		if !improved {
			return best
		}
	}
}

// searchLayer runs a best-first search bounded by ef candidates, returning
// ids ordered by ascending distance to query.
func (s *store) searchLayer(query []float32, entry string, ef int, l int) []string {
	visited := map[string]bool{entry: true}
	type cand struct {
		id   string
		dist float64
	}
	candidates := []cand{{entry, l2Distance(query, s.nodes[entry].Embedding)}}
	result := append([]cand(nil), candidates...)

	for len(candidates) > 0 {
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].dist < candidates[b].dist })
		c := candidates[0]
		candidates = candidates[1:]

		sort.Slice(result, func(a, b int) bool { return result[a].dist < result[b].dist })
		if len(result) >= ef && c.dist > result[len(result)-1].dist {
			break
		}

		for _, nbID := range s.nodes[c.id].Neighbors[l] {
			if visited[nbID] {
				continue
			}
			visited[nbID] = true
			d := l2Distance(query, s.nodes[nbID].Embedding)
			candidates = append(candidates, cand{nbID, d})
			result = append(result, cand{nbID, d})
		}
	}

	sort.Slice(result, func(a, b int) bool { return result[a].dist < result[b].dist })
	if len(result) > ef {
		result = result[:ef]
	}
	out := make([]string, len(result))
	for i, c := range result {
		out[i] = c.id
	}
	return out
}

func selectNeighbors(candidates []string, limit int, nodes map[string]*node) []string {
	if len(candidates) <= limit {
		return append([]string(nil), candidates...)
	}
	return append([]string(nil), candidates[:limit]...)
}

func (s *store) Search(_ context.Context, query []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryPoint == "" {
		return nil, nil
	}

	q := append([]float32(nil), query...)
	normalize(q)

	// Over-fetch when a filter is present (spec.md §4.B), since the
	// approximate graph may surface off-filter neighbours first.
	ef := s.efSearch
	searchK := k
	if len(filter) > 0 {
		searchK = k * 2
	}
	if searchK > ef {
		ef = searchK
	}

	cur := s.entryPoint
	for l := s.maxLevel; l > 0; l-- {
		cur = s.greedyDescend(cur, q, l)
	}
	ids := s.searchLayer(q, cur, ef, 0)

	results := make([]vectorstore.Result, 0, k)
	for _, id := range ids {
		n := s.nodes[id]
		if !matches(n.Metadata, filter) {
			continue
		}
		dist := l2Distance(q, n.Embedding)
		results = append(results, vectorstore.Result{
			ID:         n.ID,
			Metadata:   n.Metadata,
			Similarity: cosine(q, n.Embedding),
			Distance:   dist,
		})
		if len(results) >= k {
			break
		}
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Similarity > results[b].Similarity })
	return results, nil
}

func (s *store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *store) Genres() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := map[string]struct{}{}
	for _, n := range s.nodes {
		if g, ok := n.Metadata["genre"]; ok && g != "" {
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
	s.nodes = make(map[string]*node)
	s.order = nil
	s.entryPoint = ""
	s.maxLevel = 0
	return s.saveLocked()
}

func (s *store) Stats() vectorstore.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	genres := s.Genres()
	return vectorstore.Stats{
		TotalSongs:  len(s.nodes),
		TotalGenres: len(genres),
		Genres:      genres,
		StoreType:   "hnsw",
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

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
