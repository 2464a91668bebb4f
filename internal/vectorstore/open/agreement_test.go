package open_test

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"rhythmai/internal/vectorstore"
	"rhythmai/internal/vectorstore/flat"
	"rhythmai/internal/vectorstore/hnsw"
)

// TestHNSWAndFlatAgreeOnTopKIdentity exercises spec.md §4.B's integration
// property directly: "Results of both back-ends MUST agree on the
// identity of the top-k for >= 70% of queries on the same data". It seeds
// identical records into both back-ends and checks, per query, whether
// the two returned top-k id sets are identical.
func TestHNSWAndFlatAgreeOnTopKIdentity(t *testing.T) {
	const (
		dim         = 16
		numRecords  = 200
		numQueries  = 50
		k           = 10
		minAgreeHit = 0.70
	)

	rng := rand.New(rand.NewSource(42))

	records := make([]vectorstore.Record, numRecords)
	for i := 0; i < numRecords; i++ {
		records[i] = vectorstore.Record{
			ID:        fmt.Sprintf("track-%03d", i),
			Metadata:  map[string]string{"genre": "pop"},
			Embedding: randomVector(rng, dim),
		}
	}

	hnswStore, err := hnsw.Open(t.TempDir(), dim)
	if err != nil {
		t.Fatalf("hnsw.Open returned error: %v", err)
	}
	defer hnswStore.Close()
	if err := hnswStore.Add(context.Background(), records); err != nil {
		t.Fatalf("hnsw Add returned error: %v", err)
	}

	flatStore, err := flat.Open(t.TempDir(), dim)
	if err != nil {
		t.Fatalf("flat.Open returned error: %v", err)
	}
	defer flatStore.Close()
	if err := flatStore.Add(context.Background(), records); err != nil {
		t.Fatalf("flat Add returned error: %v", err)
	}

	agree := 0
	for q := 0; q < numQueries; q++ {
		query := randomVector(rng, dim)

		hnswResults, err := hnswStore.Search(context.Background(), query, k, nil)
		if err != nil {
			t.Fatalf("hnsw Search returned error: %v", err)
		}
		flatResults, err := flatStore.Search(context.Background(), query, k, nil)
		if err != nil {
			t.Fatalf("flat Search returned error: %v", err)
		}

		if sameIdentity(hnswResults, flatResults) {
			agree++
		}
	}

	ratio := float64(agree) / float64(numQueries)
	if ratio < minAgreeHit {
		t.Errorf("hnsw/flat top-%d identity agreement = %.2f, want >= %.2f (%d/%d queries agreed)",
			k, ratio, minAgreeHit, agree, numQueries)
	}
}

func sameIdentity(a, b []vectorstore.Result) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for _, r := range a {
		ids[r.ID] = struct{}{}
	}
	for _, r := range b {
		if _, ok := ids[r.ID]; !ok {
			return false
		}
	}
	return true
}

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		x := rng.Float64()*2 - 1
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
