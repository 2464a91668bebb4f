package hnsw_test

import (
	"context"
	"testing"

	"rhythmai/internal/vectorstore"
	"rhythmai/internal/vectorstore/hnsw"
)

func unit(dim int, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestAddAndCount(t *testing.T) {
	dir := t.TempDir()
	store, err := hnsw.Open(dir, 8)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer store.Close()

	err = store.Add(context.Background(), []vectorstore.Record{
		{ID: "t1", Metadata: map[string]string{"genre": "pop"}, Embedding: unit(8, 0)},
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("expected count 1, got %d", store.Count())
	}
}

func TestDuplicateTrackIDRejected(t *testing.T) {
	dir := t.TempDir()
	store, _ := hnsw.Open(dir, 8)
	defer store.Close()

	records := []vectorstore.Record{{ID: "t1", Metadata: map[string]string{}, Embedding: unit(8, 0)}}
	_ = store.Add(context.Background(), records)
	if err := store.Add(context.Background(), records); err == nil {
		t.Fatal("expected error inserting duplicate track_id, got nil")
	}
}

func TestDuplicateTrackIDWithinBatchRejected(t *testing.T) {
	dir := t.TempDir()
	store, _ := hnsw.Open(dir, 8)
	defer store.Close()

	err := store.Add(context.Background(), []vectorstore.Record{
		{ID: "t1", Metadata: map[string]string{"genre": "pop"}, Embedding: unit(8, 0)},
		{ID: "t1", Metadata: map[string]string{"genre": "rock"}, Embedding: unit(8, 1)},
	})
	if err == nil {
		t.Fatal("expected error for duplicate track_id within the same batch, got nil")
	}
	if store.Count() != 0 {
		t.Errorf("expected no partial insert, got count %d", store.Count())
	}
}

func TestSearchEmptyStore(t *testing.T) {
	dir := t.TempDir()
	store, _ := hnsw.Open(dir, 8)
	defer store.Close()

	results, err := store.Search(context.Background(), unit(8, 0), 5, nil)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results on empty store, got %d", len(results))
	}
}

func TestRecallOnWellSeparatedData(t *testing.T) {
	dir := t.TempDir()
	store, _ := hnsw.Open(dir, 8)
	defer store.Close()

	records := make([]vectorstore.Record, 8)
	for i := 0; i < 8; i++ {
		records[i] = vectorstore.Record{ID: string(rune('a' + i)), Metadata: map[string]string{}, Embedding: unit(8, i)}
	}
	if err := store.Add(context.Background(), records); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	results, err := store.Search(context.Background(), unit(8, 0), 1, nil)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected exact match 'a' on well-separated data, got %q", results[0].ID)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, _ := hnsw.Open(dir, 8)
	_ = store.Add(context.Background(), []vectorstore.Record{{ID: "t1", Metadata: map[string]string{"genre": "pop"}, Embedding: unit(8, 0)}})
	store.Close()

	reopened, err := hnsw.Open(dir, 8)
	if err != nil {
		t.Fatalf("reopening store returned error: %v", err)
	}
	defer reopened.Close()

	if reopened.Count() != 1 {
		t.Errorf("expected restored count 1, got %d", reopened.Count())
	}
}

func TestClearAll(t *testing.T) {
	dir := t.TempDir()
	store, _ := hnsw.Open(dir, 8)
	defer store.Close()

	_ = store.Add(context.Background(), []vectorstore.Record{{ID: "t1", Metadata: map[string]string{}, Embedding: unit(8, 0)}})
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("expected count 0 after Clear, got %d", store.Count())
	}
}
