package ingest_test

import (
	"context"
	"testing"

	"rhythmai/internal/embedder"
	"rhythmai/internal/ingest"
	"rhythmai/internal/vectorstore/flat"
)

func validRecord(id string) ingest.CatalogueRecord {
	return ingest.CatalogueRecord{
		TrackID:     id,
		Title:       "Song " + id,
		Artist:      "Artist " + id,
		Description: "una canción alegre para bailar",
		Genre:       "pop",
	}
}

func TestBatch_InsertsValidRecords(t *testing.T) {
	emb := embedder.New("test-model", 16)
	store, err := flat.Open(t.TempDir(), 16)
	if err != nil {
		t.Fatalf("flat.Open returned error: %v", err)
	}

	ids, err := ingest.Batch(context.Background(), store, emb, nil, []ingest.CatalogueRecord{
		validRecord("t1"), validRecord("t2"), validRecord("t3"),
	})
	if err != nil {
		t.Fatalf("Batch returned error: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 ids, got %d", len(ids))
	}
	if store.Count() != 3 {
		t.Errorf("expected store count 3, got %d", store.Count())
	}
}

func TestBatch_EmptyInputIsNoop(t *testing.T) {
	emb := embedder.New("test-model", 16)
	store, err := flat.Open(t.TempDir(), 16)
	if err != nil {
		t.Fatalf("flat.Open returned error: %v", err)
	}

	ids, err := ingest.Batch(context.Background(), store, emb, nil, nil)
	if err != nil {
		t.Fatalf("Batch returned error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids for empty input, got %d", len(ids))
	}
}

func TestBatch_RejectsMissingRequiredFields(t *testing.T) {
	emb := embedder.New("test-model", 16)
	store, err := flat.Open(t.TempDir(), 16)
	if err != nil {
		t.Fatalf("flat.Open returned error: %v", err)
	}

	bad := validRecord("t1")
	bad.Title = ""

	if _, err := ingest.Batch(context.Background(), store, emb, nil, []ingest.CatalogueRecord{bad}); err == nil {
		t.Fatal("expected an error for a record missing title")
	}
	if store.Count() != 0 {
		t.Errorf("expected no partial insert on validation failure, got count %d", store.Count())
	}
}

func TestBatch_RejectsDuplicateTrackIDWithinBatch(t *testing.T) {
	emb := embedder.New("test-model", 16)
	store, err := flat.Open(t.TempDir(), 16)
	if err != nil {
		t.Fatalf("flat.Open returned error: %v", err)
	}

	_, err = ingest.Batch(context.Background(), store, emb, nil, []ingest.CatalogueRecord{
		validRecord("dup"), validRecord("dup"),
	})
	if err == nil {
		t.Fatal("expected an error for duplicate track_id within batch")
	}
	if store.Count() != 0 {
		t.Errorf("expected no partial insert on duplicate rejection, got count %d", store.Count())
	}
}

func TestBatch_RejectsAllEmptyDescriptions(t *testing.T) {
	emb := embedder.New("test-model", 16)
	store, err := flat.Open(t.TempDir(), 16)
	if err != nil {
		t.Fatalf("flat.Open returned error: %v", err)
	}

	rec := validRecord("t1")
	rec.Description = "   "

	if _, err := ingest.Batch(context.Background(), store, emb, nil, []ingest.CatalogueRecord{rec}); err == nil {
		t.Fatal("expected an error when every description embeds to nothing")
	}
}

func TestBatch_NilLedgerDoesNotBlockInsertion(t *testing.T) {
	emb := embedder.New("test-model", 16)
	store, err := flat.Open(t.TempDir(), 16)
	if err != nil {
		t.Fatalf("flat.Open returned error: %v", err)
	}

	if _, err := ingest.Batch(context.Background(), store, emb, nil, []ingest.CatalogueRecord{validRecord("t1")}); err != nil {
		t.Fatalf("expected ingestion to succeed without a ledger, got error: %v", err)
	}
}
