// Package ingest implements the catalogue insertion contract: validating
// catalogue records against the shape in spec.md §6, rejecting duplicate
// track_ids atomically per batch, and embedding + inserting them into a
// VectorStore. The scraper that produces catalogue records is out of
// scope (spec.md §1); this package only honours the insertion contract
// the scraper must meet, the Go analogue of
// original_source/scripts/populate_db.py's db.add_songs(songs, embeddings)
// call.
package ingest

import (
	"context"
	"fmt"

	"rhythmai/internal/embedder"
	"rhythmai/internal/vectorstore"
)

// CatalogueRecord is the contract the ingester must honour (spec.md §6).
type CatalogueRecord struct {
	TrackID     string `json:"track_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	URL         string `json:"url"`
	AlbumImage  string `json:"album_image"`
	PreviewURL  string `json:"preview_url"`
}

func (r CatalogueRecord) validate() error {
	if r.TrackID == "" {
		return fmt.Errorf("ingest: track_id is required")
	}
	if r.Title == "" || r.Artist == "" {
		return fmt.Errorf("ingest: track %s: title and artist are required", r.TrackID)
	}
	if r.Genre == "" {
		return fmt.Errorf("ingest: track %s: genre is required", r.TrackID)
	}
	return nil
}

func (r CatalogueRecord) metadata() map[string]string {
	return map[string]string{
		"title":       r.Title,
		"artist":      r.Artist,
		"description": r.Description,
		"genre":       r.Genre,
		"url":         r.URL,
		"album_image": r.AlbumImage,
		"preview_url": r.PreviewURL,
	}
}

// Batch validates, embeds and inserts a batch of catalogue records, then
// — if ledger is non-nil — records the batch in the ingestion audit
// ledger. Returns the inserted track_ids.
func Batch(ctx context.Context, store vectorstore.Store, emb embedder.Embedder, ledger *Ledger, records []CatalogueRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(records))
	descriptions := make([]string, len(records))
	for i, rec := range records {
		if err := rec.validate(); err != nil {
			return nil, err
		}
		if seen[rec.TrackID] {
			return nil, fmt.Errorf("ingest: duplicate track_id %q within batch", rec.TrackID)
		}
		seen[rec.TrackID] = true
		descriptions[i] = rec.Description
	}

	vectors, err := emb.EncodeBatch(ctx, descriptions)
	if err != nil {
		return nil, fmt.Errorf("ingest: embedding batch: %w", err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("ingest: embedder dropped %d empty descriptions; ingestion requires every record to carry a non-empty description", len(records)-len(vectors))
	}

	storeRecords := make([]vectorstore.Record, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		storeRecords[i] = vectorstore.Record{
			ID:        rec.TrackID,
			Metadata:  rec.metadata(),
			Embedding: vectors[i],
		}
		ids[i] = rec.TrackID
	}

	if err := store.Add(ctx, storeRecords); err != nil {
		return nil, fmt.Errorf("ingest: inserting batch: %w", err)
	}

	if ledger != nil {
		if err := ledger.RecordBatch(ctx, ids, "catalogue-api"); err != nil {
			// The ledger is an audit side-effect, not part of the
			// insertion contract itself: a failure here is logged, not
			// propagated, so a missing Postgres connection never blocks
			// ingestion.
			fmt.Printf("ingest: failed to record audit ledger entry: %v\n", err)
		}
	}

	return ids, nil
}
