// Command ingest reads a JSON file of catalogue records and inserts them
// into the configured vector store, standing in for the external
// metadata scraper the core spec treats as an out-of-scope collaborator
// (see original_source/scripts/populate_db.py for the superseded
// Deezer-backed variant this replaces).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"rhythmai/config"
	"rhythmai/internal/embedder"
	"rhythmai/internal/ingest"
	"rhythmai/internal/vectorstore"
	"rhythmai/internal/vectorstore/open"
)

func main() {
	path := flag.String("file", "", "path to a JSON file containing an array of catalogue records")
	flag.Parse()
	if *path == "" {
		log.Fatal("usage: ingest -file catalogue.json")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal("Failed to read catalogue file:", err)
	}

	var records []ingest.CatalogueRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Fatal("Failed to parse catalogue file:", err)
	}

	store, err := open.Open(vectorstore.Kind(cfg.Store.Kind), cfg.Store.Path, cfg.Store.Dim)
	if err != nil {
		log.Fatal("Failed to open vector store:", err)
	}
	defer store.Close()

	emb := embedder.New(cfg.Embedding.ModelID, cfg.Store.Dim)

	var ledger *ingest.Ledger
	if cfg.Database.Enabled() {
		ledger, err = ingest.OpenLedger(cfg.GetDatabaseURL())
		if err != nil {
			log.Printf("Warning: ingestion ledger unavailable, continuing without audit trail: %v", err)
			ledger = nil
		} else {
			defer ledger.Close()
		}
	}

	ids, err := ingest.Batch(context.Background(), store, emb, ledger, records)
	if err != nil {
		log.Fatal("Ingestion failed:", err)
	}

	log.Printf("Ingested %d tracks", len(ids))
}
