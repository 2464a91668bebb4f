package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Ledger is an optional Postgres-backed audit log of catalogue insert
// batches. It is a side-effect of ingestion, not a replacement for the
// file-based VectorStore: the store remains the single source of truth
// for search, while the ledger answers "what was ingested, and when" for
// operational audit. Grounded on the teacher's server/handlers/chat.go
// (raw database/sql + lib/pq, parameterised INSERT ... RETURNING) and
// server/main.go's setupDatabase (CREATE TABLE IF NOT EXISTS + indexes).
type Ledger struct {
	db *sql.DB
}

// OpenLedger connects to Postgres at databaseURL and ensures the audit
// table exists.
func OpenLedger(databaseURL string) (*Ledger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ingest: opening ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ingest: pinging ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) setup() error {
	query := `
		CREATE TABLE IF NOT EXISTS ingestion_batches (
			id SERIAL PRIMARY KEY,
			batch_id UUID NOT NULL,
			track_id VARCHAR(255) NOT NULL,
			source VARCHAR(255) NOT NULL,
			inserted_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ingestion_batches_batch_id ON ingestion_batches(batch_id);
		CREATE INDEX IF NOT EXISTS idx_ingestion_batches_track_id ON ingestion_batches(track_id);
	`
	if _, err := l.db.Exec(query); err != nil {
		return fmt.Errorf("ingest: creating ledger table: %w", err)
	}
	return nil
}

// RecordBatch inserts one ledger row per track_id under a fresh batch id.
func (l *Ledger) RecordBatch(ctx context.Context, trackIDs []string, source string) error {
	batchID := uuid.New().String()
	now := time.Now().UTC()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ingest: beginning ledger transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ingestion_batches (batch_id, track_id, source, inserted_at)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("ingest: preparing ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range trackIDs {
		if _, err := stmt.ExecContext(ctx, batchID, id, source, now); err != nil {
			return fmt.Errorf("ingest: recording ledger row for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
