package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cremationLedger/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_state (
	contract   TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	label      TEXT        NOT NULL,
	height     BIGINT      NOT NULL,
	value      JSONB       NOT NULL,
	run_id     TEXT        NOT NULL,
	taken_at   TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (contract, kind, key)
);
CREATE TABLE IF NOT EXISTS ledger_runs (
	name       TEXT PRIMARY KEY,
	height     BIGINT      NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store provides Postgres persistence for ledger snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutSnapshot implements storage.Storage.
func (s *Store) PutSnapshot(ctx context.Context, records []model.StateRecord) error {
	return s.UpsertSnapshot(ctx, records)
}

// UpsertSnapshot replaces the stored ledger state with records. Rows left over
// from earlier runs that the new snapshot no longer contains are removed in
// the same transaction.
func (s *Store) UpsertSnapshot(ctx context.Context, records []model.StateRecord) error {
	if len(records) == 0 {
		return nil
	}
	runID := records[0].RunID
	if runID == "" {
		return fmt.Errorf("snapshot run id required")
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			takenAt, err := time.Parse(time.RFC3339Nano, rec.TakenAt)
			if err != nil {
				return fmt.Errorf("record %s/%s taken_at: %w", rec.Kind, rec.Key, err)
			}
			batch.Queue(`
				INSERT INTO ledger_state (
					contract, kind, key, label, height, value, run_id, taken_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
				ON CONFLICT (contract, kind, key)
				DO UPDATE SET
					label = EXCLUDED.label,
					height = EXCLUDED.height,
					value = EXCLUDED.value,
					run_id = EXCLUDED.run_id,
					taken_at = EXCLUDED.taken_at,
					updated_at = now()
			`,
				rec.Contract,
				rec.Kind,
				rec.Key,
				rec.Label,
				int64(rec.Height),
				string(rec.Value),
				rec.RunID,
				takenAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `DELETE FROM ledger_state WHERE run_id <> $1`, runID)
		return err
	})
}

// LoadState returns the last exported height for a scenario name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var height int64
	row := s.pool.QueryRow(ctx, `SELECT height FROM ledger_runs WHERE name=$1`, name)
	if err := row.Scan(&height); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(height), true, nil
}

// SaveState upserts the last exported height for a scenario name.
func (s *Store) SaveState(ctx context.Context, name string, height uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_runs (name, height, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET height = EXCLUDED.height, updated_at = now()
	`, name, int64(height))
	return err
}
