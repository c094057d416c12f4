// Package postgres persists decoded events, diagnostics and fetch progress.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"txDecoder/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS decoded_events (
	tx_hash        TEXT   NOT NULL,
	sequence_index BIGINT NOT NULL,
	timestamp      BIGINT NOT NULL,
	kind           TEXT   NOT NULL,
	subkind        TEXT   NOT NULL,
	asset          TEXT   NOT NULL,
	asset_symbol   TEXT   NOT NULL DEFAULT '',
	quantity       NUMERIC NOT NULL,
	actor          TEXT   NOT NULL,
	counterparty   TEXT   NOT NULL DEFAULT '',
	note           TEXT   NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tx_hash, sequence_index)
);
CREATE TABLE IF NOT EXISTS decode_diagnostics (
	tx_hash    TEXT   NOT NULL,
	log_index  BIGINT NOT NULL,
	kind       TEXT   NOT NULL,
	decoder    TEXT   NOT NULL DEFAULT '',
	address    TEXT   NOT NULL DEFAULT '',
	topic0     TEXT   NOT NULL DEFAULT '',
	message    TEXT   NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tx_hash, log_index, kind, decoder)
);
CREATE TABLE IF NOT EXISTS fetch_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for decoder output.
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

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutEvents upserts decoded events keyed by (tx_hash, sequence_index), so
// decoding a transaction again replaces its rows.
func (s *Store) PutEvents(ctx context.Context, events []model.DecodedEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO decoded_events (
				tx_hash, sequence_index, timestamp, kind, subkind, asset, asset_symbol,
				quantity, actor, counterparty, note, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
			ON CONFLICT (tx_hash, sequence_index)
			DO UPDATE SET
				timestamp = EXCLUDED.timestamp,
				kind = EXCLUDED.kind,
				subkind = EXCLUDED.subkind,
				asset = EXCLUDED.asset,
				asset_symbol = EXCLUDED.asset_symbol,
				quantity = EXCLUDED.quantity,
				actor = EXCLUDED.actor,
				counterparty = EXCLUDED.counterparty,
				note = EXCLUDED.note,
				updated_at = now()
		`,
			ev.TxHash,
			int64(ev.SequenceIndex),
			int64(ev.Timestamp),
			string(ev.Kind),
			string(ev.Subkind),
			ev.Asset,
			ev.AssetSymbol,
			ev.Quantity,
			ev.Actor,
			ev.Counterparty,
			ev.Note,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert decoded event: %w", err)
		}
	}
	return nil
}

// PutDiagnostics records diagnostics, ignoring ones already stored.
func (s *Store) PutDiagnostics(ctx context.Context, diags []model.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range diags {
		batch.Queue(`
			INSERT INTO decode_diagnostics (
				tx_hash, log_index, kind, decoder, address, topic0, message, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,now())
			ON CONFLICT (tx_hash, log_index, kind, decoder) DO NOTHING
		`,
			d.TxHash,
			int64(d.LogIndex),
			string(d.Kind),
			d.Decoder,
			d.Address,
			d.Topic0,
			d.Message,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range diags {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed block recorded under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM fetch_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fetch_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
