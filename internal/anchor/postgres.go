package anchor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists anchor records to the anchor_records table. A
// foreign key ties every record to an existing ledger sequence, so a record
// can never reference a hash the event log does not hold.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Save implements RecordStore.
func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO anchor_records (
			anchor_id, timestamp, method, external_reference,
			anchored_hash, anchored_sequence
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.AnchorID, r.Timestamp, r.Method, r.ExternalReference,
		r.AnchoredHash, r.AnchoredSequence,
	)
	if err != nil {
		return fmt.Errorf("insert anchor record: %w", err)
	}
	return nil
}

// Recent implements RecordStore.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.pool.Query(ctx,
		selectRecord+" ORDER BY timestamp DESC, anchor_id LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("query anchor records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan anchor record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastForMethod implements RecordStore.
func (s *PostgresStore) LastForMethod(ctx context.Context, m Method) (*Record, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx,
		selectRecord+" WHERE method = $1 ORDER BY timestamp DESC LIMIT 1", m))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last anchor for %s: %w", m, err)
	}
	return r, nil
}

const selectRecord = `SELECT anchor_id, timestamp, method, external_reference,
	anchored_hash, anchored_sequence FROM anchor_records`

func scanRecord(row pgx.Row) (*Record, error) {
	r := &Record{}
	if err := row.Scan(
		&r.AnchorID, &r.Timestamp, &r.Method, &r.ExternalReference,
		&r.AnchoredHash, &r.AnchoredSequence,
	); err != nil {
		return nil, err
	}
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}
