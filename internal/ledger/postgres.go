package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent Append calls. The value is arbitrary but must be consistent
// across all service instances sharing a chain.
const advisoryLockKey = int64(7_416_220_031)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresLog persists the hash chain to PostgreSQL. It implements Log.
//
// Appends run in a single transaction: an advisory xact lock serialises
// writers, and UNIQUE constraints on sequence and prev_hash act as a
// compare-and-swap on the chain head — if two appends ever race past the
// lock (for example via a second pool against the same database), exactly
// one commits and the other surfaces ErrConflict.
type PostgresLog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLog creates a PostgresLog backed by the given connection pool.
func NewPostgresLog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLog {
	return &PostgresLog{pool: pool, logger: logger}
}

// Append implements Log.
func (l *PostgresLog) Append(ctx context.Context, p Proposal) (*Event, error) {
	payload, ts, err := p.normalize(func() time.Time { return time.Now().UTC() })
	if err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, &StorageError{Op: "acquire advisory lock", Err: err}
	}

	head := emptyHead()
	err = tx.QueryRow(ctx,
		"SELECT sequence, hash FROM ledger_events ORDER BY sequence DESC LIMIT 1",
	).Scan(&head.Sequence, &head.Hash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, &StorageError{Op: "read chain head", Err: err}
	}

	e := &Event{
		Sequence:     head.Sequence + 1,
		Timestamp:    ts,
		ActorType:    p.ActorType,
		ActorID:      p.ActorID,
		EntityType:   p.EntityType,
		EntityID:     p.EntityID,
		Action:       p.Action,
		Payload:      payload,
		ModelVersion: p.ModelVersion,
		ReasonCodes:  p.ReasonCodes,
		PrevHash:     head.Hash,
	}
	if e.Hash, err = e.computeHash(); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_events (
			sequence, timestamp, actor_type, actor_id, entity_type,
			entity_id, action, payload, model_version, reason_codes,
			prev_hash, hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.Sequence, e.Timestamp, e.ActorType, e.ActorID, e.EntityType,
		e.EntityID, e.Action, e.Payload, e.ModelVersion, e.ReasonCodes,
		e.PrevHash, e.Hash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, &StorageError{Op: "insert event", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, &StorageError{Op: "commit tx", Err: err}
	}

	l.logger.Debug("ledger event appended",
		zap.Int64("sequence", e.Sequence),
		zap.String("action", e.Action),
		zap.String("entity_type", e.EntityType),
		zap.String("entity_id", e.EntityID),
	)
	return e, nil
}

// Get implements Log.
func (l *PostgresLog) Get(ctx context.Context, seq int64) (*Event, error) {
	e, err := scanEvent(l.pool.QueryRow(ctx, selectEvent+" WHERE sequence = $1", seq))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "get event", Err: err}
	}
	return e, nil
}

// ReadRange implements Log.
func (l *PostgresLog) ReadRange(ctx context.Context, from, to int64) ([]*Event, error) {
	rows, err := l.pool.Query(ctx,
		selectEvent+" WHERE sequence BETWEEN $1 AND $2 ORDER BY sequence ASC", from, to)
	if err != nil {
		return nil, &StorageError{Op: "query range", Err: err}
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan event", Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate range", Err: err}
	}
	return out, nil
}

// Head implements Log.
func (l *PostgresLog) Head(ctx context.Context) (Head, error) {
	head := emptyHead()
	err := l.pool.QueryRow(ctx,
		"SELECT sequence, hash FROM ledger_events ORDER BY sequence DESC LIMIT 1",
	).Scan(&head.Sequence, &head.Hash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Head{}, &StorageError{Op: "read chain head", Err: err}
	}
	return head, nil
}

// Len implements Log.
func (l *PostgresLog) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_events").Scan(&n); err != nil {
		return 0, &StorageError{Op: "count events", Err: err}
	}
	return n, nil
}

const selectEvent = `SELECT sequence, timestamp, actor_type, actor_id, entity_type,
	entity_id, action, payload, model_version, reason_codes, prev_hash, hash
	FROM ledger_events`

func scanEvent(row pgx.Row) (*Event, error) {
	e := &Event{}
	if err := row.Scan(
		&e.Sequence, &e.Timestamp, &e.ActorType, &e.ActorID, &e.EntityType,
		&e.EntityID, &e.Action, &e.Payload, &e.ModelVersion, &e.ReasonCodes,
		&e.PrevHash, &e.Hash,
	); err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
