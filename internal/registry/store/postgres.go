package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"registrar/internal/registry/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// Postgres persists the registry in two tables: registrations carries both
// pending reservations and committed records (status column), registry_config
// holds the single fee row. The name primary key is what makes Reserve
// indivisible: concurrent attempts on one name race on the insert and exactly
// one wins.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle. Call EnsureSchema before first
// use on a fresh database.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the registry tables and seeds the fee row when absent.
func (s *Postgres) EnsureSchema(ctx context.Context, defaultFee int64) error {
	if defaultFee <= 0 || defaultFee > models.MaxFee {
		return ErrFeeOutOfRange
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS registrations (
			name          TEXT PRIMARY KEY,
			owner         UUID,
			level         INT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			position      BIGINT,
			registered_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS registrations_position_idx
			ON registrations (position) WHERE status = 'committed';
		CREATE TABLE IF NOT EXISTS registry_config (
			id  INT PRIMARY KEY CHECK (id = 1),
			fee BIGINT NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_config (id, fee) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		defaultFee,
	)
	if err != nil {
		return fmt.Errorf("seed registry fee: %w", err)
	}
	return nil
}

func (s *Postgres) Exists(ctx context.Context, name models.Name) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM registrations WHERE name = $1 AND status = 'committed'`,
		name.String(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query registration: %w", err)
	}
	return true, nil
}

func (s *Postgres) OwnerOf(ctx context.Context, name models.Name) (id.AccountID, error) {
	var owner uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT owner FROM registrations WHERE name = $1 AND status = 'committed'`,
		name.String(),
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return id.AccountID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.AccountID{}, fmt.Errorf("query owner: %w", err)
	}
	return id.AccountID(owner), nil
}

// Reserve inserts a pending row; the primary key turns a duplicate attempt
// into zero affected rows, reported as sentinel.ErrAlreadyUsed.
func (s *Postgres) Reserve(ctx context.Context, name models.Name) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations (name, level, status) VALUES ($1, $2, 'pending')
		 ON CONFLICT (name) DO NOTHING`,
		name.String(), name.Level(),
	)
	if err != nil {
		return fmt.Errorf("reserve name: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve name: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// Commit promotes a pending row to committed inside one transaction, taking
// the next position from the committed count so registration order is dense
// and gap-free.
func (s *Postgres) Commit(ctx context.Context, name models.Name, owner id.AccountID, at time.Time) (models.DomainRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.DomainRecord{}, fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE status = 'committed'`,
	).Scan(&position)
	if err != nil {
		return models.DomainRecord{}, fmt.Errorf("count committed: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE registrations
		 SET owner = $2, status = 'committed', position = $3, registered_at = $4
		 WHERE name = $1 AND status = 'pending'`,
		name.String(), uuid.UUID(owner), position, at,
	)
	if err != nil {
		return models.DomainRecord{}, fmt.Errorf("commit registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.DomainRecord{}, fmt.Errorf("commit registration: %w", err)
	}
	if affected == 0 {
		return models.DomainRecord{}, sentinel.ErrInvalidState
	}

	if err := tx.Commit(); err != nil {
		return models.DomainRecord{}, fmt.Errorf("commit registration: %w", err)
	}
	return models.DomainRecord{
		Name:         name,
		Owner:        owner,
		Level:        name.Level(),
		Position:     position,
		RegisteredAt: at,
	}, nil
}

// Release deletes a pending reservation; committed rows are never touched.
func (s *Postgres) Release(ctx context.Context, name models.Name) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE name = $1 AND status = 'pending'`,
		name.String(),
	)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

func (s *Postgres) Page(ctx context.Context, start, end int) ([]models.Name, error) {
	if start < 0 || start >= end {
		return nil, ErrInvalidRange
	}
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if end > count {
		return nil, ErrOutOfBounds
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM registrations WHERE status = 'committed'
		 ORDER BY position OFFSET $1 LIMIT $2`,
		start, end-start,
	)
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}
	defer rows.Close()

	page := make([]models.Name, 0, end-start)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		name, err := models.ParseName(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt name %q in store: %w", raw, err)
		}
		page = append(page, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page: %w", err)
	}
	return page, nil
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE status = 'committed'`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

func (s *Postgres) Fee(ctx context.Context) (int64, error) {
	var fee int64
	err := s.db.QueryRowContext(ctx,
		`SELECT fee FROM registry_config WHERE id = 1`,
	).Scan(&fee)
	if err != nil {
		return 0, fmt.Errorf("query fee: %w", err)
	}
	return fee, nil
}

func (s *Postgres) SetFee(ctx context.Context, fee int64) error {
	if fee <= 0 || fee > models.MaxFee {
		return ErrFeeOutOfRange
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE registry_config SET fee = $1 WHERE id = 1`,
		fee,
	)
	if err != nil {
		return fmt.Errorf("update fee: %w", err)
	}
	return nil
}
