package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"soulbound/internal/oracle/models"
	"soulbound/internal/oracle/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
)

// PostgresNonceStore persists consumed claim ids in PostgreSQL. The
// primary key on external_id makes Consume naturally exactly-once.
type PostgresNonceStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresNonceStore {
	return &PostgresNonceStore{db: db}
}

var _ ports.NonceStore = (*PostgresNonceStore)(nil)

func (s *PostgresNonceStore) Consumed(ctx context.Context, externalID id.ExternalClaimID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM consumed_claims WHERE external_id = $1)`
	if err := s.db.QueryRowContext(ctx, query, externalID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check consumed claim: %w", err)
	}
	return exists, nil
}

func (s *PostgresNonceStore) Consume(ctx context.Context, record models.NonceRecord) error {
	query := `
		INSERT INTO consumed_claims (external_id, recipient, consumed_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ExternalID.String(),
		record.Recipient.String(),
		record.ConsumedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("consume claim: %w", err)
	}
	return nil
}
