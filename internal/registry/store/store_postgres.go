package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"soulbound/internal/registry/models"
	"soulbound/internal/registry/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
)

// PostgresTokenStore persists token records in PostgreSQL. Token ids come
// from a BIGSERIAL so they are unique and monotonically assigned.
type PostgresTokenStore struct {
	db *sql.DB
}

func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

var _ ports.TokenStore = (*PostgresTokenStore)(nil)

const activeTokenCond = `NOT revoked AND (expires_at IS NULL OR expires_at > $1)`

func (s *PostgresTokenStore) Create(ctx context.Context, token *models.Token, constraint ports.CreateConstraint) (id.TokenID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create token: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := token.IssuedAt
	if constraint.Unique || constraint.MaxPerOwner > 0 {
		// The active-duplicate and supply checks below cannot be
		// expressed as a unique index because "active" depends on the
		// request time. Serialize same (owner, class) inserts instead.
		lockKey := token.Owner.String() + "/" + token.ClassID.String()
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return 0, fmt.Errorf("acquire insert lock: %w", err)
		}
	}
	if constraint.Unique {
		var exists bool
		query := `
			SELECT EXISTS(
				SELECT 1 FROM tokens
				WHERE owner = $2 AND issuer_id = $3 AND class_id = $4
				  AND ` + activeTokenCond + `
			)
		`
		if err := tx.QueryRowContext(ctx, query, now, token.Owner.String(), token.IssuerID.String(), token.ClassID.String()).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check active duplicate: %w", err)
		}
		if exists {
			return 0, sentinel.ErrConflict
		}
	}
	if constraint.MaxPerOwner > 0 {
		var count int64
		query := `
			SELECT COUNT(*) FROM tokens
			WHERE owner = $2 AND class_id = $3 AND ` + activeTokenCond + `
		`
		if err := tx.QueryRowContext(ctx, query, now, token.Owner.String(), token.ClassID.String()).Scan(&count); err != nil {
			return 0, fmt.Errorf("count class supply: %w", err)
		}
		if count >= constraint.MaxPerOwner {
			return 0, sentinel.ErrExhausted
		}
	}

	var tokenID uint64
	insert := `
		INSERT INTO tokens (owner, issuer_id, class_id, issued_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, insert,
		token.Owner.String(),
		token.IssuerID.String(),
		token.ClassID.String(),
		token.IssuedAt,
		token.ExpiresAt,
	).Scan(&tokenID); err != nil {
		return 0, fmt.Errorf("insert token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create token: %w", err)
	}
	token.ID = id.TokenID(tokenID)
	return token.ID, nil
}

func (s *PostgresTokenStore) Get(ctx context.Context, tokenID id.TokenID) (*models.Token, error) {
	query := `
		SELECT id, owner, issuer_id, class_id, issued_at, expires_at, revoked, revoked_at
		FROM tokens
		WHERE id = $1
	`
	token, err := scanToken(s.db.QueryRowContext(ctx, query, uint64(tokenID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find token by id: %w", err)
	}
	return token, nil
}

func (s *PostgresTokenStore) Update(ctx context.Context, token *models.Token) error {
	query := `
		UPDATE tokens
		SET expires_at = $2, revoked = $3, revoked_at = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, uint64(token.ID), token.ExpiresAt, token.Revoked, token.RevokedAt)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresTokenStore) ListByOwner(ctx context.Context, owner id.AccountID, fromID id.TokenID, limit int) ([]*models.Token, error) {
	query := `
		SELECT id, owner, issuer_id, class_id, issued_at, expires_at, revoked, revoked_at
		FROM tokens
		WHERE owner = $1 AND id >= $2
		ORDER BY id
	`
	args := []any{owner.String(), uint64(fromID)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.queryTokens(ctx, query, args...)
}

func (s *PostgresTokenStore) ActiveByOwnerClass(ctx context.Context, owner id.AccountID, classID id.ClassID, now time.Time) ([]*models.Token, error) {
	query := `
		SELECT id, owner, issuer_id, class_id, issued_at, expires_at, revoked, revoked_at
		FROM tokens
		WHERE owner = $2 AND class_id = $3 AND ` + activeTokenCond + `
		ORDER BY id
	`
	return s.queryTokens(ctx, query, now, owner.String(), classID.String())
}

func (s *PostgresTokenStore) CountActiveByIssuer(ctx context.Context, issuerID id.IssuerID, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM tokens WHERE issuer_id = $2 AND ` + activeTokenCond
	var count int64
	if err := s.db.QueryRowContext(ctx, query, now, issuerID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count issuer supply: %w", err)
	}
	return count, nil
}

func (s *PostgresTokenStore) CountActiveByOwner(ctx context.Context, owner id.AccountID, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM tokens WHERE owner = $2 AND ` + activeTokenCond
	var count int64
	if err := s.db.QueryRowContext(ctx, query, now, owner.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count owner supply: %w", err)
	}
	return count, nil
}

func (s *PostgresTokenStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM tokens
		WHERE revoked OR (expires_at IS NOT NULL AND expires_at <= $1)
	`
	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep tokens: %w", err)
	}
	return n, nil
}

func (s *PostgresTokenStore) queryTokens(ctx context.Context, query string, args ...any) ([]*models.Token, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var out []*models.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

func scanToken(row rowScanner) (*models.Token, error) {
	var (
		token    models.Token
		tokenID  uint64
		owner    string
		issuerID string
		classID  string
	)
	if err := row.Scan(&tokenID, &owner, &issuerID, &classID, &token.IssuedAt, &token.ExpiresAt, &token.Revoked, &token.RevokedAt); err != nil {
		return nil, err
	}
	token.ID = id.TokenID(tokenID)
	token.Owner = id.AccountID(owner)
	token.IssuerID = id.IssuerID(issuerID)
	token.ClassID = id.ClassID(classID)
	return &token, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresClassStore persists credential classes in PostgreSQL.
type PostgresClassStore struct {
	db *sql.DB
}

func NewPostgresClassStore(db *sql.DB) *PostgresClassStore {
	return &PostgresClassStore{db: db}
}

var _ ports.ClassStore = (*PostgresClassStore)(nil)

func (s *PostgresClassStore) Create(ctx context.Context, class *models.Class) error {
	query := `
		INSERT INTO classes (id, stackable, default_validity_seconds, max_supply_per_account, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		class.ID.String(),
		class.Stackable,
		int64(class.DefaultValidity/time.Second),
		class.MaxSupplyPerAccount,
		class.CreatedAt,
	)
	if err != nil {
		if isClassUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

func (s *PostgresClassStore) Get(ctx context.Context, classID id.ClassID) (*models.Class, error) {
	query := `
		SELECT id, stackable, default_validity_seconds, max_supply_per_account, created_at
		FROM classes
		WHERE id = $1
	`
	class, err := scanClass(s.db.QueryRowContext(ctx, query, classID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return class, nil
}

func (s *PostgresClassStore) List(ctx context.Context) ([]*models.Class, error) {
	query := `
		SELECT id, stackable, default_validity_seconds, max_supply_per_account, created_at
		FROM classes
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var out []*models.Class
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		out = append(out, class)
	}
	return out, rows.Err()
}

func scanClass(row rowScanner) (*models.Class, error) {
	var (
		class           models.Class
		rawID           string
		validitySeconds int64
	)
	if err := row.Scan(&rawID, &class.Stackable, &validitySeconds, &class.MaxSupplyPerAccount, &class.CreatedAt); err != nil {
		return nil, err
	}
	class.ID = id.ClassID(rawID)
	class.DefaultValidity = time.Duration(validitySeconds) * time.Second
	return &class, nil
}

func isClassUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
