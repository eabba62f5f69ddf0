package store

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"soulbound/internal/directory/models"
	"soulbound/internal/directory/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
)

// PostgresStore persists issuer records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ ports.Store = (*PostgresStore)(nil)

// NewPostgres constructs a PostgreSQL-backed issuer store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, issuer *models.Issuer) error {
	query := `
		INSERT INTO issuers (id, banned, verification_key, claim_ttl_seconds, api_key_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var key []byte
	if issuer.VerificationKey != nil {
		key = issuer.VerificationKey
	}
	_, err := s.db.ExecContext(ctx, query,
		issuer.ID.String(),
		issuer.Banned,
		key,
		int64(issuer.ClaimTTL/time.Second),
		issuer.APIKeyHash,
		issuer.CreatedAt,
		issuer.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create issuer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	query := `
		SELECT id, banned, verification_key, claim_ttl_seconds, api_key_hash, created_at, updated_at
		FROM issuers
		WHERE id = $1
	`
	issuer, err := scanIssuer(s.db.QueryRowContext(ctx, query, issuerID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find issuer by id: %w", err)
	}
	if err := s.loadGrants(ctx, issuer); err != nil {
		return nil, err
	}
	return issuer, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Issuer, error) {
	query := `
		SELECT id, banned, verification_key, claim_ttl_seconds, api_key_hash, created_at, updated_at
		FROM issuers
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var issuers []*models.Issuer
	for rows.Next() {
		issuer, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		issuers = append(issuers, issuer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	for _, issuer := range issuers {
		if err := s.loadGrants(ctx, issuer); err != nil {
			return nil, err
		}
	}
	return issuers, nil
}

func (s *PostgresStore) SetBanned(ctx context.Context, issuerID id.IssuerID, banned bool) error {
	query := `
		UPDATE issuers
		SET banned = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, issuerID.String(), banned)
	if err != nil {
		return fmt.Errorf("set issuer banned: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) UpsertGrant(ctx context.Context, issuerID id.IssuerID, grant models.Grant) error {
	if err := s.requireIssuer(ctx, issuerID); err != nil {
		return err
	}
	query := `
		INSERT INTO issuer_grants (issuer_id, class_id, quota, used)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (issuer_id, class_id)
		DO UPDATE SET quota = EXCLUDED.quota, used = 0
	`
	if _, err := s.db.ExecContext(ctx, query, issuerID.String(), grant.ClassID.String(), grant.Quota); err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteGrant(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	query := `
		DELETE FROM issuer_grants
		WHERE issuer_id = $1 AND class_id = $2
	`
	res, err := s.db.ExecContext(ctx, query, issuerID.String(), classID.String())
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ConsumeQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	// Conditional update keeps check-and-decrement atomic without a transaction.
	query := `
		UPDATE issuer_grants
		SET used = used + 1
		WHERE issuer_id = $1 AND class_id = $2 AND (quota <= 0 OR used < quota)
	`
	res, err := s.db.ExecContext(ctx, query, issuerID.String(), classID.String())
	if err != nil {
		return fmt.Errorf("consume quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume quota: %w", err)
	}
	if n == 0 {
		// Distinguish missing grant from exhausted quota.
		var exists bool
		check := `SELECT EXISTS(SELECT 1 FROM issuer_grants WHERE issuer_id = $1 AND class_id = $2)`
		if err := s.db.QueryRowContext(ctx, check, issuerID.String(), classID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("consume quota: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrExhausted
	}
	return nil
}

func (s *PostgresStore) RefundQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	query := `
		UPDATE issuer_grants
		SET used = used - 1
		WHERE issuer_id = $1 AND class_id = $2 AND used > 0
	`
	if _, err := s.db.ExecContext(ctx, query, issuerID.String(), classID.String()); err != nil {
		return fmt.Errorf("refund quota: %w", err)
	}
	return nil
}

func (s *PostgresStore) loadGrants(ctx context.Context, issuer *models.Issuer) error {
	query := `
		SELECT class_id, quota, used
		FROM issuer_grants
		WHERE issuer_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, issuer.ID.String())
	if err != nil {
		return fmt.Errorf("load grants: %w", err)
	}
	defer rows.Close()

	issuer.Grants = make(map[id.ClassID]*models.Grant)
	for rows.Next() {
		var classID string
		grant := &models.Grant{}
		if err := rows.Scan(&classID, &grant.Quota, &grant.Used); err != nil {
			return fmt.Errorf("scan grant: %w", err)
		}
		grant.ClassID = id.ClassID(classID)
		issuer.Grants[grant.ClassID] = grant
	}
	return rows.Err()
}

func (s *PostgresStore) requireIssuer(ctx context.Context, issuerID id.IssuerID) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM issuers WHERE id = $1)`
	if err := s.db.QueryRowContext(ctx, query, issuerID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("check issuer exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssuer(row rowScanner) (*models.Issuer, error) {
	var (
		issuer          models.Issuer
		rawID           string
		key             []byte
		claimTTLSeconds int64
	)
	if err := row.Scan(&rawID, &issuer.Banned, &key, &claimTTLSeconds, &issuer.APIKeyHash, &issuer.CreatedAt, &issuer.UpdatedAt); err != nil {
		return nil, err
	}
	issuer.ID = id.IssuerID(rawID)
	if len(key) > 0 {
		issuer.VerificationKey = ed25519.PublicKey(key)
	}
	issuer.ClaimTTL = time.Duration(claimTTLSeconds) * time.Second
	issuer.Grants = make(map[id.ClassID]*models.Grant)
	return &issuer, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
