package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"cas/internal/identity/models"
	"cas/pkg/platform/sentinel"
)

// PostgresIdentityStore reads and writes identities in PostgreSQL.
type PostgresIdentityStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresIdentityStore {
	return &PostgresIdentityStore{db: db}
}

const selectIdentity = `
	SELECT id, username, password_hash, otp_secret, admin, locked, roles, COALESCE(api_token, '')
	FROM identities
`

func (s *PostgresIdentityStore) Save(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (id, username, password_hash, otp_secret, admin, locked, roles, api_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			otp_secret = EXCLUDED.otp_secret,
			admin = EXCLUDED.admin,
			locked = EXCLUDED.locked,
			roles = EXCLUDED.roles,
			api_token = EXCLUDED.api_token
	`
	// roles is NOT NULL and pq.Array sends a nil slice as NULL.
	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := s.db.ExecContext(ctx, query,
		identity.ID, identity.Username, identity.PasswordHash, identity.OTPSecret,
		identity.Admin, identity.Locked, pq.Array(roles), identity.APIToken,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("save identity: %w", sentinel.ErrInvalidState)
		}
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *PostgresIdentityStore) FindByUsername(ctx context.Context, username string) (*models.Identity, error) {
	return s.scanOne(ctx, selectIdentity+` WHERE username = $1`, username)
}

func (s *PostgresIdentityStore) FindByAPIToken(ctx context.Context, token string) (*models.Identity, error) {
	return s.scanOne(ctx, selectIdentity+` WHERE api_token = $1`, token)
}

func (s *PostgresIdentityStore) scanOne(ctx context.Context, query string, arg any) (*models.Identity, error) {
	var identity models.Identity
	var roles pq.StringArray
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&identity.ID, &identity.Username, &identity.PasswordHash, &identity.OTPSecret,
		&identity.Admin, &identity.Locked, &roles, &identity.APIToken,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	identity.Roles = []string(roles)
	if identity.Roles == nil {
		identity.Roles = []string{}
	}
	return &identity, nil
}
