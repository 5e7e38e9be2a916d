package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cas/internal/registry/models"
	"cas/pkg/platform/sentinel"
)

// PostgresServiceStore persists services in PostgreSQL. List columns are stored
// through the models list codec.
type PostgresServiceStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed service store.
func NewPostgres(db *sql.DB) *PostgresServiceStore {
	return &PostgresServiceStore{db: db}
}

func (s *PostgresServiceStore) Create(ctx context.Context, svc *models.Service) error {
	query := `
		INSERT INTO services (name, enabled, allowed_urls, required_roles, mode)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		svc.Name, svc.Enabled, models.EncodeList(svc.AllowedURLs), models.EncodeList(svc.RequiredRoles), string(svc.Mode),
	).Scan(&svc.ID)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

func (s *PostgresServiceStore) Update(ctx context.Context, svc *models.Service) error {
	query := `
		UPDATE services
		SET name = $2, enabled = $3, allowed_urls = $4, required_roles = $5, mode = $6
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		svc.ID, svc.Name, svc.Enabled, models.EncodeList(svc.AllowedURLs), models.EncodeList(svc.RequiredRoles), string(svc.Mode),
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update service rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("service not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresServiceStore) FindByID(ctx context.Context, id int64) (*models.Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, enabled, allowed_urls, required_roles, mode
		FROM services WHERE id = $1
	`, id)
	svc, err := scanService(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find service: %w", err)
	}
	return svc, nil
}

// ListEnabled returns enabled services ordered by id.
func (s *PostgresServiceStore) ListEnabled(ctx context.Context) ([]*models.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, enabled, allowed_urls, required_roles, mode
		FROM services WHERE enabled ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanService(row scanner) (*models.Service, error) {
	var svc models.Service
	var urls, roles, mode string
	if err := row.Scan(&svc.ID, &svc.Name, &svc.Enabled, &urls, &roles, &mode); err != nil {
		return nil, err
	}
	svc.AllowedURLs = models.DecodeList(urls)
	svc.RequiredRoles = models.DecodeList(roles)
	// Unknown stored modes are kept verbatim; the policy evaluator denies them.
	svc.Mode = models.Mode(mode)
	return &svc, nil
}
