package db

import (
	"context"
	"fmt"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Tenant methods

// CreateTenant creates a new tenant.
func (db *DB) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO tenants (
			id, name, slug, is_active, industry_sector, employee_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tenant.ID, tenant.Name, tenant.Slug, tenant.IsActive,
		tenant.IndustrySector, tenant.EmployeeCount, tenant.CreatedAt, tenant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// GetTenantByID returns a tenant by its ID, or nil if not found.
func (db *DB) GetTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, slug, is_active, industry_sector, employee_count,
		       created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.IndustrySector, &t.EmployeeCount,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant by ID: %w", err)
	}
	return &t, nil
}

// ListActiveTenants returns all active tenants ordered by creation time.
// The stable ordering keeps batch runs deterministic.
func (db *DB) ListActiveTenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, slug, is_active, industry_sector, employee_count,
		       created_at, updated_at
		FROM tenants
		WHERE is_active = true
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	return scanTenants(rows)
}

// ListIndustrySectors returns the distinct industry sectors of active tenants.
func (db *DB) ListIndustrySectors(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT industry_sector
		FROM tenants
		WHERE is_active = true AND industry_sector IS NOT NULL
		ORDER BY industry_sector ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list industry sectors: %w", err)
	}
	defer rows.Close()

	var sectors []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan industry sector: %w", err)
		}
		sectors = append(sectors, s)
	}
	return sectors, rows.Err()
}

// scanTenants is a helper to scan multiple tenants.
func scanTenants(rows pgx.Rows) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		err := rows.Scan(
			&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.IndustrySector, &t.EmployeeCount,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}
