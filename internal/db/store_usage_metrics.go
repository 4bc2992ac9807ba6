package db

import (
	"context"
	"fmt"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Usage Metric Snapshot methods

// UpsertUsageSnapshot creates or fully replaces the snapshot for a
// (tenant, day). Re-collecting the same day overwrites every count; the
// operation never accumulates.
func (db *DB) UpsertUsageSnapshot(ctx context.Context, snap *models.UsageMetricSnapshot) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO usage_metric_snapshots (
			id, tenant_id, snapshot_date, active_users, total_users,
			cases_created, cases_closed, cases_on_time, cases_overdue,
			campaigns_active, assignments_total, assignments_completed,
			support_tickets, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (tenant_id, snapshot_date) DO UPDATE SET
			active_users = $4,
			total_users = $5,
			cases_created = $6,
			cases_closed = $7,
			cases_on_time = $8,
			cases_overdue = $9,
			campaigns_active = $10,
			assignments_total = $11,
			assignments_completed = $12,
			support_tickets = $13,
			updated_at = $15
	`, snap.ID, snap.TenantID, snap.SnapshotDate, snap.ActiveUsers, snap.TotalUsers,
		snap.CasesCreated, snap.CasesClosed, snap.CasesOnTime, snap.CasesOverdue,
		snap.CampaignsActive, snap.AssignmentsTotal, snap.AssignmentsCompleted,
		snap.SupportTickets, snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert usage snapshot: %w", err)
	}
	return nil
}

// GetUsageSnapshot returns the snapshot for a tenant on a specific day,
// or nil if none exists.
func (db *DB) GetUsageSnapshot(ctx context.Context, tenantID uuid.UUID, day time.Time) (*models.UsageMetricSnapshot, error) {
	var s models.UsageMetricSnapshot
	err := db.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, snapshot_date, active_users, total_users,
		       cases_created, cases_closed, cases_on_time, cases_overdue,
		       campaigns_active, assignments_total, assignments_completed,
		       support_tickets, created_at, updated_at
		FROM usage_metric_snapshots
		WHERE tenant_id = $1 AND snapshot_date = $2
	`, tenantID, models.TruncateToDay(day)).Scan(
		&s.ID, &s.TenantID, &s.SnapshotDate, &s.ActiveUsers, &s.TotalUsers,
		&s.CasesCreated, &s.CasesClosed, &s.CasesOnTime, &s.CasesOverdue,
		&s.CampaignsActive, &s.AssignmentsTotal, &s.AssignmentsCompleted,
		&s.SupportTickets, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get usage snapshot: %w", err)
	}
	return &s, nil
}

// GetLatestUsageSnapshot returns the most recent snapshot for a tenant,
// or nil if the tenant has never been collected.
func (db *DB) GetLatestUsageSnapshot(ctx context.Context, tenantID uuid.UUID) (*models.UsageMetricSnapshot, error) {
	var s models.UsageMetricSnapshot
	err := db.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, snapshot_date, active_users, total_users,
		       cases_created, cases_closed, cases_on_time, cases_overdue,
		       campaigns_active, assignments_total, assignments_completed,
		       support_tickets, created_at, updated_at
		FROM usage_metric_snapshots
		WHERE tenant_id = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, tenantID).Scan(
		&s.ID, &s.TenantID, &s.SnapshotDate, &s.ActiveUsers, &s.TotalUsers,
		&s.CasesCreated, &s.CasesClosed, &s.CasesOnTime, &s.CasesOverdue,
		&s.CampaignsActive, &s.AssignmentsTotal, &s.AssignmentsCompleted,
		&s.SupportTickets, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest usage snapshot: %w", err)
	}
	return &s, nil
}

// ListUsageSnapshots returns a tenant's snapshots for the trailing number
// of days, oldest first.
func (db *DB) ListUsageSnapshots(ctx context.Context, tenantID uuid.UUID, days int) ([]*models.UsageMetricSnapshot, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, tenant_id, snapshot_date, active_users, total_users,
		       cases_created, cases_closed, cases_on_time, cases_overdue,
		       campaigns_active, assignments_total, assignments_completed,
		       support_tickets, created_at, updated_at
		FROM usage_metric_snapshots
		WHERE tenant_id = $1 AND snapshot_date >= CURRENT_DATE - $2::int
		ORDER BY snapshot_date ASC
	`, tenantID, days)
	if err != nil {
		return nil, fmt.Errorf("list usage snapshots: %w", err)
	}
	defer rows.Close()

	return scanUsageSnapshots(rows)
}

// scanUsageSnapshots is a helper to scan multiple snapshots.
func scanUsageSnapshots(rows pgx.Rows) ([]*models.UsageMetricSnapshot, error) {
	var snaps []*models.UsageMetricSnapshot
	for rows.Next() {
		var s models.UsageMetricSnapshot
		err := rows.Scan(
			&s.ID, &s.TenantID, &s.SnapshotDate, &s.ActiveUsers, &s.TotalUsers,
			&s.CasesCreated, &s.CasesClosed, &s.CasesOnTime, &s.CasesOverdue,
			&s.CampaignsActive, &s.AssignmentsTotal, &s.AssignmentsCompleted,
			&s.SupportTickets, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan usage snapshot: %w", err)
		}
		snaps = append(snaps, &s)
	}
	return snaps, rows.Err()
}
