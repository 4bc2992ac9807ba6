package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Raw source queries backing the metrics reader. These read the product
// application's tables; nothing here writes.

// CountUsers returns the total and active user counts for a tenant.
// Active means a login within the window ending at asOf.
func (db *DB) CountUsers(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (total, active int, err error) {
	err = db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE is_active = true),
			COUNT(*) FILTER (WHERE is_active = true AND last_login_at >= $2 AND last_login_at < $3)
		FROM users
		WHERE tenant_id = $1
	`, tenantID, windowStart, asOf).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	return total, active, nil
}

// CaseStats holds case throughput counts for a window.
type CaseStats struct {
	Created int
	Closed  int
	OnTime  int
	Overdue int
}

// GetCaseStats returns case throughput for a tenant within the window.
// A closed case is on time when it closed at or before its due date, or
// has no due date at all.
func (db *DB) GetCaseStats(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (*CaseStats, error) {
	var s CaseStats
	err := db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3),
			COUNT(*) FILTER (WHERE closed_at >= $2 AND closed_at < $3),
			COUNT(*) FILTER (WHERE closed_at >= $2 AND closed_at < $3
				AND (due_at IS NULL OR closed_at <= due_at)),
			COUNT(*) FILTER (WHERE closed_at IS NULL AND due_at IS NOT NULL AND due_at < $3)
		FROM cases
		WHERE tenant_id = $1
	`, tenantID, windowStart, asOf).Scan(&s.Created, &s.Closed, &s.OnTime, &s.Overdue)
	if err != nil {
		return nil, fmt.Errorf("get case stats: %w", err)
	}
	return &s, nil
}

// GetAvgCaseResolutionDays returns the average days from creation to
// closure for cases closed within the window, and how many cases that
// average covers.
func (db *DB) GetAvgCaseResolutionDays(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (avgDays float64, closed int, err error) {
	var avg *float64
	err = db.Pool.QueryRow(ctx, `
		SELECT
			AVG(EXTRACT(EPOCH FROM (closed_at - created_at)) / 86400),
			COUNT(*)
		FROM cases
		WHERE tenant_id = $1 AND closed_at >= $2 AND closed_at < $3
	`, tenantID, windowStart, asOf).Scan(&avg, &closed)
	if err != nil {
		return 0, 0, fmt.Errorf("get avg case resolution days: %w", err)
	}
	if avg != nil {
		avgDays = *avg
	}
	return avgDays, closed, nil
}

// AssignmentStats holds campaign assignment counts for a window.
type AssignmentStats struct {
	CampaignsActive int
	Total           int
	Completed       int
}

// GetAssignmentStats returns assignment completion counts across the
// tenant's campaigns active within the window.
func (db *DB) GetAssignmentStats(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (*AssignmentStats, error) {
	var s AssignmentStats
	err := db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT c.id) FILTER (WHERE c.status = 'active'),
			COUNT(ca.id),
			COUNT(ca.id) FILTER (WHERE ca.completed_at IS NOT NULL)
		FROM campaigns c
		LEFT JOIN campaign_assignments ca ON ca.campaign_id = c.id
		WHERE c.tenant_id = $1
		  AND (c.ends_at IS NULL OR c.ends_at >= $2)
		  AND (c.starts_at IS NULL OR c.starts_at < $3)
	`, tenantID, windowStart, asOf).Scan(&s.CampaignsActive, &s.Total, &s.Completed)
	if err != nil {
		return nil, fmt.Errorf("get assignment stats: %w", err)
	}
	return &s, nil
}

// CountAdoptedFeatures returns how many tracked features a tenant has
// used at least once within the window.
func (db *DB) CountAdoptedFeatures(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM feature_adoptions
		WHERE tenant_id = $1 AND last_used_at >= $2 AND last_used_at < $3
	`, tenantID, windowStart, asOf).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count adopted features: %w", err)
	}
	return count, nil
}
