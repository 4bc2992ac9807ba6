package db

import (
	"context"
	"fmt"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Health Score methods

// CreateHealthScore appends a new score record. History is append-only;
// there is deliberately no update method.
func (db *DB) CreateHealthScore(ctx context.Context, rec *models.HealthScoreRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO health_scores (
			id, tenant_id, overall_score, login_score, case_resolution_score,
			campaign_score, feature_score, ticket_score, trend, risk_level,
			previous_score, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rec.ID, rec.TenantID, rec.OverallScore, rec.LoginScore, rec.CaseResolutionScore,
		rec.CampaignScore, rec.FeatureScore, rec.TicketScore, rec.Trend, rec.RiskLevel,
		rec.PreviousScore, rec.CalculatedAt)
	if err != nil {
		return fmt.Errorf("create health score: %w", err)
	}
	return nil
}

// GetLatestHealthScore returns the most recent score record for a tenant,
// or nil if the tenant has never been scored.
func (db *DB) GetLatestHealthScore(ctx context.Context, tenantID uuid.UUID) (*models.HealthScoreRecord, error) {
	var r models.HealthScoreRecord
	var trendStr, riskStr string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, overall_score, login_score, case_resolution_score,
		       campaign_score, feature_score, ticket_score, trend, risk_level,
		       previous_score, calculated_at
		FROM health_scores
		WHERE tenant_id = $1
		ORDER BY calculated_at DESC
		LIMIT 1
	`, tenantID).Scan(
		&r.ID, &r.TenantID, &r.OverallScore, &r.LoginScore, &r.CaseResolutionScore,
		&r.CampaignScore, &r.FeatureScore, &r.TicketScore, &trendStr, &riskStr,
		&r.PreviousScore, &r.CalculatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest health score: %w", err)
	}
	r.Trend = models.Trend(trendStr)
	r.RiskLevel = models.RiskLevel(riskStr)
	return &r, nil
}

// ListHealthScoreHistory returns a tenant's score records for the trailing
// number of days, newest first.
func (db *DB) ListHealthScoreHistory(ctx context.Context, tenantID uuid.UUID, days int) ([]*models.HealthScoreRecord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, tenant_id, overall_score, login_score, case_resolution_score,
		       campaign_score, feature_score, ticket_score, trend, risk_level,
		       previous_score, calculated_at
		FROM health_scores
		WHERE tenant_id = $1 AND calculated_at >= NOW() - INTERVAL '1 day' * $2
		ORDER BY calculated_at DESC
	`, tenantID, days)
	if err != nil {
		return nil, fmt.Errorf("list health score history: %w", err)
	}
	defer rows.Close()

	return scanHealthScores(rows)
}

// ListAtRiskTenants returns active tenants whose latest score record
// carries HIGH risk, worst score first.
func (db *DB) ListAtRiskTenants(ctx context.Context) ([]*models.AtRiskTenant, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT tenant_id, tenant_name, overall_score, trend, risk_level, calculated_at
		FROM (
			SELECT DISTINCT ON (hs.tenant_id)
			       hs.tenant_id, t.name AS tenant_name, hs.overall_score,
			       hs.trend, hs.risk_level, hs.calculated_at
			FROM health_scores hs
			JOIN tenants t ON t.id = hs.tenant_id
			WHERE t.is_active = true
			ORDER BY hs.tenant_id, hs.calculated_at DESC
		) latest
		WHERE risk_level = 'HIGH'
		ORDER BY overall_score ASC, calculated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list at-risk tenants: %w", err)
	}
	defer rows.Close()

	var atRisk []*models.AtRiskTenant
	for rows.Next() {
		var a models.AtRiskTenant
		var trendStr, riskStr string
		err := rows.Scan(&a.TenantID, &a.TenantName, &a.OverallScore, &trendStr, &riskStr, &a.CalculatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan at-risk tenant: %w", err)
		}
		a.Trend = models.Trend(trendStr)
		a.RiskLevel = models.RiskLevel(riskStr)
		atRisk = append(atRisk, &a)
	}
	return atRisk, rows.Err()
}

// scanHealthScores is a helper to scan multiple score records.
func scanHealthScores(rows pgx.Rows) ([]*models.HealthScoreRecord, error) {
	var records []*models.HealthScoreRecord
	for rows.Next() {
		var r models.HealthScoreRecord
		var trendStr, riskStr string
		err := rows.Scan(
			&r.ID, &r.TenantID, &r.OverallScore, &r.LoginScore, &r.CaseResolutionScore,
			&r.CampaignScore, &r.FeatureScore, &r.TicketScore, &trendStr, &riskStr,
			&r.PreviousScore, &r.CalculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan health score: %w", err)
		}
		r.Trend = models.Trend(trendStr)
		r.RiskLevel = models.RiskLevel(riskStr)
		records = append(records, &r)
	}
	return records, rows.Err()
}
