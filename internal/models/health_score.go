package models

import (
	"time"

	"github.com/google/uuid"
)

// Trend describes the direction of a tenant's overall score relative to
// its previous record.
type Trend string

const (
	// TrendImproving indicates the overall score rose beyond the tolerance band.
	TrendImproving Trend = "IMPROVING"
	// TrendStable indicates the overall score stayed within the tolerance band.
	TrendStable Trend = "STABLE"
	// TrendDeclining indicates the overall score fell beyond the tolerance band.
	TrendDeclining Trend = "DECLINING"
)

// RiskLevel classifies a tenant by its overall health score.
type RiskLevel string

const (
	// RiskLow indicates a healthy tenant.
	RiskLow RiskLevel = "LOW"
	// RiskMedium indicates a tenant needing attention.
	RiskMedium RiskLevel = "MEDIUM"
	// RiskHigh indicates a tenant at risk of churn.
	RiskHigh RiskLevel = "HIGH"
)

// HealthScoreRecord is one append-only scoring result for a tenant.
// Records are never updated in place; history queries order by CalculatedAt.
type HealthScoreRecord struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`

	OverallScore int `json:"overall_score"`

	// Component scores, each bounded to [0, 100].
	LoginScore          int `json:"login_score"`
	CaseResolutionScore int `json:"case_resolution_score"`
	CampaignScore       int `json:"campaign_score"`
	FeatureScore        int `json:"feature_score"`
	TicketScore         int `json:"ticket_score"`

	Trend         Trend     `json:"trend"`
	RiskLevel     RiskLevel `json:"risk_level"`
	PreviousScore *int      `json:"previous_score,omitempty"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// NewHealthScoreRecord creates a record for a tenant stamped at the
// current time. Component and classification fields are filled in by the
// calculator before persistence.
func NewHealthScoreRecord(tenantID uuid.UUID) *HealthScoreRecord {
	return &HealthScoreRecord{
		ID:           uuid.New(),
		TenantID:     tenantID,
		CalculatedAt: time.Now(),
	}
}

// AtRiskTenant pairs a tenant with its latest health score record for the
// at-risk dashboard view.
type AtRiskTenant struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	TenantName   string    `json:"tenant_name"`
	OverallScore int       `json:"overall_score"`
	Trend        Trend     `json:"trend"`
	RiskLevel    RiskLevel `json:"risk_level"`
	CalculatedAt time.Time `json:"calculated_at"`
}
