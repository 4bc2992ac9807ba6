package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageMetricSnapshot represents one tenant's usage counts for a single
// calendar day, aggregated over the trailing 30-day window ending on that
// day. At most one snapshot exists per (tenant, day); re-collection
// overwrites the existing row.
type UsageMetricSnapshot struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	SnapshotDate time.Time `json:"snapshot_date"`

	// User activity
	ActiveUsers int `json:"active_users"`
	TotalUsers  int `json:"total_users"`

	// Case throughput
	CasesCreated int `json:"cases_created"`
	CasesClosed  int `json:"cases_closed"`
	CasesOnTime  int `json:"cases_on_time"`
	CasesOverdue int `json:"cases_overdue"`

	// Campaign attestation progress
	CampaignsActive      int `json:"campaigns_active"`
	AssignmentsTotal     int `json:"assignments_total"`
	AssignmentsCompleted int `json:"assignments_completed"`

	// Support load
	SupportTickets int `json:"support_tickets"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUsageMetricSnapshot creates an empty snapshot for a tenant and day.
// The snapshot date is truncated to midnight UTC so the (tenant, day)
// upsert key is stable regardless of collection time.
func NewUsageMetricSnapshot(tenantID uuid.UUID, day time.Time) *UsageMetricSnapshot {
	now := time.Now()
	return &UsageMetricSnapshot{
		ID:           uuid.New(),
		TenantID:     tenantID,
		SnapshotDate: TruncateToDay(day),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LoginRate returns the active-user ratio as a percentage, or 0 when the
// tenant has no users.
func (s *UsageMetricSnapshot) LoginRate() float64 {
	if s.TotalUsers == 0 {
		return 0
	}
	return float64(s.ActiveUsers) / float64(s.TotalUsers) * 100
}

// CaseOnTimeRate returns the on-time closure ratio as a percentage, or 0
// when no cases were closed in the window.
func (s *UsageMetricSnapshot) CaseOnTimeRate() float64 {
	if s.CasesClosed == 0 {
		return 0
	}
	return float64(s.CasesOnTime) / float64(s.CasesClosed) * 100
}

// AttestationCompletionRate returns the completed-assignment ratio as a
// percentage, or 0 when no assignments exist.
func (s *UsageMetricSnapshot) AttestationCompletionRate() float64 {
	if s.AssignmentsTotal == 0 {
		return 0
	}
	return float64(s.AssignmentsCompleted) / float64(s.AssignmentsTotal) * 100
}

// TruncateToDay strips the time-of-day component, returning midnight UTC
// for the given instant.
func TruncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
