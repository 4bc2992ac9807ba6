// Package metrics collects per-tenant usage metrics for health scoring.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/avencora/tenantpulse/internal/db"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdentitySource provides user activity counts.
type IdentitySource interface {
	CountUsers(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (total, active int, err error)
}

// CaseSource provides case throughput counts.
type CaseSource interface {
	GetCaseStats(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (*db.CaseStats, error)
	GetAvgCaseResolutionDays(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (avgDays float64, closed int, err error)
}

// CampaignSource provides campaign assignment counts.
type CampaignSource interface {
	GetAssignmentStats(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (*db.AssignmentStats, error)
}

// FeatureSource provides feature adoption counts.
type FeatureSource interface {
	CountAdoptedFeatures(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (int, error)
}

// TicketSource provides support ticket counts. The helpdesk integration
// is pluggable; StubTicketSource serves until one is wired up.
type TicketSource interface {
	CountOpenTickets(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (int, error)
}

// StubTicketSource reports zero tickets for every tenant.
type StubTicketSource struct{}

// CountOpenTickets always returns 0.
func (StubTicketSource) CountOpenTickets(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (int, error) {
	return 0, nil
}

// RawUsage holds one tenant's raw counts over the trailing window.
type RawUsage struct {
	TotalUsers  int
	ActiveUsers int

	CasesCreated int
	CasesClosed  int
	CasesOnTime  int
	CasesOverdue int

	CampaignsActive      int
	AssignmentsTotal     int
	AssignmentsCompleted int

	AdoptedFeatures int
	SupportTickets  int
}

// Reader gathers raw usage counts from the product sources. Pure read;
// nothing here persists.
type Reader struct {
	identity  IdentitySource
	cases     CaseSource
	campaigns CampaignSource
	features  FeatureSource
	tickets   TicketSource

	windowDays int
	logger     zerolog.Logger
}

// NewReader creates a Reader over the given sources with a trailing
// window of windowDays.
func NewReader(identity IdentitySource, cases CaseSource, campaigns CampaignSource, features FeatureSource, tickets TicketSource, windowDays int, logger zerolog.Logger) *Reader {
	return &Reader{
		identity:   identity,
		cases:      cases,
		campaigns:  campaigns,
		features:   features,
		tickets:    tickets,
		windowDays: windowDays,
		logger:     logger.With().Str("component", "metrics_reader").Logger(),
	}
}

// Window returns the [start, end) bounds of the trailing window ending
// at asOf.
func (r *Reader) Window(asOf time.Time) (time.Time, time.Time) {
	end := asOf
	return end.AddDate(0, 0, -r.windowDays), end
}

// Read gathers all raw counts for a tenant over the window ending at asOf.
func (r *Reader) Read(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*RawUsage, error) {
	windowStart, windowEnd := r.Window(asOf)
	usage := &RawUsage{}

	total, active, err := r.identity.CountUsers(ctx, tenantID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("read user counts: %w", err)
	}
	usage.TotalUsers = total
	usage.ActiveUsers = active

	caseStats, err := r.cases.GetCaseStats(ctx, tenantID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("read case stats: %w", err)
	}
	usage.CasesCreated = caseStats.Created
	usage.CasesClosed = caseStats.Closed
	usage.CasesOnTime = caseStats.OnTime
	usage.CasesOverdue = caseStats.Overdue

	assignStats, err := r.campaigns.GetAssignmentStats(ctx, tenantID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("read assignment stats: %w", err)
	}
	usage.CampaignsActive = assignStats.CampaignsActive
	usage.AssignmentsTotal = assignStats.Total
	usage.AssignmentsCompleted = assignStats.Completed

	adopted, err := r.features.CountAdoptedFeatures(ctx, tenantID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("read feature adoption: %w", err)
	}
	usage.AdoptedFeatures = adopted

	tickets, err := r.tickets.CountOpenTickets(ctx, tenantID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("read support tickets: %w", err)
	}
	usage.SupportTickets = tickets

	return usage, nil
}

// AvgCaseResolutionDays returns the average days-to-close for cases closed
// in the window ending at asOf.
func (r *Reader) AvgCaseResolutionDays(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (float64, int, error) {
	windowStart, windowEnd := r.Window(asOf)
	return r.cases.GetAvgCaseResolutionDays(ctx, tenantID, windowStart, windowEnd)
}
