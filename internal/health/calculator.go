package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avencora/tenantpulse/internal/config"
	"github.com/avencora/tenantpulse/internal/db"
	"github.com/avencora/tenantpulse/internal/events"
	"github.com/avencora/tenantpulse/internal/metrics"
	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScoreStore persists and reads health score records.
type ScoreStore interface {
	CreateHealthScore(ctx context.Context, rec *models.HealthScoreRecord) error
	GetLatestHealthScore(ctx context.Context, tenantID uuid.UUID) (*models.HealthScoreRecord, error)
}

// Calculator computes and persists tenant health scores.
type Calculator struct {
	identity  metrics.IdentitySource
	cases     metrics.CaseSource
	campaigns metrics.CampaignSource
	features  metrics.FeatureSource
	tickets   metrics.TicketSource

	scores    ScoreStore
	cfg       config.ScoringConfig
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewCalculator creates a Calculator over the given sources and store.
func NewCalculator(
	identity metrics.IdentitySource,
	cases metrics.CaseSource,
	campaigns metrics.CampaignSource,
	features metrics.FeatureSource,
	tickets metrics.TicketSource,
	scores ScoreStore,
	cfg config.ScoringConfig,
	publisher events.Publisher,
	logger zerolog.Logger,
) *Calculator {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Calculator{
		identity:  identity,
		cases:     cases,
		campaigns: campaigns,
		features:  features,
		tickets:   tickets,
		scores:    scores,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger.With().Str("component", "health_calculator").Logger(),
	}
}

// Calculate computes the five component scores over the trailing window,
// derives the overall score, trend, and risk, and appends a new record.
// The component reads and the previous-score lookup run concurrently;
// persistence waits for all of them.
func (c *Calculator) Calculate(ctx context.Context, tenantID uuid.UUID) (*models.HealthScoreRecord, error) {
	asOf := time.Now()
	windowStart := asOf.AddDate(0, 0, -c.cfg.WindowDays)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		errs  []error
		usage metrics.RawUsage
		prev  *models.HealthScoreRecord
	)

	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	wg.Add(6)

	go func() {
		defer wg.Done()
		total, active, err := c.identity.CountUsers(ctx, tenantID, windowStart, asOf)
		if err != nil {
			fail(fmt.Errorf("read user counts: %w", err))
			return
		}
		usage.TotalUsers = total
		usage.ActiveUsers = active
	}()

	go func() {
		defer wg.Done()
		stats, err := c.cases.GetCaseStats(ctx, tenantID, windowStart, asOf)
		if err != nil {
			fail(fmt.Errorf("read case stats: %w", err))
			return
		}
		usage.CasesCreated = stats.Created
		usage.CasesClosed = stats.Closed
		usage.CasesOnTime = stats.OnTime
		usage.CasesOverdue = stats.Overdue
	}()

	go func() {
		defer wg.Done()
		stats, err := c.campaigns.GetAssignmentStats(ctx, tenantID, windowStart, asOf)
		if err != nil {
			fail(fmt.Errorf("read assignment stats: %w", err))
			return
		}
		usage.CampaignsActive = stats.CampaignsActive
		usage.AssignmentsTotal = stats.Total
		usage.AssignmentsCompleted = stats.Completed
	}()

	go func() {
		defer wg.Done()
		adopted, err := c.features.CountAdoptedFeatures(ctx, tenantID, windowStart, asOf)
		if err != nil {
			fail(fmt.Errorf("read feature adoption: %w", err))
			return
		}
		usage.AdoptedFeatures = adopted
	}()

	go func() {
		defer wg.Done()
		tickets, err := c.tickets.CountOpenTickets(ctx, tenantID, windowStart, asOf)
		if err != nil {
			fail(fmt.Errorf("read support tickets: %w", err))
			return
		}
		usage.SupportTickets = tickets
	}()

	go func() {
		defer wg.Done()
		record, err := c.scores.GetLatestHealthScore(ctx, tenantID)
		if err != nil {
			fail(fmt.Errorf("read previous score: %w", err))
			return
		}
		prev = record
	}()

	wg.Wait()

	if len(errs) > 0 {
		return nil, fmt.Errorf("calculate score for tenant %s: %w", tenantID, errs[0])
	}

	components := scoreComponents(&usage, c.cfg)
	overall := overallScore(components, c.cfg)

	var previousScore *int
	if prev != nil {
		v := prev.OverallScore
		previousScore = &v
	}

	trend := classifyTrend(overall, previousScore, c.cfg)
	risk := classifyRisk(overall, trend, c.cfg)

	rec := models.NewHealthScoreRecord(tenantID)
	rec.OverallScore = overall
	rec.LoginScore = components.Login
	rec.CaseResolutionScore = components.CaseResolution
	rec.CampaignScore = components.Campaign
	rec.FeatureScore = components.Feature
	rec.TicketScore = components.Ticket
	rec.Trend = trend
	rec.RiskLevel = risk
	rec.PreviousScore = previousScore

	if err := c.scores.CreateHealthScore(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist score for tenant %s: %w", tenantID, err)
	}

	c.logger.Info().
		Str("tenant_id", tenantID.String()).
		Int("overall_score", overall).
		Str("trend", string(trend)).
		Str("risk_level", string(risk)).
		Msg("health score calculated")

	c.publishResults(rec)

	return rec, nil
}

// publishResults emits events after the record is committed.
func (c *Calculator) publishResults(rec *models.HealthScoreRecord) {
	c.publisher.Publish(events.NewEvent(events.EventScoreCalculated, map[string]interface{}{
		"tenant_id":     rec.TenantID.String(),
		"overall_score": rec.OverallScore,
		"trend":         string(rec.Trend),
		"risk_level":    string(rec.RiskLevel),
	}))

	if rec.RiskLevel == models.RiskHigh {
		c.publisher.Publish(events.NewEvent(events.EventTenantAtRisk, map[string]interface{}{
			"tenant_id":     rec.TenantID.String(),
			"overall_score": rec.OverallScore,
			"trend":         string(rec.Trend),
		}))
	}
}

// MetricValueStore is the storage surface the ValueResolver reads from.
type MetricValueStore interface {
	GetLatestUsageSnapshot(ctx context.Context, tenantID uuid.UUID) (*models.UsageMetricSnapshot, error)
	CountAdoptedFeatures(ctx context.Context, tenantID uuid.UUID, windowStart, asOf time.Time) (int, error)
}

var _ MetricValueStore = (*db.DB)(nil)

// ValueResolver maps a tenant to its current value for a benchmark
// metric. The aggregator and the lookup share one resolver so both sides
// of a comparison use identical semantics.
type ValueResolver struct {
	store  MetricValueStore
	reader *metrics.Reader
	cfg    config.ScoringConfig
}

// NewValueResolver creates a resolver over the given store and reader.
func NewValueResolver(store MetricValueStore, reader *metrics.Reader, cfg config.ScoringConfig) *ValueResolver {
	return &ValueResolver{store: store, reader: reader, cfg: cfg}
}

// Resolve returns the tenant's current value for a benchmark metric.
// Rate metrics derive from the latest usage snapshot; resolution time
// comes from a dedicated average-days query. Returns (0, false, nil)
// when the tenant has no data for the metric, including unknown metric
// names.
func (r *ValueResolver) Resolve(ctx context.Context, tenantID uuid.UUID, metric models.BenchmarkMetric) (float64, bool, error) {
	switch metric {
	case models.MetricLoginRate, models.MetricAttestationCompletionRate, models.MetricCaseOnTimeRate:
		snap, err := r.store.GetLatestUsageSnapshot(ctx, tenantID)
		if err != nil {
			return 0, false, fmt.Errorf("read latest snapshot: %w", err)
		}
		if snap == nil {
			return 0, false, nil
		}
		switch metric {
		case models.MetricLoginRate:
			if snap.TotalUsers == 0 {
				return 0, false, nil
			}
			return snap.LoginRate(), true, nil
		case models.MetricAttestationCompletionRate:
			if snap.AssignmentsTotal == 0 {
				return 0, false, nil
			}
			return snap.AttestationCompletionRate(), true, nil
		default:
			if snap.CasesClosed == 0 {
				return 0, false, nil
			}
			return snap.CaseOnTimeRate(), true, nil
		}

	case models.MetricFeatureAdoptionRate:
		windowStart, asOf := r.reader.Window(time.Now())
		adopted, err := r.store.CountAdoptedFeatures(ctx, tenantID, windowStart, asOf)
		if err != nil {
			return 0, false, fmt.Errorf("read feature adoption: %w", err)
		}
		return float64(adopted) / float64(r.cfg.TrackedFeatureTotal) * 100, true, nil

	case models.MetricCaseResolutionTime:
		avgDays, closed, err := r.reader.AvgCaseResolutionDays(ctx, tenantID, time.Now())
		if err != nil {
			return 0, false, fmt.Errorf("read case resolution time: %w", err)
		}
		if closed == 0 {
			return 0, false, nil
		}
		return avgDays, true, nil

	default:
		return 0, false, nil
	}
}
