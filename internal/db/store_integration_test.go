//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *DB

func TestMain(m *testing.M) {
	if !dockerAvailable() {
		fmt.Println("Docker is not available, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("tenantpulse_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter())
	cfg := DefaultConfig(connStr)
	cfg.MaxConns = 5
	cfg.MinConns = 1

	testDB, err = New(ctx, cfg, logger)
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := testDB.Migrate(ctx); err != nil {
		testDB.Close()
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to run migrations: %v", err)
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

// dockerAvailable returns true if a Docker daemon is reachable.
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB returns the shared test database after cleaning all tables.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	cleanTables(t, testDB)
	return testDB
}

// cleanTables truncates all user tables between tests for isolation.
func cleanTables(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		DO $$ DECLARE r RECORD;
		BEGIN
			FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename != 'schema_migrations') LOOP
				EXECUTE 'TRUNCATE TABLE ' || quote_ident(r.tablename) || ' CASCADE';
			END LOOP;
		END $$;
	`)
	require.NoError(t, err)
}

// createTestTenant creates and persists a test tenant.
func createTestTenant(t *testing.T, db *DB, name, slug string, industry string, employees int) *models.Tenant {
	t.Helper()
	tenant := models.NewTenant(name, slug)
	if industry != "" {
		tenant.IndustrySector = &industry
	}
	if employees > 0 {
		tenant.EmployeeCount = &employees
	}
	err := db.CreateTenant(context.Background(), tenant)
	require.NoError(t, err)
	return tenant
}

func TestStore_Tenants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tenant := createTestTenant(t, db, "Acme Corp", "acme-corp", "finance", 250)

	t.Run("get by ID", func(t *testing.T) {
		got, err := db.GetTenantByID(ctx, tenant.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Acme Corp", got.Name)
		assert.Equal(t, "finance", *got.IndustrySector)
		assert.Equal(t, 250, *got.EmployeeCount)
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		got, err := db.GetTenantByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list active", func(t *testing.T) {
		createTestTenant(t, db, "Beta Inc", "beta-inc", "retail", 80)
		tenants, err := db.ListActiveTenants(ctx)
		require.NoError(t, err)
		assert.Len(t, tenants, 2)
		// Stable order: oldest first
		assert.Equal(t, "Acme Corp", tenants[0].Name)
	})

	t.Run("list industry sectors", func(t *testing.T) {
		sectors, err := db.ListIndustrySectors(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"finance", "retail"}, sectors)
	})
}

func TestStore_UsageSnapshots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tenant := createTestTenant(t, db, "Acme Corp", "acme-corp", "", 0)
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	snap := models.NewUsageMetricSnapshot(tenant.ID, day)
	snap.ActiveUsers = 70
	snap.TotalUsers = 100
	snap.CasesClosed = 20
	require.NoError(t, db.UpsertUsageSnapshot(ctx, snap))

	t.Run("upsert overwrites same day", func(t *testing.T) {
		again := models.NewUsageMetricSnapshot(tenant.ID, day)
		again.ActiveUsers = 80
		again.TotalUsers = 100
		again.CasesClosed = 5
		require.NoError(t, db.UpsertUsageSnapshot(ctx, again))

		got, err := db.GetUsageSnapshot(ctx, tenant.ID, day)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 80, got.ActiveUsers)
		// Counts are replaced, never accumulated
		assert.Equal(t, 5, got.CasesClosed)
	})

	t.Run("latest picks most recent day", func(t *testing.T) {
		newer := models.NewUsageMetricSnapshot(tenant.ID, day.AddDate(0, 0, 1))
		newer.ActiveUsers = 90
		require.NoError(t, db.UpsertUsageSnapshot(ctx, newer))

		got, err := db.GetLatestUsageSnapshot(ctx, tenant.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 90, got.ActiveUsers)
	})

	t.Run("missing tenant returns nil", func(t *testing.T) {
		got, err := db.GetLatestUsageSnapshot(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_HealthScores(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tenant := createTestTenant(t, db, "Acme Corp", "acme-corp", "", 0)

	first := models.NewHealthScoreRecord(tenant.ID)
	first.OverallScore = 55
	first.LoginScore = 60
	first.CaseResolutionScore = 50
	first.CampaignScore = 55
	first.FeatureScore = 50
	first.TicketScore = 60
	first.Trend = models.TrendStable
	first.RiskLevel = models.RiskHigh
	first.CalculatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, db.CreateHealthScore(ctx, first))

	prev := first.OverallScore
	second := models.NewHealthScoreRecord(tenant.ID)
	second.OverallScore = 72
	second.LoginScore = 80
	second.CaseResolutionScore = 70
	second.CampaignScore = 70
	second.FeatureScore = 65
	second.TicketScore = 70
	second.Trend = models.TrendImproving
	second.RiskLevel = models.RiskMedium
	second.PreviousScore = &prev
	require.NoError(t, db.CreateHealthScore(ctx, second))

	t.Run("latest is most recent record", func(t *testing.T) {
		got, err := db.GetLatestHealthScore(ctx, tenant.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 72, got.OverallScore)
		assert.Equal(t, models.TrendImproving, got.Trend)
		require.NotNil(t, got.PreviousScore)
		assert.Equal(t, 55, *got.PreviousScore)
	})

	t.Run("history is append-only", func(t *testing.T) {
		history, err := db.ListHealthScoreHistory(ctx, tenant.ID, 30)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 72, history[0].OverallScore)
		assert.Equal(t, 55, history[1].OverallScore)
	})

	t.Run("at-risk uses latest record only", func(t *testing.T) {
		// Latest record is MEDIUM, so Acme is not at risk despite the
		// older HIGH record.
		atRisk, err := db.ListAtRiskTenants(ctx)
		require.NoError(t, err)
		assert.Empty(t, atRisk)

		other := createTestTenant(t, db, "Beta Inc", "beta-inc", "", 0)
		rec := models.NewHealthScoreRecord(other.ID)
		rec.OverallScore = 40
		rec.Trend = models.TrendDeclining
		rec.RiskLevel = models.RiskHigh
		require.NoError(t, db.CreateHealthScore(ctx, rec))

		atRisk, err = db.ListAtRiskTenants(ctx)
		require.NoError(t, err)
		require.Len(t, atRisk, 1)
		assert.Equal(t, other.ID, atRisk[0].TenantID)
		assert.Equal(t, "Beta Inc", atRisk[0].TenantName)
	})
}

func TestStore_PeerBenchmarks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	finance := "finance"

	bench := &models.PeerBenchmark{
		ID:           uuid.New(),
		Metric:       models.MetricLoginRate,
		P25:          40,
		Median:       60,
		P75:          80,
		Mean:         61.5,
		Min:          10,
		Max:          95,
		PeerCount:    12,
		CalculatedOn: day,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, db.UpsertPeerBenchmark(ctx, bench))

	industryBench := &models.PeerBenchmark{
		ID:             uuid.New(),
		Metric:         models.MetricLoginRate,
		IndustrySector: &finance,
		P25:            50,
		Median:         65,
		P75:            82,
		Mean:           64,
		Min:            20,
		Max:            90,
		PeerCount:      6,
		CalculatedOn:   day,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, db.UpsertPeerBenchmark(ctx, industryBench))

	t.Run("exact filter match", func(t *testing.T) {
		got, err := db.GetLatestPeerBenchmark(ctx, models.MetricLoginRate, models.BenchmarkFilter{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.IndustrySector)
		assert.Equal(t, 12, got.PeerCount)

		got, err = db.GetLatestPeerBenchmark(ctx, models.MetricLoginRate,
			models.BenchmarkFilter{IndustrySector: &finance})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 6, got.PeerCount)
	})

	t.Run("no fallback to broader cohort", func(t *testing.T) {
		retail := "retail"
		got, err := db.GetLatestPeerBenchmark(ctx, models.MetricLoginRate,
			models.BenchmarkFilter{IndustrySector: &retail})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("upsert replaces same cohort and day", func(t *testing.T) {
		bench.Median = 62
		bench.PeerCount = 13
		require.NoError(t, db.UpsertPeerBenchmark(ctx, bench))

		got, err := db.GetLatestPeerBenchmark(ctx, models.MetricLoginRate, models.BenchmarkFilter{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 62.0, got.Median)
		assert.Equal(t, 13, got.PeerCount)
	})

	t.Run("list for day", func(t *testing.T) {
		benchmarks, err := db.ListPeerBenchmarksForDay(ctx, day)
		require.NoError(t, err)
		assert.Len(t, benchmarks, 2)
	})
}

func TestStore_JobQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tenant := createTestTenant(t, db, "Acme Corp", "acme-corp", "", 0)

	job := models.NewScoreTenantJob(tenant.ID, true)
	require.NoError(t, db.CreateJob(ctx, job))

	t.Run("claim next pending", func(t *testing.T) {
		claimed, err := db.GetNextPendingJob(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, models.JobStatusRunning, claimed.Status)
		require.NotNil(t, claimed.Payload.TenantID)
		assert.Equal(t, tenant.ID, *claimed.Payload.TenantID)

		// Queue is now empty
		next, err := db.GetNextPendingJob(ctx)
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("progress updates while running", func(t *testing.T) {
		require.NoError(t, db.UpdateJobProgress(ctx, job.ID, 50))
		got, err := db.GetJobByID(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 50, got.Progress)
	})

	t.Run("fail schedules retry", func(t *testing.T) {
		got, err := db.GetJobByID(ctx, job.ID)
		require.NoError(t, err)
		got.Fail("transient error")
		require.NoError(t, db.UpdateJob(ctx, got))

		// Backoff has not elapsed yet
		ready, err := db.ListJobsReadyForRetry(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, ready)
	})

	t.Run("summary counts by status", func(t *testing.T) {
		summary, err := db.GetJobQueueSummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TotalFailed)
	})
}
