package db

import (
	"context"
	"fmt"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/jackc/pgx/v5"
)

// Peer Benchmark methods

// UpsertPeerBenchmark creates or replaces the aggregate for a
// (metric, cohort, day). Re-running a night overwrites that night's row.
func (db *DB) UpsertPeerBenchmark(ctx context.Context, b *models.PeerBenchmark) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO peer_benchmarks (
			id, metric, industry_sector, employee_min, employee_max,
			p25, median, p75, mean, min, max, peer_count,
			calculated_on, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (metric, COALESCE(industry_sector, ''), COALESCE(employee_min, -1), COALESCE(employee_max, -1), calculated_on)
		DO UPDATE SET
			p25 = $6,
			median = $7,
			p75 = $8,
			mean = $9,
			min = $10,
			max = $11,
			peer_count = $12
	`, b.ID, b.Metric, b.IndustrySector, b.EmployeeMin, b.EmployeeMax,
		b.P25, b.Median, b.P75, b.Mean, b.Min, b.Max, b.PeerCount,
		b.CalculatedOn, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert peer benchmark: %w", err)
	}
	return nil
}

// GetLatestPeerBenchmark returns the most recent aggregate matching the
// metric and the exact cohort filter, or nil if none exists. A nil filter
// dimension only matches rows where that column is NULL; there is no
// fallback to a broader cohort.
func (db *DB) GetLatestPeerBenchmark(ctx context.Context, metric models.BenchmarkMetric, filter models.BenchmarkFilter) (*models.PeerBenchmark, error) {
	var b models.PeerBenchmark
	var metricStr string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, metric, industry_sector, employee_min, employee_max,
		       p25, median, p75, mean, min, max, peer_count,
		       calculated_on, created_at
		FROM peer_benchmarks
		WHERE metric = $1
		  AND industry_sector IS NOT DISTINCT FROM $2
		  AND employee_min IS NOT DISTINCT FROM $3
		  AND employee_max IS NOT DISTINCT FROM $4
		ORDER BY calculated_on DESC
		LIMIT 1
	`, metric, filter.IndustrySector, filter.EmployeeMin, filter.EmployeeMax).Scan(
		&b.ID, &metricStr, &b.IndustrySector, &b.EmployeeMin, &b.EmployeeMax,
		&b.P25, &b.Median, &b.P75, &b.Mean, &b.Min, &b.Max, &b.PeerCount,
		&b.CalculatedOn, &b.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest peer benchmark: %w", err)
	}
	b.Metric = models.BenchmarkMetric(metricStr)
	return &b, nil
}

// ListPeerBenchmarksForDay returns all aggregates calculated on a day.
func (db *DB) ListPeerBenchmarksForDay(ctx context.Context, day time.Time) ([]*models.PeerBenchmark, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, metric, industry_sector, employee_min, employee_max,
		       p25, median, p75, mean, min, max, peer_count,
		       calculated_on, created_at
		FROM peer_benchmarks
		WHERE calculated_on = $1
		ORDER BY metric, industry_sector NULLS FIRST, employee_min NULLS FIRST
	`, models.TruncateToDay(day))
	if err != nil {
		return nil, fmt.Errorf("list peer benchmarks for day: %w", err)
	}
	defer rows.Close()

	var benchmarks []*models.PeerBenchmark
	for rows.Next() {
		var b models.PeerBenchmark
		var metricStr string
		err := rows.Scan(
			&b.ID, &metricStr, &b.IndustrySector, &b.EmployeeMin, &b.EmployeeMax,
			&b.P25, &b.Median, &b.P75, &b.Mean, &b.Min, &b.Max, &b.PeerCount,
			&b.CalculatedOn, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan peer benchmark: %w", err)
		}
		b.Metric = models.BenchmarkMetric(metricStr)
		benchmarks = append(benchmarks, &b)
	}
	return benchmarks, rows.Err()
}

// DeletePeerBenchmarksBefore removes aggregates older than the cutoff.
func (db *DB) DeletePeerBenchmarksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM peer_benchmarks WHERE calculated_on < $1
	`, models.TruncateToDay(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete old peer benchmarks: %w", err)
	}
	return result.RowsAffected(), nil
}
