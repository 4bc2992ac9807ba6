package benchmark

import (
	"context"
	"testing"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/rs/zerolog"
)

type mockJobStore struct {
	jobs []*models.Job
}

func (m *mockJobStore) CreateJob(ctx context.Context, job *models.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func TestNewSchedulerRejectsBadExpression(t *testing.T) {
	if _, err := NewScheduler(&mockJobStore{}, "not a cron", "0 3 * * *", zerolog.Nop()); err == nil {
		t.Error("expected error for invalid benchmark schedule")
	}
	if _, err := NewScheduler(&mockJobStore{}, "0 2 * * *", "bogus", zerolog.Nop()); err == nil {
		t.Error("expected error for invalid scoring schedule")
	}
}

func TestSchedulerEnqueue(t *testing.T) {
	store := &mockJobStore{}
	s, err := NewScheduler(store, "0 2 * * *", "0 3 * * *", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	s.enqueue(models.NewBenchmarkNightlyJob())
	s.enqueue(models.NewScoreAllTenantsJob())

	if len(store.jobs) != 2 {
		t.Fatalf("expected 2 enqueued jobs, got %d", len(store.jobs))
	}
	if store.jobs[0].JobType != models.JobTypeBenchmarkNightly {
		t.Errorf("first job type = %s", store.jobs[0].JobType)
	}
	if store.jobs[1].JobType != models.JobTypeScoreAllTenants {
		t.Errorf("second job type = %s", store.jobs[1].JobType)
	}
}
