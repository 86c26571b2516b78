package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
)

type fakeProjects struct {
	projects []domain.Project
	err      error
	status   string
}

func (f *fakeProjects) ListProjectsByStatus(_ context.Context, status string) ([]domain.Project, error) {
	f.status = status
	return f.projects, f.err
}

type fakeScorer struct {
	mu     sync.Mutex
	seen   []int64
	status map[int64]domain.HealthStatus
	now    time.Time
}

func (f *fakeScorer) ScoreProject(_ context.Context, id int64, now time.Time) (analyzer.HealthReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, id)
	f.now = now
	status, ok := f.status[id]
	if !ok {
		return analyzer.HealthReport{}, fmt.Errorf("project %d: %w", id, domain.ErrUndefinedAggregate)
	}
	return analyzer.HealthReport{
		Project:   domain.Project{ID: id},
		Aggregate: domain.AggregateResult{OverallStatus: status},
	}, nil
}

type fakeAlerter struct {
	mu      sync.Mutex
	reports []analyzer.HealthReport
}

func (f *fakeAlerter) ProjectScored(_ context.Context, r analyzer.HealthReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
}

func TestRunOnce(t *testing.T) {
	projects := &fakeProjects{projects: []domain.Project{
		{ID: 1, Name: "Harbor Tower"},
		{ID: 2, Name: "Elm Street Clinic"},
		{ID: 3},
		{ID: 4, Name: "Zero Budget Annex"},
	}}
	scorer := &fakeScorer{status: map[int64]domain.HealthStatus{
		1: domain.StatusCritical,
		2: domain.StatusGood,
		3: domain.StatusCritical,
	}}
	alerter := &fakeAlerter{}
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	s := New(projects, scorer, alerter, chicago, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if projects.status != "active" {
		t.Fatalf("expected active projects to be listed, got %q", projects.status)
	}
	if result.Total != 4 || result.Scored != 3 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if strings.Join(result.Critical, "|") != "#3|Harbor Tower" {
		t.Fatalf("unexpected critical list %v", result.Critical)
	}
	if _, ok := result.Errors[4]; !ok || len(result.Errors) != 1 {
		t.Fatalf("expected project 4 to be reported as not scored, got %v", result.Errors)
	}
	if len(alerter.reports) != 3 {
		t.Fatalf("alerter should see every scored project, got %d", len(alerter.reports))
	}
	if scorer.now.Location() != chicago {
		t.Fatalf("expected sweep time in configured location, got %v", scorer.now.Location())
	}

	want := "Scored 3/4 active projects, 2 critical (#3, Harbor Tower), 1 not scored."
	if got := result.Summary(); got != want {
		t.Fatalf("Summary() = %q, want %q", got, want)
	}
}

func TestRunOnceListError(t *testing.T) {
	s := New(&fakeProjects{err: errors.New("db closed")}, &fakeScorer{}, nil, time.UTC, nil)
	if _, err := s.RunOnce(context.Background()); err == nil || !strings.Contains(err.Error(), "list active projects") {
		t.Fatalf("expected wrapped list error, got %v", err)
	}
}

func TestSummaryNoProjects(t *testing.T) {
	if got := (Result{}).Summary(); got != "No active projects." {
		t.Fatalf("Summary() = %q", got)
	}
}

func TestStart(t *testing.T) {
	s := New(&fakeProjects{}, &fakeScorer{}, nil, time.UTC, nil)

	stop, err := s.Start(context.Background(), "  ")
	if err != nil {
		t.Fatalf("empty schedule should disable the sweep, got %v", err)
	}
	stop()

	if _, err := s.Start(context.Background(), "every tuesday"); err == nil {
		t.Fatal("expected invalid schedule error")
	}

	stop, err = s.Start(context.Background(), "0 6 * * 1-5")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	stop()
}
