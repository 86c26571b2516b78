package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"builddesk/internal/domain"
)

type fakeHealthStore struct {
	projects  map[int64]domain.Project
	incidents []domain.Incident
	activity  []domain.WorkerActivity
	latest    *domain.HealthSnapshot
	saved     []domain.HealthSnapshot
	loadErr   error
}

func (f *fakeHealthStore) GetProject(_ context.Context, id int64) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, domain.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeHealthStore) IncidentsSince(_ context.Context, _ int64, since time.Time) ([]domain.Incident, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []domain.Incident
	for _, in := range f.incidents {
		if !in.OccurredAt.Before(since) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeHealthStore) ActivitySince(_ context.Context, _ int64, since time.Time) ([]domain.WorkerActivity, error) {
	var out []domain.WorkerActivity
	for _, a := range f.activity {
		if !a.At.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeHealthStore) LatestSnapshot(context.Context, int64) (domain.HealthSnapshot, error) {
	if f.latest == nil {
		return domain.HealthSnapshot{}, domain.ErrRecordNotFound
	}
	return *f.latest, nil
}

func (f *fakeHealthStore) SaveSnapshot(_ context.Context, snap domain.HealthSnapshot) (int64, error) {
	f.saved = append(f.saved, snap)
	return int64(len(f.saved)), nil
}

var healthNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func healthyProject() domain.Project {
	return domain.Project{
		ID:               7,
		Name:             "Riverside Clinic",
		StartDate:        healthNow.AddDate(0, 0, -50),
		EndDate:          healthNow.AddDate(0, 0, 50),
		Budget:           1000,
		ActualCost:       700, // 30% remaining
		CompletionPct:    65,  // 15 points ahead of schedule
		AssignedTeamSize: 2,
	}
}

func TestScoreProjectAllDimensions(t *testing.T) {
	store := &fakeHealthStore{
		projects: map[int64]domain.Project{7: healthyProject()},
		activity: []domain.WorkerActivity{
			{WorkerID: "w1", At: healthNow.AddDate(0, 0, -1)},
			{WorkerID: "w2", At: healthNow.AddDate(0, 0, -2)},
		},
	}
	svc := NewHealthService(store, nil)

	report, err := svc.ScoreProject(context.Background(), 7, healthNow)
	if err != nil {
		t.Fatalf("ScoreProject failed: %v", err)
	}
	// schedule 100, budget 100, safety 100, team 100, progress 65
	if report.Aggregate.OverallScore != 93 {
		t.Fatalf("OverallScore = %v, want 93", report.Aggregate.OverallScore)
	}
	if report.Aggregate.OverallStatus != domain.StatusExcellent {
		t.Fatalf("OverallStatus = %s", report.Aggregate.OverallStatus)
	}
	if len(report.Aggregate.Dimensions) != 5 || report.Undefined != nil {
		t.Fatalf("expected all five dimensions scored, got %+v / %v", report.Aggregate.Dimensions, report.Undefined)
	}
	if len(store.saved) != 1 || report.SnapshotID != 1 || store.saved[0].OverallScore != 93 {
		t.Fatalf("expected snapshot to be saved, got %+v", store.saved)
	}
	for _, d := range report.Aggregate.Dimensions {
		if d.Trend != domain.TrendStable {
			t.Fatalf("first pass should be stable, got %s for %s", d.Trend, d.Name)
		}
	}
}

func TestScoreProjectTrendFromPreviousSnapshot(t *testing.T) {
	store := &fakeHealthStore{
		projects: map[int64]domain.Project{7: healthyProject()},
		latest: &domain.HealthSnapshot{Dimensions: []domain.DimensionResult{
			{Name: domain.DimensionBudget, Score: 70},
			{Name: domain.DimensionProgress, Score: 80},
		}},
	}
	report, err := NewHealthService(store, nil).ScoreProject(context.Background(), 7, healthNow)
	if err != nil {
		t.Fatalf("ScoreProject failed: %v", err)
	}
	trends := make(map[domain.Dimension]domain.Trend)
	for _, d := range report.Aggregate.Dimensions {
		trends[d.Name] = d.Trend
	}
	if trends[domain.DimensionBudget] != domain.TrendUp {
		t.Fatalf("budget trend = %s, want up", trends[domain.DimensionBudget])
	}
	if trends[domain.DimensionProgress] != domain.TrendDown {
		t.Fatalf("progress trend = %s, want down", trends[domain.DimensionProgress])
	}
	if trends[domain.DimensionSafety] != domain.TrendStable {
		t.Fatalf("safety trend = %s, want stable", trends[domain.DimensionSafety])
	}
}

func TestScoreProjectExcludesUndefinedDimensions(t *testing.T) {
	p := healthyProject()
	p.Budget = 0
	p.EndDate = p.StartDate
	store := &fakeHealthStore{projects: map[int64]domain.Project{7: p}}

	report, err := NewHealthService(store, nil).ScoreProject(context.Background(), 7, healthNow)
	if err != nil {
		t.Fatalf("ScoreProject failed: %v", err)
	}
	if len(report.Undefined) != 2 {
		t.Fatalf("expected schedule and budget to be undefined, got %v", report.Undefined)
	}
	if _, ok := report.Undefined[domain.DimensionBudget]; !ok {
		t.Fatal("budget should be undefined")
	}
	// safety 100, team 30 (no recent activity), progress 65
	if len(report.Aggregate.Dimensions) != 3 {
		t.Fatalf("expected 3 scored dimensions, got %d", len(report.Aggregate.Dimensions))
	}
	if got, want := report.Aggregate.OverallScore, (100.0+30+65)/3; got != want {
		t.Fatalf("OverallScore = %v, want %v", got, want)
	}
}

func TestScoreProjectErrors(t *testing.T) {
	svc := NewHealthService(&fakeHealthStore{projects: map[int64]domain.Project{}}, nil)
	if _, err := svc.ScoreProject(context.Background(), 1, healthNow); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	boom := errors.New("disk I/O error")
	store := &fakeHealthStore{projects: map[int64]domain.Project{7: healthyProject()}, loadErr: boom}
	if _, err := NewHealthService(store, nil).ScoreProject(context.Background(), 7, healthNow); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("no snapshot should be saved after a load failure")
	}
}
