package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"builddesk/internal/domain"
	"builddesk/internal/health"
	"builddesk/internal/metrics"
)

// HealthStore is the project data behind a scoring pass.
type HealthStore interface {
	GetProject(ctx context.Context, id int64) (domain.Project, error)
	IncidentsSince(ctx context.Context, projectID int64, since time.Time) ([]domain.Incident, error)
	ActivitySince(ctx context.Context, projectID int64, since time.Time) ([]domain.WorkerActivity, error)
	LatestSnapshot(ctx context.Context, projectID int64) (domain.HealthSnapshot, error)
	SaveSnapshot(ctx context.Context, snap domain.HealthSnapshot) (int64, error)
}

type HealthReport struct {
	Project    domain.Project              `json:"project"`
	Aggregate  domain.AggregateResult      `json:"aggregate"`
	Undefined  map[domain.Dimension]string `json:"undefined,omitempty"`
	SnapshotID int64                       `json:"snapshot_id"`
	ScoredAt   time.Time                   `json:"scored_at"`
}

type HealthService struct {
	store  HealthStore
	logger *zap.Logger
}

func NewHealthService(store HealthStore, logger *zap.Logger) *HealthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthService{store: store, logger: logger.With(zap.String("component", "health"))}
}

// ScoreProject scores every dimension of a project as of now and stores
// the result. Dimensions with undefined inputs are reported and skipped; if
// none remain the pass fails with domain.ErrUndefinedAggregate.
func (s *HealthService) ScoreProject(ctx context.Context, projectID int64, now time.Time) (HealthReport, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return HealthReport{}, fmt.Errorf("get project %d: %w", projectID, err)
	}

	var (
		incidents []domain.Incident
		activity  []domain.WorkerActivity
		previous  map[domain.Dimension]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incidents, err = s.store.IncidentsSince(gctx, projectID, now.Add(-health.SafetyWindow))
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = s.store.ActivitySince(gctx, projectID, now.Add(-health.TeamWindow))
		return err
	})
	g.Go(func() error {
		snap, err := s.store.LatestSnapshot(gctx, projectID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		previous = make(map[domain.Dimension]float64, len(snap.Dimensions))
		for _, d := range snap.Dimensions {
			previous[d.Name] = d.Score
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return HealthReport{}, fmt.Errorf("load health data for project %d: %w", projectID, err)
	}

	prev := func(d domain.Dimension) health.Previous {
		if v, ok := previous[d]; ok {
			return &v
		}
		return nil
	}
	in := health.Inputs{
		Schedule: health.ScheduleInput{
			StartDate:         project.StartDate,
			EndDate:           project.EndDate,
			Now:               now,
			ActualProgressPct: project.CompletionPct,
			Previous:          prev(domain.DimensionSchedule),
		},
		Budget: health.BudgetInput{
			Budget:     project.Budget,
			ActualCost: project.ActualCost,
			Previous:   prev(domain.DimensionBudget),
		},
		Safety: health.SafetyInput{Incidents: incidents, Now: now, Previous: prev(domain.DimensionSafety)},
		Team: health.TeamInput{
			AssignedTeamSize: project.AssignedTeamSize,
			Activity:         activity,
			Now:              now,
			Previous:         prev(domain.DimensionTeam),
		},
		Progress: health.ProgressInput{CompletionPct: project.CompletionPct, Previous: prev(domain.DimensionProgress)},
	}

	pass, err := health.ScoreAll(in)
	undefined := make(map[domain.Dimension]string, len(pass.Failed))
	for dim, ferr := range pass.Failed {
		undefined[dim] = ferr.Error()
		metrics.HealthDimensionFailures.WithLabelValues(string(dim)).Inc()
		s.logger.Warn("dimension not scored", zap.Int64("project_id", projectID), zap.String("dimension", string(dim)), zap.Error(ferr))
	}
	if err != nil {
		return HealthReport{Project: project, Undefined: undefined}, fmt.Errorf("project %d: %w", projectID, err)
	}

	snapshotID, err := s.store.SaveSnapshot(ctx, domain.HealthSnapshot{
		ProjectID:    projectID,
		OverallScore: pass.Aggregate.OverallScore,
		Status:       pass.Aggregate.OverallStatus,
		Dimensions:   pass.Aggregate.Dimensions,
		ScoredAt:     now,
	})
	if err != nil {
		return HealthReport{}, fmt.Errorf("save snapshot for project %d: %w", projectID, err)
	}
	metrics.HealthScore.WithLabelValues(strconv.FormatInt(projectID, 10)).Set(pass.Aggregate.OverallScore)

	if len(undefined) == 0 {
		undefined = nil
	}
	return HealthReport{
		Project:    project,
		Aggregate:  pass.Aggregate,
		Undefined:  undefined,
		SnapshotID: snapshotID,
		ScoredAt:   now,
	}, nil
}
