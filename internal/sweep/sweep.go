// Package sweep periodically scores every active project and alerts on
// critical results.
package sweep

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
)

const (
	activeStatus       = "active"
	defaultConcurrency = 4
)

type ProjectLister interface {
	ListProjectsByStatus(ctx context.Context, status string) ([]domain.Project, error)
}

type Scorer interface {
	ScoreProject(ctx context.Context, projectID int64, now time.Time) (analyzer.HealthReport, error)
}

type Alerter interface {
	ProjectScored(ctx context.Context, report analyzer.HealthReport)
}

// Result tracks one sweep over the active projects.
type Result struct {
	Total    int
	Scored   int
	Critical []string
	Errors   map[int64]string
}

type Sweeper struct {
	projects    ProjectLister
	scorer      Scorer
	alerter     Alerter
	location    *time.Location
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// New returns a sweeper. alerter may be nil.
func New(projects ProjectLister, scorer Scorer, alerter Alerter, loc *time.Location, logger *zap.Logger) *Sweeper {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		projects:    projects,
		scorer:      scorer,
		alerter:     alerter,
		location:    loc,
		concurrency: defaultConcurrency,
		now:         time.Now,
		logger:      logger.With(zap.String("component", "sweep")),
	}
}

// RunOnce scores all active projects. A project that fails to score is
// recorded in the result and does not stop the sweep; only a failure to
// list projects is returned as an error.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	projects, err := s.projects.ListProjectsByStatus(ctx, activeStatus)
	if err != nil {
		return Result{}, fmt.Errorf("list active projects: %w", err)
	}

	now := s.now().In(s.location)
	result := Result{Total: len(projects), Errors: make(map[int64]string)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range projects {
		g.Go(func() error {
			report, err := s.scorer.ScoreProject(gctx, p.ID, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[p.ID] = err.Error()
				s.logger.Warn("project not scored", zap.Int64("project_id", p.ID), zap.Error(err))
				return nil
			}
			result.Scored++
			if report.Aggregate.OverallStatus == domain.StatusCritical {
				result.Critical = append(result.Critical, projectLabel(p))
			}
			if s.alerter != nil {
				s.alerter.ProjectScored(gctx, report)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(result.Critical)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Start schedules RunOnce on a standard 5-field cron expression in the
// sweeper's location. An empty schedule disables the sweep. The returned
// stop function waits for a running sweep to finish.
func (s *Sweeper) Start(ctx context.Context, schedule string) (func(), error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		s.logger.Info("health sweep disabled (health_sweep_schedule not set)")
		return func() {}, nil
	}

	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
	)
	_, err := c.AddFunc(schedule, func() {
		result, err := s.RunOnce(ctx)
		if err != nil {
			s.logger.Error("health sweep failed", zap.Error(err))
			return
		}
		s.logger.Info("health sweep complete", zap.String("summary", result.Summary()))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid health_sweep_schedule %q: %w", schedule, err)
	}

	c.Start()
	if entries := c.Entries(); len(entries) > 0 {
		s.logger.Info("health sweep scheduled",
			zap.String("cron", schedule),
			zap.Time("next", entries[0].Next),
		)
	}
	return func() { <-c.Stop().Done() }, nil
}

// Summary is the one-line description logged after each sweep.
func (r Result) Summary() string {
	if r.Total == 0 {
		return "No active projects."
	}
	msg := fmt.Sprintf("Scored %d/%d active projects", r.Scored, r.Total)
	if len(r.Critical) > 0 {
		msg += fmt.Sprintf(", %d critical (%s)", len(r.Critical), strings.Join(r.Critical, ", "))
	}
	if len(r.Errors) > 0 {
		msg += fmt.Sprintf(", %d not scored", len(r.Errors))
	}
	return msg + "."
}

func projectLabel(p domain.Project) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", p.ID)
}
