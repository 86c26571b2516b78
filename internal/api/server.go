// Package api exposes triage, project health and content drafts over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
	"builddesk/internal/integrations/llm"
	"builddesk/internal/metrics"
)

type Triager interface {
	AnalyzeTicket(ctx context.Context, id int64) (analyzer.TriageReport, error)
	AnalyzeText(ctx context.Context, subject, body, reporterEmail string) (analyzer.TriageReport, error)
}

type HealthScorer interface {
	ScoreProject(ctx context.Context, projectID int64, now time.Time) (analyzer.HealthReport, error)
}

type Drafter interface {
	GenerateDraft(ctx context.Context, topic, model string) llm.DraftResult
}

// Store is the read side the handlers need beyond the services.
type Store interface {
	LatestTriage(ctx context.Context, ticketID int64) (domain.ClassificationRecord, []domain.Suggestion, error)
	GetProject(ctx context.Context, id int64) (domain.Project, error)
	LatestSnapshot(ctx context.Context, projectID int64) (domain.HealthSnapshot, error)
	SnapshotHistory(ctx context.Context, projectID int64, limit int) ([]domain.HealthSnapshot, error)
	SaveDraft(ctx context.Context, d domain.ContentDraft) (int64, error)
}

// Alerter is told about every stored triage and health pass; it decides
// what is worth a notification.
type Alerter interface {
	TicketTriaged(ctx context.Context, report analyzer.TriageReport)
	ProjectScored(ctx context.Context, report analyzer.HealthReport)
}

type Deps struct {
	Triage  Triager
	Health  HealthScorer
	Drafts  Drafter
	Store   Store
	Alerter Alerter // optional
	Logger  *zap.Logger
	Now     func() time.Time
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	router *gin.Engine
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{deps: deps, logger: deps.Logger.With(zap.String("component", "api"))}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.logger), requestID(), accessLog(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/triage", s.triage)
	v1.GET("/tickets/:id/triage", s.latestTriage)
	v1.POST("/health/score", s.scoreProject)
	v1.GET("/projects/:id/health", s.projectHealth)
	v1.POST("/content/drafts", s.createDraft)
	return r
}

// ListenAndServe runs until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
