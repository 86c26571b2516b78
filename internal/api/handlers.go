package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"builddesk/internal/domain"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type errorBody struct {
	Error     string                      `json:"error"`
	Code      string                      `json:"code"`
	Undefined map[domain.Dimension]string `json:"undefined,omitempty"`
}

type TriageRequest struct {
	TicketID      int64  `json:"ticket_id"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	ReporterEmail string `json:"reporter_email"`
}

type TicketTriageResponse struct {
	Classification domain.ClassificationRecord `json:"classification"`
	Suggestions    []domain.Suggestion         `json:"suggestions"`
}

type ScoreRequest struct {
	ProjectID int64 `json:"project_id" binding:"required"`
}

type ProjectHealthResponse struct {
	Project domain.Project          `json:"project"`
	Latest  domain.HealthSnapshot   `json:"latest"`
	History []domain.HealthSnapshot `json:"history"`
}

type DraftRequest struct {
	Topic string `json:"topic" binding:"required"`
	Model string `json:"model"`
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDivisionByZero), errors.Is(err, domain.ErrUndefinedAggregate):
		return http.StatusUnprocessableEntity, "undefined_score"
	case errors.Is(err, domain.ErrUpstreamFailure):
		return http.StatusBadGateway, "upstream_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.failUndefined(c, err, nil)
}

// failUndefined is fail with the dimensions a health pass could not score.
// Messages of unclassified errors stay in the log, not the response.
func (s *Server) failUndefined(c *gin.Context, err error, undefined map[domain.Dimension]string) {
	status, code := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code, Undefined: undefined})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg, Code: "invalid_input"})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// triage handles POST /api/v1/triage. A ticket_id analyzes and stores a
// known ticket; otherwise the subject and body are classified ad hoc.
func (s *Server) triage(c *gin.Context) {
	var req TriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.TicketID > 0 {
		report, err := s.deps.Triage.AnalyzeTicket(ctx, req.TicketID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if s.deps.Alerter != nil {
			s.deps.Alerter.TicketTriaged(context.WithoutCancel(ctx), report)
		}
		c.JSON(http.StatusOK, report)
		return
	}

	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Body) == "" {
		badRequest(c, "ticket_id or subject/body is required")
		return
	}
	report, err := s.deps.Triage.AnalyzeText(ctx, req.Subject, req.Body, req.ReporterEmail)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// latestTriage handles GET /api/v1/tickets/:id/triage.
func (s *Server) latestTriage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rec, suggestions, err := s.deps.Store.LatestTriage(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TicketTriageResponse{Classification: rec, Suggestions: suggestions})
}

// scoreProject handles POST /api/v1/health/score.
func (s *Server) scoreProject(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ProjectID <= 0 {
		badRequest(c, "project_id must be a positive integer")
		return
	}

	ctx := c.Request.Context()
	report, err := s.deps.Health.ScoreProject(ctx, req.ProjectID, s.deps.Now())
	if err != nil {
		s.failUndefined(c, err, report.Undefined)
		return
	}
	if s.deps.Alerter != nil {
		s.deps.Alerter.ProjectScored(context.WithoutCancel(ctx), report)
	}
	c.JSON(http.StatusOK, report)
}

// projectHealth handles GET /api/v1/projects/:id/health?history=N.
func (s *Server) projectHealth(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("history"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			badRequest(c, "history must be between 1 and 100")
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	project, err := s.deps.Store.GetProject(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	latest, err := s.deps.Store.LatestSnapshot(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	history, err := s.deps.Store.SnapshotHistory(ctx, id, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ProjectHealthResponse{Project: project, Latest: latest, History: history})
}

// createDraft handles POST /api/v1/content/drafts. Generation never fails;
// a broken model response is replaced by the templated fallback.
func (s *Server) createDraft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		badRequest(c, "topic is required")
		return
	}

	ctx := c.Request.Context()
	result := s.deps.Drafts.GenerateDraft(ctx, topic, req.Model)
	draft := result.Draft()
	id, err := s.deps.Store.SaveDraft(ctx, *draft)
	if err != nil {
		s.fail(c, err)
		return
	}
	draft.ID = id
	s.logger.Info("content draft stored",
		zap.Int64("draft_id", id),
		zap.Bool("fallback", draft.Fallback),
		zap.String("request_id", c.GetString(requestIDKey)),
	)
	c.JSON(http.StatusCreated, draft)
}
