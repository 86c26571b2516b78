package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
	"builddesk/internal/integrations/llm"
)

type fakeTriager struct {
	byID     map[int64]analyzer.TriageReport
	textErr  error
	lastText string
}

func (f *fakeTriager) AnalyzeTicket(_ context.Context, id int64) (analyzer.TriageReport, error) {
	r, ok := f.byID[id]
	if !ok {
		return analyzer.TriageReport{}, fmt.Errorf("get ticket %d: %w", id, domain.ErrRecordNotFound)
	}
	return r, nil
}

func (f *fakeTriager) AnalyzeText(_ context.Context, subject, body, _ string) (analyzer.TriageReport, error) {
	f.lastText = subject + "|" + body
	if f.textErr != nil {
		return analyzer.TriageReport{}, f.textErr
	}
	return analyzer.TriageReport{
		Classification: domain.Classification{Category: domain.CategoryBilling, Priority: domain.PriorityMedium, Confidence: 0.6},
		Source:         analyzer.SourceHeuristic,
	}, nil
}

type fakeScorer struct {
	report analyzer.HealthReport
	err    error
}

func (f *fakeScorer) ScoreProject(context.Context, int64, time.Time) (analyzer.HealthReport, error) {
	return f.report, f.err
}

type fakeDrafter struct{ result llm.DraftResult }

func (f fakeDrafter) GenerateDraft(_ context.Context, topic, _ string) llm.DraftResult {
	if f.result.Draft() != nil {
		return f.result
	}
	return llm.DraftResult{Fallback: llm.FallbackDraft(topic)}
}

type fakeStore struct {
	triage    map[int64]domain.ClassificationRecord
	projects  map[int64]domain.Project
	snapshots map[int64][]domain.HealthSnapshot
	drafts    []domain.ContentDraft
	saveErr   error
}

func (f *fakeStore) LatestTriage(_ context.Context, id int64) (domain.ClassificationRecord, []domain.Suggestion, error) {
	rec, ok := f.triage[id]
	if !ok {
		return domain.ClassificationRecord{}, nil, domain.ErrRecordNotFound
	}
	return rec, []domain.Suggestion{{Type: domain.SuggestionRouting, Routing: &domain.RoutingHint{Category: rec.Category}}}, nil
}

func (f *fakeStore) GetProject(_ context.Context, id int64) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, domain.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeStore) LatestSnapshot(_ context.Context, id int64) (domain.HealthSnapshot, error) {
	snaps := f.snapshots[id]
	if len(snaps) == 0 {
		return domain.HealthSnapshot{}, domain.ErrRecordNotFound
	}
	return snaps[0], nil
}

func (f *fakeStore) SnapshotHistory(_ context.Context, id int64, limit int) ([]domain.HealthSnapshot, error) {
	snaps := f.snapshots[id]
	if len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

func (f *fakeStore) SaveDraft(_ context.Context, d domain.ContentDraft) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.drafts = append(f.drafts, d)
	return int64(len(f.drafts)), nil
}

type recordingAlerter struct {
	tickets  []analyzer.TriageReport
	projects []analyzer.HealthReport
}

func (r *recordingAlerter) TicketTriaged(_ context.Context, rep analyzer.TriageReport) {
	r.tickets = append(r.tickets, rep)
}

func (r *recordingAlerter) ProjectScored(_ context.Context, rep analyzer.HealthReport) {
	r.projects = append(r.projects, rep)
}

type fixture struct {
	triager *fakeTriager
	scorer  *fakeScorer
	store   *fakeStore
	alerter *recordingAlerter
	server  *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		triager: &fakeTriager{byID: map[int64]analyzer.TriageReport{
			7: {Ticket: domain.Ticket{ID: 7}, Classification: domain.Classification{Priority: domain.PriorityUrgent}, ClassificationID: 3},
		}},
		scorer: &fakeScorer{},
		store: &fakeStore{
			triage:    map[int64]domain.ClassificationRecord{7: {ID: 3, TicketID: 7, Category: domain.CategoryBugReport}},
			projects:  map[int64]domain.Project{1: {ID: 1, Name: "Harbor Tower"}},
			snapshots: map[int64][]domain.HealthSnapshot{},
		},
		alerter: &recordingAlerter{},
	}
	f.server = NewServer(Deps{
		Triage:  f.triager,
		Health:  f.scorer,
		Drafts:  fakeDrafter{},
		Store:   f.store,
		Alerter: f.alerter,
		Now:     func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDIsPreserved(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set(requestIDHeader, "upstream-123")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, "upstream-123", w.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestTriageText(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/triage", TriageRequest{Subject: "Invoice", Body: "charged twice"})
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[analyzer.TriageReport](t, w)
	assert.Equal(t, domain.CategoryBilling, got.Classification.Category)
	assert.Equal(t, "Invoice|charged twice", f.triager.lastText)
	assert.Empty(t, f.alerter.tickets, "ad hoc text is not alerted on")
}

func TestTriageStoredTicketAlerts(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/triage", TriageRequest{TicketID: 7})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.alerter.tickets, 1)
	assert.Equal(t, int64(7), f.alerter.tickets[0].Ticket.ID)
}

func TestTriageErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		textErr  error
		wantCode int
	}{
		{"empty request", TriageRequest{}, nil, http.StatusBadRequest},
		{"unknown ticket", TriageRequest{TicketID: 99}, nil, http.StatusNotFound},
		{"invalid text", TriageRequest{Subject: "x"}, fmt.Errorf("classify: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{"upstream", TriageRequest{Body: "x"}, fmt.Errorf("kb: %w", domain.ErrUpstreamFailure), http.StatusBadGateway},
		{"internal", TriageRequest{Body: "x"}, fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.triager.textErr = tt.textErr
			w := f.do(t, http.MethodPost, "/api/v1/triage", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			body := decode[errorBody](t, w)
			assert.NotEmpty(t, body.Code)
			if tt.wantCode == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Error)
			}
		})
	}
}

func TestTriageMalformedJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestTriage(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/tickets/7/triage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[TicketTriageResponse](t, w)
	assert.Equal(t, domain.CategoryBugReport, got.Classification.Category)
	assert.Len(t, got.Suggestions, 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/tickets/8/triage", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/tickets/abc/triage", nil).Code)
}

func TestScoreProject(t *testing.T) {
	f := newFixture(t)
	f.scorer.report = analyzer.HealthReport{
		Project:   domain.Project{ID: 1},
		Aggregate: domain.AggregateResult{OverallScore: 42, OverallStatus: domain.StatusCritical},
	}
	w := f.do(t, http.MethodPost, "/api/v1/health/score", ScoreRequest{ProjectID: 1})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[analyzer.HealthReport](t, w)
	assert.Equal(t, domain.StatusCritical, got.Aggregate.OverallStatus)
	require.Len(t, f.alerter.projects, 1)
}

func TestScoreProjectUndefinedAggregate(t *testing.T) {
	f := newFixture(t)
	f.scorer.report = analyzer.HealthReport{Undefined: map[domain.Dimension]string{domain.DimensionBudget: "division by zero"}}
	f.scorer.err = fmt.Errorf("project 1: %w", domain.ErrUndefinedAggregate)

	w := f.do(t, http.MethodPost, "/api/v1/health/score", ScoreRequest{ProjectID: 1})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "undefined_score", body.Code)
	assert.Contains(t, body.Undefined, domain.DimensionBudget)
	assert.Empty(t, f.alerter.projects)
}

func TestScoreProjectHidesInternalErrors(t *testing.T) {
	f := newFixture(t)
	f.scorer.err = fmt.Errorf("load health data for project 1: sqlite: disk I/O error at /var/lib/builddesk.db")

	w := f.do(t, http.MethodPost, "/api/v1/health/score", ScoreRequest{ProjectID: 1})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "internal server error", body.Error)
	assert.Equal(t, "internal_error", body.Code)
	assert.NotContains(t, w.Body.String(), "builddesk.db")
}

func TestScoreProjectRequiresID(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/health/score", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/health/score", ScoreRequest{ProjectID: -4}).Code)
}

func TestProjectHealth(t *testing.T) {
	f := newFixture(t)
	f.store.snapshots[1] = []domain.HealthSnapshot{
		{ID: 3, ProjectID: 1, OverallScore: 80},
		{ID: 2, ProjectID: 1, OverallScore: 70},
		{ID: 1, ProjectID: 1, OverallScore: 60},
	}

	w := f.do(t, http.MethodGet, "/api/v1/projects/1/health?history=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[ProjectHealthResponse](t, w)
	assert.Equal(t, "Harbor Tower", got.Project.Name)
	assert.Equal(t, int64(3), got.Latest.ID)
	assert.Len(t, got.History, 2)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/projects/1/health?history=0", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/projects/2/health", nil).Code)
}

func TestProjectHealthNeverScored(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/projects/1/health", nil).Code)
}

func TestCreateDraftFallback(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/content/drafts", DraftRequest{Topic: "crew scheduling"})
	require.Equal(t, http.StatusCreated, w.Code)

	got := decode[domain.ContentDraft](t, w)
	assert.Equal(t, int64(1), got.ID)
	assert.True(t, got.Fallback)
	assert.Equal(t, llm.FallbackModel, got.Model)
	require.Len(t, f.store.drafts, 1)
}

func TestCreateDraftErrors(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/content/drafts", DraftRequest{Topic: "  "}).Code)

	f.store.saveErr = fmt.Errorf("insert draft: %w", domain.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/content/drafts", DraftRequest{Topic: "safety"}).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrRecordNotFound), http.StatusNotFound},
		{domain.ErrDivisionByZero, http.StatusUnprocessableEntity},
		{domain.ErrUndefinedAggregate, http.StatusUnprocessableEntity},
		{domain.ErrUpstreamFailure, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, "statusFor(%v)", tt.err)
	}
}
