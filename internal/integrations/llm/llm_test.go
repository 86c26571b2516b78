package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"builddesk/internal/config"
	"builddesk/internal/domain"
)

func openAIServer(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": reply}}},
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAIClient(baseURL string) *Client {
	return New(config.Config{
		LLMProvider:   config.ProviderOpenAI,
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: baseURL,
	}, nil)
}

func TestNewDefaults(t *testing.T) {
	c := New(config.Config{LLMProvider: config.ProviderOpenAI}, nil)
	if c.Model() != defaultOpenAIModel || c.contentModel != defaultOpenAIModel {
		t.Fatalf("unexpected models %q %q", c.Model(), c.contentModel)
	}
	if c.openAIBaseURL != defaultOpenAIBaseURL {
		t.Fatalf("unexpected base url %q", c.openAIBaseURL)
	}
	a := New(config.Config{LLMProvider: config.ProviderAnthropic, LLMContentModel: "claude-haiku"}, nil)
	if a.Model() != defaultAnthropicModel || a.contentModel != "claude-haiku" {
		t.Fatalf("unexpected models %q %q", a.Model(), a.contentModel)
	}
	if New(config.Config{LLMProvider: config.ProviderNone}, nil).Enabled() {
		t.Fatal("none provider must be disabled")
	}
}

func TestClassifyTicketOpenAI(t *testing.T) {
	srv := openAIServer(t, "```json\n{\"category\":\"Integration Issue\",\"priority\":\"urgent\",\"sentiment\":\"frustrated\",\"complexity\":\"medium\",\"confidence\":0.92}\n```", http.StatusOK)

	got, err := openAIClient(srv.URL).ClassifyTicket(context.Background(), domain.Ticket{Subject: "QuickBooks sync down", Body: "Payroll is blocked"})
	if err != nil {
		t.Fatalf("ClassifyTicket failed: %v", err)
	}
	want := Verdict{
		Category:   domain.CategoryIntegrationIssue,
		Priority:   domain.PriorityUrgent,
		Sentiment:  domain.SentimentFrustrated,
		Complexity: domain.ComplexityMedium,
		Confidence: 0.92,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyTicketRejectsUnknownCategory(t *testing.T) {
	srv := openAIServer(t, `{"category":"plumbing","priority":"low","sentiment":"neutral","complexity":"simple","confidence":0.9}`, http.StatusOK)

	_, err := openAIClient(srv.URL).ClassifyTicket(context.Background(), domain.Ticket{Subject: "Leak"})
	if !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
}

func TestClassifyTicketHTTPError(t *testing.T) {
	srv := openAIServer(t, "", http.StatusInternalServerError)
	if _, err := openAIClient(srv.URL).ClassifyTicket(context.Background(), domain.Ticket{Subject: "x"}); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
}

func TestClassifyTicketDisabled(t *testing.T) {
	c := New(config.Config{LLMProvider: config.ProviderNone}, nil)
	if _, err := c.ClassifyTicket(context.Background(), domain.Ticket{Subject: "x"}); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
}

func TestBuildTriagePrompts(t *testing.T) {
	_, user := buildTriagePrompts(domain.Ticket{Subject: "Crane log export", Body: "Export fails on the crane log"})
	if strings.Count(user, "Crane log export") != 1 {
		t.Fatalf("subject should appear once:\n%s", user)
	}

	body := strings.Repeat("é", maxTicketPromptChars+10)
	_, user = buildTriagePrompts(domain.Ticket{Subject: "Accents", Body: body})
	if !utf8.ValidString(user) {
		t.Fatal("truncated prompt is not valid UTF-8")
	}
	if !strings.HasSuffix(user, strings.Repeat("é", 3)+"...") {
		t.Fatalf("expected truncation marker, got suffix %q", user[len(user)-12:])
	}
	if got := strings.Count(user, "é"); got != maxTicketPromptChars {
		t.Fatalf("kept %d runes, want %d", got, maxTicketPromptChars)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", `{"category":"billing","priority":"high","sentiment":"neutral","complexity":"simple","confidence":0.8}`, false},
		{"hyphenated", `{"category":"how-to-question","priority":"low","sentiment":"happy","complexity":"simple","confidence":1}`, false},
		{"bad priority", `{"category":"billing","priority":"p1","sentiment":"neutral","complexity":"simple","confidence":0.8}`, true},
		{"bad sentiment", `{"category":"billing","priority":"high","sentiment":"sad","complexity":"simple","confidence":0.8}`, true},
		{"bad complexity", `{"category":"billing","priority":"high","sentiment":"neutral","complexity":"hard","confidence":0.8}`, true},
		{"confidence out of range", `{"category":"billing","priority":"high","sentiment":"neutral","complexity":"simple","confidence":1.4}`, true},
		{"not json", `I think this is billing`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseVerdict(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVerdict err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateDraftParsed(t *testing.T) {
	body := strings.Repeat("word ", 450)
	reply, _ := json.Marshal(map[string]any{
		"title":    "Tracking Crew Hours",
		"body":     body,
		"excerpt":  "Track hours.",
		"keywords": []string{"timesheets"},
	})
	srv := openAIServer(t, string(reply), http.StatusOK)

	res := openAIClient(srv.URL).GenerateDraft(context.Background(), "crew hours", "gpt-4o")
	if res.Parsed == nil || res.Fallback != nil {
		t.Fatalf("expected parsed draft only, got %+v", res)
	}
	d := res.Parsed
	if d.Title != "Tracking Crew Hours" || d.Model != "gpt-4o" || d.Fallback {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if d.ReadTimeMinutes != 3 {
		t.Fatalf("ReadTimeMinutes = %d, want 3", d.ReadTimeMinutes)
	}
	if d.SEOTitle != d.Title {
		t.Fatalf("expected SEO title to default to title, got %q", d.SEOTitle)
	}
	if res.Draft() != d {
		t.Fatal("Draft() should return the parsed draft")
	}
}

func TestGenerateDraftMalformedFallsBack(t *testing.T) {
	srv := openAIServer(t, "Here is your article: Tracking Crew Hours...", http.StatusOK)

	res := openAIClient(srv.URL).GenerateDraft(context.Background(), "crew hours", "")
	if res.Parsed != nil || res.Fallback == nil {
		t.Fatalf("expected fallback only, got %+v", res)
	}
	if diff := cmp.Diff(FallbackDraft("crew hours"), res.Fallback); diff != "" {
		t.Fatalf("fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateDraftDisabledFallsBack(t *testing.T) {
	res := New(config.Config{LLMProvider: config.ProviderNone}, nil).GenerateDraft(context.Background(), "safety meetings", "")
	if res.Fallback == nil || !res.Fallback.Fallback || res.Fallback.Model != FallbackModel {
		t.Fatalf("expected fallback draft, got %+v", res)
	}
}

func TestFallbackDraftDeterministic(t *testing.T) {
	a := FallbackDraft("  Job costing for small crews ")
	b := FallbackDraft("Job costing for small crews")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("fallback not deterministic (-a +b):\n%s", diff)
	}
	if a.Title != "A Practical Guide to Job Costing For Small Crews" {
		t.Fatalf("unexpected title %q", a.Title)
	}
	if diff := cmp.Diff([]string{"job", "costing", "for", "small", "crews", "construction", "builddesk"}, a.Keywords); diff != "" {
		t.Fatalf("keywords mismatch (-want +got):\n%s", diff)
	}
	if a.ReadTimeMinutes != ReadTime(a.Body) || a.ReadTimeMinutes < 1 {
		t.Fatalf("unexpected read time %d", a.ReadTimeMinutes)
	}
	if len([]rune(a.SEOTitle)) > 60 || len([]rune(a.SEODescription)) > 155 {
		t.Fatal("SEO fields exceed length limits")
	}
}

func TestReadTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 0},
		{1, 1},
		{200, 1},
		{201, 2},
		{400, 2},
		{401, 3},
	}
	for _, tt := range tests {
		if got := ReadTime(strings.Repeat("w ", tt.words)); got != tt.want {
			t.Errorf("ReadTime(%d words) = %d, want %d", tt.words, got, tt.want)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[]\n```":            `[]`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
