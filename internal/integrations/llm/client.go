// Package llm calls the configured language-model provider for ticket
// classification and content drafting.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"builddesk/internal/config"
	"builddesk/internal/domain"
	"builddesk/internal/httpx"
	"builddesk/internal/metrics"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"
const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Client is safe for concurrent use. Calls are never retried.
type Client struct {
	provider      string
	model         string
	contentModel  string
	anthropicKey  string
	openAIKey     string
	openAIBaseURL string
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *zap.Logger
}

func New(cfg config.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.LLMRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.LLMRequestsPerSecond)
	}
	c := &Client{
		provider:      cfg.LLMProvider,
		model:         cfg.LLMModel,
		contentModel:  cfg.LLMContentModel,
		anthropicKey:  cfg.AnthropicAPIKey,
		openAIKey:     cfg.OpenAIAPIKey,
		openAIBaseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		httpClient:    httpx.ExternalHTTPClient(),
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logger.With(zap.String("component", "llm"), zap.String("provider", cfg.LLMProvider)),
	}
	if c.openAIBaseURL == "" {
		c.openAIBaseURL = defaultOpenAIBaseURL
	}
	if c.model == "" {
		c.model = c.defaultModel()
	}
	if c.contentModel == "" {
		c.contentModel = c.model
	}
	return c
}

func (c *Client) defaultModel() string {
	if c.provider == config.ProviderOpenAI {
		return defaultOpenAIModel
	}
	return defaultAnthropicModel
}

func (c *Client) Enabled() bool {
	return c.provider == config.ProviderAnthropic || c.provider == config.ProviderOpenAI
}

func (c *Client) Provider() string { return c.provider }

func (c *Client) Model() string { return c.model }

// complete sends one system+user exchange and returns the text reply.
// Every failure is wrapped in domain.ErrUpstreamFailure.
func (c *Client) complete(ctx context.Context, operation, model, systemPrompt, userPrompt string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("%w: llm provider not configured", domain.ErrUpstreamFailure)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", domain.ErrUpstreamFailure, err)
	}

	var (
		text  string
		usage Usage
		err   error
	)
	switch c.provider {
	case config.ProviderOpenAI:
		text, usage, err = c.callOpenAI(ctx, model, systemPrompt, userPrompt)
	default:
		text, usage, err = c.callAnthropic(ctx, model, systemPrompt, userPrompt)
	}
	if err != nil {
		metrics.LLMRequests.WithLabelValues(c.provider, operation, "error").Inc()
		c.logger.Warn("llm call failed", zap.String("operation", operation), zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	metrics.LLMRequests.WithLabelValues(c.provider, operation, "ok").Inc()
	c.logger.Debug("llm response",
		zap.String("operation", operation),
		zap.String("model", model),
		zap.Int("size", len(text)),
		zap.Int64("tokens_in", usage.InputTokens),
		zap.Int64("tokens_out", usage.OutputTokens),
	)
	return text, nil
}

func (c *Client) callAnthropic(ctx context.Context, model, systemPrompt, userPrompt string) (string, Usage, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(c.anthropicKey),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in anthropic response")
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) callOpenAI(ctx context.Context, model, systemPrompt, userPrompt string) (string, Usage, error) {
	bodyBytes, err := json.Marshal(openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openAIBaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", Usage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.openAIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("reading response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("parsing openai response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", Usage{}, fmt.Errorf("openai API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode/100 != 2 {
		return "", Usage{}, fmt.Errorf("openai API status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices in openai response")
	}
	usage := Usage{}
	if parsed.Usage != nil {
		usage.InputTokens = parsed.Usage.PromptTokens
		usage.OutputTokens = parsed.Usage.CompletionTokens
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

// stripCodeFence removes a surrounding ```json fence if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateForError(s string) string {
	if len(s) <= 512 {
		return s
	}
	return s[:512] + fmt.Sprintf("... [truncated, total_length=%d]", len(s))
}
