// Package app wires configuration, storage and services behind the
// builddesk command line.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"builddesk/internal/analyzer"
	"builddesk/internal/config"
	"builddesk/internal/httpx"
	slackbot "builddesk/internal/integrations/slack"
	"builddesk/internal/integrations/llm"
	"builddesk/internal/knowledge"
	"builddesk/internal/storage/sqlite"
	"builddesk/internal/triage"
)

// App holds the long-lived services shared by every command.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    *sqlite.Store
	LLM      *llm.Client
	Analyzer *analyzer.Analyzer
	Health   *analyzer.HealthService
}

// Open builds the service graph from cfg. The caller must Close the app.
func Open(cfg config.Config, logger *zap.Logger) (*App, error) {
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)

	tables, err := triage.LoadTables(cfg.KeywordTablesPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	client := llm.New(cfg, logger)
	var refiner analyzer.Refiner
	if cfg.LLMTriageEnabled && client.Enabled() {
		refiner = client
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		LLM:    client,
		Analyzer: analyzer.New(
			triage.NewEngine(tables),
			store, store, store,
			knowledge.NewBase(store),
			store,
			refiner,
			analyzer.Options{
				ConfidenceThreshold: cfg.LLMConfidence,
				KBResultLimit:       cfg.KBResultLimit,
				Logger:              logger,
			},
		),
		Health: analyzer.NewHealthService(store, logger),
	}

	logger.Info("builddesk initialized",
		zap.String("db_path", cfg.DBPath),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Bool("llm_triage", refiner != nil),
		zap.Float64("llm_confidence_threshold", cfg.LLMConfidence),
		zap.String("keyword_tables", tablesSource(cfg.KeywordTablesPath)),
		zap.Duration("external_http_timeout", appliedHTTPTimeout),
		zap.String("timezone", cfg.Location.String()),
	)
	return a, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Slack returns the Slack API client and an alert notifier, or nils when
// Slack is not configured.
func (a *App) Slack(ctx context.Context) (*slack.Client, *slackbot.Notifier) {
	if !a.Config.SlackConfigured() {
		return nil, nil
	}
	api := slack.New(
		a.Config.SlackBotToken,
		slack.OptionAppLevelToken(a.Config.SlackAppToken),
		slack.OptionHTTPClient(httpx.ExternalHTTPClient()),
	)

	mentions, unresolved, err := slackbot.ResolveUserIDs(ctx, api, a.Config.AlertMentions, a.Logger)
	if err != nil {
		a.Logger.Warn("could not resolve alert_mentions", zap.Error(err))
	}
	if len(unresolved) > 0 {
		a.Logger.Warn("unresolved alert_mentions", zap.Strings("names", unresolved))
	}
	if a.Config.AlertChannelID == "" {
		a.Logger.Info("alert_channel_id not set, slack alerts disabled")
	}
	return api, slackbot.NewNotifier(api, a.Config.AlertChannelID, mentions, a.Logger)
}

func tablesSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
