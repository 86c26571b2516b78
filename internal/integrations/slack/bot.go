// Package slackbot serves the /triage and /health slash commands over
// Socket Mode and posts alerts to the configured channel.
package slackbot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
)

type Triager interface {
	AnalyzeTicket(ctx context.Context, id int64) (analyzer.TriageReport, error)
	AnalyzeText(ctx context.Context, subject, body, reporterEmail string) (analyzer.TriageReport, error)
}

type HealthScorer interface {
	ScoreProject(ctx context.Context, projectID int64, now time.Time) (analyzer.HealthReport, error)
}

type ephemeralPoster interface {
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
}

const commandTimeout = 2 * time.Minute

type Bot struct {
	api      *slack.Client
	replies  ephemeralPoster
	triage   Triager
	health   HealthScorer
	notifier *Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewBot(api *slack.Client, triage Triager, health HealthScorer, notifier *Notifier, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		api:      api,
		replies:  api,
		triage:   triage,
		health:   health,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "slack")),
	}
}

// Run connects over Socket Mode and blocks until ctx is cancelled or the
// connection fails.
func (b *Bot) Run(ctx context.Context) error {
	client := socketmode.New(b.api)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				switch evt.Type {
				case socketmode.EventTypeConnected:
					b.logger.Info("slack bot connected via socket mode")
				case socketmode.EventTypeSlashCommand:
					cmd, ok := evt.Data.(slack.SlashCommand)
					if !ok {
						continue
					}
					client.Ack(*evt.Request)
					b.logger.Info("slash command received",
						zap.String("command", cmd.Command),
						zap.String("user", cmd.UserID),
						zap.String("channel", cmd.ChannelID),
					)
					go b.HandleCommand(ctx, cmd)
				}
			}
		}
	}()

	err := client.RunContext(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleCommand answers one slash command with an ephemeral reply.
func (b *Bot) HandleCommand(ctx context.Context, cmd slack.SlashCommand) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch cmd.Command {
	case "/triage":
		b.handleTriage(ctx, cmd)
	case "/health":
		b.handleHealth(ctx, cmd)
	case "/builddesk-help":
		b.reply(ctx, cmd, helpText)
	default:
		b.reply(ctx, cmd, "Unknown command "+cmd.Command+". Try `/builddesk-help`.")
	}
}

func (b *Bot) handleTriage(ctx context.Context, cmd slack.SlashCommand) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		b.reply(ctx, cmd, "Usage: `/triage <ticket-id>` or `/triage <ticket text>`")
		return
	}

	var (
		report analyzer.TriageReport
		err    error
	)
	id, isID := parseID(text)
	if isID {
		report, err = b.triage.AnalyzeTicket(ctx, id)
	} else {
		report, err = b.triage.AnalyzeText(ctx, "", text, "")
	}
	if err != nil {
		b.logger.Warn("triage command failed", zap.String("user", cmd.UserID), zap.Error(err))
		b.reply(ctx, cmd, commandError("triage", err))
		return
	}

	b.reply(ctx, cmd, formatTriage(report))
	if isID {
		b.notifier.TicketTriaged(ctx, report)
	}
}

func (b *Bot) handleHealth(ctx context.Context, cmd slack.SlashCommand) {
	id, ok := parseID(cmd.Text)
	if !ok {
		b.reply(ctx, cmd, "Usage: `/health <project-id>`")
		return
	}

	report, err := b.health.ScoreProject(ctx, id, b.now())
	if err != nil {
		b.logger.Warn("health command failed", zap.Int64("project_id", id), zap.Error(err))
		b.reply(ctx, cmd, commandError("health", err)+"\n"+formatUndefined(report.Undefined))
		return
	}

	b.reply(ctx, cmd, formatHealth(report))
	b.notifier.ProjectScored(ctx, report)
}

func commandError(what string, err error) string {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return "Not found: " + err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return "Cannot " + what + " that: " + err.Error()
	case errors.Is(err, domain.ErrUndefinedAggregate):
		return "No dimension could be scored for this project."
	default:
		return "Error running " + what + ": " + err.Error()
	}
}

func (b *Bot) reply(ctx context.Context, cmd slack.SlashCommand, text string) {
	_, err := b.replies.PostEphemeralContext(ctx, cmd.ChannelID, cmd.UserID, slack.MsgOptionText(strings.TrimRight(text, "\n"), false))
	if err != nil {
		b.logger.Error("ephemeral reply failed", zap.String("channel", cmd.ChannelID), zap.Error(err))
	}
}
