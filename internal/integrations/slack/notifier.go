package slackbot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
)

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts urgent tickets and critical project health to the alert
// channel. Everything else is ignored.
type Notifier struct {
	api      poster
	channel  string
	mentions []string
	logger   *zap.Logger
}

// NewNotifier returns a notifier that tags mentionIDs on every alert. An
// empty channel disables posting.
func NewNotifier(api poster, channelID string, mentionIDs []string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{api: api, channel: channelID, mentions: mentionIDs, logger: logger.With(zap.String("component", "slack_alerts"))}
}

func (n *Notifier) TicketTriaged(ctx context.Context, r analyzer.TriageReport) {
	if r.Classification.Priority != domain.PriorityUrgent {
		return
	}
	title := fmt.Sprintf("Urgent ticket #%d", r.Ticket.ID)
	n.post(ctx, title, formatTriage(r), zap.Int64("ticket_id", r.Ticket.ID))
}

func (n *Notifier) ProjectScored(ctx context.Context, r analyzer.HealthReport) {
	if r.Aggregate.OverallStatus != domain.StatusCritical {
		return
	}
	title := fmt.Sprintf("Critical health: %s", projectName(r.Project))
	n.post(ctx, title, formatHealth(r), zap.Int64("project_id", r.Project.ID))
}

func (n *Notifier) post(ctx context.Context, title, body string, field zap.Field) {
	if n == nil || n.api == nil || n.channel == "" {
		return
	}
	text := mentionPrefix(n.mentions) + title
	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(alertBlocks(title, mentionPrefix(n.mentions)+body)...),
	)
	if err != nil {
		n.logger.Error("alert post failed", field, zap.Error(err))
		return
	}
	n.logger.Info("alert posted", field, zap.String("channel", n.channel))
}
