package app

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"builddesk/internal/api"
	slackbot "builddesk/internal/integrations/slack"
	"builddesk/internal/sweep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Slack bot and the scheduled health sweep",
	Long: `Starts the HTTP API on http_addr. When slack_bot_token and slack_app_token
are set the Slack bot connects over Socket Mode and urgent tickets and
critical projects are posted to alert_channel_id. When health_sweep_schedule
is set every active project is rescored on that cron schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Config.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	slackAPI, notifier := a.Slack(ctx)
	deps := api.Deps{
		Triage: a.Analyzer,
		Health: a.Health,
		Drafts: a.LLM,
		Store:  a.Store,
		Logger: a.Logger,
	}
	var sweepAlerter sweep.Alerter
	if notifier != nil {
		deps.Alerter = notifier
		sweepAlerter = notifier
	}

	sweeper := sweep.New(a.Store, a.Health, sweepAlerter, a.Config.Location, a.Logger)
	stopSweep, err := sweeper.Start(ctx, a.Config.HealthSweepSchedule)
	if err != nil {
		return err
	}
	defer stopSweep()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.NewServer(deps).ListenAndServe(gctx, a.Config.HTTPAddr)
	})
	if slackAPI != nil {
		bot := slackbot.NewBot(slackAPI, a.Analyzer, a.Health, notifier, a.Logger)
		g.Go(func() error {
			return bot.Run(gctx)
		})
	} else {
		a.Logger.Info("slack not configured, bot disabled")
	}

	err = g.Wait()
	if err != nil && ctx.Err() == nil {
		a.Logger.Error("server stopped", zap.Error(err))
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}
