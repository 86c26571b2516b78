package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"builddesk/internal/config"
	"builddesk/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "builddesk",
	Short: "Support ticket triage and construction project health scoring",
	Long: "builddesk classifies support tickets, suggests routing and replies,\n" +
		"and scores construction projects on schedule, budget, safety, team and progress.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogDevelopment)
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.Version = version
}

// Main runs the command line and exits non-zero on error.
func Main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp() (*App, error) {
	return Open(cfg, logger)
}
