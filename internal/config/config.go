package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

type Config struct {
	DBPath         string `yaml:"db_path"`
	HTTPAddr       string `yaml:"http_addr"`
	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`

	LLMProvider                string  `yaml:"llm_provider"`
	LLMModel                   string  `yaml:"llm_model"`
	LLMContentModel            string  `yaml:"llm_content_model"`
	LLMConfidence              float64 `yaml:"llm_confidence_threshold"`
	LLMRequestsPerSecond       float64 `yaml:"llm_requests_per_second"`
	LLMTriageEnabled           bool    `yaml:"llm_triage_enabled"`
	AnthropicAPIKey            string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey               string  `yaml:"openai_api_key"`
	OpenAIBaseURL              string  `yaml:"openai_base_url"`
	ExternalHTTPTimeoutSeconds int     `yaml:"external_http_timeout_seconds"`

	KeywordTablesPath string `yaml:"keyword_tables_path"`
	KBResultLimit     int    `yaml:"kb_result_limit"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackAppToken  string `yaml:"slack_app_token"`
	AlertChannelID string `yaml:"alert_channel_id"`
	// AlertMentions are Slack user IDs or display names tagged on alerts.
	AlertMentions []string `yaml:"alert_mentions"`

	HealthSweepSchedule string `yaml:"health_sweep_schedule"`
	Timezone            string `yaml:"timezone"`
	ReportOutputDir     string `yaml:"report_output_dir"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig reads CONFIG_PATH (default config.yaml), then the dotenv file
// at ENV_FILE (default .env), then environment overrides. Missing files are
// not an error.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", configPath, err)
	}

	envFile := ".env"
	if p := os.Getenv("ENV_FILE"); p != "" {
		envFile = p
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.HTTPAddr, "HTTP_ADDR")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverrideBool(&cfg.LogDevelopment, "LOG_DEVELOPMENT")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.LLMContentModel, "LLM_CONTENT_MODEL")
	envOverrideBool(&cfg.LLMTriageEnabled, "LLM_TRIAGE_ENABLED")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.KeywordTablesPath, "KEYWORD_TABLES_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.AlertChannelID, "ALERT_CHANNEL_ID")
	if names := os.Getenv("ALERT_MENTIONS"); names != "" {
		cfg.AlertMentions = nil
		for _, name := range strings.Split(names, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				cfg.AlertMentions = append(cfg.AlertMentions, name)
			}
		}
	}
	envOverrideAllowEmpty(&cfg.HealthSweepSchedule, "HEALTH_SWEEP_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")

	for _, err := range []error{
		envOverrideFloat(&cfg.LLMConfidence, "LLM_CONFIDENCE_THRESHOLD"),
		envOverrideFloat(&cfg.LLMRequestsPerSecond, "LLM_REQUESTS_PER_SECOND"),
		envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"),
		envOverrideInt(&cfg.KBResultLimit, "KB_RESULT_LIMIT"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "./builddesk.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LLMProvider == "" {
		switch {
		case cfg.AnthropicAPIKey != "":
			cfg.LLMProvider = ProviderAnthropic
		case cfg.OpenAIAPIKey != "":
			cfg.LLMProvider = ProviderOpenAI
		default:
			cfg.LLMProvider = ProviderNone
		}
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.LLMConfidence == 0 {
		cfg.LLMConfidence = 0.70
	}
	if cfg.LLMRequestsPerSecond == 0 {
		cfg.LLMRequestsPerSecond = 2
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.KBResultLimit == 0 {
		cfg.KBResultLimit = 3
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("anthropic_api_key is required when llm_provider=anthropic")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("openai_api_key is required when llm_provider=openai")
		}
	case ProviderNone:
		if c.LLMTriageEnabled {
			return errors.New("llm_triage_enabled requires llm_provider 'anthropic' or 'openai'")
		}
	default:
		return fmt.Errorf("llm_provider must be 'anthropic', 'openai' or 'none', got '%s'", c.LLMProvider)
	}

	if (c.SlackBotToken == "") != (c.SlackAppToken == "") {
		return errors.New("partial Slack config: slack_bot_token and slack_app_token are required together")
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if c.HealthSweepSchedule != "" {
		if _, err := cron.ParseStandard(c.HealthSweepSchedule); err != nil {
			return fmt.Errorf("invalid health_sweep_schedule '%s': %w", c.HealthSweepSchedule, err)
		}
	}
	if c.LLMConfidence < 0 || c.LLMConfidence > 1 {
		return fmt.Errorf("invalid llm_confidence_threshold '%f': must be between 0 and 1", c.LLMConfidence)
	}
	if c.LLMRequestsPerSecond < 0 {
		return fmt.Errorf("invalid llm_requests_per_second '%f': must be >= 0", c.LLMRequestsPerSecond)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.KBResultLimit < 0 {
		return fmt.Errorf("invalid kb_result_limit '%d': must be >= 0", c.KBResultLimit)
	}
	return nil
}

func (c Config) LLMEnabled() bool {
	return c.LLMProvider == ProviderAnthropic || c.LLMProvider == ProviderOpenAI
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
