package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for chatrouter.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Listeners ListenersConfig `json:"listeners"`
	Channels  ChannelsConfig  `json:"channels"`
	Metrics   MetricsConfig   `json:"metrics"`
	Audit     AuditConfig     `json:"audit"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
	// BotID is the bot identity reported by adapters that have none of their own (cli, webhook, websocket).
	BotID string `json:"botId"`
}

// DispatchConfig tunes the router loop and the dispatcher.
type DispatchConfig struct {
	// Parallelism bounds how many matched handlers of one event run at once (1 = sequential).
	Parallelism int `json:"parallelism"`
	// MaxConcurrentEvents bounds how many events are dispatched at once.
	MaxConcurrentEvents int `json:"maxConcurrentEvents"`
	// EventTimeoutSeconds cancels an event's dispatch context after this long (0 = no timeout).
	EventTimeoutSeconds int `json:"eventTimeoutSeconds"`
	BusBuffer           int `json:"busBuffer"`
	// BusPublishTimeoutSeconds is how long adapters wait on a full bus before dropping an event.
	BusPublishTimeoutSeconds int `json:"busPublishTimeoutSeconds"`
}

// ListenersConfig points at YAML listener declarations.
type ListenersConfig struct {
	// Paths are files or directories; relative paths resolve against the config file's directory.
	Paths []string `json:"paths"`
	// Strict makes any invalid listener declaration a load error instead of a warning.
	Strict bool `json:"strict,omitempty"`
}

type ChannelsConfig struct {
	Telegram  TelegramConfig  `json:"telegram"`
	CLI       CLIConfig       `json:"cli"`
	Discord   DiscordConfig   `json:"discord,omitempty"`
	Slack     SlackConfig     `json:"slack,omitempty"`
	Webhook   WebhookConfig   `json:"webhook,omitempty"`
	WebSocket WebSocketConfig `json:"websocket,omitempty"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	GuildID string `json:"guildId,omitempty"` // optional: restrict to specific guild
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	AppToken string `json:"appToken"` // required for Socket Mode
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

type CLIConfig struct {
	Enabled bool   `json:"enabled"`
	User    string `json:"user,omitempty"` // contact id of the terminal user
}

type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
	Secret  string `json:"secret,omitempty"`
}

type WebSocketConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Path    string `json:"path"`
}

// AuditConfig configures the SQLite dispatch journal.
type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
	// RetentionDays prunes journal rows older than this at startup (0 = keep forever).
	RetentionDays int `json:"retentionDays"`
	// MatchedOnly skips cycles in which no listener matched.
	MatchedOnly bool `json:"matchedOnly"`
}

// DefaultConfigDir returns the default config directory (~/.chatrouter).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatrouter"
	}
	return filepath.Join(home, ".chatrouter")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.LogFile = expandPath(cfg.General.LogFile)
	cfg.Audit.DBPath = expandPath(cfg.Audit.DBPath)
	base := filepath.Dir(path)
	for i, p := range cfg.Listeners.Paths {
		p = expandPath(p)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		cfg.Listeners.Paths[i] = p
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Dispatch.Parallelism < 1 || cfg.Dispatch.Parallelism > 64 {
		errs = append(errs, "dispatch.parallelism must be between 1 and 64")
	}
	if cfg.Dispatch.MaxConcurrentEvents < 1 || cfg.Dispatch.MaxConcurrentEvents > 1000 {
		errs = append(errs, "dispatch.maxConcurrentEvents must be between 1 and 1000")
	}
	if cfg.Dispatch.EventTimeoutSeconds < 0 {
		errs = append(errs, "dispatch.eventTimeoutSeconds must be >= 0")
	}
	if cfg.Dispatch.BusBuffer < 1 {
		errs = append(errs, "dispatch.busBuffer must be >= 1")
	}
	if cfg.Dispatch.BusPublishTimeoutSeconds < 1 {
		errs = append(errs, "dispatch.busPublishTimeoutSeconds must be >= 1")
	}

	for _, p := range cfg.Listeners.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, "listeners.paths must not contain empty entries")
			break
		}
	}

	if cfg.Channels.Webhook.Port < 0 || cfg.Channels.Webhook.Port > 65535 {
		errs = append(errs, "channels.webhook.port must be between 0 and 65535")
	}
	if cfg.Channels.WebSocket.Port < 0 || cfg.Channels.WebSocket.Port > 65535 {
		errs = append(errs, "channels.websocket.port must be between 0 and 65535")
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}
	if cfg.Channels.Slack.Enabled && (cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.AppToken == "") {
		errs = append(errs, "channels.slack.botToken and appToken are required when slack is enabled")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Addr == "" {
			errs = append(errs, "metrics.addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, "metrics.path must start with /")
		}
	}

	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit is enabled")
	}
	if cfg.Audit.RetentionDays < 0 {
		errs = append(errs, "audit.retentionDays must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
