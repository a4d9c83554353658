package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chatrouter/internal/config"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatrouter",
		Short:        "chatrouter: keyword and filter based chat event router",
		Long:         "chatrouter receives messages from Discord, Slack, Telegram, the terminal and HTTP clients and hands them to the listeners whose filters match.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.chatrouter/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(listCmd())
	root.AddCommand(matchCmd())
	root.AddCommand(configCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(wizardCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(versionCmd())
	return root
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfigOrDefaults loads the config file, falling back to defaults when
// it does not exist.
func loadConfigOrDefaults() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		logger.Warn("config not found, using defaults", "path", cfgPath)
		return config.Defaults(), nil
	}
	return config.Load(cfgPath)
}

// newLogger builds the process logger from the general config section. The
// returned closer releases the log file, if any.
func newLogger(cfg config.GeneralConfig) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
	}

	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and an example listener file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}

			listenersDir := filepath.Join(filepath.Dir(cfgPath), "listeners")
			if err := os.MkdirAll(listenersDir, 0o755); err != nil {
				return err
			}
			example := filepath.Join(listenersDir, "example.yaml")
			if _, err := os.Stat(example); os.IsNotExist(err) {
				if err := os.WriteFile(example, []byte(exampleListeners), 0o644); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "listeners", listenersDir)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chatrouter %s\n", version)
		},
	}
}

const exampleListeners = `# Listener declarations. Lower priorities run first.
listeners:
  - name: ping
    priority: 10
    filters:
      - keyword: "ping {{n,\\d+}}"
        strategy: regex-matches
    action:
      type: reply
      text: "pong {{n}}"

  - name: help
    priority: 20
    mode: any
    filters:
      - keyword: "!help"
        plainText: true
        strategy: starts-with
      - keyword: "help"
        plainText: true
        strategy: equals-ignore-case
        target:
          mentionBot: true
    action:
      type: reply
      text: "Hi {{author}}, try: ping 1"
    rateLimit:
      burst: 3
      perMinute: 6
      perAuthor: true

  - name: journal
    priority: 100
    action:
      type: log
      text: "{{component}} {{author}}: {{text}}"
`
