package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"chatrouter/internal/config"

	"github.com/spf13/cobra"
)

var knownChannels = []struct {
	ID   string
	Desc string
}{
	{"cli", "Interactive terminal"},
	{"discord", "Discord bot"},
	{"slack", "Slack app (Socket Mode)"},
	{"telegram", "Telegram bot"},
	{"webhook", "HTTP webhook"},
	{"websocket", "WebSocket clients"},
}

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: bot id, channels, audit journal, save config",
		Long:  "Guides you through the bot id, the channels to enable (and their tokens) and the audit journal. Writes config to the path used by --config or default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runWizard(in io.Reader, out io.Writer) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(in)
	prompt := func(question, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", question, def)
		} else {
			fmt.Fprintf(out, "%s: ", question)
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" {
			return def, nil
		}
		return s, nil
	}

	fmt.Fprintln(out, "\n--- Step 1: Bot identity ---")
	botID, err := prompt("Bot id used by cli, webhook and websocket events", cfg.General.BotID)
	if err != nil {
		return err
	}
	cfg.General.BotID = botID

	fmt.Fprintln(out, "\n--- Step 2: Channels ---")
	for i, c := range knownChannels {
		fmt.Fprintf(out, "  %d) %s: %s\n", i+1, c.ID, c.Desc)
	}
	choice, err := prompt("Channels to enable (comma separated names or numbers)", "cli")
	if err != nil {
		return err
	}
	enabled := map[string]bool{}
	for _, part := range strings.Split(choice, ",") {
		part = strings.TrimSpace(part)
		var idx int
		if n, _ := fmt.Sscanf(part, "%d", &idx); n == 1 && idx >= 1 && idx <= len(knownChannels) {
			part = knownChannels[idx-1].ID
		}
		enabled[part] = true
	}

	ch := &cfg.Channels
	ch.CLI.Enabled = enabled["cli"]
	ch.Discord.Enabled = enabled["discord"]
	ch.Slack.Enabled = enabled["slack"]
	ch.Telegram.Enabled = enabled["telegram"]
	ch.Webhook.Enabled = enabled["webhook"]
	ch.WebSocket.Enabled = enabled["websocket"]

	secrets := []struct {
		on       bool
		question string
		def      string
		dst      *string
	}{
		{ch.Discord.Enabled, "Discord bot token", "${DISCORD_TOKEN}", &ch.Discord.Token},
		{ch.Slack.Enabled, "Slack bot token (xoxb-...)", "${SLACK_BOT_TOKEN}", &ch.Slack.BotToken},
		{ch.Slack.Enabled, "Slack app token (xapp-...)", "${SLACK_APP_TOKEN}", &ch.Slack.AppToken},
		{ch.Telegram.Enabled, "Telegram bot token (from @BotFather)", "${TELEGRAM_TOKEN}", &ch.Telegram.Token},
		{ch.Webhook.Enabled, "Webhook HMAC secret (empty disables signing)", "", &ch.Webhook.Secret},
	}
	for _, s := range secrets {
		if !s.on {
			continue
		}
		def := *s.dst
		if def == "" {
			def = s.def
		}
		v, err := prompt(s.question, def)
		if err != nil {
			return err
		}
		*s.dst = v
	}

	fmt.Fprintln(out, "\n--- Step 3: Audit journal ---")
	def := "n"
	if cfg.Audit.Enabled {
		def = "y"
	}
	yes, err := prompt("Record matched listener outcomes to SQLite? (y/n)", def)
	if err != nil {
		return err
	}
	cfg.Audit.Enabled = strings.HasPrefix(strings.ToLower(yes), "y")

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConfig saved to %s\n", cfgPath)
	fmt.Fprintln(out, "Next: add listeners, run 'chatrouter check', then 'chatrouter serve'.")
	return nil
}
