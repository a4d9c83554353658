package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"chatrouter/internal/audit"
	"chatrouter/internal/config"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your chatrouter installation",
		Long: `Verifies that the configuration, listener declarations, audit journal and
listening ports are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chatrouter doctor v%s\n\n", version)

			var passed, failed, warned int
			pass := func(check, detail string) { printResult(out, "PASS", check, detail); passed++ }
			fail := func(check, detail string) { printResult(out, "FAIL", check, detail); failed++ }
			warn := func(check, detail string) { printResult(out, "WARN", check, detail); warned++ }

			if _, err := os.Stat(cfgPath); err != nil {
				fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Fprintf(out, "\nRun 'chatrouter init' to create a default configuration.\n")
				return fmt.Errorf("config not found")
			}
			pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				fail("Config validation", err.Error())
				return fmt.Errorf("%d check(s) failed", failed)
			}
			pass("Config validation", "valid")

			_, n, err := buildRegistry(cfg, logger)
			switch {
			case err != nil:
				fail("Listeners", err.Error())
			case n == 0:
				warn("Listeners", "no listeners declared")
			default:
				pass("Listeners", fmt.Sprintf("%d registered", n))
			}

			if cfg.Audit.Enabled {
				if err := checkJournal(cmd.Context(), cfg.Audit.DBPath); err != nil {
					fail("Audit journal", err.Error())
				} else {
					pass("Audit journal", cfg.Audit.DBPath)
				}
			}

			ports := []struct {
				name    string
				enabled bool
				addr    string
			}{
				{"Webhook port", cfg.Channels.Webhook.Enabled, ":" + strconv.Itoa(cfg.Channels.Webhook.Port)},
				{"WebSocket port", cfg.Channels.WebSocket.Enabled, ":" + strconv.Itoa(cfg.Channels.WebSocket.Port)},
				{"Metrics address", cfg.Metrics.Enabled, cfg.Metrics.Addr},
			}
			for _, p := range ports {
				if !p.enabled {
					continue
				}
				if err := checkAddr(p.addr); err != nil {
					warn(p.name, fmt.Sprintf("%s may be in use: %v", p.addr, err))
				} else {
					pass(p.name, p.addr+" available")
				}
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					pass("Log file", cfg.General.LogFile)
				}
			}

			fmt.Fprintf(out, "\nResults: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

// checkJournal opens the journal, which also applies pending migrations.
func checkJournal(ctx context.Context, dbPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := audit.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	return store.Close()
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}

func printResult(w io.Writer, status, check, detail string) {
	fmt.Fprintf(w, "  [%s] %-20s %s\n", status, check, detail)
}
