package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage chatrouter as a background service (launchd/systemd)",
	}
	cmd.AddCommand(installDaemonCmd(), uninstallDaemonCmd())
	return cmd
}

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install chatrouter serve as a user service",
		Long:  "Generates and installs a service file that runs 'chatrouter serve' with the current config on login.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := filepath.Abs(resolveConfigPath())
			if err != nil {
				return err
			}
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}

			switch runtime.GOOS {
			case "darwin":
				return installLaunchd(cmd, execPath, cfgPath)
			case "linux":
				return installSystemd(cmd, execPath, cfgPath)
			default:
				return fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
			}
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the chatrouter user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p string
			switch runtime.GOOS {
			case "darwin":
				p = launchdPath()
			case "linux":
				p = systemdPath()
			default:
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}
			if err := os.Remove(p); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon uninstalled: %s\n", p)
			return nil
		},
	}
}

const launchdLabel = "com.chatrouter.serve"

func launchdPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
}

func systemdPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", "chatrouter.service")
}

// renderService fills a service template.
func renderService(tmpl, execPath, cfgPath string) string {
	logDir := filepath.Join(filepath.Dir(cfgPath), "logs")
	return strings.NewReplacer(
		"{{EXEC}}", execPath,
		"{{CONFIG}}", cfgPath,
		"{{LABEL}}", launchdLabel,
		"{{LOG}}", filepath.Join(logDir, "chatrouter.log"),
		"{{ERR_LOG}}", filepath.Join(logDir, "chatrouter-error.log"),
	).Replace(tmpl)
}

func writeService(p, content string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0o644)
}

func installLaunchd(cmd *cobra.Command, execPath, cfgPath string) error {
	if err := os.MkdirAll(filepath.Join(filepath.Dir(cfgPath), "logs"), 0o755); err != nil {
		return err
	}
	p := launchdPath()
	if err := writeService(p, renderService(launchdTemplate, execPath, cfgPath)); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daemon installed: %s\n", p)
	fmt.Fprintf(out, "To start: launchctl load %s\n", p)
	fmt.Fprintf(out, "To stop:  launchctl unload %s\n", p)
	return nil
}

func installSystemd(cmd *cobra.Command, execPath, cfgPath string) error {
	p := systemdPath()
	if err := writeService(p, renderService(systemdTemplate, execPath, cfgPath)); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daemon installed: %s\n", p)
	fmt.Fprintf(out, "To start:  systemctl --user start chatrouter\n")
	fmt.Fprintf(out, "To enable: systemctl --user enable chatrouter\n")
	fmt.Fprintf(out, "To stop:   systemctl --user stop chatrouter\n")
	return nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=chatrouter chat event router
After=network.target

[Service]
Type=simple
ExecStart={{EXEC}} serve --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
