package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"chatrouter/internal/config"
	"chatrouter/internal/dispatch"
	"chatrouter/internal/keyword"
	"chatrouter/internal/listener"

	"github.com/spf13/cobra"
)

// buildRegistry loads and registers the configured listener declarations.
// Declaration errors are returned alongside the registry so callers can
// decide whether they are fatal.
func buildRegistry(cfg *config.Config, log *slog.Logger) (*dispatch.Registry, int, error) {
	reg := dispatch.NewRegistry(log)
	decls, loadErr := listener.Load(cfg.Listeners.Paths, log)
	n, regErr := listener.Register(reg, decls, log)
	return reg, n, errors.Join(loadErr, regErr)
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and every listener declaration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			_, n, err := buildRegistry(cfg, logger)
			fmt.Fprintf(out, "%d listener(s) valid\n", n)
			if err != nil {
				for _, line := range strings.Split(err.Error(), "\n") {
					fmt.Fprintf(out, "  [FAIL] %s\n", line)
				}
				return errors.New("invalid listener declarations")
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List listeners in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOrDefaults()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			reg, _, err := buildRegistry(cfg, logger)
			if err != nil {
				logger.Warn("some listeners were skipped", "err", err)
			}
			reg.Freeze()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tPRIORITY\tNAME\tMODE\tACTION\tKEYWORDS\tSOURCE")
			for i, l := range reg.Listeners() {
				act, _ := dispatch.Attribute(l, listener.ActionKey)
				src, _ := dispatch.Attribute(l, listener.SourceKey)
				kws := make([]string, 0, len(l.Keywords))
				for _, k := range l.Keywords {
					kws = append(kws, k.String())
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
					i+1, l.Priority, l.Name, l.Filters.Mode(), act.Type, strings.Join(kws, ", "), src)
			}
			return tw.Flush()
		},
	}
}

func matchCmd() *cobra.Command {
	var (
		plain    bool
		strategy string
	)
	cmd := &cobra.Command{
		Use:   "match <pattern> <text>",
		Short: "Test a keyword pattern against a message",
		Long:  "Compiles a keyword pattern and reports whether text matches it under the given strategy, with any extracted {{param}} values.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := keyword.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			k, err := keyword.Compile(args[0], plain)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			text := args[1]
			if !s.Match(text, k) {
				fmt.Fprintf(out, "no match (%s)\n", s)
				return nil
			}
			fmt.Fprintf(out, "match (%s)\n", s)
			params := k.Parameters(text)
			for _, name := range params.Names() {
				fmt.Fprintf(out, "  %s = %q\n", name, params.Value(name))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "treat the pattern as literal text")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "regex-matches", "match strategy")
	return cmd
}
