// ABOUTME: Operator subcommands: init, classify, history, health, and version
// ABOUTME: Each loads the same config as serve so results match the running bot

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-helpdesk/internal/config"
	"github.com/2389/coven-helpdesk/internal/store"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coven-helpdesk %s\n", version)
		},
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config, prompts file, and examples file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolvePath(cfgFile)
			if err != nil {
				return err
			}
			if err := config.WriteStarter(path, force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			green := color.New(color.FgGreen)
			green.Fprintf(out, "  ✓ Created config: %s\n", path)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  Set the classifier credentials, then:")
			fmt.Fprintln(out, "    coven-helpdesk classify \"I need a jira ticket\"   # check the prompt")
			fmt.Fprintln(out, "    coven-helpdesk serve                              # start the bot")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify MESSAGE...",
		Short: "Classify a message with the configured prompt and examples",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

			cls, prompt, examples, err := buildClassifier(cfg.Classifier, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Classifier.Timeout)
			defer cancel()

			label, err := cls.Classify(ctx, strings.Join(args, " "), prompt, examples)
			if err != nil {
				return fmt.Errorf("classifying: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(label))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		user  string
		limit int
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversation turns from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Path == "" {
				return errors.New("database.path is not set; the ledger is kept in memory by the running bot")
			}
			ledger, err := store.NewSQLiteStore(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("opening ledger: %w", err)
			}
			defer ledger.Close()

			params := store.ListTurnsParams{UserID: user, Limit: limit}
			if since > 0 {
				from := time.Now().Add(-since)
				params.Since = &from
			}
			result, err := ledger.ListTurns(cmd.Context(), params)
			if err != nil {
				return err
			}
			printTurns(cmd.OutOrStdout(), result.Turns)
			if result.HasMore {
				color.New(color.FgHiBlack).Fprintf(cmd.OutOrStdout(), "  … more turns available (raise --limit)\n")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "only turns from this user id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum turns to show")
	cmd.Flags().DurationVar(&since, "since", 0, "only turns newer than this (e.g. 2h)")
	return cmd
}

func printTurns(w io.Writer, turns []store.Turn) {
	gray := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan)
	red := color.New(color.FgRed)

	for _, t := range turns {
		gray.Fprintf(w, "%s ", t.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		arrow := "◀"
		if t.Direction == store.DirectionOutbound {
			arrow = "▶"
		}
		fmt.Fprintf(w, "%s %-8s %s ", arrow, t.Transport, t.UserID)
		if t.Intent != "" {
			cyan.Fprintf(w, "[%s] ", t.Intent)
		}
		switch t.Outcome {
		case store.OutcomeFailed:
			red.Fprintf(w, "(%s: %s) ", t.Outcome, t.Error)
		case store.OutcomeHandled, store.OutcomeSent:
		default:
			gray.Fprintf(w, "(%s) ", t.Outcome)
		}
		fmt.Fprintln(w, t.Text)
	}
}

func healthCmd() *cobra.Command {
	var ready bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the running bot's health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			path := "/health"
			if ready {
				path = "/health/ready"
			}
			body, err := fetchHealth(cmd.Context(), healthURL(cfg, path))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ready, "ready", false, "check transport readiness instead of liveness")
	return cmd
}

// healthURL builds the health check URL from the configured listener.
func healthURL(cfg *config.Config, path string) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel || cfg.Tailscale.CertFile != "" {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname + path
	}
	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

func fetchHealth(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}
