// ABOUTME: Entry point for coven-helpdesk, a chat help-desk bot
// ABOUTME: Defines the cobra command tree and shared flag handling

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/coven-helpdesk/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                   _          _           _           _
  ___ _____   _____ _ __          | |__   ___| |_ __   __| | ___  ___| | __
 / __/ _ \ \ / / _ \ '_ \  _____  | '_ \ / _ \ | '_ \ / _' |/ _ \/ __| |/ /
| (_| (_) \ V /  __/ | | ||_____| | | | |  __/ | |_) | (_| |  __/\__ \   <
 \___\___/ \_/ \___|_| |_|        |_| |_|\___|_| .__/ \__,_|\___||___/_|\_\
                                               |_|
`

var (
	cfgFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coven-helpdesk",
		Short:         "Chat help-desk bot that classifies requests and collects support tickets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $"+config.EnvConfigPath+" or ~/.config/coven/helpdesk.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(healthCmd())
	root.AddCommand(versionCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// loadConfig resolves the config path from flags and environment and loads it.
func loadConfig() (*config.Config, string, error) {
	path, err := config.ResolvePath(cfgFile)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, path, nil
}
