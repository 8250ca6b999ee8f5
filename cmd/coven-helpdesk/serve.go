// ABOUTME: The serve command: wires transports, classifier, conversation manager, and HTTP server
// ABOUTME: Runs every long-lived component in one errgroup until a signal arrives

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-helpdesk/internal/classifier"
	"github.com/2389/coven-helpdesk/internal/config"
	"github.com/2389/coven-helpdesk/internal/conversation"
	"github.com/2389/coven-helpdesk/internal/dedupe"
	"github.com/2389/coven-helpdesk/internal/form"
	"github.com/2389/coven-helpdesk/internal/helpdesk"
	"github.com/2389/coven-helpdesk/internal/intent"
	"github.com/2389/coven-helpdesk/internal/server"
	"github.com/2389/coven-helpdesk/internal/session"
	"github.com/2389/coven-helpdesk/internal/store"
	"github.com/2389/coven-helpdesk/internal/transport"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect the configured transports and start answering messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// consoleIO is the console transport's terminal; tests replace it.
var consoleIO = struct {
	in  io.Reader
	out io.Writer
}{os.Stdin, os.Stdout}

// app holds every wired component of a running bot.
type app struct {
	ledger      store.Store
	dedupe      *dedupe.Cache
	sessions    *session.Registry
	broadcaster *conversation.Broadcaster
	manager     *conversation.Manager
	transports  *transport.Set
	server      *server.Server
	logger      *slog.Logger

	sweepInterval time.Duration
	idleTTL       time.Duration
}

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	printBanner(cfg, configPath)
	logger := setupLogger(cfg.Logging, os.Stderr)

	a, err := buildApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("starting coven-helpdesk",
		"config", configPath,
		"version", version,
		"transports", a.transports.Names(),
	)
	return a.Run(ctx)
}

func printBanner(cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(os.Stderr, banner)
	gray.Fprintf(os.Stderr, "    version: %s\n\n", version)

	line := func(label, value string) {
		green.Fprint(os.Stderr, "    ▶ ")
		fmt.Fprintf(os.Stderr, "%-11s%s\n", label+":", value)
	}
	line("Config", configPath)
	line("Classifier", cfg.Classifier.Provider+" / "+cfg.Classifier.Model)
	if cfg.Database.Path != "" {
		line("Ledger", cfg.Database.Path)
	} else {
		line("Ledger", "in memory")
	}
	if cfg.Tailscale.Enabled {
		green.Fprint(os.Stderr, "    ▶ ")
		fmt.Fprint(os.Stderr, "Tailscale: ")
		cyan.Fprint(os.Stderr, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Fprint(os.Stderr, " [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Fprint(os.Stderr, " (ephemeral)")
		}
		fmt.Fprintln(os.Stderr)
	} else {
		line("HTTP", cfg.Server.HTTPAddr)
	}
	fmt.Fprintln(os.Stderr)
}

// openLedger opens the SQLite ledger, or an in-memory one when no path is set.
func openLedger(cfg *config.Config) (store.Store, error) {
	if cfg.Database.Path == "" {
		return store.NewMemoryStore(), nil
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return s, nil
}

// buildTransports constructs every enabled transport.
func buildTransports(cfg *config.Config, logger *slog.Logger) ([]transport.Transport, error) {
	var ts []transport.Transport
	tc := cfg.Transports

	if tc.Matrix.Enabled {
		m, err := transport.NewMatrix(transport.MatrixConfig{
			Homeserver:      tc.Matrix.Homeserver,
			UserID:          tc.Matrix.UserID,
			AccessToken:     tc.Matrix.AccessToken,
			DeviceID:        tc.Matrix.DeviceID,
			RecoveryKey:     tc.Matrix.RecoveryKey,
			Encryption:      tc.Matrix.Encryption,
			DataDir:         tc.Matrix.DataDir,
			AutoJoin:        tc.Matrix.AutoJoin,
			TypingIndicator: tc.Matrix.TypingIndicator,
			AllowedRooms:    tc.Matrix.AllowedRooms,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating matrix transport: %w", err)
		}
		ts = append(ts, m)
	}
	if tc.Discord.Enabled {
		d, err := transport.NewDiscord(transport.DiscordConfig{Token: tc.Discord.Token}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating discord transport: %w", err)
		}
		ts = append(ts, d)
	}
	if tc.Telegram.Enabled {
		t, err := transport.NewTelegram(transport.TelegramConfig{Token: tc.Telegram.Token}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating telegram transport: %w", err)
		}
		ts = append(ts, t)
	}
	if tc.Console.Enabled {
		ts = append(ts, transport.NewConsole(transport.ConsoleConfig{
			UserID: tc.Console.UserID,
			In:     consoleIO.in,
			Out:    consoleIO.out,
		}, logger))
	}
	return ts, nil
}

// buildClassifier creates the configured backend and loads its prompt and examples.
func buildClassifier(cfg config.ClassifierConfig, logger *slog.Logger) (classifier.Classifier, string, []classifier.Example, error) {
	c, err := classifier.New(classifier.Config{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Endpoint:   cfg.Endpoint,
		APIVersion: cfg.APIVersion,
		MaxTokens:  cfg.MaxTokens,
		Timeout:    cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, "", nil, fmt.Errorf("creating classifier: %w", err)
	}
	prompt, err := classifier.Prompt(cfg.PromptsFile, cfg.PromptKey)
	if err != nil {
		return nil, "", nil, err
	}
	examples, err := classifier.LoadExamples(cfg.ExamplesFile)
	if err != nil {
		return nil, "", nil, err
	}
	return c, prompt, examples, nil
}

// buildApp wires the bot. A nil cls builds the classifier from config.
func buildApp(cfg *config.Config, logger *slog.Logger, cls classifier.Classifier) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		prompt   string
		examples []classifier.Example
	)
	if cls == nil {
		cls, prompt, examples, err = buildClassifier(cfg.Classifier, logger)
		if err != nil {
			return nil, err
		}
	}

	a.ledger, err = openLedger(cfg)
	if err != nil {
		return nil, err
	}

	ts, err := buildTransports(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.transports, err = transport.NewSet(ts...)
	if err != nil {
		return nil, err
	}

	senders := make(map[string]transport.Sender, len(ts))
	for _, t := range ts {
		senders[t.Name()] = transport.NewRateLimited(t, cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.Burst)
	}

	templates, err := form.NewTemplates(helpdesk.Forms())
	if err != nil {
		return nil, err
	}
	a.sessions = session.NewRegistry(templates, logger)
	a.dedupe = dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxSize)
	a.broadcaster = conversation.NewBroadcaster(logger)

	outbox := conversation.NewOutbox(senders, a.ledger, a.broadcaster, logger)
	bot := helpdesk.New(outbox, nil, form.NewEngine(cfg.Forms.QuitToken, logger), logger)
	router, err := intent.NewRouter(bot.Handlers(), logger)
	if err != nil {
		return nil, err
	}

	a.manager, err = conversation.NewManager(conversation.Deps{
		Dedupe:      a.dedupe,
		Sessions:    a.sessions,
		Router:      router,
		Classifier:  cls,
		Ledger:      a.ledger,
		Broadcaster: a.broadcaster,
	}, conversation.Config{
		DirectOnly: cfg.Conversation.DirectOnlyEnabled(),
		Prompt:     prompt,
		Examples:   examples,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.server, err = server.New(cfg, server.Deps{
		Ledger:      a.ledger,
		Readiness:   a.transports,
		Stats:       a.manager,
		Broadcaster: a.broadcaster,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.sweepInterval = cfg.Sessions.SweepInterval
	a.idleTTL = cfg.Sessions.IdleTTL
	return a, nil
}

// Run starts every transport, the HTTP server, and the session sweeper, and
// blocks until ctx is cancelled or one of them fails.
func (a *app) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	handler := a.manager.Handler()

	for _, t := range a.transports.All() {
		g.Go(func() error {
			if err := t.Run(gctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s transport: %w", t.Name(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	g.Go(func() error {
		a.sessions.RunSweeper(gctx, a.sweepInterval, a.idleTTL)
		return nil
	})

	err := g.Wait()
	// Transports have stopped; let turns already queued finish before Close
	a.manager.Wait()
	return err
}

// Close releases the ledger and background goroutines. Safe on a partly built app.
func (a *app) Close() {
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	if a.dedupe != nil {
		a.dedupe.Close()
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Error("closing ledger", "error", err)
		}
	}
}
