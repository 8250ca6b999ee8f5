// ABOUTME: Console transport that reads user messages from a terminal line by line
// ABOUTME: Useful for local testing of the conversation flow without a chat account

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

// ConsoleConfig configures the console transport.
type ConsoleConfig struct {
	UserID string    // user id reported for every line, default "console"
	In     io.Reader // input lines
	Out    io.Writer // replies
}

// Console is a single-user direct conversation over a reader and writer.
type Console struct {
	userID  string
	in      io.Reader
	logger  *slog.Logger
	running atomic.Bool
	seq     atomic.Int64

	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console transport.
func NewConsole(cfg ConsoleConfig, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "console"
	}
	return &Console{
		userID: userID,
		in:     cfg.In,
		out:    cfg.Out,
		logger: logger.With("component", "console"),
	}
}

// Name returns "console".
func (c *Console) Name() string { return "console" }

// Ready reports whether input is being read.
func (c *Console) Ready() bool { return c.running.Load() }

// Run reads lines until EOF or ctx is cancelled. Each non-blank line is
// delivered to h as a direct message, in input order.
func (c *Console) Run(ctx context.Context, h Handler) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.running.Store(true)
	defer c.running.Store(false)
	c.logger.Info("console transport running", "user_id", c.userID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading console input: %w", err)
					}
				default:
				}
				c.logger.Info("console input closed")
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			h(ctx, Event{
				ID:         strconv.FormatInt(c.seq.Add(1), 10),
				Transport:  c.Name(),
				Kind:       KindDirect,
				UserID:     c.userID,
				ChannelID:  c.Name(),
				Text:       text,
				ReceivedAt: time.Now().UTC(),
			})
		}
	}
}

// Send writes a reply prefixed with a colored marker.
func (c *Console) Send(ctx context.Context, channelID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	marker := color.New(color.FgCyan).Sprint("bot ▸ ")
	if _, err := fmt.Fprintln(c.out, marker+text); err != nil {
		return fmt.Errorf("writing console reply: %w", err)
	}
	return nil
}
