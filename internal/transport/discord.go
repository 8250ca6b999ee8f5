// ABOUTME: Discord transport using the discordgo gateway session
// ABOUTME: Treats guild-less messages as direct messages and chunks replies at 2000 chars

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
)

// discordMaxMessage is Discord's per-message content limit.
const discordMaxMessage = 2000

// DiscordConfig configures the Discord transport.
type DiscordConfig struct {
	Token string
}

// Discord receives direct and guild messages from a Discord bot account.
type Discord struct {
	session   *discordgo.Session
	logger    *slog.Logger
	botUserID string
	running   atomic.Bool
}

// NewDiscord creates a Discord transport. It does not connect until Run.
func NewDiscord(cfg DiscordConfig, logger *slog.Logger) (*Discord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	// Handlers run on the gateway reader in delivery order. The handler only
	// enqueues, so this keeps one user's messages ordered without stalling.
	session.SyncEvents = true

	return &Discord{
		session: session,
		logger:  logger.With("component", "discord"),
	}, nil
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Ready reports whether the gateway connection is open.
func (d *Discord) Ready() bool { return d.running.Load() }

// Run opens the gateway connection and delivers messages to h until ctx is
// cancelled.
func (d *Discord) Run(ctx context.Context, h Handler) error {
	d.logger.Info("starting discord transport")

	remove := d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if evt, ok := d.toEvent(m); ok {
			h(ctx, evt)
		}
	})
	defer remove()

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	user, err := d.session.User("@me")
	if err != nil {
		d.session.Close()
		return fmt.Errorf("fetching discord bot identity: %w", err)
	}
	d.botUserID = user.ID

	d.running.Store(true)
	d.logger.Info("discord transport connected", "username", user.Username, "id", user.ID)

	<-ctx.Done()

	d.running.Store(false)
	d.logger.Info("shutting down discord transport")
	return d.session.Close()
}

// toEvent converts a gateway message, skipping bot authors and empty bodies.
func (d *Discord) toEvent(m *discordgo.MessageCreate) (Event, bool) {
	if m.Author == nil || m.Author.ID == d.botUserID || m.Author.Bot {
		return Event{}, false
	}
	if m.Content == "" {
		return Event{}, false
	}

	kind := KindGroup
	if m.GuildID == "" {
		kind = KindDirect
	}

	received := m.Timestamp
	if received.IsZero() {
		received = time.Now()
	}

	d.logger.Debug("received message",
		"channel_id", m.ChannelID,
		"sender_id", m.Author.ID,
		"kind", kind,
		"content", truncate(m.Content, 50),
	)

	return Event{
		ID:         m.ID,
		Transport:  d.Name(),
		Kind:       kind,
		UserID:     m.Author.ID,
		ChannelID:  m.ChannelID,
		Text:       m.Content,
		ReceivedAt: received.UTC(),
	}, true
}

// Send posts text to a channel, split into 2000-char messages if needed.
func (d *Discord) Send(ctx context.Context, channelID, text string) error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	if channelID == "" {
		return fmt.Errorf("empty channel id for discord send")
	}

	for _, chunk := range splitMessage(text, discordMaxMessage) {
		if _, err := d.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending discord message: %w", err)
		}
	}
	return nil
}
