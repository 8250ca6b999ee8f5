// ABOUTME: Telegram transport using telego long polling
// ABOUTME: Private chats are direct; replies are chunked to Telegram's 4096-char limit

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// telegramMaxMessage is Telegram's per-message text limit.
const telegramMaxMessage = 4096

// TelegramConfig configures the Telegram transport.
type TelegramConfig struct {
	Token string
}

// Telegram receives messages from a Telegram bot via long polling.
type Telegram struct {
	bot     *telego.Bot
	logger  *slog.Logger
	running atomic.Bool
}

// NewTelegram creates a Telegram transport. The token is validated locally
// by telego; no request is made until Run.
func NewTelegram(cfg TelegramConfig, logger *slog.Logger) (*Telegram, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &Telegram{
		bot:    bot,
		logger: logger.With("component", "telegram"),
	}, nil
}

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// Ready reports whether long polling is active.
func (t *Telegram) Ready() bool { return t.running.Load() }

// Run long-polls for updates and delivers messages to h until ctx is
// cancelled.
func (t *Telegram) Run(ctx context.Context, h Handler) error {
	t.logger.Info("starting telegram transport (polling mode)")

	updates, err := t.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("starting long polling: %w", err)
	}

	t.running.Store(true)
	defer t.running.Store(false)
	t.logger.Info("telegram transport connected")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("shutting down telegram transport")
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("telegram updates channel closed")
			}
			if evt, ok := t.toEvent(update); ok {
				h(ctx, evt)
			}
		}
	}
}

// toEvent converts an update carrying a text message.
func (t *Telegram) toEvent(update telego.Update) (Event, bool) {
	message := update.Message
	if message == nil || message.From == nil || message.Text == "" {
		return Event{}, false
	}
	if message.From.IsBot {
		return Event{}, false
	}

	kind := KindGroup
	if message.Chat.Type == telego.ChatTypePrivate {
		kind = KindDirect
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)

	t.logger.Debug("received message",
		"chat_id", message.Chat.ID,
		"chat_type", message.Chat.Type,
		"user_id", message.From.ID,
		"content", truncate(message.Text, 50),
	)

	return Event{
		// Message ids are only unique within a chat
		ID:         chatID + "/" + strconv.Itoa(message.MessageID),
		Transport:  t.Name(),
		Kind:       kind,
		UserID:     strconv.FormatInt(message.From.ID, 10),
		ChannelID:  chatID,
		Text:       message.Text,
		ReceivedAt: time.Unix(message.Date, 0).UTC(),
	}, true
}

// Send posts text to a chat, split into 4096-char messages if needed.
func (t *Telegram) Send(ctx context.Context, channelID, text string) error {
	if !t.running.Load() {
		return ErrNotRunning
	}
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", channelID, err)
	}

	for _, chunk := range splitMessage(text, telegramMaxMessage) {
		if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("sending telegram message: %w", err)
		}
	}
	return nil
}
