// ABOUTME: Tests for Matrix, Discord, and Telegram event conversion and formatting
// ABOUTME: Constructs backend structs directly so no network access is needed

package transport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"
)

func TestDiscord_ToEvent(t *testing.T) {
	d := &Discord{logger: discardLogger(), botUserID: "bot-1"}
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	dm := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Content:   "Hello there",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1"},
	}}
	evt, ok := d.toEvent(dm)
	require.True(t, ok)
	assert.Equal(t, Event{
		ID:         "m1",
		Transport:  "discord",
		Kind:       KindDirect,
		UserID:     "u1",
		ChannelID:  "c1",
		Text:       "Hello there",
		ReceivedAt: ts,
	}, evt)

	guild := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m2", ChannelID: "c2", GuildID: "g1", Content: "hi",
		Author: &discordgo.User{ID: "u1"},
	}}
	evt, ok = d.toEvent(guild)
	require.True(t, ok)
	assert.Equal(t, KindGroup, evt.Kind)
}

func TestDiscord_ToEvent_Skips(t *testing.T) {
	d := &Discord{logger: discardLogger(), botUserID: "bot-1"}

	tests := []struct {
		name string
		msg  *discordgo.Message
	}{
		{"no author", &discordgo.Message{ID: "m", Content: "x"}},
		{"own message", &discordgo.Message{ID: "m", Content: "x", Author: &discordgo.User{ID: "bot-1"}}},
		{"other bot", &discordgo.Message{ID: "m", Content: "x", Author: &discordgo.User{ID: "b2", Bot: true}}},
		{"empty content", &discordgo.Message{ID: "m", Author: &discordgo.User{ID: "u1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := d.toEvent(&discordgo.MessageCreate{Message: tt.msg})
			assert.False(t, ok)
		})
	}
}

func TestDiscord_SendNotRunning(t *testing.T) {
	d := &Discord{logger: discardLogger()}
	assert.ErrorIs(t, d.Send(context.Background(), "c1", "x"), ErrNotRunning)
}

func TestTelegram_ToEvent(t *testing.T) {
	tg := &Telegram{logger: discardLogger()}

	update := telego.Update{Message: &telego.Message{
		MessageID: 42,
		Date:      1767225600,
		Chat:      telego.Chat{ID: 1001, Type: telego.ChatTypePrivate},
		From:      &telego.User{ID: 7},
		Text:      "Hello there",
	}}
	evt, ok := tg.toEvent(update)
	require.True(t, ok)
	assert.Equal(t, "1001/42", evt.ID)
	assert.Equal(t, "telegram", evt.Transport)
	assert.Equal(t, KindDirect, evt.Kind)
	assert.Equal(t, "7", evt.UserID)
	assert.Equal(t, "1001", evt.ChannelID)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), evt.ReceivedAt)

	update.Message.Chat.Type = telego.ChatTypeGroup
	evt, ok = tg.toEvent(update)
	require.True(t, ok)
	assert.Equal(t, KindGroup, evt.Kind)
}

func TestTelegram_ToEvent_Skips(t *testing.T) {
	tg := &Telegram{logger: discardLogger()}

	_, ok := tg.toEvent(telego.Update{})
	assert.False(t, ok, "no message")

	_, ok = tg.toEvent(telego.Update{Message: &telego.Message{Text: "x"}})
	assert.False(t, ok, "no sender")

	_, ok = tg.toEvent(telego.Update{Message: &telego.Message{From: &telego.User{ID: 1}}})
	assert.False(t, ok, "no text")

	_, ok = tg.toEvent(telego.Update{Message: &telego.Message{Text: "x", From: &telego.User{ID: 1, IsBot: true}}})
	assert.False(t, ok, "bot sender")
}

func TestTelegram_SendInvalidChat(t *testing.T) {
	tg := &Telegram{logger: discardLogger()}
	tg.running.Store(true)
	assert.Error(t, tg.Send(context.Background(), "not-a-number", "x"))
}

func TestRenderMatrixMessage(t *testing.T) {
	plain := renderMatrixMessage("Hello")
	assert.Equal(t, event.MsgText, plain.MsgType)
	assert.Equal(t, "Hello", plain.Body)
	assert.Empty(t, plain.FormattedBody)

	rich := renderMatrixMessage("Ticket **created**")
	assert.Equal(t, "Ticket **created**", rich.Body)
	assert.Equal(t, event.FormatHTML, rich.Format)
	assert.Equal(t, "<p>Ticket <strong>created</strong></p>", rich.FormattedBody)
}

func TestMatrix_IsRoomAllowed(t *testing.T) {
	m := &Matrix{}
	assert.True(t, m.isRoomAllowed("!any:example.org"))

	m.config.AllowedRooms = []string{"!a:example.org"}
	assert.True(t, m.isRoomAllowed("!a:example.org"))
	assert.False(t, m.isRoomAllowed("!b:example.org"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "helpdesk_matrix.org", slugify("@helpdesk:matrix.org"))
	assert.Equal(t, "a-bc_d", slugify("a-b c_d"))
}

func TestDeriveStoreKey(t *testing.T) {
	k1 := deriveStoreKey("@a:example.org")
	k2 := deriveStoreKey("@b:example.org")
	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, deriveStoreKey("@a:example.org"))
}

func TestCheckDeviceIDMismatch_NoDatabase(t *testing.T) {
	mismatch, err := checkDeviceIDMismatch(filepath.Join(t.TempDir(), "missing.db"), "DEVICE")
	require.NoError(t, err)
	assert.False(t, mismatch)
}
