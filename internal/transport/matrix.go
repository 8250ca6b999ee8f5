// ABOUTME: Matrix transport built on mautrix with optional end-to-end encryption
// ABOUTME: Detects direct rooms by member count and renders replies as HTML via goldmark

package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// MatrixConfig configures the Matrix transport.
type MatrixConfig struct {
	Homeserver      string
	UserID          string
	AccessToken     string
	DeviceID        string   // optional; looked up via whoami when encryption is on
	RecoveryKey     string   // enables cross-signing verification when set
	Encryption      bool     // enable E2EE using the crypto store under DataDir
	DataDir         string   // crypto database directory
	AutoJoin        bool     // accept room invites
	TypingIndicator bool     // show typing while a reply is being produced
	AllowedRooms    []string // empty allows all rooms
}

// typingTimeout is the duration the typing indicator shows (30 seconds).
const typingTimeout = 30 * time.Second

// networkTimeout is the timeout for Matrix API calls.
const networkTimeout = 10 * time.Second

// Matrix delivers direct and room messages from a Matrix homeserver.
type Matrix struct {
	config  MatrixConfig
	client  *mautrix.Client
	crypto  *CryptoManager
	logger  *slog.Logger
	running atomic.Bool

	// roomKinds caches direct/group classification per room
	roomKinds sync.Map // id.RoomID -> Kind

	startedAt time.Time
}

// NewMatrix creates a Matrix transport. It does not connect until Run.
func NewMatrix(cfg MatrixConfig, logger *slog.Logger) (*Matrix, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	if cfg.DeviceID != "" {
		client.DeviceID = id.DeviceID(cfg.DeviceID)
	}

	return &Matrix{
		config: cfg,
		client: client,
		logger: logger.With("component", "matrix"),
	}, nil
}

// Name returns "matrix".
func (m *Matrix) Name() string { return "matrix" }

// Ready reports whether the sync loop is running.
func (m *Matrix) Ready() bool { return m.running.Load() }

// Run syncs with the homeserver and delivers message events to h until ctx
// is cancelled.
func (m *Matrix) Run(ctx context.Context, h Handler) error {
	m.logger.Info("starting matrix transport",
		"homeserver", m.config.Homeserver,
		"user_id", m.config.UserID,
		"encryption", m.config.Encryption,
	)

	if m.config.Encryption {
		if err := m.setupEncryption(ctx); err != nil {
			return err
		}
		defer m.crypto.Close()
	}

	syncer, ok := m.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", m.client.Syncer)
	}
	// Timeline history from the initial sync must not be answered again
	m.startedAt = time.Now()
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		m.handleMessageEvent(ctx, evt, h)
	})
	if m.config.AutoJoin {
		syncer.OnEventType(event.StateMember, m.handleMemberEvent)
	}

	syncCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- m.client.SyncWithContext(syncCtx)
	}()

	m.running.Store(true)
	defer m.running.Store(false)
	m.logger.Info("matrix transport running")

	select {
	case <-ctx.Done():
		m.logger.Info("shutting down matrix transport")
		cancel()
		return nil
	case err := <-syncErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

func (m *Matrix) setupEncryption(ctx context.Context) error {
	if m.client.DeviceID == "" {
		resp, err := m.client.Whoami(ctx)
		if err != nil {
			return fmt.Errorf("resolving matrix device id: %w", err)
		}
		m.client.DeviceID = resp.DeviceID
	}
	cm, err := SetupCrypto(ctx, m.client, m.config.UserID, m.config.RecoveryKey, m.config.DataDir, m.logger)
	if err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	m.crypto = cm
	return nil
}

// handleMemberEvent joins rooms the bot is invited to.
func (m *Matrix) handleMemberEvent(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != m.client.UserID.String() {
		return
	}
	member := evt.Content.AsMember()
	if member.Membership != event.MembershipInvite {
		return
	}

	joinCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := m.client.JoinRoomByID(joinCtx, evt.RoomID); err != nil {
		m.logger.Warn("failed to join room", "room", evt.RoomID.String(), "error", err)
		return
	}
	m.logger.Info("joined room", "room", evt.RoomID.String(), "inviter", evt.Sender.String())
}

// handleMessageEvent normalizes a Matrix text message into an Event.
func (m *Matrix) handleMessageEvent(ctx context.Context, evt *event.Event, h Handler) {
	// Ignore our own messages
	if evt.Sender == m.client.UserID {
		return
	}
	if time.UnixMilli(evt.Timestamp).Before(m.startedAt) {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}
	if content.MsgType != event.MsgText {
		return
	}
	if content.Body == "" {
		return
	}

	roomID := evt.RoomID.String()
	if !m.isRoomAllowed(roomID) {
		m.logger.Debug("ignoring message from non-allowed room", "room", roomID)
		return
	}

	m.logger.Debug("received message",
		"room", roomID,
		"sender", evt.Sender.String(),
		"content", truncate(content.Body, 50),
	)

	out := Event{
		ID:         evt.ID.String(),
		Transport:  m.Name(),
		Kind:       m.roomKind(ctx, evt.RoomID),
		UserID:     evt.Sender.String(),
		ChannelID:  roomID,
		Text:       content.Body,
		ReceivedAt: time.UnixMilli(evt.Timestamp).UTC(),
	}
	if m.config.TypingIndicator {
		out.Busy = m.typingWhileBusy(evt.RoomID)
	}
	h(ctx, out)
}

// typingWhileBusy shows the typing indicator in roomID for as long as the
// event is being processed.
func (m *Matrix) typingWhileBusy(roomID id.RoomID) func() func() {
	return func() func() {
		m.setTyping(roomID, true)
		return func() { m.setTyping(roomID, false) }
	}
}

// roomKind treats a room with exactly two joined members as a direct chat.
// Lookups that fail are reported as group rooms and not cached.
func (m *Matrix) roomKind(ctx context.Context, roomID id.RoomID) Kind {
	if k, ok := m.roomKinds.Load(roomID); ok {
		return k.(Kind)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	resp, err := m.client.JoinedMembers(lookupCtx, roomID)
	if err != nil {
		m.logger.Warn("failed to load room members", "room", roomID.String(), "error", err)
		return KindGroup
	}

	kind := KindGroup
	if len(resp.Joined) == 2 {
		kind = KindDirect
	}
	m.roomKinds.Store(roomID, kind)
	return kind
}

// isRoomAllowed checks if the room is in the allowed list.
func (m *Matrix) isRoomAllowed(roomID string) bool {
	if len(m.config.AllowedRooms) == 0 {
		return true
	}
	for _, allowed := range m.config.AllowedRooms {
		if allowed == roomID {
			return true
		}
	}
	return false
}

// setTyping sends typing indicator to room.
func (m *Matrix) setTyping(roomID id.RoomID, typing bool) {
	var timeout time.Duration
	if typing {
		timeout = typingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()
	if _, err := m.client.UserTyping(ctx, roomID, typing, timeout); err != nil {
		m.logger.Debug("failed to set typing indicator", "room", roomID.String(), "error", err)
	}
}

// Send posts text to a room with an HTML rendering of its markdown.
func (m *Matrix) Send(ctx context.Context, channelID, text string) error {
	if !m.running.Load() {
		return ErrNotRunning
	}

	content := renderMatrixMessage(text)
	if _, err := m.client.SendMessageEvent(ctx, id.RoomID(channelID), event.EventMessage, content); err != nil {
		return fmt.Errorf("sending matrix message: %w", err)
	}
	return nil
}

// renderMatrixMessage builds a text message whose formatted body is the
// goldmark rendering of text. Plain text that renders to a single paragraph
// is sent without a formatted body.
func renderMatrixMessage(text string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return content
	}
	html := bytes.TrimSpace(buf.Bytes())
	if isPlainParagraph(html, text) {
		return content
	}
	content.Format = event.FormatHTML
	content.FormattedBody = string(html)
	return content
}

func isPlainParagraph(html []byte, text string) bool {
	return string(html) == "<p>"+text+"</p>"
}
