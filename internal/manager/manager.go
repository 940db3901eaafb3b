// Package manager implements the operator-facing bot: it authorizes
// operators against a shared secret, turns their messages into broadcast
// envelopes, and serves the metrics commands.
package manager

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"argbot/internal/broadcast"
	"argbot/internal/kit"
	"argbot/internal/store"
	"argbot/pkg/logx"
)

// Store is the slice of the shared store the manager needs.
type Store interface {
	Authorize(ctx context.Context, chatID int64) error
	IsAuthorized(ctx context.Context, chatID int64) (bool, error)
	ListAllMetrics(ctx context.Context) ([]store.Record, error)
	ClearMetrics(ctx context.Context) (int, error)
}

// Publisher originates broadcast envelopes.
type Publisher interface {
	PublishMessage(ctx context.Context, m kit.Message) (broadcast.Kind, error)
	PublishRaw(ctx context.Context, chatID int64, messageID int) error
	PublishForward(ctx context.Context, channelID int64, messageID int) error
}

// Sender is the reply surface; the manager only ever sends text.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

const usageText = "This is the broadcast manager bot.\n" +
	"/auth <password> — authorize this chat\n" +
	"/send — broadcast your next message to all recipients\n" +
	"/top — top active chats\n" +
	"/clear — reset activity counters"

const notAuthorizedText = "You are not authorized. Use /auth <password>."

type Handler struct {
	secret  string
	st      Store
	pub     Publisher
	send    Sender
	pending *pendingSet
	log     logx.Logger
}

func New(secret string, st Store, pub Publisher, send Sender, log logx.Logger) *Handler {
	return &Handler{
		secret:  secret,
		st:      st,
		pub:     pub,
		send:    send,
		pending: newPendingSet(),
		log:     log,
	}
}

// HandleUpdate routes one incoming update. Replies are best-effort; a failed
// reply is logged and dropped.
func (h *Handler) HandleUpdate(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	m := *up.Message

	cmd, args := splitCommand(m.Text)
	switch cmd {
	case "/start":
		h.reply(ctx, m.ChatID, usageText, nil)
	case "/auth":
		h.handleAuth(ctx, m, args)
	case "/send":
		h.handleSend(ctx, m)
	case "/top":
		h.handleTop(ctx, m)
	case "/clear":
		h.handleClear(ctx, m)
	default:
		h.handleMessage(ctx, m)
	}
}

// splitCommand extracts a leading /command (with an optional @botname suffix)
// and its arguments. Non-command text returns ("", nil).
func splitCommand(text string) (string, []string) {
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.SplitN(fields[0], "@", 2)[0]
	return cmd, fields[1:]
}

func (h *Handler) handleAuth(ctx context.Context, m kit.Message, args []string) {
	if len(args) != 1 {
		h.reply(ctx, m.ChatID, "Usage: /auth <password>", nil)
		return
	}
	if subtle.ConstantTimeCompare([]byte(args[0]), []byte(h.secret)) != 1 {
		h.log.Warn("authorization rejected", logx.Int64("chat_id", m.ChatID))
		h.reply(ctx, m.ChatID, "Wrong password.", nil)
		return
	}
	if err := h.st.Authorize(ctx, m.ChatID); err != nil {
		h.reply(ctx, m.ChatID, "Authorization failed, try again later.", nil)
		return
	}
	h.reply(ctx, m.ChatID, "Authorized.", nil)
}

func (h *Handler) handleSend(ctx context.Context, m kit.Message) {
	if !h.authorized(ctx, m.ChatID) {
		h.reply(ctx, m.ChatID, notAuthorizedText, nil)
		return
	}
	h.pending.arm(m.ChatID)
	h.reply(ctx, m.ChatID, "Waiting for your broadcast message (text, photo, video, document or audio).", nil)
}

// handleMessage consumes the pending-send marker: the first message after
// /send becomes the announcement. Channel forwards keep their channel
// attribution; messages with no typed payload fall back to a raw copy.
func (h *Handler) handleMessage(ctx context.Context, m kit.Message) {
	if !h.pending.consume(m.ChatID) {
		return
	}

	var err error
	switch {
	case m.ForwardedChannelID != 0:
		err = h.pub.PublishForward(ctx, m.ForwardedChannelID, m.ForwardedMessageID)
	default:
		_, err = h.pub.PublishMessage(ctx, m)
		if errors.Is(err, broadcast.ErrNoContent) {
			err = h.pub.PublishRaw(ctx, m.ChatID, m.ID)
		}
	}
	if err != nil {
		h.log.Error("broadcast publish failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		h.reply(ctx, m.ChatID, "Failed to publish the broadcast.", nil)
		return
	}
	h.reply(ctx, m.ChatID, "Broadcast queued for delivery.", nil)
}

func (h *Handler) handleTop(ctx context.Context, m kit.Message) {
	if !h.authorized(ctx, m.ChatID) {
		h.reply(ctx, m.ChatID, notAuthorizedText, nil)
		return
	}
	records, err := h.st.ListAllMetrics(ctx)
	if err != nil {
		h.reply(ctx, m.ChatID, "Failed to load metrics.", nil)
		return
	}
	text := renderTop(records)
	if text == "" {
		h.reply(ctx, m.ChatID, "No activity recorded yet.", nil)
		return
	}
	h.reply(ctx, m.ChatID, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
}

func (h *Handler) handleClear(ctx context.Context, m kit.Message) {
	if !h.authorized(ctx, m.ChatID) {
		h.reply(ctx, m.ChatID, notAuthorizedText, nil)
		return
	}
	reset, err := h.st.ClearMetrics(ctx)
	if err != nil {
		h.reply(ctx, m.ChatID, "Failed to reset counters.", nil)
		return
	}
	h.reply(ctx, m.ChatID, fmt.Sprintf("Reset %d counters.", reset), nil)
}

func (h *Handler) authorized(ctx context.Context, chatID int64) bool {
	ok, err := h.st.IsAuthorized(ctx, chatID)
	return err == nil && ok
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) {
	if _, err := h.send.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		h.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
