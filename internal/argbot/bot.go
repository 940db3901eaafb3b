// Package argbot implements the content bot's update handling: recipient
// registration, the external feature hook, and engagement metrics capture.
// The fan-out engine itself lives in internal/broadcast and is started by the
// process main.
package argbot

import (
	"context"

	"argbot/internal/kit"
	"argbot/internal/store"
	"argbot/pkg/logx"
)

// Store is the slice of the shared store the content bot needs.
type Store interface {
	Register(ctx context.Context, chatID int64) (bool, error)
	UpsertMetric(ctx context.Context, chatID int64, obs store.Observation) (bool, error)
}

// Sender is the reply surface.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// LinkResolver resolves a chat's invite link, best-effort.
type LinkResolver interface {
	InviteLink(ctx context.Context, chatID int64) (string, error)
}

// Feature is the image-captioning collaborator. It lives outside this module;
// the handler only knows when to invoke it. Handle is expected to produce its
// own user-facing reply.
type Feature interface {
	Triggered(m kit.Message) bool
	Handle(ctx context.Context, m kit.Message) error
}

const usageText = "Send me a photo with an /arg caption, or reply /arg to a photo, and I'll stamp it."

type Handler struct {
	st      Store
	send    Sender
	links   LinkResolver
	feature Feature // nil when the collaborator is not wired
	log     logx.Logger
}

func New(st Store, send Sender, links LinkResolver, feature Feature, log logx.Logger) *Handler {
	return &Handler{st: st, send: send, links: links, feature: feature, log: log}
}

// HandleUpdate routes one incoming update.
func (h *Handler) HandleUpdate(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	m := *up.Message

	if isStart(m.Text) {
		h.handleStart(ctx, m)
		return
	}
	h.handleMessage(ctx, m)
}

func isStart(text string) bool {
	return text == "/start" || (len(text) > 7 && text[:7] == "/start@")
}

// handleStart registers the chat as a broadcast recipient. Registration is
// idempotent, so repeated /start is harmless.
func (h *Handler) handleStart(ctx context.Context, m kit.Message) {
	// The store logs its own failures; the user still gets the usage reply.
	_, _ = h.st.Register(ctx, m.ChatID)
	if _, err := h.send.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, usageText, nil); err != nil {
		h.log.Warn("reply failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
	}
}

func (h *Handler) handleMessage(ctx context.Context, m kit.Message) {
	if h.feature == nil || !h.feature.Triggered(m) {
		return
	}
	if err := h.feature.Handle(ctx, m); err != nil {
		h.log.Warn("feature request failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		return
	}
	// The user-facing action already completed; everything below is
	// best-effort and must never surface to the user.
	h.captureMetric(ctx, m)
}

// captureMetric records one engagement observation for the originating chat.
// Invite link resolution may fail (private chat, missing privilege) without
// blocking the metric write.
func (h *Handler) captureMetric(ctx context.Context, m kit.Message) {
	invite, err := h.links.InviteLink(ctx, m.ChatID)
	if err != nil {
		h.log.Debug("invite link unavailable", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		invite = ""
	}

	username := m.ChatUsername
	if username == "" {
		username = m.FromUsername
	}
	obs := store.Observation{
		Kind:       string(m.ChatKind),
		Title:      m.ChatTitle,
		Username:   username,
		InviteLink: invite,
	}
	created, err := h.st.UpsertMetric(ctx, m.ChatID, obs)
	if err != nil {
		h.log.Warn("metric write failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
		return
	}
	h.log.Debug("metric recorded", logx.Int64("chat_id", m.ChatID), logx.Bool("created", created))
}
