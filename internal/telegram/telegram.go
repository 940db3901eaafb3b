// Package telegram adapts telebot to the transport-neutral kit contract.
// It is the only package that knows the SDK; everything above it works with
// kit types and can be tested against fakes.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"argbot/internal/kit"
	"argbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot       *tele.Bot
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
	runMu     sync.Mutex
	running   bool

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)
	a.runMu.Unlock()

	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Any("count", n))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Any("count", n))
				}
			}
		}
	}()

	a.registerHandlers(out)

	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop() called
	}()

	return nil
}

func (a *Adapter) registerHandlers(out chan<- kit.Update) {
	forward := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Chat == nil {
			return nil
		}
		up := kit.Update{Kind: kit.UpdateMessage, Message: mapMessage(m)}
		select {
		case out <- up:
		default:
			atomic.AddUint64(&a.droppedUpdates, 1)
		}
		return nil
	}

	// One handler per payload kind the broadcast pipeline understands, plus
	// OnMedia: stickers, voice, animations and video notes route there when no
	// specific handler exists, and those broadcast as raw copies.
	a.bot.Handle(tele.OnText, forward)
	a.bot.Handle(tele.OnPhoto, forward)
	a.bot.Handle(tele.OnVideo, forward)
	a.bot.Handle(tele.OnDocument, forward)
	a.bot.Handle(tele.OnAudio, forward)
	a.bot.Handle(tele.OnMedia, forward)
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	if a.bot != nil {
		go a.bot.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	// Grace window: keep shutdown snappy even if the long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("stop grace elapsed; continuing shutdown")
		return nil
	}
}

func mapMessage(m *tele.Message) *kit.Message {
	out := &kit.Message{
		ID:        m.ID,
		ChatID:    m.Chat.ID,
		ChatKind:  kit.ChatKind(m.Chat.Type),
		ChatTitle: chatTitle(m.Chat),
		Text:      m.Text,
		Caption:   m.Caption,
	}
	if text, ok := renderHTML(m.Text, m.Entities); ok {
		out.Text = text
		out.ParseMode = "HTML"
	}
	if caption, ok := renderHTML(m.Caption, m.CaptionEntities); ok {
		out.Caption = caption
		out.ParseMode = "HTML"
	}
	if m.Chat.Username != "" {
		out.ChatUsername = m.Chat.Username
	}
	if m.Sender != nil {
		out.FromID = m.Sender.ID
		out.FromUsername = m.Sender.Username
	}
	if m.Photo != nil {
		out.Photo = &kit.FileRef{FileID: m.Photo.FileID}
	}
	if m.Video != nil {
		out.Video = &kit.FileRef{FileID: m.Video.FileID}
	}
	if m.Document != nil {
		out.Document = &kit.FileRef{FileID: m.Document.FileID}
	}
	if m.Audio != nil {
		ref := &kit.AudioRef{
			FileID:    m.Audio.FileID,
			Title:     m.Audio.Title,
			Performer: m.Audio.Performer,
			Duration:  m.Audio.Duration,
		}
		if m.Audio.Thumbnail != nil {
			ref.ThumbFileID = m.Audio.Thumbnail.FileID
		}
		out.Audio = ref
	}
	if m.OriginalChat != nil && m.OriginalChat.Type == tele.ChatChannel {
		out.ForwardedChannelID = m.OriginalChat.ID
		out.ForwardedMessageID = m.OriginalMessageID
	}
	return out
}

func chatTitle(c *tele.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	// Private chats have no title; fall back to the person's name.
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

func sendOptions(opt *kit.SendOptions) *tele.SendOptions {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	return &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	msg, err := a.bot.Send(tele.ChatID(to.ChatID), text, sendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, file kit.FileRef, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	photo := &tele.Photo{File: tele.File{FileID: file.FileID}, Caption: caption}
	return a.send(to, photo, opt)
}

func (a *Adapter) SendVideo(ctx context.Context, to kit.ChatTarget, file kit.FileRef, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	video := &tele.Video{File: tele.File{FileID: file.FileID}, Caption: caption}
	return a.send(to, video, opt)
}

func (a *Adapter) SendDocument(ctx context.Context, to kit.ChatTarget, file kit.FileRef, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	doc := &tele.Document{File: tele.File{FileID: file.FileID}, Caption: caption}
	return a.send(to, doc, opt)
}

// SendAudio uploads buffered audio bytes as a multipart request. The buffers
// in audio are reused across calls; fresh readers are created per send.
func (a *Adapter) SendAudio(ctx context.Context, to kit.ChatTarget, audio kit.AudioUpload, opt *kit.SendOptions) (kit.MessageRef, error) {
	au := &tele.Audio{
		File:      tele.FromReader(bytes.NewReader(audio.Data)),
		Caption:   audio.Caption,
		Title:     audio.Title,
		Performer: audio.Performer,
		Duration:  audio.Duration,
	}
	if len(audio.Thumbnail) > 0 {
		au.Thumbnail = &tele.Photo{File: tele.FromReader(bytes.NewReader(audio.Thumbnail))}
	}
	return a.send(to, au, opt)
}

func (a *Adapter) send(to kit.ChatTarget, what any, opt *kit.SendOptions) (kit.MessageRef, error) {
	msg, err := a.bot.Send(tele.ChatID(to.ChatID), what, sendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

// Copy issues a platform-level copyMessage: the original bytes stay on the
// platform and formatting is preserved.
func (a *Adapter) Copy(ctx context.Context, to kit.ChatTarget, fromChatID int64, messageID int) error {
	src := tele.StoredMessage{ChatID: fromChatID, MessageID: strconv.Itoa(messageID)}
	_, err := a.bot.Copy(tele.ChatID(to.ChatID), src)
	return err
}

func (a *Adapter) Download(ctx context.Context, file kit.FileRef) ([]byte, error) {
	rc, err := a.bot.File(&tele.File{FileID: file.FileID})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// InviteLink resolves the chat's primary invite link via getChat.
// Private chats and chats where the bot lacks privilege yield "".
func (a *Adapter) InviteLink(ctx context.Context, chatID int64) (string, error) {
	chat, err := a.bot.ChatByID(chatID)
	if err != nil {
		return "", err
	}
	return chat.InviteLink, nil
}
