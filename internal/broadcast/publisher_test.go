package broadcast

import (
	"context"
	"errors"
	"testing"

	"argbot/internal/kit"
	"argbot/pkg/logx"
)

type captureChannel struct {
	published [][]byte
	err       error
}

func (c *captureChannel) PublishBroadcast(ctx context.Context, payload []byte) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, payload)
	return nil
}

func TestClassifyPriorityOrder(t *testing.T) {
	photo := &kit.FileRef{FileID: "p"}
	video := &kit.FileRef{FileID: "v"}
	doc := &kit.FileRef{FileID: "d"}
	audio := &kit.AudioRef{FileID: "a"}

	cases := []struct {
		name string
		msg  kit.Message
		want Kind
	}{
		{"text wins over everything", kit.Message{Text: "t", Photo: photo, Audio: audio}, KindText},
		{"photo over video", kit.Message{Photo: photo, Video: video}, KindPhoto},
		{"video over document", kit.Message{Video: video, Document: doc}, KindVideo},
		{"document over audio", kit.Message{Document: doc, Audio: audio}, KindDocument},
		{"audio alone", kit.Message{Audio: audio}, KindAudio},
	}
	for _, tc := range cases {
		env, err := Classify(tc.msg)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if env.ContentType != tc.want {
			t.Fatalf("%s: classified as %s, want %s", tc.name, env.ContentType, tc.want)
		}
	}
}

func TestClassifyNoContent(t *testing.T) {
	if _, err := Classify(kit.Message{}); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
}

func TestClassifyCarriesAudioMetadata(t *testing.T) {
	env, err := Classify(kit.Message{
		Caption: "listen",
		Audio:   &kit.AudioRef{FileID: "a", ThumbFileID: "th", Title: "song", Performer: "band", Duration: 180},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if env.ThumbFileID != "th" || env.Title != "song" || env.Performer != "band" || env.Duration != 180 || env.Caption != "listen" {
		t.Fatalf("audio metadata lost: %+v", env)
	}
}

func TestPublishMessagePublishesExactlyOnce(t *testing.T) {
	ch := &captureChannel{}
	p := NewPublisher(ch, logx.Nop())

	kind, err := p.PublishMessage(context.Background(), kit.Message{Text: "announce", ParseMode: "HTML"})
	if err != nil {
		t.Fatalf("PublishMessage: %v", err)
	}
	if kind != KindText {
		t.Fatalf("kind = %s", kind)
	}
	if len(ch.published) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(ch.published))
	}
	env, err := Decode(ch.published[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Text != "announce" || env.ParseMode != "HTML" {
		t.Fatalf("payload mismatch: %+v", env)
	}
}

func TestPublishMessageNoContentPublishesNothing(t *testing.T) {
	ch := &captureChannel{}
	p := NewPublisher(ch, logx.Nop())

	if _, err := p.PublishMessage(context.Background(), kit.Message{}); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
	if len(ch.published) != 0 {
		t.Fatalf("published %d envelopes, want 0", len(ch.published))
	}
}

func TestPublishRawAndForward(t *testing.T) {
	ch := &captureChannel{}
	p := NewPublisher(ch, logx.Nop())

	if err := p.PublishRaw(context.Background(), 42, 7); err != nil {
		t.Fatalf("PublishRaw: %v", err)
	}
	if err := p.PublishForward(context.Background(), -1001, 9); err != nil {
		t.Fatalf("PublishForward: %v", err)
	}

	raw, _ := Decode(ch.published[0])
	if raw.ContentType != KindRawMessage || raw.ChatID != 42 || raw.MessageID != 7 {
		t.Fatalf("raw envelope: %+v", raw)
	}
	fwd, _ := Decode(ch.published[1])
	if fwd.ContentType != KindChannelForward || fwd.ChatID != -1001 || fwd.MessageID != 9 {
		t.Fatalf("forward envelope: %+v", fwd)
	}
}

func TestPublishChannelErrorSurfaces(t *testing.T) {
	ch := &captureChannel{err: errors.New("redis down")}
	p := NewPublisher(ch, logx.Nop())
	if _, err := p.PublishMessage(context.Background(), kit.Message{Text: "x"}); err == nil {
		t.Fatal("expected channel error")
	}
}
