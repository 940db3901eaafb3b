package kit

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

// ChatKind mirrors the platform chat types we track in metrics.
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// Message is a transport-neutral view of an incoming message. Media fields
// carry platform file references, never bytes; at most one media field is set
// for a well-formed message.
type Message struct {
	ID           int
	ChatID       int64
	ChatKind     ChatKind
	ChatTitle    string
	ChatUsername string
	FromID       int64
	FromUsername string

	Text      string
	Caption   string
	ParseMode string

	Photo    *FileRef
	Video    *FileRef
	Document *FileRef
	Audio    *AudioRef

	// ForwardedChannelID/ForwardedMessageID are set when the message was
	// forwarded from a channel post (0 otherwise).
	ForwardedChannelID int64
	ForwardedMessageID int
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// FileRef is an opaque platform file reference that can be re-sent without
// re-uploading bytes.
type FileRef struct {
	FileID string
}

// AudioRef extends FileRef with audio metadata and the optional thumbnail
// reference. Thumbnails cannot be re-attached by reference; see AudioUpload.
type AudioRef struct {
	FileID      string
	ThumbFileID string
	Title       string
	Performer   string
	Duration    int
}

// AudioUpload carries already-downloaded bytes for a multipart upload.
// The same buffers are reused across recipients.
type AudioUpload struct {
	Data      []byte
	Thumbnail []byte // nil when the source has no thumbnail
	Title     string
	Performer string
	Duration  int
	Caption   string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter abstracts the chat platform. Implementations must be safe for
// concurrent sends; Start delivers incoming updates to out until Stop or
// context cancellation.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, file FileRef, caption string, opt *SendOptions) (MessageRef, error)
	SendVideo(ctx context.Context, to ChatTarget, file FileRef, caption string, opt *SendOptions) (MessageRef, error)
	SendDocument(ctx context.Context, to ChatTarget, file FileRef, caption string, opt *SendOptions) (MessageRef, error)
	SendAudio(ctx context.Context, to ChatTarget, audio AudioUpload, opt *SendOptions) (MessageRef, error)

	// Copy re-posts an existing message into to without re-uploading bytes,
	// preserving formatting.
	Copy(ctx context.Context, to ChatTarget, fromChatID int64, messageID int) error

	Download(ctx context.Context, file FileRef) ([]byte, error)

	// InviteLink resolves the primary invite link of a chat. Best-effort:
	// returns "" without error for chats that have none.
	InviteLink(ctx context.Context, chatID int64) (string, error)
}
