// Package transport defines the outbound messaging contract used for
// operator alerts. The bot never reads chats; adapters only send.
package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int // forum topic, 0 if none
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

type Notification struct {
	Channel  string // "telegram"
	Priority int    // 0 low .. 10 high
	Target   ChatTarget
	Text     string
	Options  *SendOptions
}

// Sender delivers one text message. Long texts may be split by the adapter.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

func (f SenderFunc) SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error {
	return f(ctx, to, text, opt)
}
