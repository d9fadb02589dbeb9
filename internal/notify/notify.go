// Package notify delivers user-facing messages such as the product-updated
// email.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	// HTML is the message body.
	HTML string
}

// Notifier sends messages. Implementations must be safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

// Send calls f.
func (f Func) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

var ErrNoRecipient = errors.New("message has no recipient")

// LogNotifier writes messages to a logger instead of delivering them. It is
// the default when no mail transport is configured.
type LogNotifier struct {
	From   string
	Logger *slog.Logger
}

func NewLogNotifier(from string, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{From: from, Logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	n.Logger.InfoContext(ctx, "mail",
		"from", n.From,
		"to", msg.To,
		"subject", msg.Subject,
		"html", msg.HTML)
	return nil
}

// Discard drops every message.
var Discard Notifier = Func(func(context.Context, Message) error { return nil })
