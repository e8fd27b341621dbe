package service

import (
	"context"
	"fmt"
	"strings"

	"tweetgram/internal/models"
	"tweetgram/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ChatNotifier delivers one formatted message to the chat transport
type ChatNotifier interface {
	DeliverToChat(ctx context.Context, text string) error
}

// Forwarder turns one inbound message into a chat delivery. It holds no
// state; dedup bookkeeping belongs to the poller.
type Forwarder struct {
	notifier ChatNotifier
	logger   *logrus.Logger
}

// NewForwarder creates a forwarder
func NewForwarder(notifier ChatNotifier, logger *logrus.Logger) *Forwarder {
	return &Forwarder{
		notifier: notifier,
		logger:   logger,
	}
}

// Forward formats the message and delivers it. The delivery is a single
// call: either the whole message arrives or the error propagates to the
// caller, which marks nothing processed.
func (f *Forwarder) Forward(ctx context.Context, msg models.InboundMessage) error {
	formatted := FormatInbound(msg)
	if err := f.notifier.DeliverToChat(ctx, formatted); err != nil {
		return fmt.Errorf("failed to deliver message %s to chat: %w", msg.ID, err)
	}

	f.logger.WithField("message_id", privacy.MaskMessageID(msg.ID)).Info("Forwarded inbound message to chat")
	return nil
}

// FormatInbound renders one inbound private message for the chat interface
func FormatInbound(msg models.InboundMessage) string {
	username := msg.Username
	if username == "" {
		username = fmt.Sprintf("user_%s", msg.SenderID)
	}
	name := msg.SenderName
	if name == "" {
		name = "Unknown User"
	}
	text := msg.Text
	if text == "" {
		text = "[no text content]"
	}
	timeStr := "unknown time"
	if !msg.Timestamp.IsZero() {
		timeStr = msg.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	var b strings.Builder
	b.WriteString("New direct message\n\n")
	fmt.Fprintf(&b, "From: @%s (%s)\n", username, name)
	fmt.Fprintf(&b, "Time: %s\n", timeStr)
	fmt.Fprintf(&b, "Message: %s\n", text)
	fmt.Fprintf(&b, "\nMessage ID: %s", msg.ID)

	if len(msg.Media) > 0 {
		types := make([]string, 0, len(msg.Media))
		for _, m := range msg.Media {
			t := m.Type
			if t == "" {
				t = "unknown"
			}
			types = append(types, t)
		}
		fmt.Fprintf(&b, "\nMedia: %d file(s) (%s)", len(msg.Media), strings.Join(types, ", "))
	}

	return b.String()
}
