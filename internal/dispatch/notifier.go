// Package dispatch periodically serves the best assets per segment to
// notification channels, editing previous messages in place when it can.
package dispatch

import (
	"context"
	"errors"
)

var (
	// ErrNotModified means the edit target already had this content.
	// Treated as success everywhere.
	ErrNotModified = errors.New("message not modified")

	// ErrMessageGone means the edit target no longer exists and the
	// caller should send a fresh message instead.
	ErrMessageGone = errors.New("message gone")
)

// Notifier delivers and edits channel messages. The production
// implementation speaks the Telegram bot API; tests use fakes.
type Notifier interface {
	// Send posts a new message and returns its identifier.
	Send(ctx context.Context, channelID int64, text string) (int64, error)

	// Edit replaces the text of an existing message. Returns
	// ErrNotModified when the content is unchanged and ErrMessageGone
	// when the message cannot be edited anymore.
	Edit(ctx context.Context, channelID, messageID int64, text string) error
}
