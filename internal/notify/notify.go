// Package notify raises operator alerts through Pushover.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gregdel/pushover"

	"memebot/pkg/memebot"
)

// Notifier sends Pushover alerts. With empty credentials it stays disabled
// and every Notify call is a logged no-op, so wiring it unconditionally is safe.
type Notifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
	logger    *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates a notifier for the given application token and user key.
func New(appToken, userKey string, options ...Option) *Notifier {
	notifier := &Notifier{logger: slog.Default()}
	for _, option := range options {
		option(notifier)
	}
	if appToken == "" || userKey == "" {
		notifier.logger.Info("pushover alerts disabled, credentials not configured")
		return notifier
	}

	notifier.app = pushover.New(appToken)
	notifier.recipient = pushover.NewRecipient(userKey)

	return notifier
}

// Enabled reports whether alerts will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.app != nil
}

// Notify sends one alert.
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	if !n.Enabled() {
		n.logger.Debug("dropping alert, pushover disabled", "title", title)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := n.app.SendMessage(&pushover.Message{Title: title, Message: message}, n.recipient); err != nil {
		n.logger.Error("send pushover alert", "title", title, "error", err)
		return fmt.Errorf("send alert: %w", err)
	}

	return nil
}

var _ memebot.Notifier = (*Notifier)(nil)
