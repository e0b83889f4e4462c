// Package notify delivers operator alerts. The executor and monitors use it
// for the conditions that must not drown in logs, above all a failed
// compensating liquidation.
package notify

import (
	"context"
	"log/slog"
)

// Sender is one delivery channel for alerts.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every configured sender. A delivery failure
// is logged, never propagated; alerting must not break the trading path.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over the given senders. With no senders it
// degrades to log-only.
func NewNotifier(logger *slog.Logger, senders ...Sender) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With("component", "notifier"),
	}
}

// Alert delivers the message through every sender.
func (n *Notifier) Alert(ctx context.Context, title, message string) {
	n.logger.Warn("operator alert", "title", title, "message", message)
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("failed to deliver alert", "sender", s.Name(), "error", err)
		}
	}
}
