package mapa

import "context"

// NoopNotifier discards all notifications. Useful for tests and for
// deployments without an outbound mail channel.
type NoopNotifier struct{}

// NewNoopNotifier creates a Notifier that does nothing.
func NewNoopNotifier() Notifier { return &NoopNotifier{} }

func (n *NoopNotifier) Send(ctx context.Context, to, subject, html string) error { return nil }
