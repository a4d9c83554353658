package domain

import "context"

// Channel is a platform adapter (Discord, Slack, Telegram, CLI, webhook).
// Start normalizes platform payloads into events and publishes them on the bus
// until ctx is cancelled.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
