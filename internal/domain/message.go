package domain

import "time"

// Base holds the fields every event carries. Adapters embed it in their
// concrete event types and add capability methods on top.
type Base struct {
	EventID       string
	ComponentName string
	Bot           string
	Timestamp     time.Time
}

func (b Base) ID() string        { return b.EventID }
func (b Base) Component() string { return b.ComponentName }
func (b Base) BotID() string     { return b.Bot }
func (b Base) Time() time.Time   { return b.Timestamp }
