package domain

// MessageBus carries normalized events from channels to the router.
type MessageBus interface {
	Publish(ev Event)
	Subscribe() <-chan Event
	Close()
}
