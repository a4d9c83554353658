package dispatch

// AttributeKey is a typed token for attaching metadata to a listener.
// Keys compare by identity: two keys created with the same name are distinct.
type AttributeKey[T any] struct {
	id *attributeID
}

type attributeID struct {
	name string
}

// NewAttributeKey creates a key. name is used only for diagnostics.
func NewAttributeKey[T any](name string) AttributeKey[T] {
	return AttributeKey[T]{id: &attributeID{name: name}}
}

func (k AttributeKey[T]) String() string {
	if k.id == nil {
		return "<nil attribute>"
	}
	return k.id.name
}

// WithAttribute attaches value under key to the registered listener.
func WithAttribute[T any](key AttributeKey[T], value T) ListenerOption {
	return func(l *Listener) {
		if key.id == nil {
			return
		}
		if l.attributes == nil {
			l.attributes = make(map[*attributeID]any)
		}
		l.attributes[key.id] = value
	}
}

// Attribute reads the value stored under key on l.
func Attribute[T any](l *Listener, key AttributeKey[T]) (T, bool) {
	var zero T
	if l == nil || key.id == nil {
		return zero, false
	}
	v, ok := l.attributes[key.id]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
