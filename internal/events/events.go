package events

import "time"

type Kind string

const (
	RoomOpened Kind = "opened"
	RoomClosed Kind = "closed"
)

// RoomEvent reports a room entering or leaving the registry.
type RoomEvent struct {
	Code   string
	Kind   Kind
	Reason string
	At     time.Time
}

type Bus struct {
	Rooms chan RoomEvent
}

func NewBus() *Bus {
	return &Bus{
		Rooms: make(chan RoomEvent, 64),
	}
}

// Emit queues ev without blocking. It reports false when the buffer is full
// and the event was dropped.
func (b *Bus) Emit(ev RoomEvent) bool {
	if b == nil {
		return false
	}
	select {
	case b.Rooms <- ev:
		return true
	default:
		return false
	}
}
