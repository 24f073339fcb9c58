// Package trigger carries the external events that start, steer, and end a
// conversation: the line being picked up or hung up, and digits dialed while
// the line is open.
package trigger

import "time"

type Kind int

const (
	KindPickedUp Kind = iota
	KindHungUp
	KindDigitDialed
)

func (k Kind) String() string {
	switch k {
	case KindPickedUp:
		return "picked up"
	case KindHungUp:
		return "hung up"
	case KindDigitDialed:
		return "digit dialed"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind Kind
	// Digit is only meaningful for KindDigitDialed.
	Digit int
	At    time.Time
}

// Source delivers trigger events in the order they occurred. The channel is
// closed when the source shuts down.
type Source interface {
	Events() <-chan Event
}

// Feed is an in-memory Source fed by whatever surfaces the physical events
// (a console, a GPIO loop, a test).
type Feed struct {
	events chan Event
}

func NewFeed() *Feed {
	return &Feed{events: make(chan Event, 16)}
}

func (f *Feed) Events() <-chan Event {
	return f.events
}

// Emit enqueues an event, dropping it if the consumer has fallen far behind.
func (f *Feed) Emit(kind Kind) {
	f.emit(Event{Kind: kind, At: time.Now()})
}

func (f *Feed) EmitDigit(digit int) {
	f.emit(Event{Kind: KindDigitDialed, Digit: digit, At: time.Now()})
}

func (f *Feed) emit(event Event) {
	select {
	case f.events <- event:
	default:
	}
}

func (f *Feed) Close() {
	close(f.events)
}
