package hxnav

import "golang.org/x/net/html"

// EventType names a dispatched DOM event.
type EventType string

const (
	EventClick  EventType = "click"
	EventSubmit EventType = "submit"
)

// Event is a user event dispatched through the engine's delegated
// listeners. Listeners run in registration order until one stops
// propagation.
type Event struct {
	Type   EventType
	Target *html.Node

	// Handled reports that a listener acted on the event (navigation,
	// action request, form submission).
	Handled bool

	// Err is the error of the action the event triggered, if any.
	Err error

	prevented bool
	stopped   bool
}

// NewEvent creates an event of typ targeting n.
func NewEvent(typ EventType, n *html.Node) *Event {
	return &Event{Type: typ, Target: n}
}

// PreventDefault cancels native handling.
func (ev *Event) PreventDefault() { ev.prevented = true }

// DefaultPrevented reports whether native handling was cancelled.
func (ev *Event) DefaultPrevented() bool { return ev.prevented }

// StopPropagation keeps the remaining listeners from running.
func (ev *Event) StopPropagation() { ev.stopped = true }

// PropagationStopped reports whether StopPropagation was called.
func (ev *Event) PropagationStopped() bool { return ev.stopped }
