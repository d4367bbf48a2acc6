package passes

import (
	"sync/atomic"
)

// EventKind -
type EventKind int

const (
	// EventStarted a pass started an external process.
	EventStarted EventKind = iota
	// EventFinished an external process started by a pass exited.
	EventFinished
	// EventProgress free-form progress report.
	EventProgress
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventProgress:
		return "progress"
	}
	return "unknown"
}

// Event is reported by a pass during Transform.
type Event struct {
	Kind   EventKind
	Pass   string
	Target Target
	// PID of the external process, 0 if none.
	PID    int
	Detail string
}

// Notifier is the observer a pass reports to while transforming. It never
// influences control flow, with one exception: a pass may poll Canceled and
// answer with ResultStop.
type Notifier interface {
	Notify(e Event)
	Canceled() bool
}

// NopNotifier -
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(Event) {}

// Canceled implements Notifier
func (NopNotifier) Canceled() bool { return false }

// OrNop returns n, or a NopNotifier when n is nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier{}
	}
	return n
}

// MultiNotifier fans events out to every notifier. It is canceled when any
// of them is.
type MultiNotifier []Notifier

// Notify implements Notifier
func (m MultiNotifier) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

// Canceled implements Notifier
func (m MultiNotifier) Canceled() bool {
	for _, n := range m {
		if n != nil && n.Canceled() {
			return true
		}
	}
	return false
}

// CancelNotifier carries a cancellation flag for passes to observe.
// Safe for concurrent use; Cancel is usually called from a signal handler.
type CancelNotifier struct {
	canceled int32
}

// Cancel -
func (c *CancelNotifier) Cancel() {
	atomic.StoreInt32(&c.canceled, 1)
}

// Notify implements Notifier
func (c *CancelNotifier) Notify(Event) {}

// Canceled implements Notifier
func (c *CancelNotifier) Canceled() bool {
	return atomic.LoadInt32(&c.canceled) == 1
}
