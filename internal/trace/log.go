package trace

import "fmt"

// Hook observes an event after it has been appended.
type Hook func(Event)

// Emitter is the write side of a Log. Opcode handlers depend on this rather
// than on *Log.
type Emitter interface {
	Emit(sev Severity, domain, eventType, message string) Event
}

// Log is an append-only event buffer with synchronous hooks.
//
// A Log is owned by one VM and written only from its dispatch loop, so it
// takes no locks. Callers sharing a Log across goroutines must serialize.
type Log struct {
	clock  *Clock
	events []Event
	hooks  []Hook
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithClock stamps events from c instead of a fresh clock.
func WithClock(c *Clock) LogOption {
	return func(l *Log) {
		l.clock = c
	}
}

// NewLog creates an empty log.
func NewLog(opts ...LogOption) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	if l.clock == nil {
		l.clock = NewClock()
	}
	return l
}

// Emit stamps, appends and publishes an event, then returns it.
func (l *Log) Emit(sev Severity, domain, eventType, message string) Event {
	e := Event{
		Seq:       l.clock.Next(),
		Severity:  sev,
		Domain:    domain,
		EventType: eventType,
		Message:   message,
	}
	l.events = append(l.events, e)
	for _, h := range l.hooks {
		h(e)
	}
	return e
}

// Emitf is Emit with a format string.
func (l *Log) Emitf(sev Severity, domain, eventType, format string, args ...any) Event {
	return l.Emit(sev, domain, eventType, fmt.Sprintf(format, args...))
}

// AddHook registers h. Hooks run in registration order.
func (l *Log) AddHook(h Hook) {
	if h == nil {
		return
	}
	l.hooks = append(l.hooks, h)
}

// Events returns a copy of the events at or above min.
func (l *Log) Events(min Severity) []Event {
	return Filter(l.events, min)
}

// Since returns a copy of the events appended after the first n.
func (l *Log) Since(n int) []Event {
	if n >= len(l.events) {
		return []Event{}
	}
	if n < 0 {
		n = 0
	}
	out := make([]Event, len(l.events)-n)
	copy(out, l.events[n:])
	return out
}

// Len returns the number of events appended so far.
func (l *Log) Len() int { return len(l.events) }

// Clock returns the clock stamping this log.
func (l *Log) Clock() *Clock { return l.clock }
