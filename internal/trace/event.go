package trace

import "fmt"

// Event is one audit record.
type Event struct {
	Seq       int64    `json:"seq" yaml:"seq"`
	Severity  Severity `json:"severity" yaml:"severity"`
	Domain    string   `json:"domain" yaml:"domain"`
	EventType string   `json:"event_type" yaml:"event_type"`
	Message   string   `json:"message" yaml:"message"`
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %-5s %s.%s: %s", e.Seq, e.Severity, e.Domain, e.EventType, e.Message)
}

// Value returns the event as a canonical JSON tree for hashing and golden
// files.
func (e Event) Value() map[string]any {
	return map[string]any{
		"seq":        e.Seq,
		"severity":   e.Severity.String(),
		"domain":     e.Domain,
		"event_type": e.EventType,
		"message":    e.Message,
	}
}

// Values converts a slice of events with Value.
func Values(events []Event) []any {
	out := make([]any, len(events))
	for i, e := range events {
		out[i] = e.Value()
	}
	return out
}

// Filter returns the events at or above min, in order. The result is never
// nil.
func Filter(events []Event, min Severity) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Severity >= min {
			out = append(out, e)
		}
	}
	return out
}
