package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/scrawl/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []trace.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages, empty when all hold.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertProposalStatus:
			err = assertProposalStatus(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// eventName is the "domain.event_type" form assertions refer to.
func eventName(e trace.Event) string {
	return e.Domain + "." + e.EventType
}

// assertTraceContains checks for an event matching name, message substring
// and severity.
func assertTraceContains(events []trace.Event, a Assertion) error {
	var sev trace.Severity
	if a.Severity != "" {
		var err error
		if sev, err = trace.ParseSeverity(a.Severity); err != nil {
			return err
		}
	}
	for _, e := range events {
		if eventName(e) != a.Event {
			continue
		}
		if a.Message != "" && !strings.Contains(e.Message, a.Message) {
			continue
		}
		if a.Severity != "" && e.Severity != sev {
			continue
		}
		return nil
	}

	expected := a.Event
	if a.Severity != "" {
		expected = a.Severity + " " + expected
	}
	if a.Message != "" {
		expected += fmt.Sprintf(" with message containing %q", a.Message)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that events first appear in the given order.
// Intervening events are allowed.
func assertTraceOrder(events []trace.Event, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range events {
		name := eventName(e)
		if _, seen := positions[name]; !seen {
			positions[name] = i + 1 // 1-indexed for readability
		}
	}

	for _, name := range a.Events {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", name),
				Trace:    events,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: events,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the event appears exactly Count times.
func assertTraceCount(events []trace.Event, a Assertion) error {
	count := 0
	for _, e := range events {
		if eventName(e) == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    events,
		}
	}
	return nil
}

// assertProposalStatus checks the stored status of one proposal.
func assertProposalStatus(result *Result, a Assertion) error {
	for _, p := range result.Proposals {
		if p.ID != a.Proposal {
			continue
		}
		if p.Status.String() != a.Status {
			return &AssertionError{
				Type:     AssertProposalStatus,
				Expected: fmt.Sprintf("proposal %d %s", a.Proposal, a.Status),
				Actual: fmt.Sprintf("proposal %d %s (%d approve, %d reject of %d)",
					p.ID, p.Status, p.Approvals, p.Rejections, len(p.Eligible)),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertProposalStatus,
		Expected: fmt.Sprintf("proposal %d %s", a.Proposal, a.Status),
		Actual:   "no such proposal",
	}
}
