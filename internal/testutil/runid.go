package testutil

import "strings"

// FixedRunIDGenerator names every run the same.
//
// Unlike engine.FixedGenerator which returns IDs in sequence, this generator
// never runs out. Scenarios use it so a scenario's run ID depends only on
// its name.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// ScenarioRunID derives the run ID for a named scenario:
// "Quorum Boundary" becomes "scenario-quorum-boundary".
func ScenarioRunID(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return "scenario"
	}
	return "scenario-" + strings.Join(fields, "-")
}

// Generate returns the fixed run ID.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
