package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scrawl/internal/consensus"
	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/trace"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Agent is the acting agent when the run starts.
	Agent int64 `yaml:"agent,omitempty"`

	// Macros lists directories of CUE macro files available to Program.
	// Paths are relative to the scenario file location.
	Macros []string `yaml:"macros,omitempty"`

	// Setup seeds registers before the run.
	Setup Setup `yaml:"setup,omitempty"`

	// Program is rosetta pseudocode, compiled strictly.
	Program string `yaml:"program"`

	// Expect describes the run outcome.
	Expect Expect `yaml:"expect"`

	// Assertions validate the stored trace and proposals.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Setup seeds the register file.
type Setup struct {
	Scalars   []ScalarSetup   `yaml:"scalars,omitempty"`
	Baselines []BaselineSetup `yaml:"baselines,omitempty"`
	Tensors   []TensorSetup   `yaml:"tensors,omitempty"`
}

// ScalarSetup writes an int or float into an R register.
type ScalarSetup struct {
	Reg   string `yaml:"reg"`
	Value any    `yaml:"value"`
}

// BaselineSetup derives a baseline into a CR register. Tamper, when set,
// corrupts that chain element so verification fails.
type BaselineSetup struct {
	Reg    string `yaml:"reg"`
	Seed   int64  `yaml:"seed"`
	Depth  int    `yaml:"depth"`
	Tamper *int   `yaml:"tamper,omitempty"`
}

// TensorSetup writes a tensor into a TR register.
type TensorSetup struct {
	Reg   string    `yaml:"reg"`
	Shape []int     `yaml:"shape"`
	Data  []float64 `yaml:"data"`
}

// Expect describes the run outcome. Unset fields are not checked.
type Expect struct {
	// Error is the runtime error code the run must fault with; empty
	// means the run must succeed.
	Error string `yaml:"error,omitempty"`

	Halted *bool `yaml:"halted,omitempty"`

	// Yielded lists the yielded values in order. Integers match integer
	// scalars, floats match float scalars within Tolerance.
	Yielded []any `yaml:"yielded,omitempty"`

	// Registers maps R registers to expected values.
	Registers map[string]any `yaml:"registers,omitempty"`

	// Tensors maps TR registers to expected contents.
	Tensors map[string]TensorExpect `yaml:"tensors,omitempty"`
}

// TensorExpect is the expected shape and data of a tensor register.
type TensorExpect struct {
	Shape []int     `yaml:"shape"`
	Data  []float64 `yaml:"data"`
}

// Assertion validates the stored trace or proposal table.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an event appears
	// - "trace_order": Check events first appear in order
	// - "trace_count": Check an event appears exactly N times
	// - "proposal_status": Check a proposal's final status
	Type string `yaml:"type"`

	// Event is "domain.event_type" (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Message is a substring the event message must contain (trace_contains).
	Message string `yaml:"message,omitempty"`

	// Severity, when set, must equal the event severity (trace_contains).
	Severity string `yaml:"severity,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Proposal and Status are used by proposal_status.
	Proposal int64  `yaml:"proposal,omitempty"`
	Status   string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains  = "trace_contains"
	AssertTraceOrder     = "trace_order"
	AssertTraceCount     = "trace_count"
	AssertProposalStatus = "proposal_status"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Macro directories resolve relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, dir := range s.Macros {
		if !filepath.IsAbs(dir) {
			s.Macros[i] = filepath.Join(base, dir)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates one scenario. Macro paths are left
// as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("scenario %q defined in both %s and %s", s.Name, prev, path)
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if s.Agent < 0 {
		return fmt.Errorf("agent must be non-negative")
	}

	for i, sc := range s.Setup.Scalars {
		if err := checkReg(sc.Reg, isa.BankScalar); err != nil {
			return fmt.Errorf("setup.scalars[%d]: %w", i, err)
		}
		if _, err := toScalar(sc.Value); err != nil {
			return fmt.Errorf("setup.scalars[%d]: %w", i, err)
		}
	}
	for i, b := range s.Setup.Baselines {
		if err := checkReg(b.Reg, isa.BankBaseline); err != nil {
			return fmt.Errorf("setup.baselines[%d]: %w", i, err)
		}
		if b.Depth < 1 {
			return fmt.Errorf("setup.baselines[%d]: depth must be at least 1", i)
		}
		if b.Tamper != nil && (*b.Tamper < 0 || *b.Tamper >= b.Depth) {
			return fmt.Errorf("setup.baselines[%d]: tamper index %d outside [0, %d)", i, *b.Tamper, b.Depth)
		}
	}
	for i, ts := range s.Setup.Tensors {
		if err := checkReg(ts.Reg, isa.BankTensor); err != nil {
			return fmt.Errorf("setup.tensors[%d]: %w", i, err)
		}
	}

	for reg, want := range s.Expect.Registers {
		if err := checkReg(reg, isa.BankScalar); err != nil {
			return fmt.Errorf("expect.registers: %w", err)
		}
		if _, err := toScalar(want); err != nil {
			return fmt.Errorf("expect.registers[%s]: %w", reg, err)
		}
	}
	for reg := range s.Expect.Tensors {
		if err := checkReg(reg, isa.BankTensor); err != nil {
			return fmt.Errorf("expect.tensors: %w", err)
		}
	}
	for i, v := range s.Expect.Yielded {
		if _, err := toScalar(v); err != nil {
			return fmt.Errorf("expect.yielded[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func checkReg(name string, bank isa.Bank) error {
	reg, ok := isa.ParseReg(name)
	if !ok {
		return fmt.Errorf("%q is not a register", name)
	}
	if reg.Bank != bank {
		return fmt.Errorf("%s is not a %s register", name, bank.Prefix())
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
		if a.Severity != "" {
			if _, err := trace.ParseSeverity(a.Severity); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertProposalStatus:
		if _, err := consensus.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
