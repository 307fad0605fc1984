package trace

import (
	"fmt"
	"strings"
)

// Severity orders events for filtering. Higher is more severe.
type Severity int

const (
	Debug Severity = iota
	Info
	Warn
	Error
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
}

// ParseSeverity accepts the names printed by String, case-insensitively,
// plus "WARNING".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return Debug, nil
	case "INFO":
		return Info, nil
	case "WARN", "WARNING":
		return Warn, nil
	case "ERROR":
		return Error, nil
	default:
		return Debug, fmt.Errorf("unknown severity %q (want DEBUG, INFO, WARN or ERROR)", s)
	}
}

// MarshalText implements encoding.TextMarshaler so severities appear by
// name in YAML and JSON.
func (s Severity) MarshalText() ([]byte, error) {
	if s < Debug || s > Error {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
