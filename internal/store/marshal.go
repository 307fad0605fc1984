package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/isa"
	"github.com/roach88/scrawl/internal/synapse"
)

// marshalYielded stores scalars as tagged strings ("int:5", "float:2.5")
// so the int/float distinction and non-finite floats survive JSON.
func marshalYielded(values []engine.Scalar) (string, error) {
	tagged := make([]string, len(values))
	for i, v := range values {
		if v.IsFloat() {
			tagged[i] = "float:" + strconv.FormatFloat(v.Float(), 'g', -1, 64)
		} else {
			tagged[i] = "int:" + strconv.FormatInt(v.Int(), 10)
		}
	}
	data, err := json.Marshal(tagged)
	if err != nil {
		return "", fmt.Errorf("marshal yielded: %w", err)
	}
	return string(data), nil
}

func unmarshalYielded(data string) ([]engine.Scalar, error) {
	var tagged []string
	if err := json.Unmarshal([]byte(data), &tagged); err != nil {
		return nil, fmt.Errorf("unmarshal yielded: %w", err)
	}
	out := make([]engine.Scalar, len(tagged))
	for i, t := range tagged {
		kind, text, ok := strings.Cut(t, ":")
		if !ok {
			return nil, fmt.Errorf("unmarshal yielded: untagged value %q", t)
		}
		switch kind {
		case "int":
			v, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal yielded: %w", err)
			}
			out[i] = engine.IntScalar(v)
		case "float":
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal yielded: %w", err)
			}
			out[i] = engine.FloatScalar(v)
		default:
			return nil, fmt.Errorf("unmarshal yielded: unknown tag %q", kind)
		}
	}
	return out, nil
}

func marshalAgents(agents []int64) (string, error) {
	if agents == nil {
		agents = []int64{}
	}
	data, err := json.Marshal(agents)
	if err != nil {
		return "", fmt.Errorf("marshal agents: %w", err)
	}
	return string(data), nil
}

func unmarshalAgents(data string) ([]int64, error) {
	agents := []int64{}
	if err := json.Unmarshal([]byte(data), &agents); err != nil {
		return nil, fmt.Errorf("unmarshal agents: %w", err)
	}
	return agents, nil
}

// Programs are stored as compressed SYNAPSE frames.
func marshalProgram(prog []isa.Instruction) ([]byte, error) {
	frame, err := synapse.Encode(prog, synapse.Options{Compress: true})
	if err != nil {
		return nil, fmt.Errorf("marshal program: %w", err)
	}
	return frame, nil
}

func unmarshalProgram(frame []byte) ([]isa.Instruction, error) {
	prog, _, err := synapse.Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("unmarshal program: %w", err)
	}
	return prog, nil
}
