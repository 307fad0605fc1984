package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLogEmitAssignsSequence(t *testing.T) {
	l := NewLog()
	e1 := l.Emit(Info, "consensus", "propose", "proposal 1 opened")
	e2 := l.Emit(Warn, "consensus", "vote_dropped", "agent 9 ineligible")

	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, int64(2), e2.Seq)
	assert.Equal(t, 2, l.Len())
}

func TestLogEventsFiltersBySeverity(t *testing.T) {
	l := NewLog()
	l.Emit(Debug, "exec", "nop", "")
	l.Emit(Info, "identity", "derive", "")
	l.Emit(Warn, "consensus", "quorum_not_met", "")
	l.Emit(Error, "engine", "fault", "")
	l.Emit(Info, "consensus", "tally", "")

	all := l.Events(Debug)
	require.Len(t, all, 5)

	warn := l.Events(Warn)
	require.Len(t, warn, 2)
	assert.Equal(t, "quorum_not_met", warn[0].EventType)
	assert.Equal(t, "fault", warn[1].EventType)

	info := l.Events(Info)
	require.Len(t, info, 4)
	for i := 1; i < len(info); i++ {
		assert.Less(t, info[i-1].Seq, info[i].Seq, "filtered events keep emission order")
	}
}

func TestLogEventsEmptyNotNil(t *testing.T) {
	l := NewLog()
	events := l.Events(Debug)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestLogEventsReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Emit(Info, "exec", "yield", "R1")

	events := l.Events(Debug)
	events[0].Message = "tampered"

	assert.Equal(t, "R1", l.Events(Debug)[0].Message)
}

func TestLogHooksRunInOrder(t *testing.T) {
	l := NewLog()
	var calls []string
	l.AddHook(func(e Event) { calls = append(calls, "first:"+e.EventType) })
	l.AddHook(nil)
	l.AddHook(func(e Event) { calls = append(calls, "second:"+e.EventType) })

	l.Emit(Info, "exec", "halt", "")

	assert.Equal(t, []string{"first:halt", "second:halt"}, calls)
}

func TestLogHookSeesAppendedEvent(t *testing.T) {
	l := NewLog()
	var lenAtHook int
	l.AddHook(func(Event) { lenAtHook = l.Len() })

	l.Emit(Info, "exec", "halt", "")
	assert.Equal(t, 1, lenAtHook)
}

func TestLogHookPanicPropagates(t *testing.T) {
	l := NewLog()
	l.AddHook(func(Event) { panic("hook failed") })

	assert.PanicsWithValue(t, "hook failed", func() {
		l.Emit(Info, "exec", "halt", "")
	})
	// The event was appended before the hook ran
	assert.Equal(t, 1, l.Len())
}

func TestLogSince(t *testing.T) {
	l := NewLog()
	l.Emit(Info, "a", "one", "")
	l.Emit(Info, "a", "two", "")
	l.Emit(Info, "a", "three", "")

	got := l.Since(1)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].EventType)
	assert.Empty(t, l.Since(3))
	assert.Len(t, l.Since(-1), 3)
}

func TestLogSharedClock(t *testing.T) {
	c := NewClockAt(10)
	l := NewLog(WithClock(c))
	e := l.Emitf(Info, "exec", "yield", "R%d=%d", 1, 7)

	assert.Equal(t, int64(11), e.Seq)
	assert.Equal(t, "R1=7", e.Message)
	assert.Same(t, c, l.Clock())
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
	}{
		{"DEBUG", Debug},
		{"info", Info},
		{"Warn", Warn},
		{"warning", Warn},
		{" ERROR ", Error},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseSeverity("FATAL")
	assert.Error(t, err)
}

func TestSeverityYAML(t *testing.T) {
	var cfg struct {
		Min Severity `yaml:"min"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("min: warn\n"), &cfg))
	assert.Equal(t, Warn, cfg.Min)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, "min: WARN\n", string(out))
}

func TestEventString(t *testing.T) {
	e := Event{Seq: 3, Severity: Warn, Domain: "consensus", EventType: "vote_dropped", Message: "agent 9"}
	assert.Equal(t, "#3 WARN  consensus.vote_dropped: agent 9", e.String())
}
