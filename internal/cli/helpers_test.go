package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/rosetta"
	"github.com/roach88/scrawl/internal/store"
	"github.com/roach88/scrawl/internal/testutil"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// testResponse mirrors CLIResponse with the payload left raw.
type testResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
	RunID  string          `json:"run_id"`
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string, data any) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func program(name string) string {
	return filepath.Join("testdata", "programs", name)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// seedRun compiles src, runs it as agent and stores the run under id.
func seedRun(t *testing.T, dbPath, id, src string, agent int64) store.Record {
	t.Helper()
	prog := rosetta.MustCompile(src)

	vm := engine.New(
		engine.WithAgentID(agent),
		engine.WithClock(testutil.FrozenClock()),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(id)),
	)
	res, runErr := vm.Execute(prog)
	rec, err := store.Capture(vm, prog, res, runErr)
	require.NoError(t, err)

	st, err := store.Open(dbPath, store.WithClock(testutil.FrozenClock()))
	require.NoError(t, err)
	defer st.Close()
	_, err = st.WriteRun(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

const (
	heartbeatSrc = `CR0 = identity.derive(seed=0xCAFE, depth=16)
R1 = identity.verify(CR0)
yield(R1)
halt
`
	voteSrc = `R0 = load(7)
consensus.propose(id=1, payload=R0, agents=[0, 1, 2])
consensus.quorum(1, 0.66)
consensus.vote(1, 0, approve)
consensus.vote(1, 1, approve)
consensus.vote(1, 2, reject)
R1 = consensus.commit(id=1)
yield(R1)
halt
`
	duplicateSrc = `R0 = load(5)
consensus.propose(id=1, payload=R0, agents=[0])
consensus.propose(id=1, payload=R0, agents=[0])
`
)
