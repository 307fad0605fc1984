package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/scrawl/internal/engine"
)

// ReplayReport pairs a stored run with the outcome of running it again.
type ReplayReport struct {
	Run    Run
	Replay *engine.ReplayResult
}

// Match reports whether the replay reproduced the stored trace digest.
func (r *ReplayReport) Match() bool { return r.Replay.Match }

// ReplayRun re-executes a stored run's program as the same agent on a fresh
// VM and compares trace digests. opts configure the replay VM.
func (s *Store) ReplayRun(ctx context.Context, id string, opts ...engine.Option) (*ReplayReport, error) {
	run, err := s.ReadRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("replay run: %w", err)
	}

	out, err := engine.Replay(run.Program, run.AgentID, run.TraceDigest, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", id, err)
	}

	if !out.Match {
		slog.Warn("replay diverged",
			"run_id", id,
			"stored_digest", run.TraceDigest,
			"replay_digest", out.Digest,
		)
	}
	return &ReplayReport{Run: run, Replay: out}, nil
}
