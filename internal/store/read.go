package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/scrawl/internal/consensus"
	"github.com/roach88/scrawl/internal/trace"
)

const runColumns = `id, agent_id, program_hash, program, trace_digest, instructions_executed,
	execution_time_ms, halted, error_code, error_message, yielded, created_at`

// ReadRun retrieves a single run by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, oldest first. limit <= 0 returns
// every run.
//
// Returns an empty slice (not nil) if nothing is stored.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY created_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	slices.Reverse(runs)
	return runs, nil
}

// ReadTrace returns the run's events at or above min, ordered by seq.
//
// Returns an empty slice (not nil) if no events match.
func (s *Store) ReadTrace(ctx context.Context, runID string, min trace.Severity) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, severity, domain, event_type, message
		FROM trace_events
		WHERE run_id = ? AND severity >= ?
		ORDER BY seq ASC
	`, runID, int(min))
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var e trace.Event
		var sev int
		if err := rows.Scan(&e.Seq, &sev, &e.Domain, &e.EventType, &e.Message); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		e.Severity = trace.Severity(sev)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return events, nil
}

// ReadProposals returns the proposal outcomes a run left behind, ordered
// by proposal id.
//
// Returns an empty slice (not nil) if the run proposed nothing.
func (s *Store) ReadProposals(ctx context.Context, runID string) ([]Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, proposal_id, proposer, payload, status, threshold, approvals, rejections, eligible
		FROM proposals
		WHERE run_id = ?
		ORDER BY proposal_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	out := []Proposal{}
	for rows.Next() {
		var p Proposal
		var status, eligible string
		if err := rows.Scan(&p.RunID, &p.ID, &p.Proposer, &p.Payload, &status,
			&p.Threshold, &p.Approvals, &p.Rejections, &eligible); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		if p.Status, err = consensus.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("scan proposal %d: %w", p.ID, err)
		}
		if p.Eligible, err = unmarshalAgents(eligible); err != nil {
			return nil, fmt.Errorf("scan proposal %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return out, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		program   []byte
		yielded   string
		createdMS int64
	)
	err := row.Scan(
		&run.ID,
		&run.AgentID,
		&run.ProgramHash,
		&program,
		&run.TraceDigest,
		&run.InstructionsExecuted,
		&run.ExecutionTimeMS,
		&run.Halted,
		&run.ErrorCode,
		&run.ErrorMessage,
		&yielded,
		&createdMS,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.Program, err = unmarshalProgram(program); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	if run.Yielded, err = unmarshalYielded(yielded); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	run.CreatedAt = time.UnixMilli(createdMS).UTC()
	return run, nil
}
