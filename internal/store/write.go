package store

import (
	"context"
	"fmt"
	"log/slog"
)

// WriteRun stores rec in a single transaction. Returns whether the run was
// new: writing a run id that is already stored changes nothing and returns
// false.
func (s *Store) WriteRun(ctx context.Context, rec Record) (inserted bool, err error) {
	run := rec.Run
	program, err := marshalProgram(run.Program)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	yielded, err := marshalYielded(run.Yielded)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, agent_id, program_hash, program, trace_digest, instructions_executed,
		 execution_time_ms, halted, error_code, error_message, yielded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.AgentID,
		run.ProgramHash,
		program,
		run.TraceDigest,
		run.InstructionsExecuted,
		run.ExecutionTimeMS,
		run.Halted,
		run.ErrorCode,
		run.ErrorMessage,
		yielded,
		s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already stored; its events and proposals came with it.
		return false, nil
	}

	for _, e := range rec.Events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trace_events
			(run_id, seq, severity, domain, event_type, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, e.Seq, int(e.Severity), e.Domain, e.EventType, e.Message)
		if err != nil {
			return false, fmt.Errorf("write run: insert event %d: %w", e.Seq, err)
		}
	}

	for _, p := range rec.Proposals {
		eligible, err := marshalAgents(p.Eligible)
		if err != nil {
			return false, fmt.Errorf("write run: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO proposals
			(run_id, proposal_id, proposer, payload, status, threshold, approvals, rejections, eligible)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			p.ID,
			p.Proposer,
			p.Payload.String(),
			p.Status.String(),
			p.Threshold,
			p.Approvals,
			p.Rejections,
			eligible,
		)
		if err != nil {
			return false, fmt.Errorf("write run: insert proposal %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}

	slog.Debug("run stored",
		"run_id", run.ID,
		"events", len(rec.Events),
		"proposals", len(rec.Proposals),
	)
	return true, nil
}
