package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	AgentID       int64  `json:"agent_id"`
	StoredDigest  string `json:"stored_digest"`
	ReplayDigest  string `json:"replay_digest"`
	StoredFault   string `json:"stored_fault,omitempty"`
	ReplayFault   string `json:"replay_fault,omitempty"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay stored runs and verify determinism",
		Long: `Re-execute stored runs on a fresh VM and compare trace digests.

Each run's program is decoded from the database and executed again as the
same agent. A run is deterministic when the replayed trace digest equals
the stored one.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (digest differs)
  2 - Command error (database not found, etc.)

Examples:
  scrawl replay --db ./scrawl.db
  scrawl replay --db ./scrawl.db --run 0192f3a4-...
  scrawl replay --db ./scrawl.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	// Get run IDs to process
	var ids []string
	if opts.RunID != "" {
		if _, err := readRun(cmd, formatter, st, opts.RunID); err != nil {
			return err
		}
		ids = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx, -1)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(ids)),
		TotalRuns:        len(ids),
		AllDeterministic: true,
	}
	if len(ids) == 0 {
		if formatter.JSON() {
			return outputReplayJSON(formatter, result)
		}
		fmt.Fprintln(formatter.Writer, "No runs found in database.")
		return nil
	}

	for _, id := range ids {
		report, err := st.ReplayRun(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}
		formatter.VerboseLog("Replayed %s: %s", id, report.Replay.Digest)

		runResult := newReplayRunResult(report)
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

func newReplayRunResult(report *store.ReplayReport) ReplayRunResult {
	r := ReplayRunResult{
		RunID:         report.Run.ID,
		AgentID:       report.Run.AgentID,
		StoredDigest:  report.Run.TraceDigest,
		ReplayDigest:  report.Replay.Digest,
		StoredFault:   report.Run.ErrorCode,
		Deterministic: report.Match(),
	}
	if report.Replay.Fault != nil {
		r.ReplayFault = string(report.Replay.Fault.Code)
	}
	return r
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := formatter.Respond(response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		fmt.Fprintf(w, "%s Run: %s (agent %d)\n", mark(run.Deterministic), run.RunID, run.AgentID)
		if formatter.Verbose || !run.Deterministic {
			fmt.Fprintf(w, "  Stored digest: %s\n", run.StoredDigest)
			fmt.Fprintf(w, "  Replay digest: %s\n", run.ReplayDigest)
		}
		if run.StoredFault != "" || run.ReplayFault != "" {
			fmt.Fprintf(w, "  Fault: stored %s, replay %s\n", orNone(run.StoredFault), orNone(run.ReplayFault))
		}
		if !run.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
	}
	fmt.Fprintln(w)

	if result.AllDeterministic {
		fmt.Fprintf(w, "%s All runs verified deterministic\n", mark(true))
		return nil
	}

	fmt.Fprintf(w, "%s Determinism verification failed\n", mark(false))
	return NewExitError(ExitFailure, "determinism verification failed")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
