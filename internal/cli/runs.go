package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// RunsResult is the JSON payload of the runs command.
type RunsResult struct {
	Runs  []RunView `json:"runs"`
	Total int       `json:"total"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List the runs recorded in a database, oldest first. --limit keeps the
most recent runs.

Examples:
  scrawl runs --db ./scrawl.db
  scrawl runs --db ./scrawl.db --limit 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "show only the latest N runs (0 or less for all)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := RunsResult{Runs: make([]RunView, 0, len(runs)), Total: len(runs)}
	for _, run := range runs {
		result.Runs = append(result.Runs, newRunView(run))
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	table := newTable(w, "", "run", "agent", "instructions", "yielded", "outcome", "created")
	for _, v := range result.Runs {
		outcome := "ran off the end"
		switch {
		case v.Fault != nil:
			outcome = v.Fault.Code
		case v.Halted:
			outcome = "halted"
		}
		table.Append([]string{
			mark(v.Fault == nil),
			v.RunID,
			fmt.Sprint(v.AgentID),
			fmt.Sprint(v.InstructionsExecuted),
			formatValues(v.Yielded),
			outcome,
			v.CreatedAt,
		})
	}
	table.Render()
	fmt.Fprintf(w, "\n%d run(s)\n", result.Total)
	return nil
}

// openStore opens an existing database. A missing file is a command error
// rather than a fresh empty database.
func openStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
			return nil, WrapExitError(ExitCommandError, "database not found", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// readRun loads one run, reporting a missing ID with its own code.
func readRun(cmd *cobra.Command, formatter *OutputFormatter, st *store.Store, id string) (store.Run, error) {
	run, err := st.ReadRun(cmd.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", id), nil)
		return store.Run{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}
