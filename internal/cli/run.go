package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/config"
	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/store"
	"github.com/roach88/scrawl/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Agent       int64
	MinSeverity string
	Metrics     string // "" off, "-" stderr, otherwise a file
	Strict      bool
	Macros      []string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunView is the printable form of a run, shared by run, runs and trace.
type RunView struct {
	RunID                string        `json:"run_id"`
	AgentID              int64         `json:"agent_id"`
	ProgramHash          string        `json:"program_hash"`
	TraceDigest          string        `json:"trace_digest"`
	InstructionsExecuted int           `json:"instructions_executed"`
	ExecutionTimeMS      float64       `json:"execution_time_ms"`
	Halted               bool          `json:"halted"`
	Yielded              []any         `json:"yielded"`
	Fault                *CLIError     `json:"fault,omitempty"`
	CreatedAt            string        `json:"created_at,omitempty"`
	Stored               bool          `json:"stored"`
	Trace                []trace.Event `json:"trace,omitempty"`
}

func newRunView(run store.Run) RunView {
	v := RunView{
		RunID:                run.ID,
		AgentID:              run.AgentID,
		ProgramHash:          run.ProgramHash,
		TraceDigest:          run.TraceDigest,
		InstructionsExecuted: run.InstructionsExecuted,
		ExecutionTimeMS:      run.ExecutionTimeMS,
		Halted:               run.Halted,
		Yielded:              make([]any, len(run.Yielded)),
	}
	for i, s := range run.Yielded {
		v.Yielded[i] = s.Value()
	}
	if run.Faulted() {
		v.Fault = &CLIError{Code: run.ErrorCode, Message: run.ErrorMessage}
	}
	if !run.CreatedAt.IsZero() {
		v.CreatedAt = run.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00")
	}
	return v
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Execute a program and record its trace",
		Long: `Execute a rosetta source file or SYNAPSE frame on a fresh VM.

The run and its trace are stored in the SQLite database given by --db (or
store.path in the config file); without one the run is only printed.

Exit codes:
  0 - Program ran to completion
  1 - Program faulted
  2 - Command error (missing file, compile error, database error)

Examples:
  scrawl run heartbeat.rsta
  scrawl run --db ./scrawl.db --agent 3 vote.syn
  scrawl run --min-severity WARN --metrics - vote.rsta`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().Int64Var(&opts.Agent, "agent", 0, "acting agent when the run starts")
	cmd.Flags().StringVar(&opts.MinSeverity, "min-severity", "", "lowest trace severity to print (DEBUG|INFO|WARN|ERROR)")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", `write Prometheus metrics after the run ("-" for stderr)`)
	cmd.Flags().BoolVar(&opts.Strict, "strict", true, "reject unknown statements instead of skipping them")
	cmd.Flags().StringSliceVar(&opts.Macros, "macros", nil, "directories of CUE macro files")

	return cmd
}

func runProgram(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	applyRunFlags(opts, cmd, &cfg)

	minSeverity := cfg.Trace.MinSeverity
	if opts.MinSeverity != "" {
		if minSeverity, err = trace.ParseSeverity(opts.MinSeverity); err != nil {
			return WrapExitError(ExitCommandError, "invalid --min-severity", err)
		}
	}

	prog, err := LoadProgram(path, LoadOptions{Strict: cfg.Compiler.Strict, Macros: cfg.Compiler.Macros})
	if err != nil {
		return outputCompileError(formatter, err)
	}
	for _, w := range prog.Warnings {
		slog.Warn("statement skipped", "file", path, "line", w.Line, "reason", w.Message)
	}

	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	var registry *prometheus.Registry
	if opts.Metrics != "" {
		registry = prometheus.NewRegistry()
		m, err := engine.NewMetrics(registry)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		engineOpts = append(engineOpts, engine.WithMetrics(m))
	}

	vm := engine.New(engineOpts...)
	res, runErr := vm.Execute(prog.Instructions)
	rec, err := store.Capture(vm, prog.Instructions, res, runErr)
	if err != nil {
		return WrapExitError(ExitCommandError, "engine error", err)
	}

	view := newRunView(rec.Run)
	if cfg.Store.Path != "" {
		if view.Stored, err = storeRun(ctx, cfg.Store.Path, rec); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to store run", err)
		}
		formatter.VerboseLog("Stored run %s in %s", rec.Run.ID, cfg.Store.Path)
	}
	view.Trace = trace.Filter(rec.Events, minSeverity)

	if registry != nil {
		if err := writeMetrics(registry, opts.Metrics, formatter.GetErrWriter()); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if err := outputRun(formatter, view); err != nil {
		return err
	}
	if view.Fault != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s faulted: %s", view.RunID, view.Fault.Message))
	}
	return nil
}

// applyRunFlags lays explicitly set flags over the configuration.
func applyRunFlags(opts *RunOptions, cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store.Path = opts.Database
	}
	if flags.Changed("agent") {
		cfg.AgentID = opts.Agent
	}
	if flags.Changed("strict") || opts.Config == "" {
		cfg.Compiler.Strict = opts.Strict
	}
	cfg.Compiler.Macros = append(cfg.Compiler.Macros, opts.Macros...)
}

func storeRun(ctx context.Context, path string, rec store.Record) (bool, error) {
	st, err := store.Open(path)
	if err != nil {
		return false, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	return st.WriteRun(ctx, rec)
}

// writeMetrics dumps the registry in the Prometheus text exposition format.
func writeMetrics(registry *prometheus.Registry, dest string, stderr io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}

	w := stderr
	if dest != "-" {
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func outputRun(formatter *OutputFormatter, view RunView) error {
	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: view, RunID: view.RunID}
		if view.Fault != nil {
			resp.Status = "error"
			resp.Error = view.Fault
		}
		return formatter.Respond(resp)
	}

	w := formatter.Writer
	writeRunSummary(w, view)
	fmt.Fprintln(w)
	writeTrace(w, view.Trace)
	return nil
}

func writeRunSummary(w io.Writer, view RunView) {
	fmt.Fprintf(w, "%s Run %s\n", mark(view.Fault == nil), view.RunID)
	ending := "ran off the end"
	if view.Halted {
		ending = "halted"
	}
	if view.Fault != nil {
		ending = "faulted"
	}
	fmt.Fprintf(w, "  agent %d, %d instruction(s), %.3f ms, %s\n",
		view.AgentID, view.InstructionsExecuted, view.ExecutionTimeMS, ending)
	if view.Fault != nil {
		fmt.Fprintf(w, "  fault: %s\n", view.Fault.Message)
	}
	fmt.Fprintf(w, "  yielded: %s\n", formatValues(view.Yielded))
	fmt.Fprintf(w, "  program: %s\n", view.ProgramHash)
	fmt.Fprintf(w, "  trace digest: %s\n", view.TraceDigest)
}

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
