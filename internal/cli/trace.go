package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/store"
	"github.com/roach88/scrawl/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database    string
	RunID       string
	MinSeverity string
	Domain      string // optional - filter to one domain
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run       RunView          `json:"run"`
	Events    []trace.Event    `json:"events"`
	Proposals []ProposalView   `json:"proposals"`
	Stats     TraceStats       `json:"stats"`
}

// ProposalView is the printable form of a stored proposal.
type ProposalView struct {
	ID         int64   `json:"id"`
	Proposer   int64   `json:"proposer"`
	Payload    string  `json:"payload"`
	Status     string  `json:"status"`
	Threshold  float64 `json:"threshold"`
	Approvals  int     `json:"approvals"`
	Rejections int     `json:"rejections"`
	Eligible   []int64 `json:"eligible"`
}

func newProposalViews(proposals []store.Proposal) []ProposalView {
	out := make([]ProposalView, len(proposals))
	for i, p := range proposals {
		out[i] = ProposalView{
			ID:         p.ID,
			Proposer:   p.Proposer,
			Payload:    p.Payload,
			Status:     p.Status.String(),
			Threshold:  p.Threshold,
			Approvals:  p.Approvals,
			Rejections: p.Rejections,
			Eligible:   p.Eligible,
		}
	}
	return out
}

// TraceStats counts the stored events per severity.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Shown       int `json:"shown"`
	Warnings    int `json:"warnings"`
	Errors      int `json:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the trace of a stored run",
		Long: `Show the audit trail of a stored run.

The output includes:
- Run: agent, outcome and yielded values
- Events: the trace, filtered by --min-severity and --domain
- Proposals: the final proposal table

Examples:
  scrawl trace --db ./scrawl.db --run 0192f3a4-...
  scrawl trace --db ./scrawl.db --run 0192f3a4-... --min-severity WARN
  scrawl trace --db ./scrawl.db --run 0192f3a4-... --domain consensus --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.MinSeverity, "min-severity", "DEBUG", "lowest severity to show")
	cmd.Flags().StringVar(&opts.Domain, "domain", "", "show only events from this domain")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	min, err := trace.ParseSeverity(opts.MinSeverity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --min-severity", err)
	}

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	run, err := readRun(cmd, formatter, st, opts.RunID)
	if err != nil {
		return err
	}
	events, err := st.ReadTrace(cmd.Context(), run.ID, trace.Debug)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	proposals, err := st.ReadProposals(cmd.Context(), run.ID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read proposals", err)
	}

	result := TraceResult{
		Run:       newRunView(run),
		Events:    filterDomain(trace.Filter(events, min), opts.Domain),
		Proposals: newProposalViews(proposals),
	}
	result.Stats = traceStats(events, len(result.Events))
	formatter.VerboseLog("Read %d event(s) for run %s", len(events), run.ID)

	if formatter.JSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(formatter, result)
}

func filterDomain(events []trace.Event, domain string) []trace.Event {
	if domain == "" {
		return events
	}
	out := make([]trace.Event, 0, len(events))
	for _, e := range events {
		if strings.EqualFold(e.Domain, domain) {
			out = append(out, e)
		}
	}
	return out
}

func traceStats(events []trace.Event, shown int) TraceStats {
	stats := TraceStats{TotalEvents: len(events), Shown: shown}
	for _, e := range events {
		switch e.Severity {
		case trace.Warn:
			stats.Warnings++
		case trace.Error:
			stats.Errors++
		}
	}
	return stats
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	writeRunSummary(w, result.Run)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Trace (%d of %d events, %d warning(s), %d error(s)):\n",
		result.Stats.Shown, result.Stats.TotalEvents, result.Stats.Warnings, result.Stats.Errors)
	writeTrace(w, result.Events)

	if len(result.Proposals) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Proposals:")
	table := newTable(w, "id", "proposer", "status", "threshold", "approvals", "rejections", "eligible")
	for _, p := range result.Proposals {
		table.Append([]string{
			fmt.Sprint(p.ID),
			fmt.Sprint(p.Proposer),
			p.Status,
			fmt.Sprintf("%.2f", p.Threshold),
			fmt.Sprint(p.Approvals),
			fmt.Sprint(p.Rejections),
			fmt.Sprint(p.Eligible),
		})
	}
	table.Render()
	return nil
}
