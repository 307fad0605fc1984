package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/scrawl/internal/delta"
	"github.com/roach88/scrawl/internal/identity"
)

// HandshakeOptions holds flags for the handshake command.
type HandshakeOptions struct {
	*RootOptions
	Seed            string
	Depth           int
	PeerSeed        string
	PeerFingerprint string
	Agents          []int64
	States          []string
}

// HandshakeResult holds the outcome of a simulated handshake.
type HandshakeResult struct {
	Seed            int64        `json:"seed"`
	Depth           int          `json:"depth"`
	Fingerprint     string       `json:"fingerprint"`
	PeerFingerprint string       `json:"peer_fingerprint"`
	Match           bool         `json:"match"`
	SharedKey       string       `json:"shared_key,omitempty"`
	Agents          []int64      `json:"agents,omitempty"`
	Sync            []SyncFrame  `json:"sync,omitempty"`
	SyncStats       *delta.Stats `json:"sync_stats,omitempty"`
}

// SyncFrame describes one state snapshot sent over the handshaken link.
type SyncFrame struct {
	File       string `json:"file"`
	Kind       string `json:"kind"`
	RawBytes   int    `json:"raw_bytes"`
	FrameBytes int    `json:"frame_bytes"`
}

// NewHandshakeCommand creates the handshake command.
func NewHandshakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HandshakeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "handshake",
		Short: "Simulate an identity handshake between two agents",
		Long: `Derive the initiator's baseline, send its fingerprint, and have the peer
answer from its own seed (or compare against a fingerprint it already holds).

On a match the pair's shared key is printed. Each --state file is then sent
over the link, delta-compressed against the previous one under the shared
baseline.

Exit codes:
  0 - Fingerprints match
  1 - Fingerprints differ
  2 - Command error (bad seed, unreadable state file, etc.)

Examples:
  scrawl handshake --seed 0xCAFE --depth 16
  scrawl handshake --seed 0xCAFE --peer-seed 0xF00D
  scrawl handshake --seed 0xCAFE --agents 0,3 --state s1.bin --state s2.bin`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHandshake(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "initiator seed, decimal or 0x hex (required)")
	_ = cmd.MarkFlagRequired("seed")
	cmd.Flags().IntVar(&opts.Depth, "depth", 16, "baseline chain depth")
	cmd.Flags().StringVar(&opts.PeerSeed, "peer-seed", "", "responder seed (defaults to --seed)")
	cmd.Flags().StringVar(&opts.PeerFingerprint, "peer-fingerprint", "", "compare against this hex fingerprint instead of deriving one")
	cmd.Flags().Int64SliceVar(&opts.Agents, "agents", []int64{0, 1}, "agent pair for the shared key")
	cmd.Flags().StringArrayVar(&opts.States, "state", nil, "state snapshot file to sync after a match (repeatable)")

	return cmd
}

func runHandshake(opts *HandshakeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	seed, err := parseSeed(opts.Seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --seed", err)
	}
	if len(opts.Agents) != 2 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--agents takes two agent IDs, got %d", len(opts.Agents)))
	}

	ours, fp, err := identity.Initiate(seed, opts.Depth)
	if err != nil {
		return WrapExitError(ExitCommandError, "handshake failed", err)
	}

	peer, err := peerFingerprint(opts, seed)
	if err != nil {
		return err
	}
	match := peer == fp

	result := HandshakeResult{
		Seed:            seed,
		Depth:           opts.Depth,
		Fingerprint:     fp.String(),
		PeerFingerprint: peer.String(),
		Match:           match,
	}
	if match {
		result.Agents = opts.Agents
		result.SharedKey = hex.EncodeToString(identity.DeriveSharedKey(ours, opts.Agents[0], opts.Agents[1]))
		if len(opts.States) > 0 {
			if err := syncStates(&result, ours, opts.States); err != nil {
				return err
			}
		}
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !match {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_HANDSHAKE", Message: "fingerprints differ"}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		outputHandshakeText(formatter, result)
	}

	if !match {
		return NewExitError(ExitFailure, "handshake mismatch")
	}
	return nil
}

func parseSeed(s string) (int64, error) {
	return strconv.ParseInt(s, 0, 64)
}

func peerFingerprint(opts *HandshakeOptions, seed int64) (identity.Fingerprint, error) {
	if opts.PeerFingerprint != "" {
		fp, err := identity.ParseFingerprint(opts.PeerFingerprint)
		if err != nil {
			return identity.Fingerprint{}, WrapExitError(ExitCommandError, "invalid --peer-fingerprint", err)
		}
		return fp, nil
	}

	peerSeed := seed
	if opts.PeerSeed != "" {
		var err error
		if peerSeed, err = parseSeed(opts.PeerSeed); err != nil {
			return identity.Fingerprint{}, WrapExitError(ExitCommandError, "invalid --peer-seed", err)
		}
	}
	_, fp, err := identity.Initiate(peerSeed, opts.Depth)
	if err != nil {
		return identity.Fingerprint{}, WrapExitError(ExitCommandError, "peer handshake failed", err)
	}
	return fp, nil
}

// syncStates sends each file through a sender/receiver pair bound to the
// shared baseline and checks the receiver reconstructs it.
func syncStates(result *HandshakeResult, b identity.Baseline, files []string) error {
	sender, receiver := delta.NewCompressor(b), delta.NewCompressor(b)
	for _, file := range files {
		state, err := os.ReadFile(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read state", err)
		}
		frame, err := sender.Compress(state)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to compress %s", file), err)
		}
		got, err := receiver.Decompress(frame)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to decompress %s", file), err)
		}
		if string(got) != string(state) {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s did not survive the round trip", file))
		}
		result.Sync = append(result.Sync, SyncFrame{
			File:       file,
			Kind:       delta.Kind(frame[0]).String(),
			RawBytes:   len(state),
			FrameBytes: len(frame),
		})
	}
	stats := sender.Stats()
	result.SyncStats = &stats
	return nil
}

func outputHandshakeText(formatter *OutputFormatter, result HandshakeResult) {
	w := formatter.Writer
	if result.Match {
		fmt.Fprintf(w, "%s Handshake verified (seed %#x, depth %d)\n", mark(true), result.Seed, result.Depth)
	} else {
		fmt.Fprintf(w, "%s Handshake mismatch (seed %#x, depth %d)\n", mark(false), result.Seed, result.Depth)
	}
	fmt.Fprintf(w, "  ours:   %s\n", result.Fingerprint)
	fmt.Fprintf(w, "  theirs: %s\n", result.PeerFingerprint)
	if !result.Match {
		return
	}
	fmt.Fprintf(w, "  shared key (agents %d, %d): %s\n", result.Agents[0], result.Agents[1], result.SharedKey)

	if len(result.Sync) == 0 {
		return
	}
	fmt.Fprintln(w)
	table := newTable(w, "state", "kind", "raw", "frame")
	for _, f := range result.Sync {
		table.Append([]string{f.File, f.Kind, fmt.Sprint(f.RawBytes), fmt.Sprint(f.FrameBytes)})
	}
	table.Render()
	fmt.Fprintf(w, "\nSaved %.1f%% over %d frame(s)\n", result.SyncStats.Saved()*100, result.SyncStats.Frames)
}
