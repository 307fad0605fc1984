package consensus

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/roach88/scrawl/internal/trace"
)

const domain = "consensus"

var (
	// ErrDuplicateProposal is returned when a proposal id is reused.
	ErrDuplicateProposal = errors.New("duplicate proposal")

	// ErrInvalidParameter is returned for a threshold outside [0,1] or a
	// negative agent id.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Table holds every proposal made on one VM. Proposals are never removed.
// A Table is not safe for concurrent use.
type Table struct {
	proposals map[int64]*Proposal
	order     []int64
	log       trace.Emitter
}

// NewTable creates an empty table reporting to log.
func NewTable(log trace.Emitter) *Table {
	return &Table{
		proposals: make(map[int64]*Proposal),
		log:       log,
	}
}

// Propose opens a pending proposal with no votes and the default threshold.
// Duplicate agents in eligible are collapsed.
func (t *Table) Propose(id, proposer int64, payload Payload, eligible []int64) error {
	if _, exists := t.proposals[id]; exists {
		return fmt.Errorf("%w: id %d", ErrDuplicateProposal, id)
	}
	set := slices.Clone(eligible)
	slices.Sort(set)
	set = slices.Compact(set)
	if len(set) > 0 && set[0] < 0 {
		return fmt.Errorf("%w: negative agent id %d", ErrInvalidParameter, set[0])
	}

	p := &Proposal{
		ID:        id,
		Proposer:  proposer,
		Payload:   payload,
		Eligible:  set,
		Threshold: DefaultThreshold,
		Votes:     make(map[int64]Vote),
		Status:    Pending,
	}
	p.Payload.Bytes = slices.Clone(payload.Bytes)
	t.proposals[id] = p
	t.order = append(t.order, id)

	t.log.Emit(trace.Info, domain, "propose", fmt.Sprintf(
		"proposal %d opened by agent %d: payload %s, %d eligible %v",
		id, proposer, p.Payload, len(set), set))
	return nil
}

// SetQuorum replaces the threshold of a pending proposal. On a finalized or
// unknown proposal it only emits a warning.
func (t *Table) SetQuorum(id int64, threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidParameter, threshold)
	}
	p, ok := t.proposals[id]
	if !ok {
		t.unknown(id, "quorum")
		return nil
	}
	if p.Status.Final() {
		t.log.Emit(trace.Warn, domain, "quorum_ignored", fmt.Sprintf(
			"proposal %d is %s; threshold stays %.4f", id, p.Status, p.Threshold))
		return nil
	}
	p.Threshold = threshold
	t.log.Emit(trace.Info, domain, "quorum", fmt.Sprintf(
		"proposal %d threshold set to %.4f", id, threshold))
	return nil
}

// Vote records agent's ballot, replacing any earlier one. Votes from
// ineligible agents, on finalized proposals or on unknown ids are dropped
// with a warning.
func (t *Table) Vote(id, agent int64, v Vote) {
	p, ok := t.proposals[id]
	if !ok {
		t.unknown(id, "vote")
		return
	}
	if p.Status.Final() {
		t.log.Emit(trace.Warn, domain, "vote_dropped", fmt.Sprintf(
			"proposal %d is %s; %s from agent %d dropped", id, p.Status, v, agent))
		return
	}
	if !p.IsEligible(agent) {
		t.log.Emit(trace.Warn, domain, "vote_dropped", fmt.Sprintf(
			"agent %d is not eligible for proposal %d; %s dropped", agent, id, v))
		return
	}

	prev, revote := p.Votes[agent]
	p.Votes[agent] = v
	msg := fmt.Sprintf("agent %d votes %s on proposal %d", agent, v, id)
	if revote {
		msg += fmt.Sprintf(" (was %s)", prev)
	}
	t.log.Emit(trace.Info, domain, "vote", msg)
}

// Commit finalizes a pending proposal and returns 1 if it committed, 0 if it
// was rejected. A finalized proposal returns its existing result without a
// new tally. An unknown id returns 0.
func (t *Table) Commit(id int64) int64 {
	p, ok := t.proposals[id]
	if !ok {
		t.unknown(id, "commit")
		return 0
	}
	if p.Status.Final() {
		t.log.Emit(trace.Info, domain, "already_final", fmt.Sprintf(
			"proposal %d already %s", id, p.Status))
		return result(p.Status)
	}

	p.Approvals = p.count(Approve)
	p.Rejections = p.count(Reject)
	ratio := p.Ratio()
	if meetsQuorum(ratio, p.Threshold) {
		p.Status = Committed
	} else {
		p.Status = Rejected
	}

	t.log.Emit(trace.Info, domain, "tally", fmt.Sprintf(
		"proposal %d: %d approve, %d reject, %d abstain of %d eligible; ratio %.4f, threshold %.4f -> %s",
		id, p.Approvals, p.Rejections, len(p.Eligible)-p.Approvals-p.Rejections, len(p.Eligible),
		ratio, p.Threshold, p.Status))

	switch {
	case p.Status == Rejected:
		t.log.Emit(trace.Warn, domain, "quorum_not_met", fmt.Sprintf(
			"proposal %d rejected: ratio %.4f below threshold %.4f", id, ratio, p.Threshold))
	case p.Approvals < len(p.Eligible):
		t.log.Emit(trace.Warn, domain, "not_unanimous", fmt.Sprintf(
			"proposal %d committed with %d of %d eligible approving", id, p.Approvals, len(p.Eligible)))
	}
	return result(p.Status)
}

func result(s Status) int64 {
	if s == Committed {
		return 1
	}
	return 0
}

func (t *Table) unknown(id int64, op string) {
	t.log.Emit(trace.Warn, domain, "unknown_proposal", fmt.Sprintf(
		"%s on unknown proposal %d ignored", op, id))
}

// Get returns a copy of proposal id.
func (t *Table) Get(id int64) (Proposal, bool) {
	p, ok := t.proposals[id]
	if !ok {
		return Proposal{}, false
	}
	return p.clone(), true
}

// All returns copies of every proposal in creation order.
func (t *Table) All() []Proposal {
	out := make([]Proposal, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.proposals[id].clone())
	}
	return out
}

// Len returns the number of proposals ever made.
func (t *Table) Len() int { return len(t.order) }
