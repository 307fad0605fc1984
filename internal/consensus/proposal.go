package consensus

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
)

// DefaultThreshold is the quorum used when none is set: simple majority.
const DefaultThreshold = 0.5

// Status is the lifecycle state of a proposal.
type Status int

const (
	Pending Status = iota
	Committed
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return Pending, nil
	case "committed":
		return Committed, nil
	case "rejected":
		return Rejected, nil
	default:
		return Pending, fmt.Errorf("unknown proposal status %q", s)
	}
}

// Final reports whether s is terminal.
func (s Status) Final() bool { return s != Pending }

// Vote is one agent's ballot. The values match the C_VOTE operand encoding.
type Vote int

const (
	Approve Vote = 0
	Reject  Vote = 1
)

func (v Vote) String() string {
	switch v {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("vote(%d)", int(v))
	}
}

// Payload is the body of a proposal: opaque bytes, or a scalar word taken
// from a register.
type Payload struct {
	Bytes    []byte
	Word     int64
	IsScalar bool
}

// BytesPayload wraps an opaque byte payload. The bytes are copied.
func BytesPayload(b []byte) Payload {
	return Payload{Bytes: append([]byte(nil), b...)}
}

// ScalarPayload wraps a register value.
func ScalarPayload(w int64) Payload {
	return Payload{Word: w, IsScalar: true}
}

func (p Payload) String() string {
	if p.IsScalar {
		return strconv.FormatInt(p.Word, 10)
	}
	return "x" + strconv.Quote(hex.EncodeToString(p.Bytes))
}

// Proposal is a snapshot of one entry in the table.
type Proposal struct {
	ID        int64
	Proposer  int64
	Payload   Payload
	Eligible  []int64
	Threshold float64
	Votes     map[int64]Vote
	Status    Status

	// Filled in by the commit that finalized the proposal.
	Approvals  int
	Rejections int
}

// IsEligible reports whether agent may vote.
func (p *Proposal) IsEligible(agent int64) bool {
	_, ok := slices.BinarySearch(p.Eligible, agent)
	return ok
}

// Ratio is approvals over the eligible set size; zero for an empty set.
func (p *Proposal) Ratio() float64 {
	if len(p.Eligible) == 0 {
		return 0
	}
	return float64(p.count(Approve)) / float64(len(p.Eligible))
}

func (p *Proposal) count(v Vote) int {
	n := 0
	for agent, cast := range p.Votes {
		if cast == v && p.IsEligible(agent) {
			n++
		}
	}
	return n
}

func (p *Proposal) clone() Proposal {
	c := *p
	c.Payload.Bytes = append([]byte(nil), p.Payload.Bytes...)
	c.Eligible = append([]int64(nil), p.Eligible...)
	c.Votes = make(map[int64]Vote, len(p.Votes))
	for k, v := range p.Votes {
		c.Votes[k] = v
	}
	return c
}

// meetsQuorum compares inclusively. Both sides are the nearest float64 to
// their exact value, so a ratio equal to a decimal threshold (3/5 and 0.6)
// compares equal and anything below it does not.
func meetsQuorum(ratio, threshold float64) bool {
	return ratio >= threshold
}
