package core

import (
	"github.com/ethereum/go-ethereum/common"
)

// Parameter names held in the shared parameter store.
const (
	ParamProposeFactor             = "propose-factor"
	ParamProposalDuration          = "proposal-duration"
	ParamMinimumProposalStartDelay = "minimum-proposal-start-delay"
	ParamMaximumProposalStartDelay = "maximum-proposal-start-delay"
	ParamEmergencyProposalDuration = "emergency-proposal-duration"
	ParamEmergencyTeamSunsetHeight = "emergency-team-sunset-height"
	ParamExecutiveSignalsRequired  = "executive-signals-required"
	ParamExecutiveTeamSunsetHeight = "executive-team-sunset-height"
)

const (
	DefaultProposeFactor             uint64 = 100000
	DefaultProposalDuration          uint64 = 1440
	DefaultMinimumProposalStartDelay uint64 = 144
	DefaultMaximumProposalStartDelay uint64 = 1008
	DefaultEmergencyProposalDuration uint64 = 144
	DefaultExecutiveSignalsRequired  uint64 = 1

	// DefaultSunsetPeriod is roughly three months of blocks.
	DefaultSunsetPeriod uint64 = 13140
)

type VoteKey struct {
	Proposal common.Address
	Voter    common.Address
	Token    common.Address
}

type SignalKey struct {
	Proposal common.Address
	Member   common.Address
}

type TokenState struct {
	Name     string
	Symbol   string
	Decimals uint8
	URI      *string

	Supply    uint64
	Available map[common.Address]uint64
	Locked    map[common.Address]uint64
}

// State is every piece of mutable governance data. It is owned by the engine
// and replaced wholesale when a transaction reverts.
type State struct {
	Version     uint64
	Constructed bool

	Extensions map[common.Address]bool
	Executed   map[common.Address]uint64
	Parameters map[string]uint64

	Tokens map[common.Address]*TokenState

	VotingToken     common.Address
	SubmissionToken common.Address
	Proposals       map[common.Address]*Proposal
	Votes           map[VoteKey]*VoteRecord

	EmergencyTeam map[common.Address]bool

	ExecutiveTeam map[common.Address]bool
	Signals       map[SignalKey]bool
	SignalCount   map[common.Address]uint64
}

func newState() *State {
	return &State{
		Extensions:    make(map[common.Address]bool),
		Executed:      make(map[common.Address]uint64),
		Parameters:    make(map[string]uint64),
		Tokens:        make(map[common.Address]*TokenState),
		Proposals:     make(map[common.Address]*Proposal),
		Votes:         make(map[VoteKey]*VoteRecord),
		EmergencyTeam: make(map[common.Address]bool),
		ExecutiveTeam: make(map[common.Address]bool),
		Signals:       make(map[SignalKey]bool),
		SignalCount:   make(map[common.Address]uint64),
	}
}

func (t *TokenState) clone() *TokenState {
	c := *t
	if t.URI != nil {
		uri := *t.URI
		c.URI = &uri
	}
	c.Available = copyMap(t.Available)
	c.Locked = copyMap(t.Locked)
	return &c
}

func (s *State) clone() *State {
	c := &State{
		Version:         s.Version,
		Constructed:     s.Constructed,
		Extensions:      copyMap(s.Extensions),
		Executed:        copyMap(s.Executed),
		Parameters:      copyMap(s.Parameters),
		Tokens:          make(map[common.Address]*TokenState, len(s.Tokens)),
		VotingToken:     s.VotingToken,
		SubmissionToken: s.SubmissionToken,
		Proposals:       make(map[common.Address]*Proposal, len(s.Proposals)),
		Votes:           make(map[VoteKey]*VoteRecord, len(s.Votes)),
		EmergencyTeam:   copyMap(s.EmergencyTeam),
		ExecutiveTeam:   copyMap(s.ExecutiveTeam),
		Signals:         copyMap(s.Signals),
		SignalCount:     copyMap(s.SignalCount),
	}
	for addr, t := range s.Tokens {
		c.Tokens[addr] = t.clone()
	}
	for id, p := range s.Proposals {
		proposal := *p
		c.Proposals[id] = &proposal
	}
	for key, r := range s.Votes {
		c.Votes[key] = &VoteRecord{
			Total:   r.Total,
			Entries: append([]VoteEntry(nil), r.Entries...),
		}
	}
	return c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
