package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Contract names of the standard extensions.
const (
	ExecutorName           = "executor-dao"
	GovernanceTokenName    = "ede000-governance-token"
	ProposalVotingName     = "ede001-proposal-voting"
	ProposalSubmissionName = "ede002-proposal-submission"
	EmergencyProposalsName = "ede003-emergency-proposals"
	EmergencyExecuteName   = "ede004-emergency-execute"
)

// ContractAddress derives the identity of a named contract (extension, token
// or proposal payload) from the keccak hash of its name.
func ContractAddress(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name)))
}

type ProposalStatus uint8

const (
	Unknown ProposalStatus = iota
	Pending
	Active
	Closed
	Passed
	Failed
)

func (s ProposalStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Closed:
		return "closed"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type Proposal struct {
	ID           common.Address
	Proposer     common.Address
	StartHeight  uint64
	EndHeight    uint64
	VotesFor     uint64
	VotesAgainst uint64
	Concluded    bool
	Passed       bool

	// Emergency marks proposals created through the emergency path
	Emergency bool
}

// Status reports the lifecycle state of the proposal at the given height.
func (p *Proposal) Status(height uint64) ProposalStatus {
	switch {
	case p.Concluded && p.Passed:
		return Passed
	case p.Concluded:
		return Failed
	case height < p.StartHeight:
		return Pending
	case height > p.EndHeight:
		return Closed
	default:
		return Active
	}
}

// ProposalView is a proposal together with the height the executor ran it at.
type ProposalView struct {
	Proposal
	ExecutedAt *uint64
}

type VoteEntry struct {
	Amount uint64
	For    bool
	Height uint64
}

// VoteRecord accumulates the stake one voter locked on one proposal under one
// token. Entries are append-only until the record is reclaimed.
type VoteRecord struct {
	Total   uint64
	Entries []VoteEntry
}

type ExtensionEntry struct {
	Extension common.Address
	Enabled   bool
}

type Allocation struct {
	Amount    uint64
	Recipient common.Address
}

// Executable is a one-shot proposal payload. It runs with the privilege of the
// DAO: calls it makes into the engine should pass Engine.DAO() as caller.
type Executable interface {
	ID() common.Address
	Execute(e *Engine, sender common.Address) error
}

// Extension is a module the executor can call back into.
type Extension interface {
	Address() common.Address
	Callback(sender common.Address, memo []byte) error
}

// HeightSource supplies the monotonically increasing ledger height.
type HeightSource interface {
	Height() uint64
}
