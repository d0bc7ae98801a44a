package core

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var _ Extension = (*Voting)(nil)

// Voting records proposals, takes token-weighted votes by locking the voter's
// stake and concludes proposals once their window has passed.
type Voting struct {
	engine  *Engine
	address common.Address
}

func (v *Voting) Address() common.Address {
	return v.address
}

func (v *Voting) Callback(sender common.Address, memo []byte) error {
	return nil
}

func (v *Voting) GetGovernanceToken() common.Address {
	return v.engine.state.VotingToken
}

func (v *Voting) SetGovernanceToken(token, caller common.Address) error {
	e := v.engine
	return e.atomic("voting-set-governance-token", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrVotingUnauthorised
		}
		e.state.VotingToken = token
		e.emit(v.address, EventGovernanceToken, "", map[string]any{
			"token": token.Hex(),
		})
		return nil
	})
}

// Submit records a new proposal. Only the DAO or an extension (submission,
// emergency proposals) may add proposals.
func (v *Voting) Submit(p Proposal, caller common.Address) error {
	e := v.engine
	return e.atomic("add-proposal", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrVotingUnauthorised
		}
		if !e.executor.IsDeployed(p.ID) {
			return ErrUnknownPayload
		}
		if _, executed := e.state.Executed[p.ID]; executed {
			return ErrProposalAlreadyExecuted
		}
		if _, exists := e.state.Proposals[p.ID]; exists {
			return ErrProposalAlreadyExists
		}
		p.VotesFor, p.VotesAgainst = 0, 0
		p.Concluded, p.Passed = false, false
		e.state.Proposals[p.ID] = &p
		e.emit(v.address, EventPropose, "", map[string]any{
			"proposal":  p.ID.Hex(),
			"proposer":  p.Proposer.Hex(),
			"start":     p.StartHeight,
			"end":       p.EndHeight,
			"emergency": p.Emergency,
		})
		return nil
	})
}

// GetProposal returns a copy of the proposal and the height it was executed
// at, if any.
func (v *Voting) GetProposal(id common.Address) (*ProposalView, bool) {
	p, ok := v.engine.state.Proposals[id]
	if !ok {
		return nil, false
	}
	view := &ProposalView{Proposal: *p}
	if h, executed := v.engine.state.Executed[id]; executed {
		view.ExecutedAt = &h
	}
	return view, true
}

func (v *Voting) GetCurrentTotalVotes(proposal, voter, token common.Address) uint64 {
	if r, ok := v.engine.state.Votes[VoteKey{Proposal: proposal, Voter: voter, Token: token}]; ok {
		return r.Total
	}
	return 0
}

func (v *Voting) GetVoteEntries(proposal, voter, token common.Address) []VoteEntry {
	if r, ok := v.engine.state.Votes[VoteKey{Proposal: proposal, Voter: voter, Token: token}]; ok {
		return append([]VoteEntry(nil), r.Entries...)
	}
	return nil
}

// Vote locks amount of the caller's available balance and counts it for or
// against the proposal. It may be repeated to add more stake.
func (v *Voting) Vote(amount uint64, voteFor bool, proposal common.Address, token GovernanceToken, caller common.Address) error {
	e := v.engine
	return e.atomic("vote", func() error {
		ledger, ok := e.ledger(token)
		if !ok || ledger.Address() != e.state.VotingToken {
			return ErrNotGovernanceToken
		}
		p, ok := e.state.Proposals[proposal]
		if !ok {
			return ErrUnknownProposal
		}
		height := e.Height()
		if p.Concluded || height < p.StartHeight || height > p.EndHeight {
			return ErrProposalInactive
		}

		key := VoteKey{Proposal: proposal, Voter: caller, Token: ledger.Address()}
		record, ok := e.state.Votes[key]
		if !ok {
			record = &VoteRecord{}
			e.state.Votes[key] = record
		}
		if amount > math.MaxUint64-record.Total {
			return ErrVotingAmountOverflow
		}
		record.Total += amount
		record.Entries = append(record.Entries, VoteEntry{Amount: amount, For: voteFor, Height: height})

		if voteFor {
			if amount > math.MaxUint64-p.VotesFor {
				return ErrVotingAmountOverflow
			}
			p.VotesFor += amount
		} else {
			if amount > math.MaxUint64-p.VotesAgainst {
				return ErrVotingAmountOverflow
			}
			p.VotesAgainst += amount
		}

		e.emit(v.address, EventVote, "", map[string]any{
			"proposal": proposal.Hex(),
			"voter":    caller.Hex(),
			"amount":   amount,
			"for":      voteFor,
		})
		return ledger.EdgLock(amount, caller, v.address)
	})
}

// Conclude closes a proposal after its end height. Anyone may call it. A
// proposal passes only with strictly more votes for than against, and a
// passing proposal is executed in the same transaction.
func (v *Voting) Conclude(proposal, caller common.Address) (bool, error) {
	e := v.engine
	var passed bool
	err := e.atomic("conclude", func() error {
		p, ok := e.state.Proposals[proposal]
		if !ok {
			return ErrUnknownProposal
		}
		if p.Concluded {
			return ErrProposalAlreadyConcluded
		}
		if e.Height() <= p.EndHeight {
			return ErrEndBlockHeightNotReached
		}
		passed = p.VotesFor > p.VotesAgainst
		p.Concluded = true
		p.Passed = passed
		e.emit(v.address, EventConclude, "", map[string]any{
			"proposal":      proposal.Hex(),
			"passed":        passed,
			"votes-for":     p.VotesFor,
			"votes-against": p.VotesAgainst,
		})
		e.Logger.WithFields(logrus.Fields{
			"proposal": proposal.Hex(),
			"passed":   passed,
			"for":      p.VotesFor,
			"against":  p.VotesAgainst,
		}).Info("proposal concluded")

		if !passed {
			return nil
		}
		return e.executor.Execute(proposal, caller, v.address)
	})
	if err != nil {
		return false, err
	}
	return passed, nil
}

// ReclaimVotes unlocks the stake the caller voted with once the proposal is
// concluded. The token is the one the votes were cast with, which may differ
// from the current governance token.
func (v *Voting) ReclaimVotes(proposal common.Address, token GovernanceToken, caller common.Address) error {
	e := v.engine
	return e.atomic("reclaim-votes", func() error {
		return v.reclaim(proposal, token, caller)
	})
}

func (v *Voting) reclaim(proposal common.Address, token GovernanceToken, caller common.Address) error {
	e := v.engine
	p, ok := e.state.Proposals[proposal]
	if !ok {
		return ErrUnknownProposal
	}
	if !p.Concluded {
		return ErrProposalNotConcluded
	}
	ledger, ok := e.ledger(token)
	if !ok {
		return ErrNotGovernanceToken
	}
	key := VoteKey{Proposal: proposal, Voter: caller, Token: ledger.Address()}
	record, ok := e.state.Votes[key]
	if !ok || record.Total == 0 {
		return ErrNoVotesToReturn
	}
	delete(e.state.Votes, key)
	e.emit(v.address, EventReclaim, "", map[string]any{
		"proposal": proposal.Hex(),
		"voter":    caller.Hex(),
		"amount":   record.Total,
	})
	return ledger.EdgUnlock(record.Total, caller, v.address)
}

// ReclaimAndVote reclaims the caller's stake from a concluded proposal and
// votes on another one in a single transaction.
func (v *Voting) ReclaimAndVote(amount uint64, voteFor bool, proposal, reclaimFrom common.Address, token GovernanceToken, caller common.Address) error {
	e := v.engine
	return e.atomic("reclaim-and-vote", func() error {
		if err := v.reclaim(reclaimFrom, token, caller); err != nil {
			return err
		}
		return v.Vote(amount, voteFor, proposal, token, caller)
	})
}
