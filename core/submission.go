package core

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var _ Extension = (*Submission)(nil)

// submissionParameters are the parameters the submission extension owns.
var submissionParameters = map[string]bool{
	ParamProposeFactor:             true,
	ParamProposalDuration:          true,
	ParamMinimumProposalStartDelay: true,
	ParamMaximumProposalStartDelay: true,
}

type Parameter struct {
	Name  string
	Value uint64
}

// Submission gates the normal proposal path: the proposer must hold enough
// of the governance token and the voting window must open inside the
// configured start delay bounds.
type Submission struct {
	engine  *Engine
	address common.Address
}

func (s *Submission) Address() common.Address {
	return s.address
}

func (s *Submission) Callback(sender common.Address, memo []byte) error {
	return nil
}

func (s *Submission) GetGovernanceToken() common.Address {
	return s.engine.state.SubmissionToken
}

func (s *Submission) IsGovernanceToken(token common.Address) bool {
	return token == s.engine.state.SubmissionToken
}

func (s *Submission) SetGovernanceToken(token, caller common.Address) error {
	e := s.engine
	return e.atomic("submission-set-governance-token", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrSubmissionUnauthorised
		}
		e.state.SubmissionToken = token
		e.emit(s.address, EventGovernanceToken, "", map[string]any{
			"token": token.Hex(),
		})
		return nil
	})
}

func (s *Submission) GetParameter(name string) (uint64, error) {
	if !submissionParameters[name] {
		return 0, ErrUnknownParameter
	}
	return s.engine.state.Parameters[name], nil
}

func (s *Submission) SetParameter(name string, value uint64, caller common.Address) error {
	return s.SetParameters([]Parameter{{Name: name, Value: value}}, caller)
}

func (s *Submission) SetParameters(params []Parameter, caller common.Address) error {
	e := s.engine
	return e.atomic("set-parameters", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrSubmissionUnauthorised
		}
		for _, p := range params {
			if !submissionParameters[p.Name] {
				return ErrUnknownParameter
			}
			e.state.Parameters[p.Name] = p.Value
			e.emit(s.address, EventParameter, "", map[string]any{
				"name":  p.Name,
				"value": p.Value,
			})
		}
		return nil
	})
}

// Parameters lists the submission parameters sorted by name.
func (s *Submission) Parameters() []Parameter {
	params := make([]Parameter, 0, len(submissionParameters))
	for name := range submissionParameters {
		params = append(params, Parameter{Name: name, Value: s.engine.state.Parameters[name]})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}

// Propose submits a deployed payload for voting. The window opens at start
// and stays open for proposal-duration blocks.
func (s *Submission) Propose(id common.Address, start uint64, token GovernanceToken, caller common.Address) error {
	e := s.engine
	return e.atomic("propose", func() error {
		ledger, ok := e.ledger(token)
		if !ok || !s.IsGovernanceToken(ledger.Address()) {
			return ErrSubmissionNotGovernanceToken
		}
		if !e.executor.IsDeployed(id) {
			return ErrUnknownPayload
		}
		if !ledger.EdgHasPercentageBalance(caller, e.state.Parameters[ParamProposeFactor]) {
			return ErrProposerInsufficientBalance
		}
		height := e.Height()
		if start < height+e.state.Parameters[ParamMinimumProposalStartDelay] {
			return ErrProposalMinimumStartDelay
		}
		if start > height+e.state.Parameters[ParamMaximumProposalStartDelay] {
			return ErrProposalMaximumStartDelay
		}
		return e.voting.Submit(Proposal{
			ID:          id,
			Proposer:    caller,
			StartHeight: start,
			EndHeight:   start + e.state.Parameters[ParamProposalDuration],
		}, s.address)
	})
}
