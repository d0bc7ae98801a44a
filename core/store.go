package core

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type tokenDTO struct {
	Address   common.Address            `json:"address"`
	Name      string                    `json:"name"`
	Symbol    string                    `json:"symbol"`
	Decimals  uint8                     `json:"decimals"`
	URI       *string                   `json:"uri,omitempty"`
	Supply    uint64                    `json:"supply"`
	Available map[common.Address]uint64 `json:"available"`
	Locked    map[common.Address]uint64 `json:"locked"`
}

type voteDTO struct {
	Proposal common.Address `json:"proposal"`
	Voter    common.Address `json:"voter"`
	Token    common.Address `json:"token"`
	Total    uint64         `json:"total"`
	Entries  []VoteEntry    `json:"entries"`
}

type signalDTO struct {
	Proposal common.Address `json:"proposal"`
	Member   common.Address `json:"member"`
}

type stateDTO struct {
	Version         uint64                    `json:"version"`
	Constructed     bool                      `json:"constructed"`
	Extensions      map[common.Address]bool   `json:"extensions"`
	Executed        map[common.Address]uint64 `json:"executed"`
	Parameters      map[string]uint64         `json:"parameters"`
	Tokens          []tokenDTO                `json:"tokens"`
	VotingToken     common.Address            `json:"voting_token"`
	SubmissionToken common.Address            `json:"submission_token"`
	Proposals       []Proposal                `json:"proposals"`
	Votes           []voteDTO                 `json:"votes"`
	EmergencyTeam   []common.Address          `json:"emergency_team"`
	ExecutiveTeam   []common.Address          `json:"executive_team"`
	Signals         []signalDTO               `json:"signals"`
}

// EncodeState serializes st to JSON. Collections keyed by composite keys are
// written as sorted lists so equal states encode to equal bytes.
func EncodeState(st *State) ([]byte, error) {
	dto := stateDTO{
		Version:         st.Version,
		Constructed:     st.Constructed,
		Extensions:      st.Extensions,
		Executed:        st.Executed,
		Parameters:      st.Parameters,
		VotingToken:     st.VotingToken,
		SubmissionToken: st.SubmissionToken,
		EmergencyTeam:   sortedAddresses(members(st.EmergencyTeam)),
		ExecutiveTeam:   sortedAddresses(members(st.ExecutiveTeam)),
	}
	for addr, t := range st.Tokens {
		dto.Tokens = append(dto.Tokens, tokenDTO{
			Address:   addr,
			Name:      t.Name,
			Symbol:    t.Symbol,
			Decimals:  t.Decimals,
			URI:       t.URI,
			Supply:    t.Supply,
			Available: t.Available,
			Locked:    t.Locked,
		})
	}
	sort.Slice(dto.Tokens, func(i, j int) bool {
		return lessAddress(dto.Tokens[i].Address, dto.Tokens[j].Address)
	})

	for _, p := range st.Proposals {
		dto.Proposals = append(dto.Proposals, *p)
	}
	sort.Slice(dto.Proposals, func(i, j int) bool {
		return lessAddress(dto.Proposals[i].ID, dto.Proposals[j].ID)
	})

	for key, r := range st.Votes {
		dto.Votes = append(dto.Votes, voteDTO{
			Proposal: key.Proposal,
			Voter:    key.Voter,
			Token:    key.Token,
			Total:    r.Total,
			Entries:  r.Entries,
		})
	}
	sort.Slice(dto.Votes, func(i, j int) bool {
		a, b := dto.Votes[i], dto.Votes[j]
		if a.Proposal != b.Proposal {
			return lessAddress(a.Proposal, b.Proposal)
		}
		if a.Voter != b.Voter {
			return lessAddress(a.Voter, b.Voter)
		}
		return lessAddress(a.Token, b.Token)
	})

	for key, ok := range st.Signals {
		if ok {
			dto.Signals = append(dto.Signals, signalDTO{Proposal: key.Proposal, Member: key.Member})
		}
	}
	sort.Slice(dto.Signals, func(i, j int) bool {
		a, b := dto.Signals[i], dto.Signals[j]
		if a.Proposal != b.Proposal {
			return lessAddress(a.Proposal, b.Proposal)
		}
		return lessAddress(a.Member, b.Member)
	})

	data, err := json.Marshal(dto)
	if err != nil {
		return nil, errors.Wrap(err, "marshal state")
	}
	return data, nil
}

// DecodeState is the inverse of EncodeState. Signal counts are rebuilt from
// the recorded signals.
func DecodeState(data []byte) (*State, error) {
	var dto stateDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, errors.Wrap(err, "unmarshal state")
	}

	st := newState()
	st.Version = dto.Version
	st.Constructed = dto.Constructed
	st.VotingToken = dto.VotingToken
	st.SubmissionToken = dto.SubmissionToken
	for k, v := range dto.Extensions {
		st.Extensions[k] = v
	}
	for k, v := range dto.Executed {
		st.Executed[k] = v
	}
	for k, v := range dto.Parameters {
		st.Parameters[k] = v
	}
	for _, t := range dto.Tokens {
		ts := &TokenState{
			Name:      t.Name,
			Symbol:    t.Symbol,
			Decimals:  t.Decimals,
			URI:       t.URI,
			Supply:    t.Supply,
			Available: copyMap(t.Available),
			Locked:    copyMap(t.Locked),
		}
		st.Tokens[t.Address] = ts
	}
	for i := range dto.Proposals {
		p := dto.Proposals[i]
		st.Proposals[p.ID] = &p
	}
	for _, v := range dto.Votes {
		st.Votes[VoteKey{Proposal: v.Proposal, Voter: v.Voter, Token: v.Token}] = &VoteRecord{
			Total:   v.Total,
			Entries: v.Entries,
		}
	}
	for _, m := range dto.EmergencyTeam {
		st.EmergencyTeam[m] = true
	}
	for _, m := range dto.ExecutiveTeam {
		st.ExecutiveTeam[m] = true
	}
	for _, s := range dto.Signals {
		st.Signals[SignalKey{Proposal: s.Proposal, Member: s.Member}] = true
		st.SignalCount[s.Proposal]++
	}
	return st, nil
}

func sortedAddresses(addrs []common.Address) []common.Address {
	sort.Slice(addrs, func(i, j int) bool { return lessAddress(addrs[i], addrs[j]) })
	return addrs
}

func lessAddress(a, b common.Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
