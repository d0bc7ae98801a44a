package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var _ Extension = (*EmergencyProposals)(nil)

// EmergencyProposals lets a small team open proposals that start voting
// immediately and run for a short fixed window, until the team sunsets.
type EmergencyProposals struct {
	engine  *Engine
	address common.Address
}

func (p *EmergencyProposals) Address() common.Address {
	return p.address
}

func (p *EmergencyProposals) Callback(sender common.Address, memo []byte) error {
	return nil
}

func (p *EmergencyProposals) IsEmergencyTeamMember(who common.Address) bool {
	return p.engine.state.EmergencyTeam[who]
}

// EmergencyTeam returns the current members in no particular order.
func (p *EmergencyProposals) EmergencyTeam() []common.Address {
	return members(p.engine.state.EmergencyTeam)
}

func (p *EmergencyProposals) GetEmergencyProposalDuration() uint64 {
	return p.engine.state.Parameters[ParamEmergencyProposalDuration]
}

func (p *EmergencyProposals) GetEmergencyTeamSunsetHeight() uint64 {
	return p.engine.state.Parameters[ParamEmergencyTeamSunsetHeight]
}

func (p *EmergencyProposals) SetEmergencyTeamMember(who common.Address, member bool, caller common.Address) error {
	e := p.engine
	return e.atomic("set-emergency-team-member", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrEmergencyUnauthorised
		}
		setMember(e.state.EmergencyTeam, who, member)
		e.emit(p.address, EventTeamMember, "", map[string]any{
			"team":   "emergency",
			"member": who.Hex(),
			"active": member,
		})
		return nil
	})
}

func (p *EmergencyProposals) SetEmergencyProposalDuration(duration uint64, caller common.Address) error {
	e := p.engine
	return e.atomic("set-emergency-proposal-duration", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrEmergencyUnauthorised
		}
		e.state.Parameters[ParamEmergencyProposalDuration] = duration
		e.emit(p.address, EventParameter, "", map[string]any{
			"name":  ParamEmergencyProposalDuration,
			"value": duration,
		})
		return nil
	})
}

// SetEmergencyTeamSunsetHeight moves the sunset. It can only be set to a
// height still in the future.
func (p *EmergencyProposals) SetEmergencyTeamSunsetHeight(height uint64, caller common.Address) error {
	e := p.engine
	return e.atomic("set-emergency-team-sunset-height", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrEmergencyUnauthorised
		}
		if height <= e.Height() {
			return ErrEmergencySunsetHeightInPast
		}
		e.state.Parameters[ParamEmergencyTeamSunsetHeight] = height
		e.emit(p.address, EventParameter, "", map[string]any{
			"name":  ParamEmergencyTeamSunsetHeight,
			"value": height,
		})
		return nil
	})
}

// EmergencyPropose opens a proposal whose voting window starts at the
// current height. No stake or start delay is required.
func (p *EmergencyProposals) EmergencyPropose(id, caller common.Address) error {
	e := p.engine
	return e.atomic("emergency-propose", func() error {
		if !e.state.EmergencyTeam[caller] {
			return ErrNotEmergencyTeamMember
		}
		height := e.Height()
		if height >= e.state.Parameters[ParamEmergencyTeamSunsetHeight] {
			return ErrEmergencySunsetHeightReached
		}
		if err := e.voting.Submit(Proposal{
			ID:          id,
			Proposer:    caller,
			StartHeight: height,
			EndHeight:   height + e.state.Parameters[ParamEmergencyProposalDuration],
			Emergency:   true,
		}, p.address); err != nil {
			return err
		}
		e.Logger.WithFields(logrus.Fields{
			"proposal": id.Hex(),
			"member":   caller.Hex(),
		}).Warn("emergency proposal submitted")
		return nil
	})
}

func members(set map[common.Address]bool) []common.Address {
	out := make([]common.Address, 0, len(set))
	for addr, ok := range set {
		if ok {
			out = append(out, addr)
		}
	}
	return out
}

func setMember(set map[common.Address]bool, who common.Address, member bool) {
	if member {
		set[who] = true
		return
	}
	delete(set, who)
}
