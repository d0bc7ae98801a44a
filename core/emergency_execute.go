package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var _ Extension = (*EmergencyExecute)(nil)

// EmergencyExecute is a multisig style override: once enough executive team
// members signal the same proposal it is executed directly, without a vote.
//
// Signals are kept when members leave the team or the threshold changes, so
// a signal recorded by a former member still counts toward a later action.
type EmergencyExecute struct {
	engine  *Engine
	address common.Address
}

func (x *EmergencyExecute) Address() common.Address {
	return x.address
}

func (x *EmergencyExecute) Callback(sender common.Address, memo []byte) error {
	return nil
}

func (x *EmergencyExecute) IsExecutiveTeamMember(who common.Address) bool {
	return x.engine.state.ExecutiveTeam[who]
}

// ExecutiveTeam returns the current members in no particular order.
func (x *EmergencyExecute) ExecutiveTeam() []common.Address {
	return members(x.engine.state.ExecutiveTeam)
}

func (x *EmergencyExecute) HasSignalled(proposal, who common.Address) bool {
	return x.engine.state.Signals[SignalKey{Proposal: proposal, Member: who}]
}

func (x *EmergencyExecute) GetSignals(proposal common.Address) uint64 {
	return x.engine.state.SignalCount[proposal]
}

func (x *EmergencyExecute) GetSignalsRequired() uint64 {
	return x.engine.state.Parameters[ParamExecutiveSignalsRequired]
}

func (x *EmergencyExecute) GetExecutiveTeamSunsetHeight() uint64 {
	return x.engine.state.Parameters[ParamExecutiveTeamSunsetHeight]
}

func (x *EmergencyExecute) SetExecutiveTeamMember(who common.Address, member bool, caller common.Address) error {
	e := x.engine
	return e.atomic("set-executive-team-member", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrExecutiveUnauthorised
		}
		setMember(e.state.ExecutiveTeam, who, member)
		e.emit(x.address, EventTeamMember, "", map[string]any{
			"team":   "executive",
			"member": who.Hex(),
			"active": member,
		})
		return nil
	})
}

func (x *EmergencyExecute) SetSignalsRequired(required uint64, caller common.Address) error {
	e := x.engine
	return e.atomic("set-signals-required", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrExecutiveUnauthorised
		}
		e.state.Parameters[ParamExecutiveSignalsRequired] = required
		e.emit(x.address, EventParameter, "", map[string]any{
			"name":  ParamExecutiveSignalsRequired,
			"value": required,
		})
		return nil
	})
}

func (x *EmergencyExecute) SetExecutiveTeamSunsetHeight(height uint64, caller common.Address) error {
	e := x.engine
	return e.atomic("set-executive-team-sunset-height", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrExecutiveUnauthorised
		}
		if height <= e.Height() {
			return ErrExecutiveSunsetHeightInPast
		}
		e.state.Parameters[ParamExecutiveTeamSunsetHeight] = height
		e.emit(x.address, EventParameter, "", map[string]any{
			"name":  ParamExecutiveTeamSunsetHeight,
			"value": height,
		})
		return nil
	})
}

// ExecutiveAction records the caller's signal for proposal and returns the
// number of signals collected. Signalling twice does not count twice. When
// the count reaches the threshold the proposal is executed.
func (x *EmergencyExecute) ExecutiveAction(proposal, caller common.Address) (uint64, error) {
	e := x.engine
	var count uint64
	err := e.atomic("executive-action", func() error {
		if !e.state.ExecutiveTeam[caller] {
			return ErrNotExecutiveTeamMember
		}
		if e.Height() >= e.state.Parameters[ParamExecutiveTeamSunsetHeight] {
			return ErrExecutiveSunsetHeightReached
		}

		key := SignalKey{Proposal: proposal, Member: caller}
		fresh := !e.state.Signals[key]
		if fresh {
			e.state.Signals[key] = true
			e.state.SignalCount[proposal]++
		}
		count = e.state.SignalCount[proposal]
		e.emit(x.address, EventSignal, "", map[string]any{
			"proposal": proposal.Hex(),
			"member":   caller.Hex(),
			"signals":  count,
			"new":      fresh,
		})

		if count < e.state.Parameters[ParamExecutiveSignalsRequired] {
			return nil
		}
		e.Logger.WithFields(logrus.Fields{
			"proposal": proposal.Hex(),
			"signals":  count,
		}).Warn("executive threshold reached")
		return e.executor.Execute(proposal, caller, x.address)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
