package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Executor is the DAO core: it owns the extension registry, the one-time
// construction and the execute-once bookkeeping every other component
// relies on for authorisation.
type Executor struct {
	engine   *Engine
	address  common.Address
	payloads map[common.Address]Executable
}

func (x *Executor) Address() common.Address {
	return x.address
}

// Deploy makes a payload resolvable by its identity.
func (x *Executor) Deploy(p Executable) error {
	id := p.ID()
	if _, ok := x.payloads[id]; ok {
		return fmt.Errorf("payload %s already deployed", id.Hex())
	}
	x.payloads[id] = p
	return nil
}

func (x *Executor) IsDeployed(id common.Address) bool {
	_, ok := x.payloads[id]
	return ok
}

func (x *Executor) IsConstructed() bool {
	return x.engine.state.Constructed
}

// Construct runs the bootstrap payload. Only the deployer may call it and
// only once.
func (x *Executor) Construct(bootstrap, caller common.Address) error {
	e := x.engine
	return e.atomic("construct", func() error {
		if e.state.Constructed {
			return ErrAlreadyExecuted
		}
		if caller != e.deployer {
			return ErrUnauthorised
		}
		e.state.Constructed = true

		if err := x.Execute(bootstrap, caller, x.address); err != nil {
			return err
		}
		e.emit(x.address, EventConstruct, fmt.Sprintf("%s has risen.", e.name), map[string]any{
			"proposal": bootstrap.Hex(),
		})
		e.Logger.WithFields(logrus.Fields{
			"bootstrap": bootstrap.Hex(),
			"height":    e.Height(),
		}).Info("dao constructed")
		return nil
	})
}

func (x *Executor) IsExtension(ext common.Address) bool {
	return x.engine.state.Extensions[ext]
}

func (x *Executor) SetExtension(ext common.Address, enabled bool, caller common.Address) error {
	return x.SetExtensions([]ExtensionEntry{{Extension: ext, Enabled: enabled}}, caller)
}

func (x *Executor) SetExtensions(entries []ExtensionEntry, caller common.Address) error {
	e := x.engine
	return e.atomic("set-extensions", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrUnauthorised
		}
		for _, entry := range entries {
			e.state.Extensions[entry.Extension] = entry.Enabled
			e.emit(x.address, EventExtension, "", map[string]any{
				"extension": entry.Extension.Hex(),
				"enabled":   entry.Enabled,
			})
		}
		return nil
	})
}

// ExecutedAt reports the height a proposal was executed at.
func (x *Executor) ExecutedAt(id common.Address) (uint64, bool) {
	h, ok := x.engine.state.Executed[id]
	return h, ok
}

// Execute runs a proposal payload with DAO privilege, at most once per
// identity. The execution is recorded before the payload runs so a payload
// that re-enters the core (even one that disables the calling extension)
// observes itself as executed.
func (x *Executor) Execute(id, sender, caller common.Address) error {
	e := x.engine
	return e.atomic("execute", func() error {
		if !e.isDAOOrExtension(caller) {
			return ErrUnauthorised
		}
		payload, ok := x.payloads[id]
		if !ok {
			return ErrUnknownPayload
		}
		if _, done := e.state.Executed[id]; done {
			return ErrAlreadyExecuted
		}
		e.state.Executed[id] = e.Height()
		e.emit(x.address, EventExecute, "", map[string]any{
			"proposal": id.Hex(),
			"sender":   sender.Hex(),
			"caller":   caller.Hex(),
		})

		if err := payload.Execute(e, sender); err != nil {
			return err
		}
		e.Logger.WithFields(logrus.Fields{
			"proposal": id.Hex(),
			"height":   e.Height(),
		}).Info("proposal executed")
		return nil
	})
}

// RequestExtensionCallback lets an enabled extension have the DAO call it
// back, e.g. to act on a memo with DAO privilege. sender is the account
// whose transaction reached the extension and is passed on to Callback.
func (x *Executor) RequestExtensionCallback(ext Extension, memo []byte, sender, caller common.Address) error {
	e := x.engine
	return e.atomic("request-extension-callback", func() error {
		if !e.state.Extensions[caller] || ext.Address() != caller {
			return ErrInvalidExtension
		}
		e.emit(x.address, EventCallback, "", map[string]any{
			"extension": caller.Hex(),
			"sender":    sender.Hex(),
			"memo":      string(memo),
		})
		return ext.Callback(sender, memo)
	})
}
