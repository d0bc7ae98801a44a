// Package proposals holds reference payloads for the executor. Every payload
// is executed with the privilege of the DAO, so the calls it makes into the
// engine pass Engine.DAO() as caller.
package proposals

import (
	"github.com/axiomesh/executordao/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	_ core.Executable = (*Bootstrap)(nil)
	_ core.Executable = (*SetExtensions)(nil)
	_ core.Executable = (*MintBurn)(nil)
	_ core.Executable = (*SetParameters)(nil)
	_ core.Executable = (*ChangeGovernanceToken)(nil)
	_ core.Executable = (*UpdateExecutiveTeam)(nil)
	_ core.Executable = (*UpdateEmergencyTeam)(nil)
	_ core.Executable = (*TokenMetadata)(nil)
	_ core.Executable = (*Func)(nil)
)

// Named gives a payload its identity from its contract name.
type Named string

func (n Named) ID() common.Address {
	return core.ContractAddress(string(n))
}

func (n Named) String() string {
	return string(n)
}

// StandardExtensions returns the addresses of the five standard extensions
// of an engine.
func StandardExtensions(e *core.Engine) []common.Address {
	exts := e.Extensions()
	out := make([]common.Address, 0, len(exts))
	for _, ext := range exts {
		out = append(out, ext.Address())
	}
	return out
}

// Bootstrap is the construction payload. It enables the extensions, seeds
// both teams and mints the initial allocations.
type Bootstrap struct {
	Named

	Extensions      []common.Address
	EmergencyTeam   []common.Address
	ExecutiveTeam   []common.Address
	SignalsRequired uint64
	Allocations     []core.Allocation
}

func (b *Bootstrap) Execute(e *core.Engine, sender common.Address) error {
	dao := e.DAO()

	entries := make([]core.ExtensionEntry, 0, len(b.Extensions))
	for _, ext := range b.Extensions {
		entries = append(entries, core.ExtensionEntry{Extension: ext, Enabled: true})
	}
	if err := e.Executor().SetExtensions(entries, dao); err != nil {
		return errors.Wrap(err, "enable extensions")
	}
	for _, m := range b.EmergencyTeam {
		if err := e.EmergencyProposals().SetEmergencyTeamMember(m, true, dao); err != nil {
			return err
		}
	}
	for _, m := range b.ExecutiveTeam {
		if err := e.EmergencyExecute().SetExecutiveTeamMember(m, true, dao); err != nil {
			return err
		}
	}
	if b.SignalsRequired > 0 {
		if err := e.EmergencyExecute().SetSignalsRequired(b.SignalsRequired, dao); err != nil {
			return err
		}
	}
	if len(b.Allocations) > 0 {
		if err := e.Token().EdgMintMany(b.Allocations, dao); err != nil {
			return errors.Wrap(err, "mint allocations")
		}
	}
	return nil
}

// SetExtensions toggles extensions.
type SetExtensions struct {
	Named
	Entries []core.ExtensionEntry
}

func (p *SetExtensions) Execute(e *core.Engine, sender common.Address) error {
	return e.Executor().SetExtensions(p.Entries, e.DAO())
}

// MintBurn mints and burns the governance token.
type MintBurn struct {
	Named
	Token common.Address
	Mint  []core.Allocation
	Burn  []core.Allocation
}

func (p *MintBurn) Execute(e *core.Engine, sender common.Address) error {
	token, err := resolveToken(e, p.Token)
	if err != nil {
		return err
	}
	dao := e.DAO()
	if len(p.Mint) > 0 {
		if err := token.EdgMintMany(p.Mint, dao); err != nil {
			return err
		}
	}
	for _, b := range p.Burn {
		if err := token.EdgBurn(b.Amount, b.Recipient, dao); err != nil {
			return err
		}
	}
	return nil
}

// SetParameters updates parameters owned by any of the extensions.
type SetParameters struct {
	Named
	Parameters []core.Parameter
}

func (p *SetParameters) Execute(e *core.Engine, sender common.Address) error {
	dao := e.DAO()
	var submission []core.Parameter
	for _, param := range p.Parameters {
		var err error
		switch param.Name {
		case core.ParamEmergencyProposalDuration:
			err = e.EmergencyProposals().SetEmergencyProposalDuration(param.Value, dao)
		case core.ParamEmergencyTeamSunsetHeight:
			err = e.EmergencyProposals().SetEmergencyTeamSunsetHeight(param.Value, dao)
		case core.ParamExecutiveSignalsRequired:
			err = e.EmergencyExecute().SetSignalsRequired(param.Value, dao)
		case core.ParamExecutiveTeamSunsetHeight:
			err = e.EmergencyExecute().SetExecutiveTeamSunsetHeight(param.Value, dao)
		default:
			submission = append(submission, param)
		}
		if err != nil {
			return err
		}
	}
	if len(submission) == 0 {
		return nil
	}
	return e.Submission().SetParameters(submission, dao)
}

// ChangeGovernanceToken points voting and submission at another registered
// token. Votes already cast keep the token they were locked with.
type ChangeGovernanceToken struct {
	Named
	Token common.Address
}

func (p *ChangeGovernanceToken) Execute(e *core.Engine, sender common.Address) error {
	if _, err := resolveToken(e, p.Token); err != nil {
		return err
	}
	dao := e.DAO()
	if err := e.Voting().SetGovernanceToken(p.Token, dao); err != nil {
		return err
	}
	return e.Submission().SetGovernanceToken(p.Token, dao)
}

type Membership struct {
	Member common.Address
	Active bool
}

// UpdateExecutiveTeam changes executive team membership and, when set, the
// signal threshold.
type UpdateExecutiveTeam struct {
	Named
	Members         []Membership
	SignalsRequired uint64
}

func (p *UpdateExecutiveTeam) Execute(e *core.Engine, sender common.Address) error {
	dao := e.DAO()
	for _, m := range p.Members {
		if err := e.EmergencyExecute().SetExecutiveTeamMember(m.Member, m.Active, dao); err != nil {
			return err
		}
	}
	if p.SignalsRequired == 0 {
		return nil
	}
	return e.EmergencyExecute().SetSignalsRequired(p.SignalsRequired, dao)
}

type UpdateEmergencyTeam struct {
	Named
	Members []Membership
}

func (p *UpdateEmergencyTeam) Execute(e *core.Engine, sender common.Address) error {
	dao := e.DAO()
	for _, m := range p.Members {
		if err := e.EmergencyProposals().SetEmergencyTeamMember(m.Member, m.Active, dao); err != nil {
			return err
		}
	}
	return nil
}

// TokenMetadata rewrites the metadata of a token. Empty fields are left
// untouched.
type TokenMetadata struct {
	Named
	Token    common.Address
	Name     string
	Symbol   string
	Decimals *uint8
	URI      *string
}

func (p *TokenMetadata) Execute(e *core.Engine, sender common.Address) error {
	token, err := resolveToken(e, p.Token)
	if err != nil {
		return err
	}
	dao := e.DAO()
	if p.Name != "" {
		if err := token.SetName(p.Name, dao); err != nil {
			return err
		}
	}
	if p.Symbol != "" {
		if err := token.SetSymbol(p.Symbol, dao); err != nil {
			return err
		}
	}
	if p.Decimals != nil {
		if err := token.SetDecimals(*p.Decimals, dao); err != nil {
			return err
		}
	}
	if p.URI != nil {
		return token.SetTokenURI(p.URI, dao)
	}
	return nil
}

// Func adapts a function to a payload.
type Func struct {
	Named
	Fn func(e *core.Engine, sender common.Address) error
}

func (p *Func) Execute(e *core.Engine, sender common.Address) error {
	return p.Fn(e, sender)
}

// resolveToken returns the primary token for the zero address.
func resolveToken(e *core.Engine, addr common.Address) (*core.Token, error) {
	if addr == (common.Address{}) {
		return e.Token(), nil
	}
	token, ok := e.TokenAt(addr)
	if !ok {
		return nil, errors.Errorf("token %s is not registered", addr.Hex())
	}
	return token, nil
}
