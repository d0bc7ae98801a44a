package node

import (
	"io"
	"os"
	"sort"

	"github.com/axiomesh/executordao/core"
	"github.com/axiomesh/executordao/proposals"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Script is a replayable list of payload deployments and blocks of
// transactions.
type Script struct {
	Tokens   []TokenSpec   `yaml:"tokens"`
	Payloads []PayloadSpec `yaml:"payloads"`
	Blocks   []Block       `yaml:"blocks"`
}

// TokenSpec registers an additional governance token.
type TokenSpec struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type AllocationSpec struct {
	Recipient string `yaml:"recipient"`
	Amount    uint64 `yaml:"amount"`
}

type MemberSpec struct {
	Member string `yaml:"member"`
	Active bool   `yaml:"active"`
}

type ExtensionSpec struct {
	Extension string `yaml:"extension"`
	Enabled   bool   `yaml:"enabled"`
}

// PayloadSpec describes one reference payload. Which fields apply depends on
// Kind.
type PayloadSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	Token           string            `yaml:"token"`
	Mint            []AllocationSpec  `yaml:"mint"`
	Burn            []AllocationSpec  `yaml:"burn"`
	Extensions      []ExtensionSpec   `yaml:"extensions"`
	Parameters      map[string]uint64 `yaml:"parameters"`
	Members         []MemberSpec      `yaml:"members"`
	SignalsRequired uint64            `yaml:"signals_required"`
	Title           string            `yaml:"title"`
	Symbol          string            `yaml:"symbol"`
	Decimals        *uint8            `yaml:"decimals"`
	URI             *string           `yaml:"uri"`
}

// Block mines Advance blocks (at least one) and then applies Txs in order
// at the new height.
type Block struct {
	Advance uint64 `yaml:"advance"`
	Txs     []Tx   `yaml:"txs"`
}

type Tx struct {
	Caller string `yaml:"caller"`
	Op     string `yaml:"op"`

	Proposal    string `yaml:"proposal"`
	ReclaimFrom string `yaml:"reclaim_from"`
	Token       string `yaml:"token"`
	Amount      uint64 `yaml:"amount"`
	For         bool   `yaml:"for"`
	// Start is an absolute start height; when zero the proposal starts
	// Delay blocks from now
	Start     uint64 `yaml:"start"`
	Delay     uint64 `yaml:"delay"`
	Recipient string `yaml:"recipient"`
	Memo      string `yaml:"memo"`
}

const (
	OpConstruct        = "construct"
	OpTransfer         = "transfer"
	OpPropose          = "propose"
	OpVote             = "vote"
	OpConclude         = "conclude"
	OpReclaim          = "reclaim"
	OpReclaimAndVote   = "reclaim-and-vote"
	OpEmergencyPropose = "emergency-propose"
	OpExecutiveAction  = "executive-action"
)

const (
	KindSetExtensions         = "set-extensions"
	KindMintBurn              = "mint-burn"
	KindSetParameters         = "set-parameters"
	KindChangeGovernanceToken = "change-governance-token"
	KindExecutiveTeam         = "executive-team"
	KindEmergencyTeam         = "emergency-team"
	KindTokenMetadata         = "token-metadata"
)

// Receipt is the outcome of one transaction. A failed transaction carries
// the error and, for governance errors, its code.
type Receipt struct {
	ID     uuid.UUID `json:"id"`
	Height uint64    `json:"height"`
	Index  uint      `json:"index"`
	Caller string    `json:"caller"`
	Op     string    `json:"op"`
	Result any       `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
	Code   uint32    `json:"code,omitempty"`
}

func (r *Receipt) Success() bool {
	return r.Error == ""
}

func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open script %s", path)
	}
	defer f.Close()
	return DecodeScript(f)
}

func DecodeScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode script")
	}
	return &s, nil
}

// Apply registers the script's tokens and payloads and replays its blocks.
// Failing transactions are recorded in their receipts; an error is returned
// only for malformed scripts.
func (n *Node) Apply(s *Script) ([]*Receipt, error) {
	for _, t := range s.Tokens {
		n.Engine.RegisterToken(t.Name, core.TokenMetadata{Name: t.Title, Symbol: t.Symbol, Decimals: t.Decimals})
	}
	for _, p := range s.Payloads {
		payload, err := n.payload(p)
		if err != nil {
			return nil, errors.Wrapf(err, "payload %s", p.Name)
		}
		if n.Engine.Executor().IsDeployed(payload.ID()) {
			continue
		}
		if err := n.Engine.Executor().Deploy(payload); err != nil {
			return nil, err
		}
	}

	var receipts []*Receipt
	for i, b := range s.Blocks {
		if err := n.Ctx.Err(); err != nil {
			return receipts, err
		}
		advance := b.Advance
		if advance == 0 {
			advance = 1
		}
		height := n.Chain.Advance(advance)
		for idx, tx := range b.Txs {
			r, err := n.applyTx(tx, uint(idx))
			if err != nil {
				return receipts, errors.Wrapf(err, "block %d tx %d", i, idx)
			}
			receipts = append(receipts, r)
		}
		if err := n.Persist(); err != nil {
			return receipts, err
		}
		n.Logger.WithFields(logrus.Fields{
			"height": height,
			"txs":    len(b.Txs),
		}).Debug("applied block")
	}
	return receipts, nil
}

func (n *Node) applyTx(tx Tx, index uint) (*Receipt, error) {
	caller, err := n.Config.Address(tx.Caller)
	if err != nil {
		return nil, err
	}
	r := &Receipt{
		ID:     uuid.New(),
		Height: n.Chain.Height(),
		Index:  index,
		Caller: tx.Caller,
		Op:     tx.Op,
	}
	n.logs.begin(crypto.Keccak256Hash(r.ID[:]), index)

	result, err := n.dispatch(tx, caller)
	if errors.Is(err, errMalformed) {
		return nil, err
	}
	r.Result = result
	if err != nil {
		r.Error = err.Error()
		var gerr *core.Error
		if errors.As(err, &gerr) {
			r.Code = gerr.Code
		}
	}
	n.Logger.WithFields(logrus.Fields{
		"id":     r.ID.String(),
		"caller": tx.Caller,
		"op":     tx.Op,
		"height": r.Height,
		"ok":     r.Success(),
	}).Info("applied transaction")
	return r, nil
}

var errMalformed = errors.New("malformed transaction")

func (n *Node) dispatch(tx Tx, caller common.Address) (any, error) {
	e := n.Engine
	ref := func(name string) (common.Address, error) {
		if name == "" {
			return common.Address{}, errors.Wrap(errMalformed, "missing proposal")
		}
		if common.IsHexAddress(name) {
			return common.HexToAddress(name), nil
		}
		return proposals.Named(name).ID(), nil
	}
	token, err := n.token(tx.Token)
	if err != nil {
		return nil, err
	}

	switch tx.Op {
	case OpConstruct:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		return nil, e.Executor().Construct(id, caller)
	case OpTransfer:
		recipient, err := n.Config.Address(tx.Recipient)
		if err != nil {
			return nil, errors.Wrap(errMalformed, err.Error())
		}
		var memo []byte
		if tx.Memo != "" {
			memo = []byte(tx.Memo)
		}
		return nil, token.Transfer(tx.Amount, caller, recipient, memo, caller)
	case OpPropose:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		start := tx.Start
		if start == 0 {
			start = n.Chain.Height() + tx.Delay
		}
		return start, e.Submission().Propose(id, start, token, caller)
	case OpVote:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		return nil, e.Voting().Vote(tx.Amount, tx.For, id, token, caller)
	case OpConclude:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		return e.Voting().Conclude(id, caller)
	case OpReclaim:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		return nil, e.Voting().ReclaimVotes(id, token, caller)
	case OpReclaimAndVote:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		from, err := ref(tx.ReclaimFrom)
		if err != nil {
			return nil, err
		}
		return nil, e.Voting().ReclaimAndVote(tx.Amount, tx.For, id, from, token, caller)
	case OpEmergencyPropose:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		return nil, e.EmergencyProposals().EmergencyPropose(id, caller)
	case OpExecutiveAction:
		id, err := ref(tx.Proposal)
		if err != nil {
			return nil, err
		}
		return e.EmergencyExecute().ExecutiveAction(id, caller)
	default:
		return nil, errors.Wrapf(errMalformed, "unknown op %q", tx.Op)
	}
}

// token resolves a token by contract name or address; empty means the
// primary token.
func (n *Node) token(ref string) (*core.Token, error) {
	if ref == "" {
		return n.Engine.Token(), nil
	}
	addr := core.ContractAddress(ref)
	if common.IsHexAddress(ref) {
		addr = common.HexToAddress(ref)
	}
	t, ok := n.Engine.TokenAt(addr)
	if !ok {
		return nil, errors.Wrapf(errMalformed, "unknown token %s", ref)
	}
	return t, nil
}

func (n *Node) allocations(specs []AllocationSpec) ([]core.Allocation, error) {
	var out []core.Allocation
	for _, s := range specs {
		addr, err := n.Config.Address(s.Recipient)
		if err != nil {
			return nil, err
		}
		out = append(out, core.Allocation{Amount: s.Amount, Recipient: addr})
	}
	return out, nil
}

func (n *Node) memberships(specs []MemberSpec) ([]proposals.Membership, error) {
	var out []proposals.Membership
	for _, s := range specs {
		addr, err := n.Config.Address(s.Member)
		if err != nil {
			return nil, err
		}
		out = append(out, proposals.Membership{Member: addr, Active: s.Active})
	}
	return out, nil
}

func (n *Node) payload(p PayloadSpec) (core.Executable, error) {
	name := proposals.Named(p.Name)
	var tokenAddr common.Address
	if p.Token != "" {
		t, err := n.token(p.Token)
		if err != nil {
			return nil, err
		}
		tokenAddr = t.Address()
	}

	switch p.Kind {
	case KindSetExtensions:
		var entries []core.ExtensionEntry
		for _, s := range p.Extensions {
			addr, err := n.Config.Address(s.Extension)
			if err != nil {
				return nil, err
			}
			entries = append(entries, core.ExtensionEntry{Extension: addr, Enabled: s.Enabled})
		}
		return &proposals.SetExtensions{Named: name, Entries: entries}, nil
	case KindMintBurn:
		mint, err := n.allocations(p.Mint)
		if err != nil {
			return nil, err
		}
		burn, err := n.allocations(p.Burn)
		if err != nil {
			return nil, err
		}
		return &proposals.MintBurn{Named: name, Token: tokenAddr, Mint: mint, Burn: burn}, nil
	case KindSetParameters:
		payload := &proposals.SetParameters{Named: name}
		for k, v := range p.Parameters {
			payload.Parameters = append(payload.Parameters, core.Parameter{Name: k, Value: v})
		}
		sort.Slice(payload.Parameters, func(i, j int) bool {
			return payload.Parameters[i].Name < payload.Parameters[j].Name
		})
		return payload, nil
	case KindChangeGovernanceToken:
		return &proposals.ChangeGovernanceToken{Named: name, Token: tokenAddr}, nil
	case KindExecutiveTeam:
		members, err := n.memberships(p.Members)
		if err != nil {
			return nil, err
		}
		return &proposals.UpdateExecutiveTeam{Named: name, Members: members, SignalsRequired: p.SignalsRequired}, nil
	case KindEmergencyTeam:
		members, err := n.memberships(p.Members)
		if err != nil {
			return nil, err
		}
		return &proposals.UpdateEmergencyTeam{Named: name, Members: members}, nil
	case KindTokenMetadata:
		return &proposals.TokenMetadata{
			Named:    name,
			Token:    tokenAddr,
			Name:     p.Title,
			Symbol:   p.Symbol,
			Decimals: p.Decimals,
			URI:      p.URI,
		}, nil
	default:
		return nil, errors.Errorf("unknown payload kind %q", p.Kind)
	}
}
