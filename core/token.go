package core

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PercentageBase scales the factor given to EdgHasPercentageBalance.
const PercentageBase = 1000

type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
	URI      *string
}

func DefaultTokenMetadata() TokenMetadata {
	return TokenMetadata{
		Name:     "ExecutorDAO Governance Token",
		Symbol:   "EDG",
		Decimals: 6,
	}
}

// GovernanceToken is what voting and submission need from a token ledger.
type GovernanceToken interface {
	Address() common.Address
	EdgGetBalance(who common.Address) uint64
	EdgHasPercentageBalance(who common.Address, factor uint64) bool
	EdgLock(amount uint64, owner, caller common.Address) error
	EdgUnlock(amount uint64, owner, caller common.Address) error
}

var _ GovernanceToken = (*Token)(nil)
var _ Extension = (*Token)(nil)

// Token is a fungible governance token whose holders carry an available and a
// locked balance. Every mutation except a holder's own transfer requires the
// DAO or an enabled extension as caller.
type Token struct {
	engine  *Engine
	address common.Address
}

func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) Callback(sender common.Address, memo []byte) error {
	return nil
}

func (t *Token) ledger() *TokenState {
	return t.engine.state.Tokens[t.address]
}

func (t *Token) authorise(caller common.Address) error {
	if !t.engine.isDAOOrExtension(caller) {
		return ErrTokenUnauthorised
	}
	return nil
}

// Transfer moves available tokens. The caller must be the sender itself or
// the DAO/an extension.
func (t *Token) Transfer(amount uint64, sender, recipient common.Address, memo []byte, caller common.Address) error {
	return t.engine.atomic("transfer", func() error {
		if caller != sender && !t.engine.isDAOOrExtension(caller) {
			return ErrNotTokenOwner
		}
		if err := t.transfer(amount, sender, recipient); err != nil {
			return err
		}
		if len(memo) > 0 {
			t.engine.emit(t.address, EventTransfer, string(memo), map[string]any{
				"sender":    sender.Hex(),
				"recipient": recipient.Hex(),
				"amount":    amount,
			})
		}
		return nil
	})
}

func (t *Token) EdgTransfer(amount uint64, sender, recipient, caller common.Address) error {
	return t.engine.atomic("edg-transfer", func() error {
		if err := t.authorise(caller); err != nil {
			return err
		}
		return t.transfer(amount, sender, recipient)
	})
}

func (t *Token) transfer(amount uint64, sender, recipient common.Address) error {
	l := t.ledger()
	if amount == 0 || l.Available[sender] < amount {
		return ErrInsufficientBalance
	}
	if sender == recipient {
		return nil
	}
	l.Available[sender] -= amount
	l.Available[recipient] += amount
	return nil
}

func (t *Token) EdgLock(amount uint64, owner, caller common.Address) error {
	return t.engine.atomic("edg-lock", func() error {
		if err := t.authorise(caller); err != nil {
			return err
		}
		l := t.ledger()
		if amount == 0 || l.Available[owner] < amount {
			return ErrInsufficientBalance
		}
		l.Available[owner] -= amount
		l.Locked[owner] += amount
		t.engine.emit(t.address, EventLock, "", map[string]any{
			"owner":  owner.Hex(),
			"amount": amount,
		})
		return nil
	})
}

func (t *Token) EdgUnlock(amount uint64, owner, caller common.Address) error {
	return t.engine.atomic("edg-unlock", func() error {
		if err := t.authorise(caller); err != nil {
			return err
		}
		l := t.ledger()
		if amount == 0 || l.Locked[owner] < amount {
			return ErrInsufficientLocked
		}
		l.Locked[owner] -= amount
		l.Available[owner] += amount
		t.engine.emit(t.address, EventUnlock, "", map[string]any{
			"owner":  owner.Hex(),
			"amount": amount,
		})
		return nil
	})
}

func (t *Token) EdgMint(amount uint64, recipient, caller common.Address) error {
	return t.EdgMintMany([]Allocation{{Amount: amount, Recipient: recipient}}, caller)
}

func (t *Token) EdgMintMany(allocations []Allocation, caller common.Address) error {
	return t.engine.atomic("edg-mint", func() error {
		if err := t.authorise(caller); err != nil {
			return err
		}
		l := t.ledger()
		for _, a := range allocations {
			if a.Amount > math.MaxUint64-l.Supply {
				return ErrSupplyOverflow
			}
			l.Supply += a.Amount
			l.Available[a.Recipient] += a.Amount
			t.engine.emit(t.address, EventMint, "", map[string]any{
				"recipient": a.Recipient.Hex(),
				"amount":    a.Amount,
			})
		}
		return nil
	})
}

// EdgBurn destroys available tokens only; stake locked in votes is never
// burned.
func (t *Token) EdgBurn(amount uint64, owner, caller common.Address) error {
	return t.engine.atomic("edg-burn", func() error {
		if err := t.authorise(caller); err != nil {
			return err
		}
		l := t.ledger()
		if amount == 0 || l.Available[owner] < amount {
			return ErrInsufficientBalance
		}
		l.Available[owner] -= amount
		l.Supply -= amount
		t.engine.emit(t.address, EventBurn, "", map[string]any{
			"owner":  owner.Hex(),
			"amount": amount,
		})
		return nil
	})
}

// EdgGetBalance is the total balance, available plus locked.
func (t *Token) EdgGetBalance(who common.Address) uint64 {
	l := t.ledger()
	return l.Available[who] + l.Locked[who]
}

func (t *Token) EdgGetLocked(who common.Address) uint64 {
	return t.ledger().Locked[who]
}

func (t *Token) Available(who common.Address) uint64 {
	return t.ledger().Available[who]
}

func (t *Token) TotalSupply() uint64 {
	return t.ledger().Supply
}

// EdgHasPercentageBalance reports whether balance*factor >= supply*1000.
func (t *Token) EdgHasPercentageBalance(who common.Address, factor uint64) bool {
	balance := new(big.Int).SetUint64(t.EdgGetBalance(who))
	balance.Mul(balance, new(big.Int).SetUint64(factor))
	threshold := new(big.Int).SetUint64(t.TotalSupply())
	threshold.Mul(threshold, big.NewInt(PercentageBase))
	return balance.Cmp(threshold) >= 0
}

func (t *Token) Name() string {
	return t.ledger().Name
}

func (t *Token) Symbol() string {
	return t.ledger().Symbol
}

func (t *Token) Decimals() uint8 {
	return t.ledger().Decimals
}

func (t *Token) TokenURI() (string, bool) {
	uri := t.ledger().URI
	if uri == nil {
		return "", false
	}
	return *uri, true
}

func (t *Token) SetName(name string, caller common.Address) error {
	return t.setMetadata("name", name, caller, func(l *TokenState) { l.Name = name })
}

func (t *Token) SetSymbol(symbol string, caller common.Address) error {
	return t.setMetadata("symbol", symbol, caller, func(l *TokenState) { l.Symbol = symbol })
}

func (t *Token) SetDecimals(decimals uint8, caller common.Address) error {
	return t.setMetadata("decimals", decimals, caller, func(l *TokenState) { l.Decimals = decimals })
}

func (t *Token) SetTokenURI(uri *string, caller common.Address) error {
	var value any
	if uri != nil {
		value = *uri
	}
	return t.setMetadata("uri", value, caller, func(l *TokenState) {
		if uri == nil {
			l.URI = nil
			return
		}
		v := *uri
		l.URI = &v
	})
}

func (t *Token) setMetadata(field string, value any, caller common.Address, apply func(*TokenState)) error {
	return t.engine.atomic("set-token-"+field, func() error {
		if err := t.authorise(caller); err != nil {
			return err
		}
		apply(t.ledger())
		t.engine.emit(t.address, EventTokenMetadata, "", map[string]any{
			"field": field,
			"value": value,
		})
		return nil
	})
}
