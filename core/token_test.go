package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenMetadata(t *testing.T) {
	env := newConstructedEnv(t)
	token := env.engine.Token()
	dao := env.engine.DAO()

	assert.Equal(t, "ExecutorDAO Governance Token", token.Name())
	assert.Equal(t, "EDG", token.Symbol())
	assert.EqualValues(t, 6, token.Decimals())
	_, ok := token.TokenURI()
	assert.False(t, ok)

	// the deployer is no token owner
	err := token.SetName("Mine", deployer)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))
	err = token.SetSymbol("MINE", deployer)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))
	err = token.SetDecimals(2, deployer)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))

	uri := "https://example.org/edg.json"
	require.Nil(t, token.SetName("Renamed", dao))
	require.Nil(t, token.SetSymbol("RNM", dao))
	require.Nil(t, token.SetDecimals(2, dao))
	require.Nil(t, token.SetTokenURI(&uri, dao))
	uri = "changed"

	assert.Equal(t, "Renamed", token.Name())
	assert.Equal(t, "RNM", token.Symbol())
	assert.EqualValues(t, 2, token.Decimals())
	got, ok := token.TokenURI()
	assert.True(t, ok)
	assert.Equal(t, "https://example.org/edg.json", got)

	require.Nil(t, token.SetTokenURI(nil, dao))
	_, ok = token.TokenURI()
	assert.False(t, ok)
	assert.Len(t, env.recorder.Filter(EventTokenMetadata), 5)
}

func TestTokenTransfer(t *testing.T) {
	env := newConstructedEnv(t)
	token := env.engine.Token()

	require.Nil(t, token.Transfer(100, wallet1, ward, nil, wallet1))
	assert.EqualValues(t, 900, token.EdgGetBalance(wallet1))
	assert.EqualValues(t, 100, token.EdgGetBalance(ward))
	assert.Empty(t, env.recorder.Filter(EventTransfer))

	err := token.Transfer(100, wallet1, ward, nil, wallet2)
	assert.True(t, errors.Is(err, ErrNotTokenOwner))

	err = token.Transfer(901, wallet1, ward, nil, wallet1)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	err = token.Transfer(0, wallet1, ward, nil, wallet1)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	require.Nil(t, token.Transfer(50, wallet1, ward, []byte("rent"), wallet1))
	memos := env.recorder.Filter(EventTransfer)
	require.Len(t, memos, 1)
	assert.Equal(t, "rent", memos[0].Message)

	// the dao may move anyone's balance
	require.Nil(t, token.Transfer(150, ward, wallet2, nil, env.engine.DAO()))
	assert.EqualValues(t, 0, token.EdgGetBalance(ward))

	err = token.EdgTransfer(10, wallet2, wallet3, wallet2)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))
	require.Nil(t, token.EdgTransfer(10, wallet2, wallet3, env.engine.DAO()))
	assert.EqualValues(t, 1140, token.EdgGetBalance(wallet2))
	assert.EqualValues(t, 1010, token.EdgGetBalance(wallet3))

	env.checkInvariants(t)
}

func TestTokenLockUnlock(t *testing.T) {
	env := newConstructedEnv(t)
	token := env.engine.Token()
	dao := env.engine.DAO()

	err := token.EdgLock(100, wallet1, wallet1)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))

	require.Nil(t, token.EdgLock(400, wallet1, dao))
	assert.EqualValues(t, 1000, token.EdgGetBalance(wallet1))
	assert.EqualValues(t, 400, token.EdgGetLocked(wallet1))
	assert.EqualValues(t, 600, token.Available(wallet1))

	err = token.EdgLock(601, wallet1, dao)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	// locked tokens cannot be transferred
	err = token.Transfer(601, wallet1, ward, nil, wallet1)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	err = token.EdgUnlock(401, wallet1, dao)
	assert.True(t, errors.Is(err, ErrInsufficientLocked))
	err = token.EdgUnlock(100, wallet1, wallet1)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))

	require.Nil(t, token.EdgUnlock(400, wallet1, dao))
	assert.EqualValues(t, 0, token.EdgGetLocked(wallet1))
	assert.EqualValues(t, 1000, token.Available(wallet1))
	env.checkInvariants(t)
}

func TestTokenMintBurn(t *testing.T) {
	env := newConstructedEnv(t)
	token := env.engine.Token()
	dao := env.engine.DAO()

	err := token.EdgMint(100, ward, deployer)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))
	err = token.EdgBurn(100, wallet1, deployer)
	assert.True(t, errors.Is(err, ErrTokenUnauthorised))

	require.Nil(t, token.EdgMint(100, ward, dao))
	assert.EqualValues(t, 9100, token.TotalSupply())

	require.Nil(t, token.EdgBurn(100, wallet1, dao))
	assert.EqualValues(t, 9000, token.TotalSupply())
	assert.EqualValues(t, 900, token.EdgGetBalance(wallet1))

	// locked stake is not burned
	require.Nil(t, token.EdgLock(800, wallet1, dao))
	err = token.EdgBurn(101, wallet1, dao)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	require.Nil(t, token.EdgBurn(100, wallet1, dao))
	assert.EqualValues(t, 800, token.EdgGetLocked(wallet1))
	assert.EqualValues(t, 800, token.EdgGetBalance(wallet1))

	err = token.EdgMint(math.MaxUint64, ward, dao)
	assert.True(t, errors.Is(err, ErrSupplyOverflow))
	assert.EqualValues(t, 8900, token.TotalSupply())

	assert.Len(t, env.recorder.Filter(EventMint), len(funded)+1)
	assert.Len(t, env.recorder.Filter(EventBurn), 2)
	env.checkInvariants(t)
}

func TestTokenMintManyIsAtomic(t *testing.T) {
	env := newConstructedEnv(t)
	token := env.engine.Token()

	err := token.EdgMintMany([]Allocation{
		{Amount: 5, Recipient: ward},
		{Amount: math.MaxUint64, Recipient: wallet1},
	}, env.engine.DAO())
	assert.True(t, errors.Is(err, ErrSupplyOverflow))
	assert.EqualValues(t, 0, token.EdgGetBalance(ward))
	assert.EqualValues(t, 9000, token.TotalSupply())
}

func TestHasPercentageBalance(t *testing.T) {
	env := newConstructedEnv(t)
	token := env.engine.Token()

	// 9000 supply, factor 100000: 90 tokens are enough
	require.Nil(t, token.Transfer(89, wallet1, ward, nil, wallet1))
	assert.False(t, token.EdgHasPercentageBalance(ward, DefaultProposeFactor))
	require.Nil(t, token.Transfer(1, wallet1, ward, nil, wallet1))
	assert.True(t, token.EdgHasPercentageBalance(ward, DefaultProposeFactor))

	// locked tokens still count
	require.Nil(t, token.EdgLock(90, ward, env.engine.DAO()))
	assert.True(t, token.EdgHasPercentageBalance(ward, DefaultProposeFactor))

	assert.True(t, token.EdgHasPercentageBalance(wallet2, PercentageBase*9))
	assert.False(t, token.EdgHasPercentageBalance(wallet2, PercentageBase*8))
	assert.True(t, token.EdgHasPercentageBalance(wallet2, math.MaxUint64))
}

func TestRegisterToken(t *testing.T) {
	env := newConstructedEnv(t)
	e := env.engine

	v2 := e.RegisterToken("ede000-governance-token-v2", TokenMetadata{Name: "EDG v2", Symbol: "EDG2", Decimals: 6})
	assert.Same(t, v2, e.RegisterToken("ede000-governance-token-v2", TokenMetadata{}))
	assert.NotEqual(t, e.Token().Address(), v2.Address())

	got, ok := e.TokenAt(v2.Address())
	require.True(t, ok)
	assert.Same(t, v2, got)

	require.Nil(t, v2.EdgMint(10, ward, e.DAO()))
	assert.EqualValues(t, 10, v2.EdgGetBalance(ward))
	assert.EqualValues(t, 0, e.Token().EdgGetBalance(ward))
	assert.Equal(t, "EDG2", v2.Symbol())
	env.checkInvariants(t)
}
