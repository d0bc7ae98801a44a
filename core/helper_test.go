package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	id common.Address
	fn func(e *Engine, sender common.Address) error
}

func (p *testPayload) ID() common.Address {
	return p.id
}

func (p *testPayload) Execute(e *Engine, sender common.Address) error {
	if p.fn == nil {
		return nil
	}
	return p.fn(e, sender)
}

func account(name string) common.Address {
	return ContractAddress("account/" + name)
}

var (
	deployer = account("deployer")
	wallet1  = account("wallet_1")
	wallet2  = account("wallet_2")
	wallet3  = account("wallet_3")
	wallet4  = account("wallet_4")
	wallet5  = account("wallet_5")
	wallet6  = account("wallet_6")
	wallet7  = account("wallet_7")
	wallet8  = account("wallet_8")
	ward     = account("ward")

	funded        = []common.Address{deployer, wallet1, wallet2, wallet3, wallet4, wallet5, wallet6, wallet7, wallet8}
	emergencyTeam = []common.Address{wallet1, wallet2}
	executiveTeam = []common.Address{wallet1, wallet2, wallet3, wallet4}

	bootstrapID = ContractAddress("edp000-bootstrap")
)

type testEnv struct {
	engine   *Engine
	chain    *Chain
	recorder *Recorder
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		chain:    NewChain(0),
		recorder: &Recorder{},
		registry: prometheus.NewRegistry(),
	}
	opts = append([]Option{
		WithLogger(logger),
		WithEventSink(env.recorder),
		WithRegisterer(env.registry),
	}, opts...)
	env.engine = NewEngine(deployer, env.chain, opts...)
	return env
}

// bootstrapPayload enables the standard extensions, seeds both teams and
// mints 1000 to every funded account.
func bootstrapPayload() *testPayload {
	return &testPayload{
		id: bootstrapID,
		fn: func(e *Engine, sender common.Address) error {
			dao := e.DAO()
			var entries []ExtensionEntry
			for _, ext := range e.Extensions() {
				entries = append(entries, ExtensionEntry{Extension: ext.Address(), Enabled: true})
			}
			if err := e.Executor().SetExtensions(entries, dao); err != nil {
				return err
			}
			for _, m := range emergencyTeam {
				if err := e.EmergencyProposals().SetEmergencyTeamMember(m, true, dao); err != nil {
					return err
				}
			}
			for _, m := range executiveTeam {
				if err := e.EmergencyExecute().SetExecutiveTeamMember(m, true, dao); err != nil {
					return err
				}
			}
			if err := e.EmergencyExecute().SetSignalsRequired(3, dao); err != nil {
				return err
			}
			var allocations []Allocation
			for _, a := range funded {
				allocations = append(allocations, Allocation{Amount: 1000, Recipient: a})
			}
			return e.Token().EdgMintMany(allocations, dao)
		},
	}
}

// newConstructedEnv returns an engine that ran the bootstrap payload at
// height 0.
func newConstructedEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := newTestEnv(t, opts...)
	require.Nil(t, env.engine.Executor().Deploy(bootstrapPayload()))
	require.Nil(t, env.engine.Executor().Construct(bootstrapID, deployer))
	return env
}

// deploy registers a payload that records how often it ran.
func (env *testEnv) deploy(t *testing.T, name string) (common.Address, *int) {
	t.Helper()
	runs := new(int)
	id := ContractAddress(name)
	require.Nil(t, env.engine.Executor().Deploy(&testPayload{
		id: id,
		fn: func(e *Engine, sender common.Address) error {
			*runs++
			return nil
		},
	}))
	return id, runs
}

// checkInvariants asserts the token ledger invariants on every registered
// token and that every recorded vote is backed by locked stake.
func (env *testEnv) checkInvariants(t *testing.T) {
	t.Helper()
	st := env.engine.State()
	for addr, ts := range st.Tokens {
		var sum uint64
		for _, v := range ts.Available {
			sum += v
		}
		for holder, v := range ts.Locked {
			sum += v
			total := ts.Available[holder] + v
			require.GreaterOrEqual(t, total, v, "locked of %s exceeds its balance", holder.Hex())
		}
		require.Equal(t, ts.Supply, sum, "supply of %s", addr.Hex())
	}
	staked := make(map[VoteKey]uint64)
	for key, record := range st.Votes {
		holder := VoteKey{Voter: key.Voter, Token: key.Token}
		staked[holder] += record.Total
	}
	for key, amount := range staked {
		ts, ok := st.Tokens[key.Token]
		require.True(t, ok, "votes under unregistered token %s", key.Token.Hex())
		require.LessOrEqual(t, amount, ts.Locked[key.Voter], "votes of %s not backed by locked stake", key.Voter.Hex())
	}
	for _, p := range st.Proposals {
		if !p.Concluded {
			require.False(t, p.Passed)
		}
	}
}
