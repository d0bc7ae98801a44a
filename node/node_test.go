package node

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/axiomesh/executordao/core"
	"github.com/axiomesh/executordao/repo"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mintScript = `
payloads:
  - name: edp001-mint
    kind: mint-burn
    mint:
      - recipient: wallet_9
        amount: 500
blocks:
  - txs:
      - caller: wallet_9
        op: propose
        proposal: edp001-mint
        delay: 144
      - caller: wallet_1
        op: propose
        proposal: edp001-mint
        delay: 144
  - advance: 144
    txs:
      - caller: wallet_1
        op: vote
        proposal: edp001-mint
        amount: 500
        for: true
      - caller: wallet_2
        op: vote
        proposal: edp001-mint
        amount: 100
  - advance: 1441
    txs:
      - caller: wallet_3
        op: conclude
        proposal: edp001-mint
      - caller: wallet_1
        op: reclaim
        proposal: edp001-mint
`

func newTestNode(t *testing.T) (*Node, *repo.Config) {
	t.Helper()
	config := repo.DefaultConfig(t.TempDir())
	config.Log.Level = "debug"

	n, err := New(context.Background(), config)
	require.Nil(t, err)
	return n, config
}

func mustAddress(t *testing.T, config *repo.Config, ref string) common.Address {
	t.Helper()
	addr, err := config.Address(ref)
	require.Nil(t, err)
	return addr
}

func TestNodeConstruct(t *testing.T) {
	n, config := newTestNode(t)
	defer n.Stop()

	assert.False(t, n.Engine.Executor().IsConstructed())
	require.Nil(t, n.Construct())
	assert.True(t, n.Engine.Executor().IsConstructed())
	// constructing twice is a no-op
	require.Nil(t, n.Construct())

	token := n.Engine.Token()
	assert.EqualValues(t, 9000, token.TotalSupply())
	assert.EqualValues(t, 1000, token.EdgGetBalance(mustAddress(t, config, "deployer")))
	assert.EqualValues(t, 0, token.EdgGetBalance(mustAddress(t, config, "wallet_9")))
	assert.Equal(t, "EDG", token.Symbol())
	assert.True(t, n.Engine.Executor().IsExtension(core.ContractAddress(core.ProposalVotingName)))
	assert.True(t, n.Engine.EmergencyExecute().IsExecutiveTeamMember(mustAddress(t, config, "wallet_4")))
	assert.EqualValues(t, 3, n.Engine.EmergencyExecute().GetSignalsRequired())
}

func TestNodeApplyScript(t *testing.T) {
	n, config := newTestNode(t)
	defer n.Stop()
	require.Nil(t, n.Construct())

	script, err := DecodeScript(strings.NewReader(mintScript))
	require.Nil(t, err)
	receipts, err := n.Apply(script)
	require.Nil(t, err)
	require.Len(t, receipts, 6)

	assert.False(t, receipts[0].Success())
	assert.Equal(t, core.ErrProposerInsufficientBalance.Code, receipts[0].Code)
	for _, r := range receipts[1:] {
		assert.True(t, r.Success(), "%s: %s", r.Op, r.Error)
	}
	assert.EqualValues(t, 145, receipts[1].Result)
	assert.Equal(t, true, receipts[4].Result)
	assert.EqualValues(t, 1586, receipts[4].Height)
	assert.EqualValues(t, 1, receipts[5].Index)
	assert.NotEqual(t, receipts[4].ID, receipts[5].ID)

	token := n.Engine.Token()
	assert.EqualValues(t, 500, token.EdgGetBalance(mustAddress(t, config, "wallet_9")))
	assert.EqualValues(t, 9500, token.TotalSupply())
	assert.EqualValues(t, 0, token.EdgGetLocked(mustAddress(t, config, "wallet_1")))
	assert.EqualValues(t, 100, token.EdgGetLocked(mustAddress(t, config, "wallet_2")))

	metrics, err := n.Metrics()
	require.Nil(t, err)
	assert.EqualValues(t, 2, metrics["executordao_payload_executions_total"])
	assert.EqualValues(t, 9500, metrics["executordao_governance_token_supply"])
}

func TestNodeApplyMalformed(t *testing.T) {
	n, _ := newTestNode(t)
	defer n.Stop()

	_, err := DecodeScript(strings.NewReader("blocks:\n  - tx: []\n"))
	assert.NotNil(t, err)

	script := &Script{Blocks: []Block{{Txs: []Tx{{Caller: "wallet_1", Op: "teleport"}}}}}
	_, err = n.Apply(script)
	assert.NotNil(t, err)

	script = &Script{Blocks: []Block{{Txs: []Tx{{Caller: "nobody", Op: OpConclude, Proposal: "edp001"}}}}}
	_, err = n.Apply(script)
	assert.NotNil(t, err)

	script = &Script{Payloads: []PayloadSpec{{Name: "edp002", Kind: "unknown"}}}
	_, err = n.Apply(script)
	assert.NotNil(t, err)
}

func TestNodeRestore(t *testing.T) {
	n, config := newTestNode(t)
	require.Nil(t, n.Construct())
	script, err := DecodeScript(strings.NewReader(mintScript))
	require.Nil(t, err)
	_, err = n.Apply(script)
	require.Nil(t, err)
	version := n.Engine.State().Version
	require.Nil(t, n.Stop())

	again, err := New(context.Background(), config)
	require.Nil(t, err)
	defer again.Stop()

	assert.EqualValues(t, 1586, again.Chain.Height())
	assert.True(t, again.Engine.Executor().IsConstructed())
	assert.Equal(t, version, again.Engine.State().Version)
	assert.EqualValues(t, 500, again.Engine.Token().EdgGetBalance(mustAddress(t, config, "wallet_9")))

	view, ok := again.Engine.Voting().GetProposal(core.ContractAddress("edp001-mint"))
	require.True(t, ok)
	assert.True(t, view.Concluded)
	assert.True(t, view.Passed)

	logs, err := again.FilterLogs(context.Background(), ethereum.FilterQuery{})
	require.Nil(t, err)
	assert.NotEmpty(t, logs)
}

func TestNodeFilterLogs(t *testing.T) {
	n, _ := newTestNode(t)
	defer n.Stop()
	require.Nil(t, n.Construct())
	script, err := DecodeScript(strings.NewReader(mintScript))
	require.Nil(t, err)
	_, err = n.Apply(script)
	require.Nil(t, err)

	voting := core.ContractAddress(core.ProposalVotingName)
	logs, err := n.FilterLogs(context.Background(), ethereum.FilterQuery{
		Addresses: []common.Address{voting},
		Topics:    [][]common.Hash{{EventTopic(core.EventConclude)}},
	})
	require.Nil(t, err)
	require.Len(t, logs, 1)
	assert.EqualValues(t, 1586, logs[0].BlockNumber)
	assert.EqualValues(t, 0, logs[0].TxIndex)

	ev, err := DecodeEvent(logs[0])
	require.Nil(t, err)
	assert.Equal(t, core.EventConclude, ev.Type)
	assert.Equal(t, voting, ev.Source)
	assert.Equal(t, true, ev.Fields["passed"])

	// every vote of block 145, in emission order
	votes, err := n.FilterLogs(context.Background(), ethereum.FilterQuery{
		Topics: [][]common.Hash{{EventTopic(core.EventVote)}},
	})
	require.Nil(t, err)
	require.Len(t, votes, 2)
	assert.NotEqual(t, votes[0].TxHash, votes[1].TxHash)
	assert.Less(t, votes[0].Index, votes[1].Index)

	// block range excludes the construction logs at height 0
	q, err := n.Query(1, 145)
	require.Nil(t, err)
	ranged, err := n.FilterLogs(context.Background(), q)
	require.Nil(t, err)
	for _, l := range ranged {
		assert.GreaterOrEqual(t, l.BlockNumber, uint64(1))
		assert.LessOrEqual(t, l.BlockNumber, uint64(145))
	}
	assert.NotEmpty(t, ranged)
}

func TestNodeQueryFromConfig(t *testing.T) {
	n, config := newTestNode(t)
	defer n.Stop()

	config.Events.Addresses = []string{core.EmergencyExecuteName}
	config.Events.Topics = [][]string{{string(core.EventSignal), EventTopic(core.EventExecute).Hex()}}
	q, err := n.Query(0, 10)
	require.Nil(t, err)
	assert.EqualValues(t, 0, q.FromBlock.Uint64())
	assert.EqualValues(t, 10, q.ToBlock.Uint64())
	assert.Equal(t, []common.Address{core.ContractAddress(core.EmergencyExecuteName)}, q.Addresses)
	require.Len(t, q.Topics, 1)
	assert.Equal(t, []common.Hash{EventTopic(core.EventSignal), EventTopic(core.EventExecute)}, q.Topics[0])

	config.Events.Addresses = []string{"nobody"}
	_, err = n.Query(0, 0)
	assert.NotNil(t, err)
}

func TestNodeSubscribeFilterLogs(t *testing.T) {
	n, _ := newTestNode(t)
	defer n.Stop()

	ch := make(chan types.Log, 16)
	sub, err := n.SubscribeFilterLogs(context.Background(), ethereum.FilterQuery{
		Topics: [][]common.Hash{{EventTopic(core.EventConstruct)}},
	}, ch)
	require.Nil(t, err)
	defer sub.Unsubscribe()

	require.Nil(t, n.Construct())

	select {
	case l := <-ch:
		ev, err := DecodeEvent(l)
		require.Nil(t, err)
		assert.Equal(t, core.EventConstruct, ev.Type)
		assert.Equal(t, "ExecutorDAO has risen.", ev.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("no construct log delivered")
	}
}

func TestNodeMetricsDisabled(t *testing.T) {
	config := repo.DefaultConfig(t.TempDir())
	config.Metrics.Enabled = false
	n, err := New(context.Background(), config)
	require.Nil(t, err)
	defer n.Stop()

	metrics, err := n.Metrics()
	require.Nil(t, err)
	assert.Nil(t, metrics)
}

func TestNodeSubscriberDoesNotBlockEngine(t *testing.T) {
	n, config := newTestNode(t)
	defer n.Stop()

	// nobody reads ch
	ch := make(chan types.Log)
	sub, err := n.SubscribeFilterLogs(context.Background(), ethereum.FilterQuery{}, ch)
	require.Nil(t, err)
	defer sub.Unsubscribe()

	require.Nil(t, n.Construct())
	wallet9 := mustAddress(t, config, "wallet_9")
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 2*LogChanMaxSize; i++ {
			if err := n.Engine.Token().EdgMint(1, wallet9, n.Engine.DAO()); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.Nil(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("engine blocked by a stalled log subscriber")
	}
	assert.EqualValues(t, 2*LogChanMaxSize, n.Engine.Token().EdgGetBalance(wallet9))

	select {
	case err := <-sub.Err():
		assert.Equal(t, ErrLogSubscriptionOverflow, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stalled subscription was not ended")
	}
}
