package node

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/executordao/core"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
)

const (
	logsKeyPrefix = "logs-"

	LogChanMaxSize = 1000
)

var _ ethereum.LogFilterer = (*Node)(nil)
var _ core.EventSink = (*logIndex)(nil)

// EventTopic is the first topic of the log an event of type t is stored as.
func EventTopic(t core.EventType) common.Hash {
	return crypto.Keccak256Hash([]byte(t))
}

type logData struct {
	Type    core.EventType `json:"type"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// DecodeEvent turns a stored log back into its event.
func DecodeEvent(l types.Log) (core.Event, error) {
	var data logData
	if err := json.Unmarshal(l.Data, &data); err != nil {
		return core.Event{}, errors.Wrap(err, "decode log data")
	}
	return core.Event{
		Type:    data.Type,
		Height:  l.BlockNumber,
		Source:  l.Address,
		Message: data.Message,
		Fields:  data.Fields,
	}, nil
}

func logsKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", logsKeyPrefix, height))
}

// logIndex turns committed engine events into ethereum style logs, keeps
// them per block in the store and feeds subscribers.
type logIndex struct {
	db storage.Storage

	mu      sync.Mutex
	tx      common.Hash
	txIndex uint
	pending []types.Log
	index   map[uint64]uint

	feed  event.Feed
	scope event.SubscriptionScope
}

func newLogIndex(db storage.Storage) *logIndex {
	return &logIndex{
		db:    db,
		index: make(map[uint64]uint),
	}
}

// begin tags the logs of the following events with a transaction.
func (li *logIndex) begin(tx common.Hash, index uint) {
	li.mu.Lock()
	defer li.mu.Unlock()
	li.tx = tx
	li.txIndex = index
}

func (li *logIndex) Emit(ev core.Event) {
	data, err := json.Marshal(logData{Type: ev.Type, Message: ev.Message, Fields: ev.Fields})
	if err != nil {
		// fields are plain values, this cannot fail
		panic(err)
	}

	li.mu.Lock()
	l := types.Log{
		Address:     ev.Source,
		Topics:      []common.Hash{EventTopic(ev.Type)},
		Data:        data,
		BlockNumber: ev.Height,
		TxHash:      li.tx,
		TxIndex:     li.txIndex,
		Index:       li.index[ev.Height],
	}
	li.index[ev.Height]++
	li.pending = append(li.pending, l)
	li.mu.Unlock()

	li.feed.Send([]types.Log{l})
}

// flush appends the pending logs to their blocks in the store.
func (li *logIndex) flush() error {
	li.mu.Lock()
	pending := li.pending
	li.pending = nil
	li.mu.Unlock()

	byHeight := make(map[uint64][]types.Log)
	var heights []uint64
	for _, l := range pending {
		if _, ok := byHeight[l.BlockNumber]; !ok {
			heights = append(heights, l.BlockNumber)
		}
		byHeight[l.BlockNumber] = append(byHeight[l.BlockNumber], l)
	}
	for _, h := range heights {
		stored, err := li.load(h)
		if err != nil {
			return err
		}
		data, err := json.Marshal(append(stored, byHeight[h]...))
		if err != nil {
			return errors.Wrap(err, "marshal logs")
		}
		li.db.Put(logsKey(h), data)
	}
	return nil
}

func (li *logIndex) load(height uint64) ([]types.Log, error) {
	data := li.db.Get(logsKey(height))
	if data == nil {
		return nil, nil
	}
	var logs []types.Log
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, errors.Wrapf(err, "unmarshal logs of block %d", height)
	}
	return logs, nil
}

func (li *logIndex) close() {
	li.scope.Close()
}

func matches(l types.Log, q ethereum.FilterQuery) bool {
	if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && q.ToBlock.Sign() > 0 && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Topics) > len(l.Topics) {
		return false
	}
	for i, sub := range q.Topics {
		if len(sub) == 0 {
			continue
		}
		found := false
		for _, topic := range sub {
			if topic == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FilterLogs returns the persisted logs matching q. A nil FromBlock starts
// at the deploy height, a nil ToBlock ends at the current height.
func (n *Node) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	from := n.Config.DAO.DeployHeight
	if q.FromBlock != nil && q.FromBlock.Uint64() > from {
		from = q.FromBlock.Uint64()
	}
	to := n.Chain.Height()
	if q.ToBlock != nil && q.ToBlock.Sign() > 0 && q.ToBlock.Uint64() < to {
		to = q.ToBlock.Uint64()
	}
	if err := n.logs.flush(); err != nil {
		return nil, err
	}

	var out []types.Log
	for h := from; h <= to; h++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logs, err := n.logs.load(h)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			if matches(l, q) {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

// ErrLogSubscriptionOverflow ends a subscription whose consumer does not keep
// up with the committed logs.
var ErrLogSubscriptionOverflow = errors.New("log subscription channel full")

// SubscribeFilterLogs delivers logs matching q to ch as transactions
// commit, until the subscription is closed, ctx is done or the node stops.
// Delivery never blocks the engine: when ch is full the subscription ends
// with ErrLogSubscriptionOverflow.
func (n *Node) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	batches := make(chan []types.Log, LogChanMaxSize)
	sub := n.logs.scope.Track(n.logs.feed.Subscribe(batches))

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case batch := <-batches:
				for _, l := range batch {
					if !matches(l, q) {
						continue
					}
					select {
					case ch <- l:
					default:
						return ErrLogSubscriptionOverflow
					}
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}), nil
}

// Query builds a filter from the configured event section.
func (n *Node) Query(from, to uint64) (ethereum.FilterQuery, error) {
	cfg := n.Config.Events
	if from == 0 {
		from = cfg.FromBlock
	}
	if to == 0 {
		to = cfg.ToBlock
	}
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
	}
	if to != 0 {
		q.ToBlock = new(big.Int).SetUint64(to)
	}
	for _, ref := range cfg.Addresses {
		addr, err := n.Config.Address(ref)
		if err != nil {
			return q, errors.Wrap(err, "events.addresses")
		}
		q.Addresses = append(q.Addresses, addr)
	}
	for _, position := range cfg.Topics {
		var topics []common.Hash
		for _, s := range position {
			if strings.HasPrefix(s, "0x") && len(s) == 2+2*common.HashLength {
				topics = append(topics, common.HexToHash(s))
				continue
			}
			topics = append(topics, EventTopic(core.EventType(s)))
		}
		q.Topics = append(q.Topics, topics)
	}
	return q, nil
}
