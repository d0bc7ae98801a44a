package node

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/executordao/core"
	"github.com/axiomesh/executordao/proposals"
	"github.com/axiomesh/executordao/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	stateKey  = "state"
	heightKey = "height"

	openRetryLimit = 5
)

// Node hosts one engine on top of the repo: it replays blocks of
// transactions against it and keeps the state snapshot and the event log in
// leveldb.
type Node struct {
	Ctx      context.Context
	Logger   *logrus.Logger
	DB       storage.Storage
	Config   *repo.Config
	Engine   *core.Engine
	Chain    *core.Chain
	Registry *prometheus.Registry

	deployer common.Address
	logs     *logIndex
}

func New(ctx context.Context, config *repo.Config) (*Node, error) {
	logger := log.New()
	logger.SetLevel(log.ParseLevel(config.Log.Level))

	if err := config.Check(); err != nil {
		return nil, errors.Wrap(err, "check config")
	}
	deployer, err := config.Address(config.DAO.Deployer)
	if err != nil {
		return nil, err
	}

	db, err := openDB((&repo.Repo{Config: config}).DBPath(), logger)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Ctx:      ctx,
		Logger:   logger,
		DB:       db,
		Config:   config,
		Chain:    core.NewChain(config.DAO.DeployHeight),
		deployer: deployer,
		logs:     newLogIndex(db),
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithTokenMetadata(tokenMetadata(config.DAO.Token)),
		core.WithEventSink(core.MultiSink{
			&core.LogSink{Logger: logger.WithField("module", "events")},
			n.logs,
		}),
	}
	if config.DAO.Name != "" {
		opts = append(opts, core.WithName(config.DAO.Name))
	}
	if config.Metrics.Enabled {
		n.Registry = prometheus.NewRegistry()
		opts = append(opts, core.WithRegisterer(n.Registry))
	}
	n.Engine = core.NewEngine(deployer, n.Chain, opts...)

	if err := n.restore(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := n.deployBootstrap(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return n, nil
}

func openDB(path string, logger logrus.FieldLogger) (storage.Storage, error) {
	var db storage.Storage
	action := func(attempt uint) error {
		var err error
		db, err = leveldb.New(path)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"path":    path,
				"attempt": attempt,
			}).Warnf("open leveldb failed: %s", err)
		}
		return err
	}
	// the store may still be locked by a process shutting down
	if err := retry.Retry(action, strategy.Limit(openRetryLimit), strategy.Backoff(backoff.Fibonacci(200*time.Millisecond))); err != nil {
		return nil, errors.Wrapf(err, "open leveldb %s", path)
	}
	return db, nil
}

func tokenMetadata(t repo.Token) core.TokenMetadata {
	meta := core.TokenMetadata{
		Name:     t.Name,
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
	}
	if t.URI != "" {
		uri := t.URI
		meta.URI = &uri
	}
	return meta
}

// restore loads the last persisted snapshot, if any.
func (n *Node) restore() error {
	if data := n.DB.Get([]byte(heightKey)); len(data) == 8 {
		n.Chain.AdvanceTo(binary.BigEndian.Uint64(data))
	}
	data := n.DB.Get([]byte(stateKey))
	if data == nil {
		return nil
	}
	st, err := core.DecodeState(data)
	if err != nil {
		return errors.Wrap(err, "decode state snapshot")
	}
	if err := n.Engine.LoadState(st); err != nil {
		return err
	}
	n.Logger.WithFields(logrus.Fields{
		"height":  n.Chain.Height(),
		"version": st.Version,
	}).Info("restored state snapshot")
	return nil
}

func (n *Node) bootstrapPayload() (*proposals.Bootstrap, error) {
	b := n.Config.Bootstrap
	payload := &proposals.Bootstrap{
		Named:           proposals.Named(b.Proposal),
		SignalsRequired: b.SignalsRequired,
	}
	var err error
	if payload.Extensions, err = n.addresses(b.Extensions); err != nil {
		return nil, err
	}
	if payload.EmergencyTeam, err = n.addresses(b.EmergencyTeam); err != nil {
		return nil, err
	}
	if payload.ExecutiveTeam, err = n.addresses(b.ExecutiveTeam); err != nil {
		return nil, err
	}
	for _, a := range b.Allocations {
		recipient, err := n.Config.Address(a.Recipient)
		if err != nil {
			return nil, err
		}
		payload.Allocations = append(payload.Allocations, core.Allocation{Amount: a.Amount, Recipient: recipient})
	}
	return payload, nil
}

func (n *Node) deployBootstrap() error {
	payload, err := n.bootstrapPayload()
	if err != nil {
		return err
	}
	return n.Engine.Executor().Deploy(payload)
}

func (n *Node) addresses(refs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(refs))
	for _, ref := range refs {
		addr, err := n.Config.Address(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// Construct runs the configured bootstrap proposal as the deployer.
func (n *Node) Construct() error {
	if n.Engine.Executor().IsConstructed() {
		return nil
	}
	id := proposals.Named(n.Config.Bootstrap.Proposal).ID()
	if err := n.Engine.Executor().Construct(id, n.deployer); err != nil {
		return errors.Wrap(err, "construct")
	}
	return n.Persist()
}

// Persist writes the state snapshot, the chain height and the pending event
// logs.
func (n *Node) Persist() error {
	data, err := core.EncodeState(n.Engine.State())
	if err != nil {
		return err
	}
	if err := n.logs.flush(); err != nil {
		return err
	}
	height := make([]byte, 8)
	binary.BigEndian.PutUint64(height, n.Chain.Height())
	n.DB.Put([]byte(heightKey), height)
	n.DB.Put([]byte(stateKey), data)
	return nil
}

// Metrics gathers the engine metrics. It returns nil when metrics are
// disabled.
func (n *Node) Metrics() (map[string]float64, error) {
	if n.Registry == nil {
		return nil, nil
	}
	families, err := n.Registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			}
			out[mf.GetName()] += v
		}
	}
	return out, nil
}

func (n *Node) Stop() error {
	n.logs.close()
	if err := n.Persist(); err != nil {
		return err
	}
	return n.DB.Close()
}
