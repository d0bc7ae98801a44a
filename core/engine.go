package core

import (
	"fmt"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const DefaultName = "ExecutorDAO"

type Option func(*Engine)

func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		e.Logger = logger
	}
}

func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

func WithRegisterer(promRegistry prometheus.Registerer) Option {
	return func(e *Engine) {
		e.promRegistry = promRegistry
	}
}

// WithName sets the organisation name announced at construction.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// WithTokenMetadata overrides the metadata of the primary governance token.
func WithTokenMetadata(meta TokenMetadata) Option {
	return func(e *Engine) {
		e.tokenMeta = meta
	}
}

// Engine hosts the executor core and its standard extensions on top of one
// shared State. It is not safe for concurrent use: the ledger driving it is
// expected to apply transactions one at a time.
type Engine struct {
	Logger *logrus.Logger

	name         string
	deployer     common.Address
	heights      HeightSource
	sink         EventSink
	promRegistry prometheus.Registerer
	metrics      *engineMetrics
	tokenMeta    TokenMetadata

	state        *State
	deployHeight uint64
	depth        int
	pending      []Event

	executor   *Executor
	tokens     map[common.Address]*Token
	token      *Token
	voting     *Voting
	submission *Submission
	emergency  *EmergencyProposals
	executive  *EmergencyExecute
}

func NewEngine(deployer common.Address, heights HeightSource, opts ...Option) *Engine {
	e := &Engine{
		name:      DefaultName,
		deployer:  deployer,
		heights:   heights,
		sink:      nopSink{},
		tokenMeta: DefaultTokenMetadata(),
		state:     newState(),
		tokens:    make(map[common.Address]*Token),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Logger == nil {
		e.Logger = log.New()
	}
	e.metrics = newEngineMetrics(e.promRegistry)
	e.deployHeight = heights.Height()

	e.executor = &Executor{
		engine:   e,
		address:  ContractAddress(ExecutorName),
		payloads: make(map[common.Address]Executable),
	}
	e.token = e.RegisterToken(GovernanceTokenName, e.tokenMeta)
	e.voting = &Voting{engine: e, address: ContractAddress(ProposalVotingName)}
	e.submission = &Submission{engine: e, address: ContractAddress(ProposalSubmissionName)}
	e.emergency = &EmergencyProposals{engine: e, address: ContractAddress(EmergencyProposalsName)}
	e.executive = &EmergencyExecute{engine: e, address: ContractAddress(EmergencyExecuteName)}

	st := e.state
	st.VotingToken = e.token.address
	st.SubmissionToken = e.token.address
	st.Parameters[ParamProposeFactor] = DefaultProposeFactor
	st.Parameters[ParamProposalDuration] = DefaultProposalDuration
	st.Parameters[ParamMinimumProposalStartDelay] = DefaultMinimumProposalStartDelay
	st.Parameters[ParamMaximumProposalStartDelay] = DefaultMaximumProposalStartDelay
	st.Parameters[ParamEmergencyProposalDuration] = DefaultEmergencyProposalDuration
	st.Parameters[ParamEmergencyTeamSunsetHeight] = e.deployHeight + DefaultSunsetPeriod
	st.Parameters[ParamExecutiveSignalsRequired] = DefaultExecutiveSignalsRequired
	st.Parameters[ParamExecutiveTeamSunsetHeight] = e.deployHeight + DefaultSunsetPeriod

	return e
}

// RegisterToken deploys an additional governance token ledger under the
// contract address derived from name. Registering an existing name returns
// the deployed token.
func (e *Engine) RegisterToken(name string, meta TokenMetadata) *Token {
	addr := ContractAddress(name)
	if t, ok := e.tokens[addr]; ok {
		return t
	}
	t := &Token{engine: e, address: addr}
	e.tokens[addr] = t
	if _, ok := e.state.Tokens[addr]; !ok {
		e.state.Tokens[addr] = &TokenState{
			Name:      meta.Name,
			Symbol:    meta.Symbol,
			Decimals:  meta.Decimals,
			URI:       meta.URI,
			Available: make(map[common.Address]uint64),
			Locked:    make(map[common.Address]uint64),
		}
	}
	return t
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) Height() uint64 {
	return e.heights.Height()
}

func (e *Engine) DeployHeight() uint64 {
	return e.deployHeight
}

func (e *Engine) Deployer() common.Address {
	return e.deployer
}

// DAO is the identity of the executor itself; payloads use it as caller.
func (e *Engine) DAO() common.Address {
	return e.executor.address
}

func (e *Engine) Executor() *Executor {
	return e.executor
}

// Token returns the primary governance token.
func (e *Engine) Token() *Token {
	return e.token
}

// TokenAt returns a registered token by contract address.
func (e *Engine) TokenAt(addr common.Address) (*Token, bool) {
	t, ok := e.tokens[addr]
	return t, ok
}

// ledger maps a token handed in by a caller to the ledger registered under
// its address. Balance and lock changes always go through the registered
// ledger, never through the caller's value.
func (e *Engine) ledger(token GovernanceToken) (*Token, bool) {
	if token == nil {
		return nil, false
	}
	t, ok := e.tokens[token.Address()]
	return t, ok
}

func (e *Engine) Voting() *Voting {
	return e.voting
}

func (e *Engine) Submission() *Submission {
	return e.submission
}

func (e *Engine) EmergencyProposals() *EmergencyProposals {
	return e.emergency
}

func (e *Engine) EmergencyExecute() *EmergencyExecute {
	return e.executive
}

// Extensions lists the standard extensions in deployment order.
func (e *Engine) Extensions() []Extension {
	return []Extension{e.token, e.voting, e.submission, e.emergency, e.executive}
}

// State returns a copy of the current state.
func (e *Engine) State() *State {
	return e.state.clone()
}

// LoadState replaces the current state, e.g. with a restored snapshot. It
// refuses to run inside a transaction.
func (e *Engine) LoadState(st *State) error {
	if e.depth > 0 {
		return fmt.Errorf("cannot load state inside a transaction")
	}
	e.state = st.clone()
	for addr := range st.Tokens {
		if _, ok := e.tokens[addr]; !ok {
			e.tokens[addr] = &Token{engine: e, address: addr}
		}
	}
	return nil
}

func (e *Engine) isDAOOrExtension(caller common.Address) bool {
	return caller == e.executor.address || e.state.Extensions[caller]
}

func (e *Engine) emit(source common.Address, typ EventType, message string, fields map[string]any) {
	e.pending = append(e.pending, Event{
		Type:    typ,
		Height:  e.Height(),
		Source:  source,
		Message: message,
		Fields:  fields,
	})
}

// atomic runs fn as one transaction. Calls nested inside a running
// transaction join it; only the outermost call snapshots the state, and any
// error restores that snapshot and drops the buffered events.
func (e *Engine) atomic(op string, fn func() error) (err error) {
	if e.depth > 0 {
		return fn()
	}

	snapshot := e.state.clone()
	e.depth++
	defer func() {
		e.depth--
		if r := recover(); r != nil {
			e.state = snapshot
			e.pending = nil
			panic(r)
		}
	}()

	if err = fn(); err != nil {
		e.state = snapshot
		e.pending = nil
		e.metrics.reverted(op)
		e.Logger.WithFields(logrus.Fields{
			"op":     op,
			"height": e.Height(),
		}).Debugf("transaction reverted: %s", err)
		return err
	}

	e.state.Version++
	events := e.pending
	e.pending = nil
	e.metrics.committed(op, e.state)
	e.metrics.record(events)
	for _, ev := range events {
		e.sink.Emit(ev)
	}
	e.Logger.WithFields(logrus.Fields{
		"op":      op,
		"height":  e.Height(),
		"version": e.state.Version,
	}).Debug("transaction committed")

	return nil
}
