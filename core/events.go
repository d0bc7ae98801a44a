package core

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventConstruct       EventType = "construct"
	EventExtension       EventType = "extension"
	EventExecute         EventType = "execute"
	EventCallback        EventType = "callback"
	EventTransfer        EventType = "transfer"
	EventMint            EventType = "mint"
	EventBurn            EventType = "burn"
	EventLock            EventType = "lock"
	EventUnlock          EventType = "unlock"
	EventTokenMetadata   EventType = "token-metadata"
	EventPropose         EventType = "propose"
	EventVote            EventType = "vote"
	EventConclude        EventType = "conclude"
	EventReclaim         EventType = "reclaim"
	EventParameter       EventType = "parameter"
	EventGovernanceToken EventType = "governance-token"
	EventTeamMember      EventType = "team-member"
	EventSignal          EventType = "signal"
)

type Event struct {
	Type    EventType
	Height  uint64
	Source  common.Address
	Message string
	Fields  map[string]any
}

// EventSink receives events of committed transactions, in commit order.
type EventSink interface {
	Emit(Event)
}

type nopSink struct{}

func (nopSink) Emit(Event) {}

// LogSink writes every event through a logrus logger.
type LogSink struct {
	Logger logrus.FieldLogger
}

func (s *LogSink) Emit(ev Event) {
	fields := logrus.Fields{
		"event":  ev.Type,
		"height": ev.Height,
		"source": ev.Source.Hex(),
	}
	for k, v := range ev.Fields {
		fields[k] = v
	}
	msg := ev.Message
	if msg == "" {
		msg = string(ev.Type)
	}
	s.Logger.WithFields(fields).Info(msg)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Filter(t EventType) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// MultiSink fans events out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
