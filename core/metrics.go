package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	txCommitted        *prometheus.CounterVec
	txReverted         *prometheus.CounterVec
	proposalsSubmitted *prometheus.CounterVec
	proposalsConcluded *prometheus.CounterVec
	executions         prometheus.Counter
	signals            prometheus.Counter
	totalSupply        prometheus.Gauge
	stateVersion       prometheus.Gauge
}

func newEngineMetrics(promRegistry prometheus.Registerer) *engineMetrics {
	if promRegistry == nil {
		return nil
	}
	factory := promauto.With(promRegistry)
	return &engineMetrics{
		txCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executordao_tx_committed_total",
			Help: "Total number of committed governance transactions",
		}, []string{"op"}),
		txReverted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executordao_tx_reverted_total",
			Help: "Total number of reverted governance transactions",
		}, []string{"op"}),
		proposalsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executordao_proposals_submitted_total",
			Help: "Total number of proposals recorded for voting",
		}, []string{"path"}),
		proposalsConcluded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executordao_proposals_concluded_total",
			Help: "Total number of concluded proposals by outcome",
		}, []string{"outcome"}),
		executions: factory.NewCounter(prometheus.CounterOpts{
			Name: "executordao_payload_executions_total",
			Help: "Total number of executed proposal payloads",
		}),
		signals: factory.NewCounter(prometheus.CounterOpts{
			Name: "executordao_executive_signals_total",
			Help: "Total number of distinct executive signals recorded",
		}),
		totalSupply: factory.NewGauge(prometheus.GaugeOpts{
			Name: "executordao_governance_token_supply",
			Help: "Total supply of the active governance token",
		}),
		stateVersion: factory.NewGauge(prometheus.GaugeOpts{
			Name: "executordao_state_version",
			Help: "Number of committed transactions applied to the state",
		}),
	}
}

// The metrics are updated only when a transaction commits, so every hook
// below is invoked after the state has been settled.

func (m *engineMetrics) committed(op string, st *State) {
	if m == nil {
		return
	}
	m.txCommitted.WithLabelValues(op).Inc()
	m.stateVersion.Set(float64(st.Version))
	if t, ok := st.Tokens[st.VotingToken]; ok {
		m.totalSupply.Set(float64(t.Supply))
	}
}

func (m *engineMetrics) reverted(op string) {
	if m == nil {
		return
	}
	m.txReverted.WithLabelValues(op).Inc()
}

func (m *engineMetrics) record(events []Event) {
	if m == nil {
		return
	}
	for _, ev := range events {
		switch ev.Type {
		case EventPropose:
			path := "standard"
			if emergency, _ := ev.Fields["emergency"].(bool); emergency {
				path = "emergency"
			}
			m.proposalsSubmitted.WithLabelValues(path).Inc()
		case EventConclude:
			outcome := "failed"
			if passed, _ := ev.Fields["passed"].(bool); passed {
				outcome = "passed"
			}
			m.proposalsConcluded.WithLabelValues(outcome).Inc()
		case EventExecute:
			m.executions.Inc()
		case EventSignal:
			if fresh, _ := ev.Fields["new"].(bool); fresh {
				m.signals.Inc()
			}
		}
	}
}
