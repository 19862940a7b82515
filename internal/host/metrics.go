package host

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts host activity by entry point and outcome.
type Metrics struct {
	executions *prometheus.CounterVec
	submsgs    *prometheus.CounterVec
	replies    *prometheus.CounterVec
	blockTime  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_host_executions_total",
			Help: "Top-level transactions by entry point and outcome.",
		}, []string{"entry", "outcome"}),
		submsgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_host_submessages_total",
			Help: "Dispatched sub-messages by kind and outcome.",
		}, []string{"kind", "outcome"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_host_replies_total",
			Help: "Continuations delivered to contracts by outcome.",
		}, []string{"outcome"}),
		blockTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_host_block_time_seconds",
			Help: "Timestamp of the current block.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.executions, m.submsgs, m.replies, m.blockTime)
	}
	return m
}

func (m *Metrics) observeExecution(entry string, err error) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(entry, outcome(err)).Inc()
}

func (m *Metrics) observeSubMsg(kind string, err error) {
	if m == nil {
		return
	}
	m.submsgs.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *Metrics) observeReply(err error) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) setBlockTime(ts uint64) {
	if m == nil {
		return
	}
	m.blockTime.Set(float64(ts))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
