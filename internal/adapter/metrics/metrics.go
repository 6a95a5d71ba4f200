package metrics

import (
	"creator-ledger/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledger"

// Ledger implements ports.LedgerMetrics with prometheus collectors.
type Ledger struct {
	payouts       *prometheus.CounterVec
	payoutCents   *prometheus.CounterVec
	walletOps     *prometheus.CounterVec
	withdrawals   *prometheus.CounterVec
	eventsDropped prometheus.Counter
}

// New creates the ledger collectors and registers them with reg.
func New(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_total",
			Help:      "Payout attempts segmented by event kind and outcome.",
		}, []string{"kind", "outcome"}),
		payoutCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_cents_total",
			Help:      "Gross cents paid out from campaign escrow.",
		}, []string{"kind"}),
		walletOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_operations_total",
			Help:      "Wallet and budget operations segmented by outcome.",
		}, []string{"op", "outcome"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawal_transitions_total",
			Help:      "Withdrawal state transitions by target status.",
		}, []string{"to"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Domain events dropped before delivery.",
		}),
	}
	reg.MustRegister(m.payouts, m.payoutCents, m.walletOps, m.withdrawals, m.eventsDropped)
	return m
}

func (m *Ledger) PayoutRecorded(kind domain.BillableEventKind, outcome string, payoutCents int64) {
	m.payouts.WithLabelValues(string(kind), outcome).Inc()
	if payoutCents > 0 {
		m.payoutCents.WithLabelValues(string(kind)).Add(float64(payoutCents))
	}
}

func (m *Ledger) WalletOperation(op string, outcome string) {
	m.walletOps.WithLabelValues(op, outcome).Inc()
}

func (m *Ledger) WithdrawalTransition(to domain.WithdrawalStatus) {
	m.withdrawals.WithLabelValues(string(to)).Inc()
}

func (m *Ledger) EventDropped() {
	m.eventsDropped.Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) PayoutRecorded(domain.BillableEventKind, string, int64) {}
func (Nop) WalletOperation(string, string)                         {}
func (Nop) WithdrawalTransition(domain.WithdrawalStatus)           {}
func (Nop) EventDropped()                                          {}
