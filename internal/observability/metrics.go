// Package observability owns the process-wide prometheus collectors.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/repostpay/backend/internal/money"
)

// LedgerMetrics wraps collectors tracking settlement and payout activity.
type LedgerMetrics struct {
	settlements   *prometheus.CounterVec
	settledAmount prometheus.Counter
	payouts       *prometheus.CounterVec
	payoutAmount  *prometheus.CounterVec
	txConflicts   prometheus.Counter
	jobs          *prometheus.CounterVec
	events        *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "repostpay",
				Subsystem: "ledger",
				Name:      "verifications_total",
				Help:      "Submission verifications segmented by outcome.",
			}, []string{"outcome"}),
			settledAmount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "repostpay",
				Subsystem: "ledger",
				Name:      "settled_amount_total",
				Help:      "Sum of earnings debited from sponsors on verification.",
			}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "repostpay",
				Subsystem: "ledger",
				Name:      "payouts_total",
				Help:      "Payout lifecycle events segmented by status.",
			}, []string{"status"}),
			payoutAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "repostpay",
				Subsystem: "ledger",
				Name:      "payout_amount_total",
				Help:      "Payout amounts segmented by status.",
			}, []string{"status"}),
			txConflicts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "repostpay",
				Subsystem: "store",
				Name:      "tx_conflicts_total",
				Help:      "Serializable transactions aborted by the database and retried.",
			}),
			jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "repostpay",
				Subsystem: "jobs",
				Name:      "processed_total",
				Help:      "Jobs handled segmented by queue and outcome.",
			}, []string{"queue", "outcome"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "repostpay",
				Subsystem: "events",
				Name:      "messages_total",
				Help:      "Live-update events segmented by stream and outcome.",
			}, []string{"stream", "outcome"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.settlements,
			ledgerRegistry.settledAmount,
			ledgerRegistry.payouts,
			ledgerRegistry.payoutAmount,
			ledgerRegistry.txConflicts,
			ledgerRegistry.jobs,
			ledgerRegistry.events,
		)
	})
	return ledgerRegistry
}

// RecordVerification counts a verification outcome. amount is the sponsor
// debit and is ignored for rejections.
func (m *LedgerMetrics) RecordVerification(outcome string, amount money.Money) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	if amount.IsPositive() {
		m.settledAmount.Add(amount.Amount.InexactFloat64())
	}
}

func (m *LedgerMetrics) RecordPayout(status string, amount money.Money) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(status).Inc()
	if amount.IsPositive() {
		m.payoutAmount.WithLabelValues(status).Add(amount.Amount.InexactFloat64())
	}
}

func (m *LedgerMetrics) RecordTxConflict() {
	if m == nil {
		return
	}
	m.txConflicts.Inc()
}

func (m *LedgerMetrics) RecordJob(queue, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(queue, outcome).Inc()
}

// RecordEvent counts a publish or delivery on a live-update stream.
func (m *LedgerMetrics) RecordEvent(stream, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(stream, outcome).Inc()
}
