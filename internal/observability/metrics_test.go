package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/repostpay/backend/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestLedgerMetricsRecord(t *testing.T) {
	m := Ledger()
	assert.Same(t, m, Ledger())

	before := testutil.ToFloat64(m.payouts.WithLabelValues("COMPLETED"))
	m.RecordPayout("COMPLETED", money.MustParse("7.5", money.USD))
	assert.Equal(t, before+1, testutil.ToFloat64(m.payouts.WithLabelValues("COMPLETED")))

	amountBefore := testutil.ToFloat64(m.settledAmount)
	m.RecordVerification("VERIFIED", money.MustParse("1.25", money.USD))
	m.RecordVerification("REJECTED", money.Zero(money.USD))
	assert.InDelta(t, amountBefore+1.25, testutil.ToFloat64(m.settledAmount), 1e-9)
}

func TestNilLedgerMetricsIsSafe(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.RecordPayout("FAILED", money.MustParse("1", money.USD))
		m.RecordVerification("VERIFIED", money.MustParse("1", money.USD))
		m.RecordTxConflict()
		m.RecordJob("jobs:payouts", "ok")
		m.RecordEvent("events:ledger", "published")
	})
}

func TestRecordEventByStream(t *testing.T) {
	m := Ledger()
	ledger := m.events.WithLabelValues("events:ledger", "delivered")
	campaigns := m.events.WithLabelValues("events:campaigns", "delivered")
	before, other := testutil.ToFloat64(ledger), testutil.ToFloat64(campaigns)

	m.RecordEvent("events:ledger", "delivered")
	m.RecordEvent("events:ledger", "delivered")

	assert.Equal(t, before+2, testutil.ToFloat64(ledger))
	assert.Equal(t, other, testutil.ToFloat64(campaigns))
}
