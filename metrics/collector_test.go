package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRegistersAll(t *testing.T) {
	c := New()
	c.TransactionsAdmitted.Inc()
	c.TransactionsRejected.WithLabelValues(ReasonInvalidInput).Inc()
	c.MiningDuration.Observe(0.5)

	families, err := c.Registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ledger_transactions_admitted_total")
	assert.Contains(t, names, "ledger_transactions_rejected_total")
	assert.Contains(t, names, "ledger_block_mining_duration_seconds")
	assert.Contains(t, names, "ledger_mempool_size")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransactionsRejected.WithLabelValues(ReasonInvalidInput)))
}
