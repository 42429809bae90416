package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	sc := NewSimulationCollector(registry)

	sc.CurrentEpoch(7)
	sc.EpochResolved("miss", 2, 15.5)
	sc.EpochResolved("reveal", 0, 0)
	sc.EpochResolved("miss", 1, 4.5)
	sc.BidOptimized(3*time.Millisecond, 18)
	sc.BidsAdjusted(3, 1)
	sc.RunFailed("invalid_bid")
	sc.RunTerminated(9)

	assert.Equal(t, 7.0, testutil.ToFloat64(sc.currentEpoch))
	assert.Equal(t, 2.0, testutil.ToFloat64(sc.epochsResolved.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.epochsResolved.WithLabelValues("reveal")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sc.payments))
	assert.Equal(t, 20.0, testutil.ToFloat64(sc.paymentVolume))
	assert.Equal(t, 3.0, testutil.ToFloat64(sc.bidsAdjusted))
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.bidsChanged))
	assert.Equal(t, 1.0, testutil.ToFloat64(sc.runsFailed.WithLabelValues("invalid_bid")))
	assert.Equal(t, 9.0, testutil.ToFloat64(sc.terminatedAtEpochs))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSimulationCollector_SeparateRegistries(t *testing.T) {
	// collectors on different registries do not conflict
	NewSimulationCollector(prometheus.NewRegistry())
	NewSimulationCollector(prometheus.NewRegistry())

	assert.Panics(t, func() {
		registry := prometheus.NewRegistry()
		NewSimulationCollector(registry)
		NewSimulationCollector(registry)
	})
}
