package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/module"
)

// SimulationCollector implements module.SimulationMetrics with prometheus collectors.
type SimulationCollector struct {
	currentEpoch       prometheus.Gauge
	epochsResolved     *prometheus.CounterVec
	payments           prometheus.Counter
	paymentVolume      prometheus.Counter
	optimizationTime   prometheus.Histogram
	candidates         prometheus.Histogram
	bidsAdjusted       prometheus.Counter
	bidsChanged        prometheus.Counter
	runsTerminated     prometheus.Counter
	runsFailed         *prometheus.CounterVec
	terminatedAtEpochs prometheus.Gauge
}

var _ module.SimulationMetrics = (*SimulationCollector)(nil)

// NewSimulationCollector creates the collector and registers it with the given registerer.
func NewSimulationCollector(registerer prometheus.Registerer) *SimulationCollector {
	factory := promauto.With(registerer)

	sc := &SimulationCollector{

		currentEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "current_epoch",
			Namespace: namespaceSimulation,
			Subsystem: subsystemRunner,
			Help:      "index of the epoch currently being processed",
		}),

		epochsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "epochs_resolved_total",
			Namespace: namespaceSimulation,
			Subsystem: subsystemMarket,
			Help:      "number of resolved epochs, by proposer action",
		}, []string{LabelAction}),

		payments: factory.NewCounter(prometheus.CounterOpts{
			Name:      "payments_total",
			Namespace: namespaceSimulation,
			Subsystem: subsystemMarket,
			Help:      "number of payments applied to the balance sheet",
		}),

		paymentVolume: factory.NewCounter(prometheus.CounterOpts{
			Name:      "payment_volume_total",
			Namespace: namespaceSimulation,
			Subsystem: subsystemMarket,
			Help:      "sum of all payment amounts",
		}),

		optimizationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:      "bid_optimization_seconds",
			Namespace: namespaceSimulation,
			Subsystem: subsystemMarket,
			Help:      "duration of a single bid optimization",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),

		candidates: factory.NewHistogram(prometheus.HistogramOpts{
			Name:      "bid_optimization_candidates",
			Namespace: namespaceSimulation,
			Subsystem: subsystemMarket,
			Help:      "number of candidate bids evaluated by a bid optimization",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		bidsAdjusted: factory.NewCounter(prometheus.CounterOpts{
			Name:      "bids_adjusted_total",
			Namespace: namespaceSimulation,
			Subsystem: subsystemRunner,
			Help:      "number of bid optimizations whose result was placed",
		}),

		bidsChanged: factory.NewCounter(prometheus.CounterOpts{
			Name:      "bids_changed_total",
			Namespace: namespaceSimulation,
			Subsystem: subsystemRunner,
			Help:      "number of placed bids that differ from the previous bid",
		}),

		runsTerminated: factory.NewCounter(prometheus.CounterOpts{
			Name:      "runs_terminated_total",
			Namespace: namespaceSimulation,
			Subsystem: subsystemRunner,
			Help:      "number of runs ended by their stop policy",
		}),

		runsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:      "runs_failed_total",
			Namespace: namespaceSimulation,
			Subsystem: subsystemRunner,
			Help:      "number of failed runs, by error kind",
		}, []string{LabelErrorKind}),

		terminatedAtEpochs: factory.NewGauge(prometheus.GaugeOpts{
			Name:      "terminated_after_epochs",
			Namespace: namespaceSimulation,
			Subsystem: subsystemRunner,
			Help:      "number of epochs processed by the last terminated run",
		}),
	}

	return sc
}

func (sc *SimulationCollector) CurrentEpoch(epoch uint64) {
	sc.currentEpoch.Set(float64(epoch))
}

func (sc *SimulationCollector) EpochResolved(action lsp.Action, payments int, volume float64) {
	sc.epochsResolved.WithLabelValues(string(action)).Inc()
	sc.payments.Add(float64(payments))
	sc.paymentVolume.Add(volume)
}

func (sc *SimulationCollector) BidOptimized(duration time.Duration, candidates int) {
	sc.optimizationTime.Observe(duration.Seconds())
	sc.candidates.Observe(float64(candidates))
}

func (sc *SimulationCollector) BidsAdjusted(adjusted int, changed int) {
	sc.bidsAdjusted.Add(float64(adjusted))
	sc.bidsChanged.Add(float64(changed))
}

func (sc *SimulationCollector) RunTerminated(epochs uint64) {
	sc.runsTerminated.Inc()
	sc.terminatedAtEpochs.Set(float64(epochs))
}

func (sc *SimulationCollector) RunFailed(kind string) {
	sc.runsFailed.WithLabelValues(kind).Inc()
}
