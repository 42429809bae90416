package metrics

import (
	"time"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/module"
)

type NoopCollector struct{}

var _ module.SimulationMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) CurrentEpoch(epoch uint64)                                     {}
func (nc *NoopCollector) EpochResolved(action lsp.Action, payments int, volume float64) {}
func (nc *NoopCollector) BidOptimized(duration time.Duration, candidates int)           {}
func (nc *NoopCollector) BidsAdjusted(adjusted int, changed int)                        {}
func (nc *NoopCollector) RunTerminated(epochs uint64)                                   {}
func (nc *NoopCollector) RunFailed(kind string)                                         {}
