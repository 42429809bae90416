package metrics

const (
	namespaceSimulation = "lspmarket"
)

const (
	subsystemRunner = "runner"
	subsystemMarket = "market"
)
