package cmd

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// distribution is the spread of one balance figure over all participants.
type distribution struct {
	Mean   float64
	Median float64
	Min    float64
	Max    float64
}

func newDistribution(values stats.Float64Data) (distribution, error) {
	var d distribution
	if len(values) == 0 {
		return d, nil
	}
	var err error
	if d.Mean, err = values.Mean(); err != nil {
		return d, fmt.Errorf("could not compute mean: %w", err)
	}
	if d.Median, err = values.Median(); err != nil {
		return d, fmt.Errorf("could not compute median: %w", err)
	}
	if d.Min, err = values.Min(); err != nil {
		return d, fmt.Errorf("could not compute minimum: %w", err)
	}
	if d.Max, err = values.Max(); err != nil {
		return d, fmt.Errorf("could not compute maximum: %w", err)
	}
	return d, nil
}

func (d distribution) dict() *zerolog.Event {
	return zerolog.Dict().
		Float64("mean", d.Mean).
		Float64("median", d.Median).
		Float64("min", d.Min).
		Float64("max", d.Max)
}

// report summarizes a finished run.
type report struct {
	Epochs  uint64
	Actions map[lsp.Action]uint64
	// Net is the net balance (received minus paid) of every participant.
	Net map[lsp.Identifier]float64
	// Total is the total balance of every participant: net payments plus extra slot
	// earnings, minus extra slot costs and reputation cost.
	Total map[lsp.Identifier]float64
	// Participants is the number of participants that ever placed a bid.
	Participants int

	NetStats   distribution
	TotalStats distribution
}

func newReport(
	epochs uint64,
	actions map[lsp.Action]uint64,
	balances map[lsp.Identifier]lsp.Account,
	standings map[lsp.Identifier]lsp.Standing,
) (*report, error) {
	r := &report{
		Epochs:  epochs,
		Actions: actions,
		Net:     make(map[lsp.Identifier]float64, len(balances)),
		Total:   make(map[lsp.Identifier]float64, len(balances)),
	}

	nets := make(stats.Float64Data, 0, len(balances))
	for id, acc := range balances {
		net := acc.Net().InexactFloat64()
		r.Net[id] = net
		nets = append(nets, net)
	}
	totals := make(stats.Float64Data, 0, len(standings))
	for id, total := range lsp.TotalBalances(balances, standings) {
		r.Total[id] = total.InexactFloat64()
		totals = append(totals, r.Total[id])
	}
	for _, st := range standings {
		if st.Participated {
			r.Participants++
		}
	}

	var err error
	if r.NetStats, err = newDistribution(nets); err != nil {
		return nil, fmt.Errorf("net balance: %w", err)
	}
	if r.TotalStats, err = newDistribution(totals); err != nil {
		return nil, fmt.Errorf("total balance: %w", err)
	}
	return r, nil
}

func (r *report) log(log zerolog.Logger) {
	actions := zerolog.Dict()
	names := make([]string, 0, len(r.Actions))
	for action := range r.Actions {
		names = append(names, string(action))
	}
	sort.Strings(names)
	for _, name := range names {
		actions.Uint64(name, r.Actions[lsp.Action(name)])
	}

	log.Info().
		Uint64("epochs", r.Epochs).
		Dict("actions", actions).
		Int("participated", r.Participants).
		Dict("net", r.NetStats.dict()).
		Dict("total", r.TotalStats.dict()).
		Msg("simulation report")

	ids := make(lsp.IdentifierList, 0, len(r.Net))
	for id := range r.Net {
		ids = append(ids, id)
	}
	sort.Sort(ids)
	for _, id := range ids {
		log.Debug().
			Str("participant", string(id)).
			Float64("net", r.Net[id]).
			Float64("total", r.Total[id]).
			Msg("final balance")
	}
}
