package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/market/mechanism/espa"
	"github.com/lsp-research/lspmarket/market/mechanism/honest"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/module"
	"github.com/lsp-research/lspmarket/module/metrics"
	"github.com/lsp-research/lspmarket/simulation"
	"github.com/lsp-research/lspmarket/state/stake"
	"github.com/lsp-research/lspmarket/storage"
	bstorage "github.com/lsp-research/lspmarket/storage/badger"
	"github.com/lsp-research/lspmarket/utils/prg"
)

var flagNoProgress bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().Uint64("seed", 0, "seed of the simulation")
	runCmd.Flags().Uint64("epochs", 100, "maximum number of epochs")
	runCmd.Flags().Int("epoch-size", simulation.DefaultConfig().EpochSize, "number of slots per epoch")
	runCmd.Flags().Int("budget", simulation.DefaultConfig().Budget, "sampling budget of a bid optimization")
	runCmd.Flags().Int("workers", simulation.DefaultConfig().Workers, "number of concurrent bid optimizations")
	runCmd.Flags().String("mechanism", espa.Name, "market mechanism (espa, honest)")
	runCmd.Flags().Uint64("stable-window", 0, "stop once bids were stable for this many epochs (0 disables)")
	runCmd.Flags().String("adjust", adjustRandom, "adjustment policy (none, all, random)")
	runCmd.Flags().Int("adjust-count", 1, "number of participants adjusting per epoch for the random policy")
	runCmd.Flags().String("datadir", "", "directory of the badger database the epoch records are written to (empty disables)")
	runCmd.Flags().Uint("metrics-port", 0, "port of the prometheus /metrics endpoint (0 disables)")
	runCmd.Flags().BoolVar(&flagNoProgress, "no-progress", false, "do not show a progress bar")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	err := bindFlags(viper.GetViper(), cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dist, err := stake.FromClusterSizes(cfg.Clusters)
	if err != nil {
		return fmt.Errorf("could not build stake distribution: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewSimulationCollector(registry)
	if cfg.MetricsPort > 0 {
		server := metrics.NewServer(log, cfg.MetricsPort, registry)
		<-server.Ready()
		defer func() { <-server.Done() }()
	}

	var records storage.EpochRecords
	runID := uuid.New()
	if cfg.DataDir != "" {
		db, err := badger.Open(badger.DefaultOptions(cfg.DataDir).WithLogger(nil))
		if err != nil {
			return fmt.Errorf("could not open database: %w", err)
		}
		defer func() {
			lsm, vlog := db.Size()
			log.Info().
				Str("datadir", cfg.DataDir).
				Str("lsm_size", units.HumanSize(float64(lsm))).
				Str("vlog_size", units.HumanSize(float64(vlog))).
				Msg("closing database")
			_ = db.Close()
		}()

		store := bstorage.NewEpochRecords(db)
		err = store.StoreRun(&storage.RunInfo{
			ID:           runID,
			Mechanism:    cfg.Mechanism,
			Seed:         cfg.Seed,
			Participants: dist.Participants(),
			StartedAt:    time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("could not store run: %w", err)
		}
		records = store
	}

	runLog := log.With().Str("run", runID.String()).Str("mechanism", cfg.Mechanism).Logger()
	runLog.Info().
		Uint64("seed", cfg.Seed).
		Int("participants", dist.Len()).
		Uint64("total_stake", dist.TotalStake()).
		Msg("starting simulation")

	var rep *report
	switch cfg.Mechanism {
	case espa.Name:
		factory := espa.Factory(runLog, cfg.ESPA.auction(), market.WithPoolSize(cfg.EpochSize))
		rep, err = simulate[espa.Bid](ctx, runLog, cfg, dist, collector, records, runID, factory, cfg.ESPA.InitialBid.bid())
	case honest.Name:
		factory := honest.Factory(runLog, cfg.honestOptions()...)
		rep, err = simulate[honest.Bid](ctx, runLog, cfg, dist, collector, records, runID, factory, honest.Bid{Tip: cfg.Honest.Tip})
	default:
		return fmt.Errorf("unknown mechanism %q", cfg.Mechanism)
	}
	if err != nil {
		return err
	}

	rep.log(runLog)
	return nil
}

// simulate runs one simulation in which every participant starts out with the same bid.
func simulate[B lsp.Bid](
	ctx context.Context,
	log zerolog.Logger,
	cfg *Config,
	dist *stake.Distribution,
	collector module.SimulationMetrics,
	records storage.EpochRecords,
	runID uuid.UUID,
	factory market.Factory[B],
	initial B,
) (*report, error) {
	initialBids := make(lsp.BidSnapshot[B], dist.Len())
	for _, id := range dist.IDs() {
		initialBids[id] = initial
	}

	stop := simulation.MaxEpochs[B](cfg.Epochs)
	if cfg.StableWindow > 0 {
		stop = simulation.AnyOf(stop, simulation.BidsStable[B](cfg.StableWindow))
	}

	rng, err := prg.FromSeed(cfg.Seed, prg.ProposerSelection)
	if err != nil {
		return nil, fmt.Errorf("could not create PRG: %w", err)
	}

	runner, err := simulation.NewRunner(log, collector, cfg.runner(), dist, factory, initialBids, stop, cfg.adjustPolicy(), rng)
	if err != nil {
		return nil, fmt.Errorf("could not create runner: %w", err)
	}

	var bar *progressbar.ProgressBar
	if flagNoProgress {
		bar = progressbar.DefaultSilent(int64(cfg.Epochs), "epochs")
	} else {
		bar = progressbar.Default(int64(cfg.Epochs), "epochs")
	}

	actions := make(map[lsp.Action]uint64)
	err = runner.Run(ctx, func(record *lsp.EpochRecord[B]) error {
		actions[record.Action]++
		if records != nil {
			err := records.Store(runID, record.Summary())
			if err != nil {
				return fmt.Errorf("could not store epoch summary: %w", err)
			}
		}
		return bar.Add(1)
	})
	_ = bar.Finish()

	var epochErr *simulation.EpochError
	if errors.As(err, &epochErr) {
		return nil, fmt.Errorf("simulation failed in epoch %d during %s (%s): %w", epochErr.Epoch, epochErr.Call, epochErr.Kind, epochErr.Err)
	}
	if err != nil {
		return nil, err
	}

	return newReport(runner.Epoch(), actions, runner.Balances(), runner.Standings())
}
