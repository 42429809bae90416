package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/market/mechanism/espa"
	"github.com/lsp-research/lspmarket/market/mechanism/honest"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/module/metrics"
	"github.com/lsp-research/lspmarket/state/stake"
	"github.com/lsp-research/lspmarket/storage"
	bstorage "github.com/lsp-research/lspmarket/storage/badger"
	"github.com/lsp-research/lspmarket/utils/unittest"
)

func smallConfig(t *testing.T, mechanism string) *Config {
	v := readConfig(t, testConfig)
	v.Set("mechanism", mechanism)
	v.Set("epochs", 6)
	v.Set("epoch_size", 4)
	v.Set("budget", 8)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	return cfg
}

func TestSimulate_PersistsEveryEpoch(t *testing.T) {
	flagNoProgress = true
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		cfg := smallConfig(t, espa.Name)
		dist, err := stake.FromClusterSizes(cfg.Clusters)
		require.NoError(t, err)
		store := bstorage.NewEpochRecords(db)
		runID := uuid.New()
		require.NoError(t, store.StoreRun(&storage.RunInfo{ID: runID, Mechanism: espa.Name, Participants: dist.Participants()}))

		factory := espa.Factory(unittest.Logger(), cfg.ESPA.auction(), market.WithPoolSize(cfg.EpochSize))
		rep, err := simulate[espa.Bid](context.Background(), unittest.Logger(), cfg, dist, metrics.NewNoopCollector(), store, runID, factory, cfg.ESPA.InitialBid.bid())
		require.NoError(t, err)
		assert.Equal(t, cfg.Epochs, rep.Epochs)
		assert.Len(t, rep.Net, dist.Len())
		assert.Len(t, rep.Total, dist.Len())
		assert.Equal(t, dist.Len(), rep.Participants)

		var total uint64
		for _, n := range rep.Actions {
			total += n
		}
		assert.Equal(t, cfg.Epochs, total)

		summaries, err := store.ByRun(runID)
		require.NoError(t, err)
		require.Len(t, summaries, int(cfg.Epochs))
		for i, s := range summaries {
			assert.Equal(t, uint64(i), s.Epoch)
			assert.Len(t, s.Bids, dist.Len())
			assert.Len(t, s.Standings, dist.Len())
		}
		// the report is built from the state after the last epoch
		last := summaries[len(summaries)-1]
		for id, total := range last.TotalBalances() {
			assert.InDelta(t, total.InexactFloat64(), rep.Total[id], 1e-6, id)
		}

		// the stored summaries can be printed as JSON lines
		var out bytes.Buffer
		require.NoError(t, printEpochs(&out, store, runID))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, int(cfg.Epochs))
		var decoded lsp.EpochSummary
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
		assert.Equal(t, uint64(0), decoded.Epoch)
	})
}

// Honest proposers never pay or receive anything.
func TestSimulate_Honest(t *testing.T) {
	flagNoProgress = true
	cfg := smallConfig(t, honest.Name)
	dist, err := stake.FromClusterSizes(cfg.Clusters)
	require.NoError(t, err)

	factory := honest.Factory(unittest.Logger(), cfg.honestOptions()...)
	rep, err := simulate[honest.Bid](context.Background(), unittest.Logger(), cfg, dist, metrics.NewNoopCollector(), nil, uuid.New(), factory, honest.Bid{Tip: cfg.Honest.Tip})
	require.NoError(t, err)
	assert.Equal(t, map[lsp.Action]uint64{honest.ActionHonest: cfg.Epochs}, rep.Actions)
	for id, net := range rep.Net {
		assert.Zero(t, net, id)
		assert.Zero(t, rep.Total[id], id)
	}
}

func TestSimulate_Cancelled(t *testing.T) {
	flagNoProgress = true
	cfg := smallConfig(t, honest.Name)
	dist, err := stake.FromClusterSizes(cfg.Clusters)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	factory := honest.Factory(unittest.Logger(), cfg.honestOptions()...)
	_, err = simulate[honest.Bid](ctx, unittest.Logger(), cfg, dist, metrics.NewNoopCollector(), nil, uuid.New(), factory, honest.Bid{Tip: cfg.Honest.Tip})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPrintRuns(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewEpochRecords(db)

		var out bytes.Buffer
		require.NoError(t, printRuns(&out, store))
		assert.Empty(t, out.String())

		// summaries of unknown runs are not printed
		err := printEpochs(&out, store, uuid.New())
		unittest.RequireSentinel(t, err, storage.ErrNotFound)
		err = printEpoch(&out, store, uuid.New(), 0)
		unittest.RequireSentinel(t, err, storage.ErrNotFound)
	})
}
