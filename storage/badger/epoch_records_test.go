package badger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/dgraph-io/badger/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/storage"
	bstorage "github.com/lsp-research/lspmarket/storage/badger"
	"github.com/lsp-research/lspmarket/utils/unittest"
)

var decimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool {
	return x.Equal(y)
})

func TestEpochRecords_StoreAndRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewEpochRecords(db)
		runID := uuid.New()

		for epoch := uint64(0); epoch < 5; epoch++ {
			require.NoError(t, store.Store(runID, unittest.EpochSummaryFixture(epoch)))
		}

		summary, err := store.ByEpoch(runID, 2)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(unittest.EpochSummaryFixture(2), summary, decimalComparer))

		summaries, err := store.ByRun(runID)
		require.NoError(t, err)
		require.Len(t, summaries, 5)
		for i, s := range summaries {
			assert.Equal(t, uint64(i), s.Epoch)
		}

		err = store.Store(runID, unittest.EpochSummaryFixture(2))
		unittest.RequireSentinel(t, err, storage.ErrAlreadyExists)
	})
}

// A fresh store on the same database reads what an earlier one wrote.
func TestEpochRecords_Reopen(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		runID := uuid.New()
		require.NoError(t, bstorage.NewEpochRecords(db).Store(runID, unittest.EpochSummaryFixture(9)))

		summary, err := bstorage.NewEpochRecords(db).ByEpoch(runID, 9)
		require.NoError(t, err)
		assert.Equal(t, lsp.Identifier("b"), summary.NextProposer)
		assert.True(t, summary.Balances["b"].Paid.Equal(decimal.RequireFromString("12.5")))
	})
}

func TestEpochRecords_NotFound(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewEpochRecords(db)

		_, err := store.ByEpoch(uuid.New(), 0)
		unittest.RequireSentinel(t, err, storage.ErrNotFound)

		_, err = store.Run(uuid.New())
		unittest.RequireSentinel(t, err, storage.ErrNotFound)

		summaries, err := store.ByRun(uuid.New())
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})
}

func TestEpochRecords_Runs(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewEpochRecords(db)
		run := &storage.RunInfo{
			ID:           uuid.New(),
			Mechanism:    "espa",
			Seed:         7,
			Participants: lsp.ParticipantList{{ID: "a", Stake: 1, ReputationFactor: 1}},
			StartedAt:    time.Unix(1700000000, 0).UTC(),
		}
		require.NoError(t, store.StoreRun(run))
		unittest.RequireSentinel(t, store.StoreRun(run), storage.ErrAlreadyExists)

		stored, err := store.Run(run.ID)
		require.NoError(t, err)
		expected := *run
		expected.Version = *storage.SchemaVersion
		assert.Equal(t, &expected, stored)

		runIDs, err := store.Runs()
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{run.ID}, runIDs)
	})
}

// A summary stored in a transaction that is rolled back must not be served from the cache.
func TestEpochRecords_AbortedTransaction(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewEpochRecords(db)
		runID := uuid.New()
		abort := errors.New("abort")

		err := db.Update(func(tx *badger.Txn) error {
			err := store.StoreTx(runID, unittest.EpochSummaryFixture(3))(tx)
			require.NoError(t, err)
			return abort
		})
		require.ErrorIs(t, err, abort)

		_, err = store.ByEpoch(runID, 3)
		unittest.RequireSentinel(t, err, storage.ErrNotFound)

		// the same epoch can still be stored afterwards
		require.NoError(t, store.Store(runID, unittest.EpochSummaryFixture(3)))
		summary, err := store.ByEpoch(runID, 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), summary.Epoch)
	})
}

func TestCompatibleSchema(t *testing.T) {
	assert.True(t, storage.CompatibleSchema(*storage.SchemaVersion))
	assert.True(t, storage.CompatibleSchema(*semver.New("1.0.0")))
	assert.True(t, storage.CompatibleSchema(*semver.New("1.9.3")))
	assert.False(t, storage.CompatibleSchema(*semver.New("2.0.0")))
	assert.False(t, storage.CompatibleSchema(semver.Version{}))
}
