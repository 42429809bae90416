package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/storage"
	"github.com/lsp-research/lspmarket/storage/badger/operation"
)

type epochKey struct {
	run   uuid.UUID
	epoch uint64
}

// EpochRecords implements storage.EpochRecords on top of badger.
type EpochRecords struct {
	db    *badger.DB
	cache *Cache[epochKey, *lsp.EpochSummary]
}

var _ storage.EpochRecords = (*EpochRecords)(nil)

func NewEpochRecords(db *badger.DB) *EpochRecords {

	store := func(key epochKey, summary *lsp.EpochSummary) func(*badger.Txn) error {
		return operation.InsertEpochSummary(key.run, summary)
	}

	retrieve := func(key epochKey) func(*badger.Txn) (*lsp.EpochSummary, error) {
		return func(tx *badger.Txn) (*lsp.EpochSummary, error) {
			var summary lsp.EpochSummary
			err := operation.RetrieveEpochSummary(key.run, key.epoch, &summary)(tx)
			return &summary, err
		}
	}

	return &EpochRecords{
		db: db,
		cache: newCache[epochKey, *lsp.EpochSummary](
			withLimit[epochKey, *lsp.EpochSummary](256),
			withStore[epochKey, *lsp.EpochSummary](store),
			withRetrieve[epochKey, *lsp.EpochSummary](retrieve)),
	}
}

func (er *EpochRecords) StoreRun(run *storage.RunInfo) error {
	return operation.RetryOnConflict(er.db.Update, operation.InsertRun(run))
}

func (er *EpochRecords) Run(runID uuid.UUID) (*storage.RunInfo, error) {
	var run storage.RunInfo
	err := er.db.View(operation.RetrieveRun(runID, &run))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve run %s: %w", runID, err)
	}
	if !storage.CompatibleSchema(run.Version) {
		return nil, fmt.Errorf("run %s was written with schema %s, can read %d.x: %w",
			runID, run.Version, storage.SchemaVersion.Major, storage.ErrIncompatibleSchema)
	}
	return &run, nil
}

func (er *EpochRecords) Runs() ([]uuid.UUID, error) {
	var runIDs []uuid.UUID
	err := er.db.View(operation.LookupRuns(&runIDs))
	if err != nil {
		return nil, fmt.Errorf("could not look up runs: %w", err)
	}
	return runIDs, nil
}

// StoreTx returns the operation storing a summary within a caller-managed transaction.
// The summary is only cached once it is read back after the commit.
func (er *EpochRecords) StoreTx(runID uuid.UUID, summary *lsp.EpochSummary) func(*badger.Txn) error {
	return er.cache.PutTx(epochKey{run: runID, epoch: summary.Epoch}, summary)
}

func (er *EpochRecords) Store(runID uuid.UUID, summary *lsp.EpochSummary) error {
	err := operation.RetryOnConflict(er.db.Update, er.StoreTx(runID, summary))
	if err != nil {
		return err
	}
	er.cache.Insert(epochKey{run: runID, epoch: summary.Epoch}, summary)
	return nil
}

func (er *EpochRecords) ByEpoch(runID uuid.UUID, epoch uint64) (*lsp.EpochSummary, error) {
	tx := er.db.NewTransaction(false)
	defer tx.Discard()
	return er.cache.Get(epochKey{run: runID, epoch: epoch})(tx)
}

func (er *EpochRecords) ByRun(runID uuid.UUID) ([]*lsp.EpochSummary, error) {
	var summaries []*lsp.EpochSummary
	err := er.db.View(operation.TraverseEpochSummaries(runID, func(summary *lsp.EpochSummary) error {
		summaries = append(summaries, summary)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not traverse epochs of run %s: %w", runID, err)
	}
	return summaries, nil
}
