package operation

import (
	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// InsertEpochSummary stores the summary of one epoch of the given run. Keys are
// ordered by run and then by epoch, so a run's epochs can be traversed in order.
// Expected errors during normal operations:
//   - storage.ErrAlreadyExists if the epoch of this run is already stored
func InsertEpochSummary(runID uuid.UUID, summary *lsp.EpochSummary) func(*badger.Txn) error {
	return insert(makePrefix(codeEpochSummary, runID, summary.Epoch), encodableFromSummary(summary))
}

// RetrieveEpochSummary retrieves the summary of one epoch of the given run.
// Expected errors during normal operations:
//   - storage.ErrNotFound if no summary is stored for the epoch
func RetrieveEpochSummary(runID uuid.UUID, epoch uint64, summary *lsp.EpochSummary) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var enc encodableSummary
		err := retrieve(makePrefix(codeEpochSummary, runID, epoch), &enc)(tx)
		if err != nil {
			return err
		}
		decoded, err := summaryFromEncodable(enc)
		if err != nil {
			return err
		}
		*summary = *decoded
		return nil
	}
}

// TraverseEpochSummaries calls the given function for every stored summary of the run
// in ascending epoch order. Returning an error from fn aborts the traversal.
func TraverseEpochSummaries(runID uuid.UUID, fn func(*lsp.EpochSummary) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeEpochSummary, runID), func() (createFunc, handleFunc) {
		var enc encodableSummary
		create := func() interface{} {
			return &enc
		}
		handle := func() error {
			summary, err := summaryFromEncodable(enc)
			if err != nil {
				return err
			}
			return fn(summary)
		}
		return create, handle
	})
}
