package operation

import (
	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"

	"github.com/lsp-research/lspmarket/storage"
)

// InsertRun stores the description of a simulation run.
// Expected errors during normal operations:
//   - storage.ErrAlreadyExists if the run is already stored
func InsertRun(run *storage.RunInfo) func(*badger.Txn) error {
	return insert(makePrefix(codeRun, run.ID), encodableFromRun(run))
}

// RetrieveRun retrieves the description of a simulation run.
// Expected errors during normal operations:
//   - storage.ErrNotFound if the run is unknown
func RetrieveRun(runID uuid.UUID, run *storage.RunInfo) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var enc encodableRun
		err := retrieve(makePrefix(codeRun, runID), &enc)(tx)
		if err != nil {
			return err
		}
		decoded, err := runFromEncodable(enc)
		if err != nil {
			return err
		}
		*run = *decoded
		return nil
	}
}

// LookupRuns collects the IDs of all stored runs in key order.
func LookupRuns(runIDs *[]uuid.UUID) func(*badger.Txn) error {
	return traverse(makePrefix(codeRun), func() (createFunc, handleFunc) {
		var enc encodableRun
		create := func() interface{} {
			return &enc
		}
		handle := func() error {
			id, err := uuid.FromBytes(enc.ID)
			if err != nil {
				return err
			}
			*runIDs = append(*runIDs, id)
			return nil
		}
		return create, handle
	})
}
