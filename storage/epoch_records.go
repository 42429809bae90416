package storage

import (
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/google/uuid"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// SchemaVersion is the version of the record format written by this code. Readers
// accept runs written with the same major version.
var SchemaVersion = semver.New("1.1.0")

// RunInfo describes a persisted simulation run.
type RunInfo struct {
	ID           uuid.UUID
	Mechanism    string
	Seed         uint64
	Participants lsp.ParticipantList
	StartedAt    time.Time
	// Version is the record format the run was written with. It is set by the store.
	Version semver.Version
}

// CompatibleSchema returns true if records written with the given version can be read.
// Minor versions only add fields, which older readers skip.
func CompatibleSchema(v semver.Version) bool {
	return v.Major == SchemaVersion.Major
}

// EpochRecords persists the summaries of simulation runs. Checkpointing is the job of
// the caller: the simulation itself never writes to storage.
type EpochRecords interface {

	// StoreRun stores the description of a new run.
	// Expected errors during normal operations:
	//   - storage.ErrAlreadyExists if a run with the same ID was stored before
	StoreRun(run *RunInfo) error

	// Run returns the description of the given run.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if the run is unknown
	//   - storage.ErrIncompatibleSchema if the run was written in an unreadable format
	Run(runID uuid.UUID) (*RunInfo, error)

	// Runs returns the IDs of all stored runs.
	Runs() ([]uuid.UUID, error)

	// Store stores the summary of one epoch of a run.
	// Expected errors during normal operations:
	//   - storage.ErrAlreadyExists if the epoch was stored before
	Store(runID uuid.UUID, summary *lsp.EpochSummary) error

	// ByEpoch returns the summary of one epoch of a run.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if the epoch is not stored
	ByEpoch(runID uuid.UUID, epoch uint64) (*lsp.EpochSummary, error)

	// ByRun returns the summaries of all stored epochs of a run in epoch order.
	ByRun(runID uuid.UUID) ([]*lsp.EpochSummary, error)
}
