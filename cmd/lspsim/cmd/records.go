package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/storage"
	bstorage "github.com/lsp-research/lspmarket/storage/badger"
)

var (
	flagDatadir string
	flagRun     string
	flagEpoch   uint64
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Print stored runs and epoch summaries as JSON lines",
	Long: `Without --run, all stored runs are listed. With --run, the epoch summaries of
the run are printed, or only the summary of --epoch if given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := badger.Open(badger.DefaultOptions(flagDatadir).WithLogger(nil).WithReadOnly(true))
		if err != nil {
			return fmt.Errorf("could not open database: %w", err)
		}
		defer db.Close()

		store := bstorage.NewEpochRecords(db)
		out := cmd.OutOrStdout()
		if flagRun == "" {
			return printRuns(out, store)
		}
		runID, err := uuid.Parse(flagRun)
		if err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
		if cmd.Flags().Changed("epoch") {
			return printEpoch(out, store, runID, flagEpoch)
		}
		return printEpochs(out, store, runID)
	},
}

func init() {
	recordsCmd.Flags().StringVarP(&flagDatadir, "datadir", "d", "", "directory of the badger database")
	_ = recordsCmd.MarkFlagRequired("datadir")
	recordsCmd.Flags().StringVar(&flagRun, "run", "", "id of the run to print")
	recordsCmd.Flags().Uint64Var(&flagEpoch, "epoch", 0, "epoch to print")
}

func printRuns(out io.Writer, store storage.EpochRecords) error {
	runIDs, err := store.Runs()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, runID := range runIDs {
		run, err := store.Run(runID)
		if err != nil {
			return err
		}
		err = enc.Encode(run)
		if err != nil {
			return fmt.Errorf("could not encode run %s: %w", runID, err)
		}
	}
	return nil
}

func printEpoch(out io.Writer, store storage.EpochRecords, runID uuid.UUID, epoch uint64) error {
	_, err := store.Run(runID)
	if err != nil {
		return err
	}
	summary, err := store.ByEpoch(runID, epoch)
	if err != nil {
		return fmt.Errorf("could not read epoch %d of run %s: %w", epoch, runID, err)
	}
	return writeSummaries(out, summary)
}

func printEpochs(out io.Writer, store storage.EpochRecords, runID uuid.UUID) error {
	_, err := store.Run(runID)
	if err != nil {
		return err
	}
	summaries, err := store.ByRun(runID)
	if err != nil {
		return err
	}
	return writeSummaries(out, summaries...)
}

func writeSummaries(out io.Writer, summaries ...*lsp.EpochSummary) error {
	enc := json.NewEncoder(out)
	for _, s := range summaries {
		err := enc.Encode(s)
		if err != nil {
			return fmt.Errorf("could not encode summary of epoch %d: %w", s.Epoch, err)
		}
	}
	return nil
}
