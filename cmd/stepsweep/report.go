package main

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/boristopalov/stepsweep/internal/store"
	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/recorder"
)

// Summary aggregates the records of one journal
type Summary struct {
	Epochs       int
	Episodes     int
	MeanRate     float64
	StdDevRate   float64
	Best, Worst  recorder.Record
	LastTimestep float64
}

func summarize(records []recorder.Record) Summary {
	var s Summary
	if len(records) == 0 {
		return s
	}
	s.Epochs = len(records)
	s.Best, s.Worst = records[0], records[0]

	var sum float64
	for _, r := range records {
		s.Episodes += r.Success + r.Failure
		rate := r.SuccessRate()
		sum += rate
		if rate > s.Best.SuccessRate() {
			s.Best = r
		}
		if rate < s.Worst.SuccessRate() {
			s.Worst = r
		}
	}
	s.MeanRate = sum / float64(len(records))

	var sumSquares float64
	for _, r := range records {
		diff := r.SuccessRate() - s.MeanRate
		sumSquares += diff * diff
	}
	s.StdDevRate = math.Sqrt(sumSquares / float64(len(records)))
	s.LastTimestep = records[len(records)-1].CurrentTimestep
	return s
}

func printReport(w io.Writer, path string, records []recorder.Record) {
	fmt.Fprintf(w, "\n=== %s ===\n", path)
	if len(records) == 0 {
		fmt.Fprintln(w, "no records")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EPOCH\tTIMESTEP\tSUCCESS\tFAILURE\tTOTAL\tRATE")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%g\t%d\t%d\t%d\t%.1f%%\n",
			r.EpochNo, r.CurrentTimestep, r.Success, r.Failure, r.TotalEpisodes, r.SuccessRate())
	}
	tw.Flush()

	s := summarize(records)
	fmt.Fprintf(w, "\nEpochs: %d, episodes: %d\n", s.Epochs, s.Episodes)
	fmt.Fprintf(w, "Success rate: %.1f%% (std dev %.1f)\n", s.MeanRate, s.StdDevRate)
	fmt.Fprintf(w, "Best: timestep %g at %.1f%%\n", s.Best.CurrentTimestep, s.Best.SuccessRate())
	fmt.Fprintf(w, "Worst: timestep %g at %.1f%%\n", s.Worst.CurrentTimestep, s.Worst.SuccessRate())
}

func newReportCmd() *cobra.Command {
	var (
		dbPath string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "report <journal>",
		Short: "Print the epoch records of a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			records, err := recorder.ReadJournal(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printReport(out, path, records)

			if dbPath == "" {
				return nil
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			id, err := importJournal(dbPath, name, records)
			if err != nil {
				return err
			}
			printStatus(out, "✓", fmt.Sprintf("imported %d records into %s as run %s", len(records), dbPath, id), color.FgGreen)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Import the records into this sqlite database")
	cmd.Flags().StringVar(&name, "name", "", "Run name for the import (default: journal file name)")
	return cmd
}

// importJournal stores records as a new imported run and returns its id
func importJournal(dbPath, name string, records []recorder.Record) (string, error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return "", err
	}

	params := config.SweepParams{DataPoints: len(records)}
	if len(records) > 0 {
		params.InitialTimestep = records[0].CurrentTimestep
		params.EpisodesPerEpoch = records[0].Success + records[0].Failure
	}
	if len(records) > 1 {
		params.TimestepIncrement = records[1].CurrentTimestep - records[0].CurrentTimestep
	}

	run := &store.Run{
		ID:        uuid.New().String(),
		Name:      name,
		Params:    params,
		Status:    store.RunImported,
		StartedAt: time.Now(),
	}
	if err := db.CreateRun(run); err != nil {
		return "", err
	}
	if err := db.ImportRecords(run.ID, records); err != nil {
		return "", fmt.Errorf("importing into run %s: %w", run.ID, err)
	}
	return run.ID, nil
}
