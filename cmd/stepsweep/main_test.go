package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boristopalov/stepsweep/internal/store"
	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/recorder"
)

func smallConfig(t *testing.T) *config.ExperimentConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Name = "cli-test"
	cfg.Sweep.EpisodesPerEpoch = 4
	cfg.Sweep.DataPoints = 3
	cfg.Sweep.InitialTimestep = 0.001
	cfg.Sweep.TimestepIncrement = 0.1
	cfg.Sweep.LogPath = filepath.Join(dir, "DataRecorder", "walker.json")
	cfg.Storage.DBPath = filepath.Join(dir, "runs.db")
	cfg.Signals.Dir = filepath.Join(dir, "signals")
	return cfg
}

func TestRunSweep(t *testing.T) {
	for _, clock := range []string{"host", "controller"} {
		t.Run(clock+" clock", func(t *testing.T) {
			cfg := smallConfig(t)
			if err := runSweep(context.Background(), cfg, clock); err != nil {
				t.Fatalf("runSweep failed: %v", err)
			}

			records, err := recorder.ReadJournal(cfg.Sweep.LogPath)
			if err != nil {
				t.Fatalf("failed to read journal: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("expected 3 records, got %d", len(records))
			}
			for i, r := range records {
				if r.EpochNo != i+1 {
					t.Errorf("record %d: expected epoch %d, got %d", i, i+1, r.EpochNo)
				}
				if r.Success+r.Failure != 4 {
					t.Errorf("record %d: expected 4 outcomes, got %d", i, r.Success+r.Failure)
				}
				if r.TotalEpisodes != 4*(i+1) {
					t.Errorf("record %d: expected cumulative total %d, got %d", i, 4*(i+1), r.TotalEpisodes)
				}
				if want := cfg.Sweep.TimestepAt(i + 1); math.Abs(r.CurrentTimestep-want) > 1e-12 {
					t.Errorf("record %d: expected timestep %g, got %g", i, want, r.CurrentTimestep)
				}
			}

			db, err := store.Open(cfg.Storage.DBPath)
			if err != nil {
				t.Fatalf("failed to open db: %v", err)
			}
			t.Cleanup(func() { db.Close() })

			runs, err := db.ListRuns()
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(runs) != 1 {
				t.Fatalf("expected 1 run, got %d", len(runs))
			}
			if runs[0].Status != store.RunFinished {
				t.Errorf("expected finished run, got %q", runs[0].Status)
			}
			stored, err := db.ListRecords(runs[0].ID)
			if err != nil {
				t.Fatalf("ListRecords failed: %v", err)
			}
			if len(stored) != 3 {
				t.Errorf("expected 3 stored records, got %d", len(stored))
			}
		})
	}

	t.Run("unknown clock", func(t *testing.T) {
		if err := runSweep(context.Background(), smallConfig(t), "wall"); err == nil {
			t.Fatal("expected error for unknown clock")
		}
	})

	t.Run("stale halt file is cleared", func(t *testing.T) {
		cfg := smallConfig(t)
		cfg.Storage.DBPath = ""
		if err := os.MkdirAll(cfg.Signals.Dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(cfg.Signals.Dir, "halt"), []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := runSweep(context.Background(), cfg, "host"); err != nil {
			t.Fatalf("runSweep failed: %v", err)
		}
		records, err := recorder.ReadJournal(cfg.Sweep.LogPath)
		if err != nil {
			t.Fatalf("failed to read journal: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("expected the full sweep, got %d records", len(records))
		}
	})
}

func TestSummarize(t *testing.T) {
	records := []recorder.Record{
		{EpochNo: 1, Success: 9, Failure: 1, TotalEpisodes: 10, CurrentTimestep: 0.001},
		{EpochNo: 2, Success: 5, Failure: 5, TotalEpisodes: 20, CurrentTimestep: 0.101},
		{EpochNo: 3, Success: 1, Failure: 9, TotalEpisodes: 30, CurrentTimestep: 0.201},
	}
	s := summarize(records)

	if s.Epochs != 3 || s.Episodes != 30 {
		t.Errorf("expected 3 epochs and 30 episodes, got %d and %d", s.Epochs, s.Episodes)
	}
	if math.Abs(s.MeanRate-50) > 1e-9 {
		t.Errorf("expected mean rate 50, got %g", s.MeanRate)
	}
	if s.Best.EpochNo != 1 || s.Worst.EpochNo != 3 {
		t.Errorf("expected best epoch 1 and worst epoch 3, got %d and %d", s.Best.EpochNo, s.Worst.EpochNo)
	}
	if s.LastTimestep != 0.201 {
		t.Errorf("expected last timestep 0.201, got %g", s.LastTimestep)
	}

	if empty := summarize(nil); empty.Epochs != 0 {
		t.Errorf("expected empty summary, got %+v", empty)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, "walker.json", []recorder.Record{
		{EpochNo: 1, Success: 3, Failure: 1, TotalEpisodes: 4, CurrentTimestep: 0.001},
	})
	out := buf.String()
	for _, want := range []string{"EPOCH", "0.001", "75.0%", "Best: timestep 0.001"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestImportJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	records := []recorder.Record{
		{EpochNo: 1, Success: 2, Failure: 1, TotalEpisodes: 3, CurrentTimestep: 0.001},
		{EpochNo: 2, Success: 1, Failure: 2, TotalEpisodes: 6, CurrentTimestep: 0.101},
	}

	id, err := importJournal(dbPath, "walker", records)
	if err != nil {
		t.Fatalf("importJournal failed: %v", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	run, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != store.RunImported {
		t.Errorf("expected imported run, got %q", run.Status)
	}
	if run.Params.EpisodesPerEpoch != 3 || run.Params.DataPoints != 2 {
		t.Errorf("unexpected inferred params: %+v", run.Params)
	}
	got, err := db.ListRecords(id)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(got) != 2 || got[1] != records[1] {
		t.Errorf("expected imported records %v, got %v", records, got)
	}
}

func TestWriteConfigTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "stepsweep.yaml")

	created, err := writeConfigTemplate(path, false)
	if err != nil || !created {
		t.Fatalf("expected template to be written, got created=%v err=%v", created, err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if cfg.Sweep != config.DefaultSweepParams() {
		t.Errorf("expected default sweep params, got %+v", cfg.Sweep)
	}

	if err := os.WriteFile(path, []byte("name: mine\n"), 0644); err != nil {
		t.Fatal(err)
	}
	created, err = writeConfigTemplate(path, false)
	if err != nil || created {
		t.Fatalf("expected existing file to be kept, got created=%v err=%v", created, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "name: mine\n" {
		t.Errorf("existing file was overwritten: %q", data)
	}

	if created, err = writeConfigTemplate(path, true); err != nil || !created {
		t.Errorf("expected --force to overwrite, got created=%v err=%v", created, err)
	}
}
