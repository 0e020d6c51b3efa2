package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJournal(t *testing.T) {
	t.Run("legacy line matches existing consumers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ragDollWalker.json")
		j := NewJournal(path, SchemaLegacy)

		s := NewEpisodeStats(0.001)
		s.RecordOutcome(true)
		s.RecordOutcome(true)
		s.RecordOutcome(false)

		if err := j.Append(s.Snapshot()); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read journal: %v", err)
		}
		want := `{"epoch_no":1,"success":2,"faliure":1,"totalEpisodes":3,"currentTimestep":0.001}` + "\n"
		if string(data) != want {
			t.Errorf("journal = %q, want %q", string(data), want)
		}
	})

	t.Run("appends never truncate", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "log.json")
		j := NewJournal(path, "")

		for i := 1; i <= 3; i++ {
			if err := j.Append(Record{EpochNo: i, Success: i, TotalEpisodes: i, CurrentTimestep: 0.1}); err != nil {
				t.Fatalf("Append %d failed: %v", i, err)
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read journal: %v", err)
		}
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		if len(lines) != 3 {
			t.Fatalf("got %d lines, want 3: %q", len(lines), string(data))
		}
	})

	t.Run("corrected schema round trips", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "log.json")
		j := NewJournal(path, SchemaCorrected)
		in := Record{EpochNo: 4, Success: 7, Failure: 3, TotalEpisodes: 40, CurrentTimestep: 0.301}
		if err := j.Append(in); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), `"failure":3`) {
			t.Errorf("expected corrected key in %q", string(data))
		}

		records, err := ReadJournal(path)
		if err != nil {
			t.Fatalf("ReadJournal failed: %v", err)
		}
		if len(records) != 1 || records[0] != in {
			t.Errorf("ReadJournal() = %+v, want [%+v]", records, in)
		}
	})

	t.Run("append into a directory path fails", func(t *testing.T) {
		dir := t.TempDir()
		j := NewJournal(dir, SchemaLegacy)
		if err := j.Append(Record{EpochNo: 1}); err == nil {
			t.Error("expected error appending to a directory, got nil")
		}
	})

	t.Run("reader rejects malformed lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		content := `{"epoch_no":1,"success":1,"faliure":0,"totalEpisodes":1,"currentTimestep":0.1}` + "\n\nnot json\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := ReadJournal(path); err == nil {
			t.Error("expected error for malformed line, got nil")
		}
	})
}

func TestParseSchema(t *testing.T) {
	if s, err := ParseSchema(""); err != nil || s != SchemaLegacy {
		t.Errorf("ParseSchema(\"\") = %q, %v; want legacy", s, err)
	}
	if s, err := ParseSchema("corrected"); err != nil || s != SchemaCorrected {
		t.Errorf("ParseSchema(corrected) = %q, %v", s, err)
	}
	if _, err := ParseSchema("camel"); err == nil {
		t.Error("expected error for unknown schema")
	}
}
