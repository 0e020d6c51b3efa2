package memory

import (
	"testing"

	"github.com/boristopalov/stepsweep/pkg/recorder"
)

func TestHistory(t *testing.T) {
	t.Run("evicts oldest", func(t *testing.T) {
		h := NewHistory(2)
		for i := 1; i <= 3; i++ {
			h.Store(recorder.Record{EpochNo: i})
		}

		all := h.All()
		if len(all) != 2 {
			t.Fatalf("expected 2 records, got %d", len(all))
		}
		if all[0].EpochNo != 2 || all[1].EpochNo != 3 {
			t.Errorf("unexpected records: %+v", all)
		}
		if last, ok := h.Last(); !ok || last.EpochNo != 3 {
			t.Errorf("Last() = %+v, %v", last, ok)
		}
	})

	t.Run("all returns a copy", func(t *testing.T) {
		h := NewHistory(4)
		h.Store(recorder.Record{EpochNo: 1})
		all := h.All()
		all[0].EpochNo = 99
		if got := h.All()[0].EpochNo; got != 1 {
			t.Errorf("history mutated through copy: %d", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		h := NewHistory(0)
		if _, ok := h.Last(); ok {
			t.Error("expected no last record")
		}
		if h.Len() != 0 {
			t.Errorf("Len() = %d, want 0", h.Len())
		}
	})
}
