package traffic

import (
	"testing"
	"time"
)

func TestErrorRate_Empty(t *testing.T) {
	Reset()
	errs, total := ErrorRate("hgbrasil", time.Minute)
	if errs != 0 || total != 0 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 0)", errs, total)
	}
}

func TestErrorRate_PerProvider(t *testing.T) {
	Reset()
	RecordSuccess("hgbrasil")
	RecordSuccess("hgbrasil")
	RecordError("hgbrasil")
	RecordError("weatherapi")

	errs, total := ErrorRate("hgbrasil", time.Minute)
	if errs != 1 || total != 3 {
		t.Errorf("hgbrasil ErrorRate() = (%d, %d), want (1, 3)", errs, total)
	}
	errs, total = ErrorRate("weatherapi", time.Minute)
	if errs != 1 || total != 1 {
		t.Errorf("weatherapi ErrorRate() = (%d, %d), want (1, 1)", errs, total)
	}
}

func TestTracker_WindowAndPrune(t *testing.T) {
	now := time.Date(2024, 11, 3, 14, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.RecordError("weatherapi")
	now = now.Add(2 * time.Minute)
	tr.RecordSuccess("weatherapi")

	if errs, total := tr.ErrorRate("weatherapi", time.Minute); errs != 0 || total != 1 {
		t.Errorf("1m window = (%d, %d), want (0, 1)", errs, total)
	}
	if errs, total := tr.ErrorRate("weatherapi", 5*time.Minute); errs != 1 || total != 2 {
		t.Errorf("5m window = (%d, %d), want (1, 2)", errs, total)
	}

	now = now.Add(maxAge + time.Minute)
	tr.RecordSuccess("weatherapi")
	if n := len(tr.by["weatherapi"].errorTimes); n != 0 {
		t.Errorf("errorTimes after prune = %d, want 0", n)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.RecordError("hgbrasil")
	tr.Reset()
	if errs, total := tr.ErrorRate("hgbrasil", time.Minute); errs != 0 || total != 0 {
		t.Errorf("after Reset ErrorRate() = (%d, %d), want (0, 0)", errs, total)
	}
}
