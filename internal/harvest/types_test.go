package harvest

import "testing"

func TestParseMode(t *testing.T) {
	t.Parallel()

	if m, err := ParseMode("sync"); err != nil || m != ModeSequential {
		t.Fatalf("ParseMode(sync) = %v, %v", m, err)
	}
	if m, err := ParseMode("async"); err != nil || m != ModeConcurrent {
		t.Fatalf("ParseMode(async) = %v, %v", m, err)
	}
	if _, err := ParseMode("turbo"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestStatusRecordConstructors(t *testing.T) {
	t.Parallel()

	ok := Succeeded("AAA")
	if ok.Item != "AAA" || ok.Outcome != OutcomeSuccess || ok.Reason != "" {
		t.Fatalf("unexpected success record %+v", ok)
	}

	bad := Failed("CCC", "unexpected status 404")
	if bad.Item != "CCC" || bad.Outcome != OutcomeFailure || bad.Reason == "" {
		t.Fatalf("unexpected failure record %+v", bad)
	}
}

func TestTallySummary(t *testing.T) {
	t.Parallel()

	tally := Tally{Succeeded: 2, Failed: 1}
	if tally.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", tally.Total())
	}
	if got := tally.Summary(); got != "success: 2/3, failure: 1/3" {
		t.Fatalf("Summary() = %q", got)
	}
}

func TestSentinelTask(t *testing.T) {
	t.Parallel()

	if task := SentinelTask(); !task.Sentinel || task.ID != "" {
		t.Fatalf("unexpected sentinel %+v", task)
	}
	if task := NewTask("7"); task.Sentinel || task.ID != "7" {
		t.Fatalf("unexpected task %+v", task)
	}
}
