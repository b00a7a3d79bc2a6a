package notifier

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/amishk599/statejobs/internal/model"
)

func TestLogNotifier_Notify_zeroJobs(t *testing.T) {
	n := NewLogNotifier(discardLogger())
	if err := n.Notify(nil); err != nil {
		t.Errorf("Notify(nil) = %v, want nil", err)
	}
	if err := n.Notify([]model.JobRecord{}); err != nil {
		t.Errorf("Notify([]) = %v, want nil", err)
	}
}

func TestLogNotifier_Notify_logsEachJob(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	jobs := []model.JobRecord{sampleJob("Budget Analyst 1", "Albany"), sampleJob("Clerk", "Erie")}
	if err := n.Notify(jobs); err != nil {
		t.Fatalf("Notify(jobs) = %v, want nil", err)
	}

	out := buf.String()
	if got := strings.Count(out, "msg=\"new job\""); got != 2 {
		t.Errorf("expected 2 log lines, got %d:\n%s", got, out)
	}
	if !strings.Contains(out, "county=Erie") || !strings.Contains(out, "deadline=2026-05-01") {
		t.Errorf("log output missing fields:\n%s", out)
	}
}
