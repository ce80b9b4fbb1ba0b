package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), ".workpulse_events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log := newTestLog(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		{Time: now, Level: "INFO", Type: EventBranchFinished, Message: "document branch finished", Data: map[string]any{"source": "document"}},
		{Time: now.Add(time.Second), Level: "ERROR", Type: EventReportFailed, Message: "daily report failed"},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != EventBranchFinished || got[0].Data["source"] != "document" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Level != "ERROR" {
		t.Errorf("second level = %s", got[1].Level)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log := newTestLog(t)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for i, typ := range []string{EventRunFinished, EventPlanIngested, EventRunFinished, EventReportFailed} {
		level := "INFO"
		if typ == EventReportFailed {
			level = "ERROR"
		}
		if err := log.Write(Event{Time: base.Add(time.Duration(i) * time.Hour), Level: level, Type: typ}); err != nil {
			t.Fatal(err)
		}
	}

	since := base.Add(90 * time.Minute)
	until := base.Add(150 * time.Minute)
	tests := []struct {
		name   string
		filter EventFilter
		want   int
	}{
		{"all", EventFilter{}, 4},
		{"by type", EventFilter{Type: EventRunFinished}, 2},
		{"by level", EventFilter{Level: "ERROR"}, 1},
		{"since", EventFilter{Since: &since}, 2},
		{"window", EventFilter{Since: &since, Until: &until}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.Read(tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"time":"2026-10-19T00:00:00Z","level":"INFO","type":"run.finished","msg":"ok"}
not json
{"time":"2026-10-19T01:00:00Z","level":"INFO","type":"run.finished","msg":"ok"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 valid events, got %d", len(got))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log := newTestLog(t)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = log.Write(Event{Time: time.Now().UTC(), Level: "INFO", Type: EventBranchStarted, Message: fmt.Sprintf("branch %d", i)})
		}(i)
	}
	wg.Wait()

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 40 {
		t.Errorf("expected 40 events, got %d", len(got))
	}
}
