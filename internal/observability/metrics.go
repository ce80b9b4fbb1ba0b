package observability

import (
	"fmt"
	"time"
)

// SourceMetrics counts branch outcomes for one evidence source.
type SourceMetrics struct {
	Succeeded     int   `json:"succeeded"`
	Failed        int   `json:"failed"`
	TotalDuration int64 `json:"total_duration_ms"`
}

// Metrics holds run metrics derived from the event log.
type Metrics struct {
	Runs             int                      `json:"runs"`
	ReportsGenerated int                      `json:"reports_generated"`
	ReportsFailed    int                      `json:"reports_failed"`
	ReportsByKind    map[string]int           `json:"reports_by_kind"`
	Branches         map[string]SourceMetrics `json:"branches"`
	PlansIngested    int                      `json:"plans_ingested"`
	PlansSkipped     int                      `json:"plans_skipped"`
	EventCount       int                      `json:"event_count"`
	OldestEvent      *time.Time               `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time               `json:"newest_event,omitempty"`
}

// AverageDuration returns the mean branch duration for source, or zero.
func (m *Metrics) AverageDuration(source string) time.Duration {
	s := m.Branches[source]
	n := s.Succeeded + s.Failed
	if n == 0 {
		return 0
	}
	return time.Duration(s.TotalDuration/int64(n)) * time.Millisecond
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate replays every event since the given time.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		ReportsByKind: make(map[string]int),
		Branches:      make(map[string]SourceMetrics),
		EventCount:    len(events),
	}
	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case EventRunFinished:
			m.Runs++
		case EventReportGenerated:
			m.ReportsGenerated++
			if kind, ok := event.Data["kind"].(string); ok {
				m.ReportsByKind[kind]++
			}
		case EventReportFailed:
			m.ReportsFailed++
		case EventBranchFinished:
			source, _ := event.Data["source"].(string)
			if source == "" {
				continue
			}
			s := m.Branches[source]
			if ok, _ := event.Data["success"].(bool); ok {
				s.Succeeded++
			} else {
				s.Failed++
			}
			// JSON numbers decode as float64.
			if d, ok := event.Data["duration_ms"].(float64); ok {
				s.TotalDuration += int64(d)
			}
			m.Branches[source] = s
		case EventPlanIngested:
			m.PlansIngested++
		case EventPlanSkipped:
			m.PlansSkipped++
		}
	}
	return m, nil
}
