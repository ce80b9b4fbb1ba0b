package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	// SourceFailureStreak is how many most-recent branch runs of one source
	// must all have failed.
	SourceFailureStreak int
	// ReportFailures is how many failed reports inside ReportFailureWindow
	// trigger an alert.
	ReportFailures      int
	ReportFailureWindow time.Duration
}

// DefaultAlertThresholds returns the defaults used when config leaves them unset.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		SourceFailureStreak: 3,
		ReportFailures:      3,
		ReportFailureWindow: 24 * time.Hour,
	}
}

func (t AlertThresholds) withDefaults() AlertThresholds {
	d := DefaultAlertThresholds()
	if t.SourceFailureStreak <= 0 {
		t.SourceFailureStreak = d.SourceFailureStreak
	}
	if t.ReportFailures <= 0 {
		t.ReportFailures = d.ReportFailures
	}
	if t.ReportFailureWindow <= 0 {
		t.ReportFailureWindow = d.ReportFailureWindow
	}
	return t
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine. Zero thresholds take their defaults.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds.withDefaults(),
		now:        time.Now,
	}
}

// Evaluate returns every triggered alert, source streaks first.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()

	streaks, err := ae.checkSourceStreaks(now)
	if err != nil {
		return nil, fmt.Errorf("checking source failure streaks: %w", err)
	}
	reports, err := ae.checkReportFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking report failures: %w", err)
	}
	return append(streaks, reports...), nil
}

// checkSourceStreaks flags sources whose latest N branch runs all failed.
func (ae *alertEngine) checkSourceStreaks(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Type: EventBranchFinished})
	if err != nil {
		return nil, err
	}

	streak := make(map[string]int)
	lastError := make(map[string]string)
	for _, event := range events {
		source, _ := event.Data["source"].(string)
		if source == "" {
			continue
		}
		if ok, _ := event.Data["success"].(bool); ok {
			streak[source] = 0
			continue
		}
		streak[source]++
		lastError[source], _ = event.Data["error"].(string)
	}

	sources := make([]string, 0, len(streak))
	for s := range streak {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	var alerts []Alert
	for _, source := range sources {
		n := streak[source]
		if n < ae.thresholds.SourceFailureStreak {
			continue
		}
		msg := fmt.Sprintf("%s branch failed in its last %d runs", source, n)
		if lastError[source] != "" {
			msg += ": " + lastError[source]
		}
		alerts = append(alerts, Alert{
			ID:          "source-failing-" + source,
			Condition:   "source_failure_streak",
			Severity:    SeverityHigh,
			Message:     msg,
			TriggeredAt: now,
		})
	}
	return alerts, nil
}

// checkReportFailures flags too many failed reports inside the window.
func (ae *alertEngine) checkReportFailures(now time.Time) ([]Alert, error) {
	since := now.Add(-ae.thresholds.ReportFailureWindow)
	events, err := ae.eventLog.Read(EventFilter{Type: EventReportFailed, Since: &since})
	if err != nil {
		return nil, err
	}
	if len(events) < ae.thresholds.ReportFailures {
		return nil, nil
	}
	return []Alert{{
		ID:        "report-failures",
		Condition: "report_failures_in_window",
		Severity:  SeverityMedium,
		Message: fmt.Sprintf("%d reports failed in the last %s (threshold %d)",
			len(events), ae.thresholds.ReportFailureWindow, ae.thresholds.ReportFailures),
		TriggeredAt: now,
	}}, nil
}
