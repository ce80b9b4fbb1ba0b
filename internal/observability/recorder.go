package observability

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// Recorder turns run lifecycle callbacks and ingester events into event log
// lines. It implements core.Observer and core.EventLogger; write failures
// are logged and never interrupt a run.
type Recorder struct {
	log    EventLog
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ core.Observer    = (*Recorder)(nil)
	_ core.EventLogger = (*Recorder)(nil)
)

// NewRecorder creates a Recorder writing to log.
func NewRecorder(log EventLog, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{log: log, logger: logger, now: time.Now}
}

// LogEvent implements core.EventLogger.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	return r.log.Write(Event{
		Time:    r.now().UTC(),
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}

func (r *Recorder) write(level, eventType, msg string, data map[string]any) {
	err := r.log.Write(Event{Time: r.now().UTC(), Level: level, Type: eventType, Message: msg, Data: data})
	if err != nil {
		r.logger.Warn("writing event", "type", eventType, "error", err)
	}
}

func (r *Recorder) BranchStarted(source models.SourceType) {
	r.write("INFO", EventBranchStarted, fmt.Sprintf("%s branch started", source), map[string]any{"source": string(source)})
}

func (r *Recorder) BranchFinished(res *models.BranchResult) {
	if res == nil {
		return
	}
	data := map[string]any{
		"source":         string(res.Source),
		"success":        res.OK(),
		"evidence_count": res.EvidenceCount,
		"duration_ms":    res.Duration.Milliseconds(),
	}
	if !res.OK() {
		data["error"] = res.Err.Error
		r.write("WARN", EventBranchFinished, fmt.Sprintf("%s branch failed", res.Source), data)
		return
	}
	r.write("INFO", EventBranchFinished, fmt.Sprintf("%s branch finished", res.Source), data)
}

func (r *Recorder) ReportStarted(in models.RunInputs) {
	r.write("INFO", EventReportStarted, "report generation started", map[string]any{
		"subject_id": in.SubjectID,
		"project_id": in.ProjectID,
		"date":       in.DateString(),
	})
}

func (r *Recorder) RunFinished(out *models.RunOutcome) {
	if out == nil {
		return
	}
	r.RecordReport(out.Report)
	data := map[string]any{}
	if out.Context != nil {
		data["subject_id"] = out.Context.Inputs.SubjectID
		data["date"] = out.Context.Inputs.DateString()
		data["error_entries"] = len(out.Context.Errors.Entries())
	}
	r.write("INFO", EventRunFinished, "run finished", data)
}

// RecordReport writes a report.generated or report.failed event. Period
// reports, which do not pass through the orchestrator, are recorded with it
// directly.
func (r *Recorder) RecordReport(rep *models.Report) {
	if rep == nil {
		return
	}
	data := map[string]any{
		"kind":         string(rep.Kind),
		"subject_id":   rep.SubjectID,
		"project_id":   rep.ProjectID,
		"period_start": rep.PeriodStart,
		"period_end":   rep.PeriodEnd,
	}
	if !rep.Success {
		data["error"] = rep.Error
		r.write("ERROR", EventReportFailed, fmt.Sprintf("%s report failed", rep.Kind), data)
		return
	}
	r.write("INFO", EventReportGenerated, fmt.Sprintf("%s report generated", rep.Kind), data)
}
