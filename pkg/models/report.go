package models

import "time"

// ReportKind identifies the period a report covers.
type ReportKind string

const (
	ReportDaily      ReportKind = "daily"
	ReportWeekly     ReportKind = "weekly"
	ReportTeamWeekly ReportKind = "team-weekly"
	ReportProgress   ReportKind = "progress"
)

// Report is the synthesized output of a run. A failed report has Success
// false and a non-empty Error; it is still a value, never a panic.
type Report struct {
	Kind        ReportKind     `json:"kind"`
	SubjectID   string         `json:"subject_id"`
	SubjectName string         `json:"subject_name"`
	ProjectID   string         `json:"project_id,omitempty"`
	PeriodStart string         `json:"period_start"`
	PeriodEnd   string         `json:"period_end"`
	Success     bool           `json:"success"`
	Content     map[string]any `json:"content,omitempty"`
	Error       string         `json:"error,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// FailedReport builds a failed report of kind for the given subject.
func FailedReport(kind ReportKind, subjectID, subjectName, msg string) *Report {
	return &Report{
		Kind:        kind,
		SubjectID:   subjectID,
		SubjectName: subjectName,
		Success:     false,
		Error:       msg,
		GeneratedAt: time.Now().UTC(),
	}
}
