package models

import (
	"strings"
	"sync"
	"time"
)

// RunInputs are fixed when a run starts and never change afterwards.
type RunInputs struct {
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	TargetDate  time.Time `json:"target_date"`
	ProjectID   string    `json:"project_id"`
}

// HasDate reports whether a target date was supplied.
func (in RunInputs) HasDate() bool { return !in.TargetDate.IsZero() }

// DateString returns the target date as YYYY-MM-DD, or "" when absent.
func (in RunInputs) DateString() string {
	if !in.HasDate() {
		return ""
	}
	return in.TargetDate.UTC().Format(DateLayout)
}

// DateLayout is the calendar date format used across reports and inputs.
const DateLayout = "2006-01-02"

// BranchError is the structured failure a branch writes into its own slot.
type BranchError struct {
	Error string     `json:"error"`
	Type  SourceType `json:"type"`
}

// BranchResult is the terminal state of one analyzer branch: either a
// judgment or an error, never both.
type BranchResult struct {
	Source        SourceType     `json:"source"`
	Judgment      map[string]any `json:"judgment,omitempty"`
	Err           *BranchError   `json:"error,omitempty"`
	EvidenceCount int            `json:"evidence_count"`
	Duration      time.Duration  `json:"duration"`
}

// OK reports whether the branch produced a judgment.
func (b *BranchResult) OK() bool { return b != nil && b.Err == nil }

// FailedBranch builds an error result for source.
func FailedBranch(source SourceType, msg string) *BranchResult {
	return &BranchResult{Source: source, Err: &BranchError{Error: msg, Type: source}}
}

// Value returns what the report generator sees for this slot: the judgment on
// success or the {error, type} object on failure.
func (b *BranchResult) Value() map[string]any {
	if b == nil {
		return nil
	}
	if b.Err != nil {
		return map[string]any{"error": b.Err.Error, "type": string(b.Err.Type)}
	}
	return b.Judgment
}

// ErrorLog is the run's append-only error text. Each Append adds one whole
// entry; concurrent appends never interleave inside an entry.
type ErrorLog struct {
	mu      sync.Mutex
	entries []string
}

// Append records one entry. Empty messages are ignored.
func (l *ErrorLog) Append(msg string) {
	if msg == "" {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()
}

// Entries returns a copy of the entries in append order.
func (l *ErrorLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// String joins all entries, one per line.
func (l *ErrorLog) String() string {
	return strings.Join(l.Entries(), "\n")
}

// RunContext is the state of one (subject, date, plan) run. Each analyzer
// branch owns exactly one of the typed result fields.
type RunContext struct {
	Inputs RunInputs
	Plan   *PlanSlice

	Documents *BranchResult
	Code      *BranchResult
	Email     *BranchResult
	Chat      *BranchResult

	Errors ErrorLog
}

// NewRunContext creates a context for the given inputs.
func NewRunContext(in RunInputs) *RunContext {
	return &RunContext{Inputs: in}
}

// Slot returns a pointer to the result field owned by source, or nil if no
// branch slot exists for it.
func (rc *RunContext) Slot(source SourceType) **BranchResult {
	switch source {
	case SourceDocument:
		return &rc.Documents
	case SourceCodeEvent:
		return &rc.Code
	case SourceEmail:
		return &rc.Email
	case SourceChatPost:
		return &rc.Chat
	default:
		return nil
	}
}

// BranchSources lists the sources that have a branch slot, in report order.
var BranchSources = []SourceType{SourceDocument, SourceCodeEvent, SourceEmail, SourceChatPost}

// Results returns the filled slots keyed by source.
func (rc *RunContext) Results() map[SourceType]*BranchResult {
	out := make(map[SourceType]*BranchResult, len(BranchSources))
	for _, s := range BranchSources {
		if r := *rc.Slot(s); r != nil {
			out[s] = r
		}
	}
	return out
}

// RunOutcome is what a finished run yields: the context, the report and the
// accumulated error text.
type RunOutcome struct {
	Context  *RunContext
	Report   *Report
	ErrorLog string
}
