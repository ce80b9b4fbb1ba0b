package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

// PromptKind names one judgment task.
type PromptKind string

const (
	PromptDocuments  PromptKind = "docs_analyze"
	PromptCode       PromptKind = "git_analyze"
	PromptEmail      PromptKind = "email_analyze"
	PromptChat       PromptKind = "teams_analyze"
	PromptDaily      PromptKind = "daily_report"
	PromptWeekly     PromptKind = "weekly_report"
	PromptTeamWeekly PromptKind = "team_weekly_report"
	PromptProgress   PromptKind = "daily_one_line"
)

// PromptData is the value prompt templates are executed against.
type PromptData struct {
	SubjectID   string
	SubjectName string
	Date        string
	PeriodStart string
	PeriodEnd   string
	ProjectID   string
	Plan        string
	Evidence    string
	// Sections holds named blocks such as per-branch results or README
	// excerpts, rendered in key order by the built-in templates.
	Sections map[string]string
}

// SortedSections returns the section names in order.
func (d PromptData) SortedSections() []string {
	keys := make([]string, 0, len(d.Sections))
	for k := range d.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PromptManager renders judgment prompts from built-in templates, optionally
// overridden by files named <kind>.tmpl or <kind>.md in a prompts directory.
type PromptManager interface {
	Render(kind PromptKind, data PromptData) (string, error)
	GetTemplate(kind PromptKind) (string, error)
}

type promptManager struct {
	dir string
}

// NewPromptManager creates a PromptManager. An empty dir uses only the
// built-in templates.
func NewPromptManager(dir string) PromptManager {
	return &promptManager{dir: dir}
}

// GetTemplate returns the raw template for kind, preferring an override file.
func (pm *promptManager) GetTemplate(kind PromptKind) (string, error) {
	if pm.dir != "" {
		for _, ext := range []string{".tmpl", ".md"} {
			path := filepath.Join(pm.dir, string(kind)+ext)
			raw, err := os.ReadFile(path)
			if err == nil {
				return string(raw), nil
			}
			if !os.IsNotExist(err) {
				return "", fmt.Errorf("reading prompt %s: %w", path, err)
			}
		}
	}
	raw, ok := builtinPrompts[kind]
	if !ok {
		return "", fmt.Errorf("no prompt template for %q", kind)
	}
	return raw, nil
}

// Render executes the template for kind against data.
func (pm *promptManager) Render(kind PromptKind, data PromptData) (string, error) {
	raw, err := pm.GetTemplate(kind)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(string(kind)).Option("missingkey=zero").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing prompt %s: %w", kind, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", kind, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

const promptSections = `{{range $k := .SortedSections}}
## {{$k}}
{{index $.Sections $k}}
{{end}}`

const jsonInstruction = `Respond with a single JSON object only.`

var builtinPrompts = map[PromptKind]string{
	PromptDocuments: `You review the documents {{.SubjectName}} ({{.SubjectID}}) worked on, {{.Date}}.
Assess progress against the assigned plan items and the quality of each deliverable document.

## Plan
{{.Plan}}

## Documents
{{.Evidence}}
` + promptSections + `
Return keys "summary", "deliverable_progress" (list of {deliverable, status, evidence}) and "quality_notes". ` + jsonInstruction,

	PromptCode: `You review the code activity of {{.SubjectName}} ({{.SubjectID}}) on {{.Date}}.

## Plan
{{.Plan}}

## Commits and pull requests
{{.Evidence}}
` + promptSections + `
Return keys "summary", "work_items" (list of {task, evidence}) and "risks". ` + jsonInstruction,

	PromptEmail: `You review the emails sent by {{.SubjectName}} ({{.SubjectID}}) on {{.Date}}.

## Plan
{{.Plan}}

## Emails
{{.Evidence}}

Return keys "summary", "communications" (list of {topic, counterpart, outcome}) and "follow_ups". ` + jsonInstruction,

	PromptChat: `You review the chat posts of {{.SubjectName}} ({{.SubjectID}}) on {{.Date}}.

## Plan
{{.Plan}}

## Posts
{{.Evidence}}

Return keys "summary", "discussions" (list of {topic, outcome}) and "blockers". ` + jsonInstruction,

	PromptDaily: `Write the daily progress report of {{.SubjectName}} ({{.SubjectID}}) for {{.Date}}, project {{.ProjectID}}.
Some sources may carry an "error" field instead of findings; mention them as unavailable.

## Plan
{{.Plan}}
` + promptSections + `
Return keys "title", "summary", "completed", "in_progress", "blockers", "plan_alignment" and "next_steps". ` + jsonInstruction,

	PromptWeekly: `Write the weekly report of {{.SubjectName}} ({{.SubjectID}}) for {{.PeriodStart}} to {{.PeriodEnd}}, project {{.ProjectID}}.

## Plan
{{.Plan}}

## Daily reports
{{.Evidence}}

Return keys "title", "summary", "achievements", "plan_progress", "issues" and "next_week". ` + jsonInstruction,

	PromptTeamWeekly: `Write the weekly team report for {{.SubjectName}} covering {{.PeriodStart}} to {{.PeriodEnd}}, project {{.ProjectID}}.

## Plan
{{.Plan}}
` + promptSections + `
Return keys "title", "summary", "members" (list of {name, highlights}), "risks" and "next_week". ` + jsonInstruction,

	PromptProgress: `Summarize in one line how {{.SubjectName}} ({{.SubjectID}}) progressed against the plan on {{.Date}}, project {{.ProjectID}}.

## Plan
{{.Plan}}

## Daily report
{{.Evidence}}

Return keys "summary" (one sentence) and "progress" (list of {task, status}). ` + jsonInstruction,
}
