package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

type branchState int

const (
	branchPending branchState = iota
	branchRunning
	branchDone
	branchFailed
)

type branchStartedMsg struct{ source models.SourceType }
type branchFinishedMsg struct{ result *models.BranchResult }
type reportStartedMsg struct{}
type runDoneMsg struct{ outcome *models.RunOutcome }

// programObserver forwards orchestrator callbacks into a bubbletea program.
type programObserver struct {
	send func(tea.Msg)
}

var _ core.Observer = (*programObserver)(nil)

func (o *programObserver) BranchStarted(s models.SourceType) { o.send(branchStartedMsg{source: s}) }
func (o *programObserver) BranchFinished(r *models.BranchResult) { o.send(branchFinishedMsg{result: r}) }
func (o *programObserver) ReportStarted(models.RunInputs) { o.send(reportStartedMsg{}) }
func (o *programObserver) RunFinished(*models.RunOutcome) {}

type branchRow struct {
	state    branchState
	duration time.Duration
	evidence int
	err      string
}

type monitorModel struct {
	inputs    models.RunInputs
	rows      map[models.SourceType]*branchRow
	reporting bool
	outcome   *models.RunOutcome
	cancel    func()
	started   time.Time
}

var monitorTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("230")).
	Background(lipgloss.Color("62")).
	Padding(0, 1)

var monitorBox = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("62")).
	Padding(0, 2)

var (
	statePending = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	stateRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	stateDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	stateFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	monitorHelp = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newMonitorModel(in models.RunInputs, cancel func()) monitorModel {
	rows := make(map[models.SourceType]*branchRow, len(models.BranchSources))
	for _, s := range models.BranchSources {
		rows[s] = &branchRow{}
	}
	return monitorModel{inputs: in, rows: rows, cancel: cancel, started: time.Now()}
}

func (m monitorModel) Init() tea.Cmd { return nil }

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case branchStartedMsg:
		if row, ok := m.rows[msg.source]; ok {
			row.state = branchRunning
		}
	case branchFinishedMsg:
		if msg.result == nil {
			return m, nil
		}
		row, ok := m.rows[msg.result.Source]
		if !ok {
			return m, nil
		}
		row.duration = msg.result.Duration
		row.evidence = msg.result.EvidenceCount
		if msg.result.OK() {
			row.state = branchDone
		} else {
			row.state = branchFailed
			row.err = msg.result.Err.Error
		}
	case reportStartedMsg:
		m.reporting = true
	case runDoneMsg:
		m.outcome = msg.outcome
		return m, tea.Quit
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder
	date := m.inputs.DateString()
	if date == "" {
		date = "no date"
	}
	b.WriteString(monitorTitle.Render(fmt.Sprintf(" workpulse daily: %s, %s ", m.inputs.SubjectID, date)))
	b.WriteString("\n\n")

	var lines []string
	for _, s := range models.BranchSources {
		lines = append(lines, renderBranchRow(s, m.rows[s]))
	}
	switch {
	case m.outcome != nil && m.outcome.Report != nil && m.outcome.Report.Success:
		lines = append(lines, "", stateDone.Render("report generated"))
	case m.outcome != nil:
		lines = append(lines, "", stateFailed.Render("report failed"))
	case m.reporting:
		lines = append(lines, "", stateRunning.Render("generating report..."))
	}
	b.WriteString(monitorBox.Render(strings.Join(lines, "\n")))
	b.WriteString("\n\n")
	b.WriteString(monitorHelp.Render(fmt.Sprintf("elapsed %s | q: cancel", time.Since(m.started).Round(time.Second))))
	return b.String()
}

func renderBranchRow(source models.SourceType, row *branchRow) string {
	name := fmt.Sprintf("%-10s", source)
	switch row.state {
	case branchRunning:
		return name + stateRunning.Render("running")
	case branchDone:
		return name + stateDone.Render(fmt.Sprintf("done    %d item(s), %s", row.evidence, row.duration.Round(time.Millisecond)))
	case branchFailed:
		return name + stateFailed.Render("failed  ") + truncate(row.err, 60)
	default:
		return name + statePending.Render("pending")
	}
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
