// Package ui renders the interactive import view: a task table with per-task
// status and progress, an aggregate progress bar, and key bindings for the
// pause/resume/cancel/retry commands.
package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/arciva/importer/internal/events"
	"github.com/arciva/importer/internal/events/importing"
	"github.com/arciva/importer/internal/style"
	"github.com/arciva/importer/internal/util"
	"github.com/arciva/importer/pkg/pending"
	"github.com/arciva/importer/pkg/upload"
)

// Controller is the slice of the app the TUI talks to.
type Controller interface {
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
}

type viewState int

const (
	submitting viewState = iota
	running
	settled
)

const nameColumnWidth = 28

var columns = []table.Column{
	{Title: "Name", Width: nameColumnWidth},
	{Title: "Size", Width: 10},
	{Title: "Status", Width: 11},
	{Title: "Progress", Width: 9},
	{Title: "Attempt", Width: 7},
	{Title: "Note", Width: 36},
}

// Model is the bubbletea model of the import view.
type Model struct {
	app Controller

	state    viewState
	spinner  spinner.Model
	progress progress.Model
	table    table.Model

	tasks    []upload.Task
	index    map[string]int
	summary  upload.Summary
	warnings []pending.Warning
	err      error
}

// NewModel creates the import view bound to the given controller.
func NewModel(app Controller) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	return Model{
		app:      app,
		state:    submitting,
		spinner:  style.NewSpinner(),
		progress: progress.New(progress.WithDefaultGradient()),
		table:    t,
		index:    make(map[string]int),
	}
}

// listenForAppMessages waits for the next message from the app controller.
func (m Model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.app.UIMessages()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForAppMessages())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, handled := m.handleAppMessage(msg); handled {
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var spinCmd, tableCmd tea.Cmd
	m.spinner, spinCmd = m.spinner.Update(msg)
	m.table, tableCmd = m.table.Update(msg)
	return m, tea.Batch(spinCmd, tableCmd)
}

func (m *Model) handleAppMessage(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case importing.BatchStartedMsg:
		m.state = running
		m.warnings = msg.Warnings
		m.tasks = msg.Tasks
		m.index = make(map[string]int, len(msg.Tasks))
		for i, task := range msg.Tasks {
			m.index[task.ID] = i
		}
		m.rebuildRows()
		return m.listenForAppMessages(), true
	case importing.TaskUpdatedMsg:
		if i, ok := m.index[msg.Current.ID]; ok {
			m.tasks[i] = msg.Current
			m.rebuildRows()
		}
		return m.listenForAppMessages(), true
	case importing.SummaryMsg:
		m.summary = msg.Summary
		return m.listenForAppMessages(), true
	case importing.BatchSettledMsg:
		m.state = settled
		m.summary = msg.Summary
		return m.listenForAppMessages(), true
	case appevents.AppErrorMsg:
		m.err = msg.Err
		return m.listenForAppMessages(), true
	}
	return nil, false
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit, true
	case " ", "space":
		if task, ok := m.selectedTask(); ok {
			if task.Status == upload.StatusPaused {
				m.app.AppEvents() <- importing.ResumeTaskEvent{TaskID: task.ID}
			} else {
				m.app.AppEvents() <- importing.PauseTaskEvent{TaskID: task.ID}
			}
		}
		return nil, true
	case "x":
		if task, ok := m.selectedTask(); ok {
			m.app.AppEvents() <- importing.CancelTaskEvent{TaskID: task.ID}
		}
		return nil, true
	case "r":
		if task, ok := m.selectedTask(); ok {
			m.app.AppEvents() <- importing.RetryTaskEvent{TaskID: task.ID}
		}
		return nil, true
	case "p":
		m.app.AppEvents() <- importing.PauseAllEvent{}
		return nil, true
	case "P":
		m.app.AppEvents() <- importing.ResumeAllEvent{}
		return nil, true
	case "C":
		m.app.AppEvents() <- importing.CancelAllEvent{}
		return nil, true
	}
	return nil, false
}

func (m Model) selectedTask() (upload.Task, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.tasks) {
		return upload.Task{}, false
	}
	return m.tasks[cursor], true
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, len(m.tasks))
	for i, task := range m.tasks {
		rows[i] = table.Row{
			util.PadRight(task.Item.Name, nameColumnWidth),
			util.FormatSize(task.SizeBytes),
			statusCell(task.Status),
			fmt.Sprintf("%3.0f%%", task.Progress()*100),
			strconv.Itoa(task.Attempt),
			util.PadRight(task.LastError, 36),
		}
	}
	m.table.SetRows(rows)
	m.table.SetHeight(len(rows) + 1)
}

func statusCell(s upload.Status) string {
	switch s {
	case upload.StatusSucceeded:
		return style.SucceededStyle.Render(s.String())
	case upload.StatusFailed:
		return style.FailedStyle.Render(s.String())
	case upload.StatusPaused:
		return style.PausedStyle.Render(s.String())
	case upload.StatusBlocked:
		return style.BlockedStyle.Render(s.String())
	case upload.StatusCanceled:
		return style.CanceledStyle.Render(s.String())
	default:
		return style.ActiveStyle.Render(s.String())
	}
}

func (m Model) View() string {
	s := style.TitleStyle.Render("Arciva import") + "\n\n"

	switch m.state {
	case submitting:
		s += fmt.Sprintf("%s Preparing batch...\n", m.spinner.View())
	case running:
		s += m.summaryLine()
		s += m.progress.ViewAs(m.summary.OverallFraction) + "\n\n"
		s += style.BaseStyle.Render(m.table.View()) + "\n"
	case settled:
		s += m.settledLine()
		s += m.progress.ViewAs(m.summary.OverallFraction) + "\n\n"
		s += style.BaseStyle.Render(m.table.View()) + "\n"
	}

	for _, w := range m.warnings {
		s += style.ErrorStyle.Render(fmt.Sprintf("skipped %s: %v", w.Path, w.Err)) + "\n"
	}
	if m.err != nil {
		s += style.ErrorStyle.Render(m.err.Error()) + "\n"
	}

	s += style.HelpStyle.Render(
		"space pause/resume · x cancel · r retry · p pause all · P resume all · C cancel all · q quit")
	return s
}

func (m Model) summaryLine() string {
	line := fmt.Sprintf("%s %d/%d done, %s of %s",
		m.spinner.View(),
		m.summary.CompletedCount,
		m.summary.TaskCount,
		util.FormatSize(m.summary.UploadedBytes),
		util.FormatSize(m.summary.TotalBytes))
	if m.summary.FailedCount > 0 {
		line += style.FailedStyle.Render(fmt.Sprintf("  %d failed", m.summary.FailedCount))
	}
	if m.summary.HasPaused {
		line += style.PausedStyle.Render("  paused")
	}
	return line + "\n"
}

func (m Model) settledLine() string {
	switch {
	case m.summary.CompletedCount == m.summary.TaskCount && m.summary.TaskCount > 0:
		return style.SucceededStyle.Render("Import complete.") + "\n"
	case m.summary.HasErrors:
		return style.FailedStyle.Render(
			fmt.Sprintf("Import settled with %d failure(s). Retry with r, or quit with q.", m.summary.FailedCount)) + "\n"
	default:
		return "Import settled.\n"
	}
}
