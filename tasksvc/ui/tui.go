// Package ui provides the terminal front-end for the to-do API.
package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/view"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	doneStyle   = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Run starts the interactive task list against svc and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, svc taskservice.Service) error {
	program := tea.NewProgram(newModel(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
)

// completedFilters is the cycle the filter key steps through.
var completedFilters = []*bool{nil, boolPtr(false), boolPtr(true)}

type model struct {
	ctx    context.Context
	svc    taskservice.Service
	view   *view.View
	filter int
	cursor int
	mode   mode
	input  string
	editID int64
}

type listMsg struct {
	tasks []tasksvc.Task
	err   error
}

type createdMsg struct {
	task tasksvc.Task
	err  error
}

type updatedMsg struct {
	task tasksvc.Task
	err  error
}

type toggledMsg struct {
	task tasksvc.Task
	err  error
}

type deletedMsg struct {
	customID int64
	err      error
}

func newModel(ctx context.Context, svc taskservice.Service) *model {
	return &model{ctx: ctx, svc: svc, view: view.New()}
}

func (m *model) Init() tea.Cmd {
	return m.load()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != modeList {
			return m, m.updateInput(msg)
		}
		return m, m.updateList(msg)
	case listMsg:
		m.view.ApplyList(msg.tasks, msg.err)
	case createdMsg:
		m.view.ApplyCreate(msg.task, msg.err)
		if msg.err == nil {
			m.cursor = len(m.view.Tasks) - 1
		}
	case updatedMsg:
		m.view.ApplyUpdate(msg.task, msg.err)
	case toggledMsg:
		m.view.ApplyToggle(msg.task, msg.err)
	case deletedMsg:
		m.view.ApplyDelete(msg.customID, msg.err)
	}
	m.clampCursor()
	return m, nil
}

func (m *model) updateList(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.view.Tasks)-1 {
			m.cursor++
		}
	case "a":
		m.mode = modeAdd
		m.input = ""
	case "e", "enter":
		if task, ok := m.selected(); ok {
			m.mode = modeEdit
			m.editID = task.CustomID
			m.input = task.Title
		}
	case " ", "t":
		if task, ok := m.selected(); ok {
			return m.toggle(task.CustomID)
		}
	case "d", "x":
		if task, ok := m.selected(); ok {
			return m.remove(task.CustomID)
		}
	case "r":
		return m.load()
	case "f":
		m.filter = (m.filter + 1) % len(completedFilters)
		return m.load()
	}
	return nil
}

func (m *model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEsc:
		m.mode = modeList
		m.input = ""
	case tea.KeyEnter:
		title, ok := view.Title(m.input)
		current := m.mode
		m.mode = modeList
		m.input = ""
		if !ok {
			return nil
		}
		if current == modeAdd {
			return m.create(title)
		}
		return m.edit(m.editID, title)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(msg.Runes)
	}
	return nil
}

func (m *model) load() tea.Cmd {
	m.view.Begin()
	f := tasksvc.DefaultFilter()
	f.Completed = completedFilters[m.filter]
	return func() tea.Msg {
		tasks, err := m.svc.Tasks(m.ctx, f)
		return listMsg{tasks: tasks, err: err}
	}
}

func (m *model) create(title string) tea.Cmd {
	m.view.Begin()
	return func() tea.Msg {
		task, err := m.svc.CreateTask(m.ctx, title)
		return createdMsg{task: task, err: err}
	}
}

func (m *model) edit(customID int64, title string) tea.Cmd {
	m.view.Begin()
	return func() tea.Msg {
		task, err := m.svc.UpdateTask(m.ctx, customID, tasksvc.Patch{Title: &title})
		return updatedMsg{task: task, err: err}
	}
}

func (m *model) toggle(customID int64) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.ToggleTask(m.ctx, customID)
		return toggledMsg{task: task, err: err}
	}
}

func (m *model) remove(customID int64) tea.Cmd {
	m.view.Begin()
	return func() tea.Msg {
		err := m.svc.DeleteTask(m.ctx, customID)
		return deletedMsg{customID: customID, err: err}
	}
}

func (m *model) selected() (tasksvc.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Tasks) {
		return tasksvc.Task{}, false
	}
	return m.view.Tasks[m.cursor], true
}

func (m *model) clampCursor() {
	if m.cursor >= len(m.view.Tasks) {
		m.cursor = len(m.view.Tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) View() string {
	var b strings.Builder
	writeTitle(&b)
	writeSummary(&b, m.view.Summary(), completedFilters[m.filter])

	if m.view.Err != "" {
		b.WriteString(errStyle.Render(m.view.Err) + "\n\n")
	}

	writeTasks(&b, m.view.Tasks, m.cursor, m.mode == modeEdit, m.editID, m.input)

	if m.mode == modeAdd {
		b.WriteString("\nNew task: " + m.input + "_\n")
	}
	if m.view.Loading {
		b.WriteString("\nLoading...\n")
	}

	writeHelp(&b, m.mode)
	return b.String()
}

func writeTitle(b *strings.Builder) {
	b.WriteString(titleStyle.Render("To-Do List") + "\n\n")
}

func writeSummary(b *strings.Builder, s view.Summary, completed *bool) {
	filter := "all"
	if completed != nil {
		filter = "active"
		if *completed {
			filter = "completed"
		}
	}
	b.WriteString(fmt.Sprintf("Total: %d  Completed: %d  Remaining: %d  Showing: %s\n\n",
		s.Total, s.Completed, s.Remaining, filter))
}

func writeTasks(b *strings.Builder, tasks []tasksvc.Task, cursor int, editing bool, editID int64, input string) {
	if len(tasks) == 0 {
		b.WriteString("No tasks yet.\n")
		return
	}
	for i, task := range tasks {
		pointer := "  "
		if i == cursor {
			pointer = cursorStyle.Render("> ")
		}
		check := "[ ]"
		if task.Completed {
			check = "[x]"
		}

		title := task.Title
		switch {
		case editing && task.CustomID == editID:
			title = input + "_"
		case task.Completed:
			title = doneStyle.Render(title)
		}
		b.WriteString(fmt.Sprintf("%s%s #%d %s\n", pointer, check, task.CustomID, title))
	}
}

func writeHelp(b *strings.Builder, m mode) {
	help := "a add  e edit  space toggle  d delete  f filter  r reload  q quit"
	if m != modeList {
		help = "enter save  esc cancel"
	}
	b.WriteString("\n" + helpStyle.Render(help) + "\n")
}

func boolPtr(b bool) *bool { return &b }
