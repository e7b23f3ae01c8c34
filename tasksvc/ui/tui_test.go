package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/db/inmem"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/view"
)

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send delivers msg and resolves any command it yields, the way the program
// loop would.
func send(t *testing.T, m *model, msg tea.Msg) {
	t.Helper()
	_, cmd := m.Update(msg)
	for cmd != nil {
		next := cmd()
		if next == nil {
			return
		}
		_, cmd = m.Update(next)
	}
}

func started(t *testing.T, svc taskservice.Service) *model {
	t.Helper()
	m := newModel(context.Background(), svc)
	send(t, m, m.Init()())
	return m
}

func TestAddToggleDelete(t *testing.T) {
	m := started(t, taskservice.NewBasicService(inmem.NewTaskRepository()))
	require.Empty(t, m.view.Tasks)
	assert.Contains(t, m.View(), "No tasks yet.")

	send(t, m, keys("a"))
	require.Equal(t, modeAdd, m.mode)
	send(t, m, keys("Buy milk"))
	send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, m.view.Tasks, 1)
	assert.Equal(t, int64(1), m.view.Tasks[0].CustomID)
	assert.Equal(t, "Buy milk", m.view.Tasks[0].Title)
	assert.Equal(t, modeList, m.mode)
	assert.False(t, m.view.Loading)
	assert.Contains(t, m.View(), "#1")

	send(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.True(t, m.view.Tasks[0].Completed)
	assert.Contains(t, m.View(), "[x]")

	send(t, m, keys("d"))
	assert.Empty(t, m.view.Tasks)
	assert.Empty(t, m.view.Err)
}

func TestEditReplacesTitle(t *testing.T) {
	repo := inmem.NewTaskRepository()
	_, err := repo.Create(context.Background(), "Buy milk")
	require.NoError(t, err)
	m := started(t, taskservice.NewBasicService(repo))

	send(t, m, keys("e"))
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "Buy milk", m.input)

	for range "milk" {
		send(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	send(t, m, keys("bread"))
	send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, m.view.Tasks, 1)
	assert.Equal(t, "Buy bread", m.view.Tasks[0].Title)
}

func TestBlankTitleIsNotSubmitted(t *testing.T) {
	svc := taskservice.NewBasicService(inmem.NewTaskRepository())
	m := started(t, svc)

	send(t, m, keys("a"))
	send(t, m, keys("   "))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, modeList, m.mode)

	tasks, err := svc.Tasks(context.Background(), tasksvc.DefaultFilter())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestFilterCycleRelists(t *testing.T) {
	repo := inmem.NewTaskRepository()
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, title)
		require.NoError(t, err)
	}
	_, err := repo.Toggle(ctx, 2)
	require.NoError(t, err)

	m := started(t, taskservice.NewBasicService(repo))
	require.Len(t, m.view.Tasks, 3)

	send(t, m, keys("f"))
	assert.Len(t, m.view.Tasks, 2)
	assert.Contains(t, m.View(), "Showing: active")

	send(t, m, keys("f"))
	require.Len(t, m.view.Tasks, 1)
	assert.Equal(t, int64(2), m.view.Tasks[0].CustomID)

	send(t, m, keys("f"))
	assert.Len(t, m.view.Tasks, 3)
}

type failingService struct {
	taskservice.Service
}

func (failingService) Tasks(context.Context, tasksvc.Filter) ([]tasksvc.Task, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestLoadFailureShowsGenericMessage(t *testing.T) {
	m := started(t, failingService{})

	out := m.View()
	assert.Contains(t, out, view.ErrLoad)
	assert.NotContains(t, out, "connection refused")
}

func TestQuit(t *testing.T) {
	m := newModel(context.Background(), failingService{})

	_, cmd := m.Update(keys("q"))

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestToggleIsNotShownAsLoading(t *testing.T) {
	repo := inmem.NewTaskRepository()
	_, err := repo.Create(context.Background(), "Walk dog")
	require.NoError(t, err)
	m := started(t, taskservice.NewBasicService(repo))

	_, cmd := m.Update(keys("t"))
	require.NotNil(t, cmd)
	assert.False(t, m.view.Loading)
	assert.NotContains(t, m.View(), "Loading...")

	send(t, m, cmd())
	assert.True(t, m.view.Tasks[0].Completed)
}
