package taskservice

import (
	"context"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/db/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) Service {
	t.Helper()
	return New(inmem.NewTaskRepository(), log.NewNopLogger())
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateTaskAssignsSequentialIDs(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for i, title := range []string{"one", "two", "three"} {
		task, err := svc.CreateTask(ctx, title)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), task.CustomID)
		assert.Equal(t, title, task.Title)
		assert.False(t, task.Completed)
		assert.False(t, task.CreatedAt.IsZero())
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, "")
	assert.ErrorIs(t, err, tasksvc.ErrTitleRequired)

	tasks, err := svc.Tasks(ctx, tasksvc.Filter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTasksRejectsInvalidFilter(t *testing.T) {
	svc := newService(t)

	_, err := svc.Tasks(context.Background(), tasksvc.Filter{SortBy: "priority"})

	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)
}

func TestTasksReturnsEmptySlice(t *testing.T) {
	svc := newService(t)

	tasks, err := svc.Tasks(context.Background(), tasksvc.Filter{})

	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Len(t, tasks, 0)
}

func TestUpdateTask(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, err := svc.CreateTask(ctx, "Buy milk")
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, created.CustomID, tasksvc.Patch{Title: strPtr("Buy bread"), Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Buy bread", updated.Title)
	assert.True(t, updated.Completed)
	assert.Equal(t, created.ID, updated.ID)

	unchanged, err := svc.UpdateTask(ctx, created.CustomID, tasksvc.Patch{})
	require.NoError(t, err)
	assert.Equal(t, updated, unchanged)
}

func TestUpdateTaskRejectsEmptyTitle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, err := svc.CreateTask(ctx, "Buy milk")
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, created.CustomID, tasksvc.Patch{Title: strPtr("")})
	assert.ErrorIs(t, err, tasksvc.ErrTitleRequired)

	task, err := svc.Task(ctx, created.CustomID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", task.Title)
}

func TestMissingTask(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.CreateTask(ctx, "keep me")
	require.NoError(t, err)

	_, err = svc.Task(ctx, 99)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	_, err = svc.UpdateTask(ctx, 99, tasksvc.Patch{Title: strPtr("x")})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	_, err = svc.UpdateTask(ctx, 99, tasksvc.Patch{})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	_, err = svc.ToggleTask(ctx, 99)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	err = svc.DeleteTask(ctx, 99)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	tasks, err := svc.Tasks(ctx, tasksvc.Filter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "keep me", tasks[0].Title)
}

func TestToggleTaskIsInvolution(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, err := svc.CreateTask(ctx, "Walk dog")
	require.NoError(t, err)

	once, err := svc.ToggleTask(ctx, created.CustomID)
	require.NoError(t, err)
	assert.True(t, once.Completed)

	twice, err := svc.ToggleTask(ctx, created.CustomID)
	require.NoError(t, err)
	assert.Equal(t, created.Completed, twice.Completed)
}

func TestDeleteTask(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		_, err := svc.CreateTask(ctx, title)
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteTask(ctx, 2))
	assert.ErrorIs(t, svc.DeleteTask(ctx, 2), tasksvc.ErrTaskNotFound)

	tasks, err := svc.Tasks(ctx, tasksvc.Filter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, int64(1), tasks[0].CustomID)
	assert.Equal(t, int64(3), tasks[1].CustomID)
}

type observations struct {
	labels [][]string
}

type recorder struct {
	obs *observations
	lvs []string
}

func (r recorder) with(lvs ...string) recorder {
	return recorder{obs: r.obs, lvs: append(append([]string{}, r.lvs...), lvs...)}
}

func (r recorder) record() { r.obs.labels = append(r.obs.labels, r.lvs) }

type fakeCounter struct{ recorder }

func (c fakeCounter) With(lvs ...string) metrics.Counter { return fakeCounter{c.with(lvs...)} }
func (c fakeCounter) Add(float64)                        { c.record() }

type fakeHistogram struct{ recorder }

func (h fakeHistogram) With(lvs ...string) metrics.Histogram { return fakeHistogram{h.with(lvs...)} }
func (h fakeHistogram) Observe(float64)                      { h.record() }

func TestInstrumentingMiddleware(t *testing.T) {
	var counted, observed observations
	counter := fakeCounter{recorder{obs: &counted}}
	latency := fakeHistogram{recorder{obs: &observed}}
	svc := InstrumentingMiddleware(counter, latency)(NewBasicService(inmem.NewTaskRepository()))

	_, err := svc.CreateTask(context.Background(), "x")
	require.NoError(t, err)
	_, err = svc.ToggleTask(context.Background(), 42)
	require.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	want := [][]string{
		{"method", "create_task", "error", "false"},
		{"method", "toggle_task", "error", "true"},
	}
	assert.Equal(t, want, counted.labels)
	assert.Equal(t, want, observed.labels)
}
