package inmem

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
)

type taskRepository struct {
	mu     sync.Mutex
	tasks  map[int64]tasksvc.Task
	nextID uint64
	now    func() time.Time
}

func NewTaskRepository() tasksvc.TaskRepository {
	return newTaskRepository(time.Now)
}

func newTaskRepository(now func() time.Time) *taskRepository {
	return &taskRepository{tasks: make(map[int64]tasksvc.Task), now: now}
}

func (t *taskRepository) Create(_ context.Context, title string) (tasksvc.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var max int64
	for id := range t.tasks {
		if id > max {
			max = id
		}
	}

	t.nextID++
	now := t.now().UTC()
	task := tasksvc.Task{
		ID:        strconv.FormatUint(t.nextID, 10),
		CustomID:  max + 1,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.tasks[task.CustomID] = task

	return task, nil
}

func (t *taskRepository) FindAll(_ context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks := make([]tasksvc.Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		if f.Match(task) {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return f.Less(tasks[i], tasks[j]) })

	return tasks, nil
}

func (t *taskRepository) Find(_ context.Context, customID int64) (tasksvc.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[customID]
	if !ok {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return task, nil
}

func (t *taskRepository) Update(_ context.Context, customID int64, p tasksvc.Patch) (tasksvc.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[customID]
	if !ok {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	task = p.Apply(task)
	task.UpdatedAt = t.now().UTC()
	t.tasks[customID] = task

	return task, nil
}

func (t *taskRepository) Toggle(_ context.Context, customID int64) (tasksvc.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[customID]
	if !ok {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	task.Completed = !task.Completed
	task.UpdatedAt = t.now().UTC()
	t.tasks[customID] = task

	return task, nil
}

func (t *taskRepository) Delete(_ context.Context, customID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tasks[customID]; !ok {
		return tasksvc.ErrTaskNotFound
	}
	delete(t.tasks, customID)

	return nil
}
