// Package dbtest holds the behaviour every tasksvc.TaskRepository must share.
package dbtest

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository.
type Factory func(t *testing.T) tasksvc.TaskRepository

// Run exercises the repository returned by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("SequentialCustomIDs", func(t *testing.T) { testSequentialCustomIDs(t, newRepo(t)) })
	t.Run("ConcurrentCreates", func(t *testing.T) { testConcurrentCreates(t, newRepo(t)) })
	t.Run("FindAllFilters", func(t *testing.T) { testFindAllFilters(t, newRepo(t)) })
	t.Run("FindAllSorts", func(t *testing.T) { testFindAllSorts(t, newRepo(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newRepo(t)) })
	t.Run("Toggle", func(t *testing.T) { testToggle(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
}

func seed(t *testing.T, repo tasksvc.TaskRepository, titles ...string) []tasksvc.Task {
	t.Helper()
	tasks := make([]tasksvc.Task, 0, len(titles))
	for _, title := range titles {
		task, err := repo.Create(context.Background(), title)
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	return tasks
}

func customIDs(tasks []tasksvc.Task) []int64 {
	ids := make([]int64, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.CustomID)
	}
	return ids
}

func list(t *testing.T, repo tasksvc.TaskRepository, f tasksvc.Filter) []int64 {
	t.Helper()
	tasks, err := repo.FindAll(context.Background(), f.Normalize())
	require.NoError(t, err)
	return customIDs(tasks)
}

func testSequentialCustomIDs(t *testing.T, repo tasksvc.TaskRepository) {
	ctx := context.Background()

	tasks := seed(t, repo, "one", "two", "three")
	assert.Equal(t, []int64{1, 2, 3}, customIDs(tasks))
	for _, task := range tasks {
		assert.NotEmpty(t, task.ID)
		assert.False(t, task.Completed)
		assert.False(t, task.CreatedAt.IsZero())
	}

	require.NoError(t, repo.Delete(ctx, 2))
	next := seed(t, repo, "four")
	assert.Equal(t, int64(4), next[0].CustomID, "gaps are kept")

	require.NoError(t, repo.Delete(ctx, 4))
	next = seed(t, repo, "five")
	assert.Equal(t, int64(4), next[0].CustomID, "next id is max+1")
}

func testConcurrentCreates(t *testing.T, repo tasksvc.TaskRepository) {
	const n = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  []int64
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := repo.Create(context.Background(), "concurrent")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids = append(ids, task.CustomID)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, ids)
}

func testFindAllFilters(t *testing.T, repo tasksvc.TaskRepository) {
	ctx := context.Background()
	seed(t, repo, "Buy food", "Walk dog", "FOOD prep", "50% off sale", "500 items")
	_, err := repo.Toggle(ctx, 2)
	require.NoError(t, err)
	_, err = repo.Toggle(ctx, 3)
	require.NoError(t, err)

	done, open := true, false
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, list(t, repo, tasksvc.Filter{}))
	assert.Equal(t, []int64{2, 3}, list(t, repo, tasksvc.Filter{Completed: &done}))
	assert.Equal(t, []int64{1, 4, 5}, list(t, repo, tasksvc.Filter{Completed: &open}))
	assert.Equal(t, []int64{1, 3}, list(t, repo, tasksvc.Filter{Search: "food"}))
	assert.Equal(t, []int64{3}, list(t, repo, tasksvc.Filter{Search: "Food", Completed: &done}))
	assert.Equal(t, []int64{4}, list(t, repo, tasksvc.Filter{Search: "50%"}), "wildcards are literal")
	assert.Equal(t, []int64{}, list(t, repo, tasksvc.Filter{Search: "f.od"}), "regex metacharacters are literal")
	assert.Equal(t, []int64{}, list(t, repo, tasksvc.Filter{Search: "nothing"}))
}

func testFindAllSorts(t *testing.T, repo tasksvc.TaskRepository) {
	ctx := context.Background()
	seed(t, repo, "b", "c", "a", "b")
	_, err := repo.Toggle(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{4, 3, 2, 1}, list(t, repo, tasksvc.Filter{Order: tasksvc.Desc}))
	assert.Equal(t, []int64{3, 1, 4, 2}, list(t, repo, tasksvc.Filter{SortBy: tasksvc.SortByTitle}))
	assert.Equal(t, []int64{2, 1, 4, 3}, list(t, repo, tasksvc.Filter{SortBy: tasksvc.SortByTitle, Order: tasksvc.Desc}))
	assert.Equal(t, []int64{2, 3, 4, 1}, list(t, repo, tasksvc.Filter{SortBy: tasksvc.SortByCompleted}))
	assert.Equal(t, []int64{1, 2, 3, 4}, list(t, repo, tasksvc.Filter{SortBy: tasksvc.SortByCompleted, Order: tasksvc.Desc}))
}

func testUpdate(t *testing.T, repo tasksvc.TaskRepository) {
	ctx := context.Background()
	created := seed(t, repo, "Buy milk", "Walk dog")[0]

	title := "Buy bread"
	updated, err := repo.Update(ctx, created.CustomID, tasksvc.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CustomID, updated.CustomID)
	assert.Equal(t, "Buy bread", updated.Title)
	assert.False(t, updated.Completed)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	completed := true
	updated, err = repo.Update(ctx, created.CustomID, tasksvc.Patch{Completed: &completed})
	require.NoError(t, err)
	assert.Equal(t, "Buy bread", updated.Title)
	assert.True(t, updated.Completed)

	found, err := repo.Find(ctx, created.CustomID)
	require.NoError(t, err)
	assert.Equal(t, "Buy bread", found.Title)
	assert.True(t, found.Completed)

	_, err = repo.Update(ctx, 99, tasksvc.Patch{Title: &title})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	other, err := repo.Find(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Walk dog", other.Title)
}

func testToggle(t *testing.T, repo tasksvc.TaskRepository) {
	ctx := context.Background()
	created := seed(t, repo, "Walk dog")[0]

	once, err := repo.Toggle(ctx, created.CustomID)
	require.NoError(t, err)
	assert.True(t, once.Completed)

	twice, err := repo.Toggle(ctx, created.CustomID)
	require.NoError(t, err)
	assert.False(t, twice.Completed)
	assert.Equal(t, created.Title, twice.Title)

	_, err = repo.Toggle(ctx, 99)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}

func testDelete(t *testing.T, repo tasksvc.TaskRepository) {
	ctx := context.Background()
	seed(t, repo, "a", "b", "c")

	require.NoError(t, repo.Delete(ctx, 2))
	assert.ErrorIs(t, repo.Delete(ctx, 2), tasksvc.ErrTaskNotFound)
	assert.Equal(t, []int64{1, 3}, list(t, repo, tasksvc.Filter{}))

	_, err := repo.Find(ctx, 2)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}
