package tasksvc

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestFilterValidate(t *testing.T) {
	testCases := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"zero value", Filter{}, false},
		{"every sort field", Filter{SortBy: SortByUpdatedAt, Order: Desc}, false},
		{"unknown field", Filter{SortBy: "priority"}, true},
		{"unknown order", Filter{Order: "sideways"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.filter.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilterMatch(t *testing.T) {
	task := Task{CustomID: 1, Title: "Buy Food", Completed: true}

	assert.True(t, Filter{}.Match(task))
	assert.True(t, Filter{Search: "food"}.Match(task))
	assert.True(t, Filter{Completed: boolPtr(true)}.Match(task))
	assert.False(t, Filter{Completed: boolPtr(false)}.Match(task))
	assert.False(t, Filter{Search: "milk"}.Match(task))
	assert.False(t, Filter{Search: "f.od"}.Match(task), "search is literal")
}

func TestFilterLess(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{CustomID: 3, Title: "b", CreatedAt: base.Add(time.Hour)},
		{CustomID: 1, Title: "c", Completed: true, CreatedAt: base},
		{CustomID: 2, Title: "b", CreatedAt: base.Add(2 * time.Hour)},
	}

	ids := func(f Filter) []int64 {
		sorted := append([]Task(nil), tasks...)
		sort.Slice(sorted, func(i, j int) bool { return f.Less(sorted[i], sorted[j]) })
		out := make([]int64, 0, len(sorted))
		for _, task := range sorted {
			out = append(out, task.CustomID)
		}
		return out
	}

	assert.Equal(t, []int64{1, 2, 3}, ids(Filter{}))
	assert.Equal(t, []int64{3, 2, 1}, ids(Filter{Order: Desc}))
	assert.Equal(t, []int64{2, 3, 1}, ids(Filter{SortBy: SortByTitle}), "ties break by customId")
	assert.Equal(t, []int64{1, 2, 3}, ids(Filter{SortBy: SortByTitle, Order: Desc}))
	assert.Equal(t, []int64{2, 3, 1}, ids(Filter{SortBy: SortByCompleted}))
	assert.Equal(t, []int64{2, 3, 1}, ids(Filter{SortBy: SortByCreatedAt, Order: Desc}))
}

func TestFilterKey(t *testing.T) {
	assert.Equal(t, Filter{}.Key(), DefaultFilter().Key())
	assert.Equal(t, Filter{Search: "Milk"}.Key(), Filter{Search: "milk"}.Key())
	assert.NotEqual(t, Filter{}.Key(), Filter{Completed: boolPtr(false)}.Key())
	assert.NotEqual(t, Filter{Completed: boolPtr(true)}.Key(), Filter{Completed: boolPtr(false)}.Key())
	assert.NotEqual(t, Filter{}.Key(), Filter{Order: Desc}.Key())
}

func TestPatch(t *testing.T) {
	assert.True(t, Patch{}.Empty())

	title := "new"
	p := Patch{Title: &title}
	require.False(t, p.Empty())

	got := p.Apply(Task{CustomID: 4, Title: "old", Completed: true})
	assert.Equal(t, Task{CustomID: 4, Title: "new", Completed: true}, got)

	got = Patch{Completed: boolPtr(false)}.Apply(got)
	assert.False(t, got.Completed)
	assert.Equal(t, "new", got.Title)
}

func TestParseCustomID(t *testing.T) {
	id, err := ParseCustomID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = ParseCustomID("-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), id)

	for s, want := range map[string]int64{"1e0": 1, "2.0": 2, " 7 ": 7, "-0": 0} {
		id, err := ParseCustomID(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, id, s)
	}

	for _, s := range []string{"1.5", "1e400", "9.3e18", "-9.3e18", "Infinity"} {
		_, err := ParseCustomID(s)
		assert.ErrorIs(t, err, ErrTaskNotFound, s)
	}

	for _, s := range []string{"abc", "", "12abc", "NaN", "0x"} {
		_, err := ParseCustomID(s)
		assert.ErrorIs(t, err, ErrInvalidID, s)
	}
}
