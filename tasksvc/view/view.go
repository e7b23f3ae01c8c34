// Package view holds the client-side state of the task list and the rules for
// folding API results into it.
package view

import (
	"strings"

	"github.com/ichigozero/todokit/tasksvc"
)

// Messages shown when a call fails. Server error details are never surfaced.
const (
	ErrLoad   = "Failed to load tasks"
	ErrAdd    = "Failed to add task"
	ErrUpdate = "Failed to update task"
	ErrDelete = "Failed to delete task"
	ErrToggle = "Failed to toggle task completion"
)

// View mirrors the last successful listing, adjusted locally after each
// successful mutation.
type View struct {
	Tasks   []tasksvc.Task
	Loading bool
	Err     string
}

type Summary struct {
	Total     int
	Completed int
	Remaining int
}

func New() *View {
	return &View{Tasks: []tasksvc.Task{}}
}

// Begin marks a call as in flight.
func (v *View) Begin() {
	v.Loading = true
}

// ApplyList replaces the tasks. A successful reload leaves an earlier
// error message in place; only a successful mutation clears it.
func (v *View) ApplyList(tasks []tasksvc.Task, err error) {
	v.Loading = false
	if err != nil {
		v.Err = ErrLoad
		return
	}
	v.Tasks = append([]tasksvc.Task{}, tasks...)
}

func (v *View) ApplyCreate(task tasksvc.Task, err error) {
	if v.finish(err, ErrAdd) {
		return
	}
	v.Tasks = append(v.Tasks, task)
}

func (v *View) ApplyUpdate(task tasksvc.Task, err error) {
	if v.finish(err, ErrUpdate) {
		return
	}
	v.replace(task)
}

// ApplyToggle never touches Loading; a toggle is not shown as in flight.
func (v *View) ApplyToggle(task tasksvc.Task, err error) {
	if v.settle(err, ErrToggle) {
		return
	}
	v.replace(task)
}

func (v *View) ApplyDelete(customID int64, err error) {
	if v.finish(err, ErrDelete) {
		return
	}
	tasks := v.Tasks[:0]
	for _, t := range v.Tasks {
		if t.CustomID != customID {
			tasks = append(tasks, t)
		}
	}
	v.Tasks = tasks
}

// Summary counts the tasks currently shown.
func (v *View) Summary() Summary {
	s := Summary{Total: len(v.Tasks)}
	for _, t := range v.Tasks {
		if t.Completed {
			s.Completed++
		}
	}
	s.Remaining = s.Total - s.Completed
	return s
}

// Index returns the position of the task with customID, or -1.
func (v *View) Index(customID int64) int {
	for i, t := range v.Tasks {
		if t.CustomID == customID {
			return i
		}
	}
	return -1
}

// finish ends the in-flight call and reports whether it failed.
func (v *View) finish(err error, msg string) bool {
	v.Loading = false
	return v.settle(err, msg)
}

func (v *View) settle(err error, msg string) bool {
	if err != nil {
		v.Err = msg
		return true
	}
	v.Err = ""
	return false
}

func (v *View) replace(task tasksvc.Task) {
	if i := v.Index(task.CustomID); i >= 0 {
		v.Tasks[i] = task
	}
}

// Title trims s and reports whether anything is left to submit.
func Title(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
