package board

import (
	"strings"

	"taskboard/internal/model"

	"github.com/google/uuid"
)

// Assignee filter values besides a user id.
const (
	AssigneeAll        = "all"
	AssigneeUnassigned = "unassigned"
)

// Columns holds the board's three columns in list order.
type Columns struct {
	Todo       []Task
	InProgress []Task
	Completed  []Task
}

// Get returns the column for a status.
func (c Columns) Get(status model.TaskStatus) []Task {
	switch status {
	case model.StatusTodo:
		return c.Todo
	case model.StatusInProgress:
		return c.InProgress
	case model.StatusCompleted:
		return c.Completed
	}
	return nil
}

func (c Columns) Len() int {
	return len(c.Todo) + len(c.InProgress) + len(c.Completed)
}

// Partition splits tasks by status. Tasks with an unknown status are left out.
func Partition(tasks []Task) Columns {
	var c Columns
	for _, t := range tasks {
		switch t.Status {
		case model.StatusTodo:
			c.Todo = append(c.Todo, t)
		case model.StatusInProgress:
			c.InProgress = append(c.InProgress, t)
		case model.StatusCompleted:
			c.Completed = append(c.Completed, t)
		}
	}
	return c
}

// Filter narrows what the board shows. The zero value shows everything.
//
// Assignee is "", "all", "unassigned" or a user id. Mine keeps only tasks
// assigned to Me; with no Me it keeps nothing.
type Filter struct {
	Text     string
	Assignee string
	Mine     bool
	Me       uuid.UUID
}

// Match applies the text, assignee and mine predicates in that order.
func (f Filter) Match(t Task) bool {
	// a blank search shows everything; otherwise spaces are part of the needle
	if strings.TrimSpace(f.Text) != "" {
		text := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(t.Title), text) &&
			!strings.Contains(strings.ToLower(t.Description), text) {
			return false
		}
	}

	switch a := strings.TrimSpace(f.Assignee); a {
	case "", AssigneeAll:
	case AssigneeUnassigned:
		if t.AssignedTo != nil {
			return false
		}
	default:
		if t.AssignedTo == nil || t.AssignedTo.String() != strings.ToLower(a) {
			return false
		}
	}

	if f.Mine {
		if f.Me == uuid.Nil || t.AssignedTo == nil || *t.AssignedTo != f.Me {
			return false
		}
	}
	return true
}

// Apply returns the tasks that match, in order. The input is not modified.
func Apply(tasks []Task, f Filter) []Task {
	var out []Task
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// View partitions first and filters each column after, which is what the board renders.
func View(tasks []Task, f Filter) Columns {
	c := Partition(tasks)
	return Columns{
		Todo:       Apply(c.Todo, f),
		InProgress: Apply(c.InProgress, f),
		Completed:  Apply(c.Completed, f),
	}
}
