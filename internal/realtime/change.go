package realtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Table names that can be subscribed to.
const (
	TableProjects = "projects"
	TableTasks    = "tasks"
	TableComments = "comments"
)

var ErrInvalidChannel = errors.New("invalid channel")

// Channel names a table, optionally narrowed to the rows where Column equals Value.
type Channel struct {
	Table  string
	Column string
	Value  string
}

func TasksOf(projectID uuid.UUID) Channel {
	return Channel{Table: TableTasks, Column: "project_id", Value: projectID.String()}
}

func CommentsOf(taskID uuid.UUID) Channel {
	return Channel{Table: TableComments, Column: "task_id", Value: taskID.String()}
}

func Projects() Channel {
	return Channel{Table: TableProjects}
}

// Filter renders the row filter in the column=eq.value form used on the wire.
func (c Channel) Filter() string {
	if c.Column == "" {
		return ""
	}
	return c.Column + "=eq." + c.Value
}

func (c Channel) String() string {
	if c.Column == "" {
		return c.Table
	}
	return c.Table + ":" + c.Filter()
}

// ParseChannel validates a table and filter pair against the scopes the feed supports.
func ParseChannel(table, filter string) (Channel, error) {
	ch := Channel{Table: table}
	if filter != "" {
		column, value, ok := strings.Cut(filter, "=eq.")
		if !ok || column == "" || value == "" {
			return Channel{}, fmt.Errorf("%w: filter %q", ErrInvalidChannel, filter)
		}
		id, err := uuid.Parse(value)
		if err != nil {
			return Channel{}, fmt.Errorf("%w: filter value %q", ErrInvalidChannel, value)
		}
		// changes are published under the canonical form
		ch.Column, ch.Value = column, id.String()
	}

	switch {
	case table == TableProjects && ch.Column == "":
	case table == TableTasks && (ch.Column == "" || ch.Column == "project_id"):
	case table == TableComments && (ch.Column == "" || ch.Column == "task_id"):
	default:
		return Channel{}, fmt.Errorf("%w: %s", ErrInvalidChannel, ch)
	}
	return ch, nil
}

// Change tells subscribers that a row in their scope was written.
// It carries no row data: receivers re-read what they need.
type Change struct {
	Table    string    `json:"table"`
	Type     EventType `json:"type"`
	RecordID uuid.UUID `json:"record_id"`
	Filter   string    `json:"filter,omitempty"`
	At       time.Time `json:"at"`
}

func NewChange(ch Channel, typ EventType, recordID uuid.UUID) Change {
	return Change{
		Table:    ch.Table,
		Type:     typ,
		RecordID: recordID,
		Filter:   ch.Filter(),
		At:       time.Now().UTC(),
	}
}

// Feed is a live subscription. Events is closed when the feed ends.
type Feed interface {
	Events() <-chan Change
	Close() error
}
