package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/model"

	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04"

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderProjects(w io.Writer, projects []model.Project, active uuid.UUID) error {
	if len(projects) == 0 {
		_, err := fmt.Fprintln(w, "No projects yet.")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "\tID\tNAME\tDESCRIPTION\tCREATED")
	for _, p := range projects {
		mark := ""
		if p.ID == active {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, shortID(p.ID), p.Name, p.Description, p.CreatedAt.Local().Format(timeLayout))
	}
	return tw.Flush()
}

func renderMembers(w io.Writer, members []model.Profile, me uuid.UUID) error {
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME\t")
	for i := range members {
		note := ""
		if members[i].ID == me {
			note = "(you)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", shortID(members[i].ID), members[i].Name(), note)
	}
	return tw.Flush()
}

// renderBoard prints the three columns one after another, each in list order.
func renderBoard(w io.Writer, project model.Project, cols board.Columns) error {
	fmt.Fprintf(w, "%s\n%s\n", project.Name, strings.Repeat("=", len(project.Name)))
	for _, status := range model.Statuses {
		tasks := cols.Get(status)
		fmt.Fprintf(w, "\n%s (%d)\n", status.Label(), len(tasks))
		if len(tasks) == 0 {
			fmt.Fprintln(w, "  -")
			continue
		}
		tw := table(w)
		for _, t := range tasks {
			fmt.Fprintf(tw, "  %s\t%s\t@%s\n", shortID(t.ID), t.Title, t.AssigneeName())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func renderTask(w io.Writer, t board.Task, creator string) error {
	tw := table(w)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	fmt.Fprintf(tw, "Status:\t%s\n", t.Status.Label())
	fmt.Fprintf(tw, "Assignee:\t%s\n", t.AssigneeName())
	fmt.Fprintf(tw, "Created:\t%s by %s\n", t.CreatedAt.Local().Format(timeLayout), creator)
	if err := tw.Flush(); err != nil {
		return err
	}
	if t.Description != "" {
		fmt.Fprintf(w, "\n%s\n", t.Description)
	}
	return nil
}

// renderComments prints the thread oldest first.
func renderComments(w io.Writer, comments []board.Comment) error {
	fmt.Fprintf(w, "\nComments (%d)\n", len(comments))
	for _, c := range comments {
		if _, err := fmt.Fprintf(w, "  [%s] %s: %s\n", c.CreatedAt.Local().Format(timeLayout), c.AuthorName(), c.Text); err != nil {
			return err
		}
	}
	return nil
}

// clearScreen is written before each redraw in watch mode.
func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

func stamp(w io.Writer, now time.Time) {
	fmt.Fprintf(w, "\n(updated %s, ctrl-c to stop)\n", now.Format("15:04:05"))
}

// screen serializes watch-mode redraws from the command goroutine and from
// store observers.
type screen struct {
	mu  sync.Mutex
	w   io.Writer
	log *slog.Logger
}

func (s *screen) redraw(render func(io.Writer) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clearScreen(s.w)
	if err := render(s.w); err != nil {
		s.log.Error("render", "error", err)
	}
	stamp(s.w, time.Now())
}
