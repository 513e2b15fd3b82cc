package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"taskboard/internal/board"
	"taskboard/internal/gateway"
	"taskboard/internal/model"

	"github.com/spf13/cobra"
)

// unassign is the --assignee value that clears the assignee on edit.
const unassign = "none"

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"t"},
		Short:   "Work with tasks on the active board",
	}
	cmd.AddCommand(taskAddCmd(), taskShowCmd(), taskEditCmd(), taskMoveCmd(), taskRmCmd())
	return cmd
}

func statusUsage() string {
	names := make([]string, len(model.Statuses))
	for i, s := range model.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func taskAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a task to the active project",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if _, err := a.openBoard(ctx); err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			status, _ := cmd.Flags().GetString("status")
			assignee, _ := cmd.Flags().GetString("assignee")

			draft := gateway.TaskDraft{
				Title:       args[0],
				Description: description,
				Status:      model.TaskStatus(status),
			}
			if assignee != "" {
				id, err := a.resolveMember(assignee)
				if err != nil {
					return err
				}
				draft.AssignedTo = &id
			}

			task, err := a.tasks.CreateTask(ctx, draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s %q to %s\n", shortID(task.ID), task.Title, task.Status.Label())
			return nil
		}),
	}
	cmd.Flags().StringP("description", "d", "", "task description")
	cmd.Flags().String("status", "", "initial status: "+statusUsage()+" (default todo)")
	cmd.Flags().StringP("assignee", "a", "", "member name, id or me")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a task and its comments",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if _, err := a.openBoard(ctx); err != nil {
				return err
			}
			task, err := a.task(args[0])
			if err != nil {
				return err
			}
			if err := a.comments.Open(ctx, task.ID); err != nil {
				return err
			}

			render := func(w io.Writer) error {
				current := task
				if t, ok := a.tasks.Get(task.ID); ok {
					current = t
				}
				if err := renderTask(w, current, a.memberName(current.CreatedBy)); err != nil {
					return err
				}
				return renderComments(w, a.comments.Comments())
			}

			if watch, _ := cmd.Flags().GetBool("watch"); !watch {
				return render(a.out)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			scr := &screen{w: a.out, log: a.log}
			cancel := a.comments.OnChange(func([]board.Comment) { scr.redraw(render) })
			defer cancel()
			scr.redraw(render)

			<-ctx.Done()
			return nil
		}),
	}
	cmd.Flags().BoolP("watch", "w", false, "keep the thread open and print new comments")
	return cmd
}

func taskEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's title, description, status or assignee",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if _, err := a.openBoard(ctx); err != nil {
				return err
			}
			task, err := a.task(args[0])
			if err != nil {
				return err
			}
			patch, err := a.patchFromFlags(cmd)
			if err != nil {
				return err
			}

			updated, err := a.tasks.UpdateTask(ctx, task.ID, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s %q\n", shortID(updated.ID), updated.Title)
			return nil
		}),
	}
	cmd.Flags().String("title", "", "new title")
	cmd.Flags().StringP("description", "d", "", "new description")
	cmd.Flags().String("status", "", "new status: "+statusUsage())
	cmd.Flags().StringP("assignee", "a", "", "member name, id, me, or "+unassign+" to unassign")
	return cmd
}

// patchFromFlags only sets the fields whose flags were given.
func (a *app) patchFromFlags(cmd *cobra.Command) (gateway.TaskPatch, error) {
	var patch gateway.TaskPatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		status := model.TaskStatus(v)
		patch.Status = &status
	}
	if flags.Changed("assignee") {
		v, _ := flags.GetString("assignee")
		if strings.EqualFold(strings.TrimSpace(v), unassign) {
			patch.AssignedTo = model.ClearUUID()
		} else {
			id, err := a.resolveMember(v)
			if err != nil {
				return gateway.TaskPatch{}, err
			}
			patch.AssignedTo = model.SetUUID(id)
		}
	}
	return patch, nil
}

func taskMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move ID TARGET",
		Short: "Move a task to a column, or to the column of another task",
		Long: "TARGET is a status (" + statusUsage() + ") or the id of a task already in the column.\n" +
			"The board updates at once and is put back if the gateway refuses the change.",
		Args: cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			if _, err := a.openBoard(ctx); err != nil {
				return err
			}
			task, err := a.task(args[0])
			if err != nil {
				return err
			}
			target := args[1]
			if other, ok := a.tasks.Find(target); ok {
				target = other.ID.String()
			}

			if err := a.tasks.MoveToTarget(ctx, task.ID, target); err != nil {
				return err
			}
			moved, _ := a.tasks.Get(task.ID)
			fmt.Fprintf(a.out, "Moved %s %q to %s\n", shortID(task.ID), task.Title, moved.Status.Label())
			return nil
		}),
	}
}

func taskRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task (its creator or the project owner only)",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			if _, err := a.openBoard(ctx); err != nil {
				return err
			}
			task, err := a.task(args[0])
			if err != nil {
				return err
			}
			if err := a.tasks.DeleteTask(ctx, task.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %s %q\n", shortID(task.ID), task.Title)
			return nil
		}),
	}
}

func commentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Comment on tasks",
	}
	add := &cobra.Command{
		Use:   "add TASK TEXT",
		Short: "Post a comment on a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			if _, err := a.openBoard(ctx); err != nil {
				return err
			}
			task, err := a.task(args[0])
			if err != nil {
				return err
			}
			if err := a.comments.Open(ctx, task.ID); err != nil {
				return err
			}
			if err := a.comments.Submit(ctx, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Commented on %s\n", shortID(task.ID))
			return nil
		}),
	}
	cmd.AddCommand(add)
	return cmd
}
