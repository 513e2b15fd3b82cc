package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"taskboard/internal/board"

	"github.com/spf13/cobra"
)

type boardFlags struct {
	search   string
	assignee string
	mine     bool
	watch    bool
}

func boardCmd() *cobra.Command {
	var f boardFlags
	cmd := &cobra.Command{
		Use:     "board",
		Aliases: []string{"b"},
		Short:   "Show the active project's board",
		Args:    cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			project, err := a.openBoard(ctx)
			if err != nil {
				return err
			}
			filter, err := a.filter(f)
			if err != nil {
				return err
			}

			if !f.watch {
				return renderBoard(a.out, project, board.View(a.tasks.Tasks(), filter))
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// every redraw reads the current list, so an older snapshot never wins
			scr := &screen{w: a.out, log: a.log}
			draw := func() {
				scr.redraw(func(w io.Writer) error {
					return renderBoard(w, project, board.View(a.tasks.Tasks(), filter))
				})
			}
			cancel := a.tasks.OnChange(func([]board.Task) { draw() })
			defer cancel()
			draw()

			<-ctx.Done()
			return nil
		}),
	}
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "only tasks whose title or description contains this text")
	cmd.Flags().StringVarP(&f.assignee, "assignee", "a", board.AssigneeAll, "all, unassigned, me, or a member name or id")
	cmd.Flags().BoolVarP(&f.mine, "mine", "m", false, "only tasks assigned to you")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "keep the board open and redraw on changes")
	return cmd
}

func (a *app) filter(f boardFlags) (board.Filter, error) {
	filter := board.Filter{Text: f.search, Mine: f.mine}
	if id := a.session.Current(); id != nil {
		filter.Me = id.UserID
	}

	switch assignee := strings.TrimSpace(f.assignee); strings.ToLower(assignee) {
	case "", board.AssigneeAll:
		filter.Assignee = board.AssigneeAll
	case board.AssigneeUnassigned:
		filter.Assignee = board.AssigneeUnassigned
	default:
		id, err := a.resolveMember(assignee)
		if err != nil {
			return board.Filter{}, err
		}
		filter.Assignee = id.String()
	}
	return filter, nil
}
