package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"taskboard/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "List, create and switch projects",
		Args:    cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if err := a.projects.Load(ctx); err != nil {
				return err
			}
			active := uuid.Nil
			if p, ok := a.projects.Find(a.state.Project); ok {
				active = p.ID
			}

			if watch, _ := cmd.Flags().GetBool("watch"); !watch {
				return renderProjects(a.out, a.projects.Projects(), active)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			scr := &screen{w: a.out, log: a.log}
			draw := func() {
				scr.redraw(func(w io.Writer) error {
					return renderProjects(w, a.projects.Projects(), active)
				})
			}
			cancel := a.projects.OnChange(func([]model.Project) { draw() })
			defer cancel()
			if err := a.projects.Watch(ctx); err != nil {
				return err
			}
			draw()

			<-ctx.Done()
			return nil
		}),
	}
	cmd.Flags().BoolP("watch", "w", false, "keep the list open and show projects as members create them")

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project and switch to it",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			project, err := a.projects.Create(ctx, args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created project %s (%s)\n", project.Name, shortID(project.ID))
			return nil
		}),
	}
	create.Flags().StringP("description", "d", "", "project description")

	use := &cobra.Command{
		Use:   "use NAME|ID",
		Short: "Make a project the active one",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if err := a.projects.Load(ctx); err != nil {
				return err
			}
			project, err := findProject(a.projects.Projects(), args[0])
			if err != nil {
				return err
			}
			if err := a.projects.Select(project.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Now on %s\n", project.Name)
			return nil
		}),
	}

	cmd.AddCommand(create, use)
	return cmd
}

func membersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List everyone who can be assigned tasks",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			id, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			members, err := a.client.ListProfiles(ctx)
			if err != nil {
				return err
			}
			return renderMembers(a.out, members, id.UserID)
		}),
	}
}

// findProject matches an exact name, a full id or an id prefix as printed by `projects`.
func findProject(projects []model.Project, ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	var found []model.Project
	for _, p := range projects {
		if p.Name == ref || p.ID.String() == ref {
			return p, nil
		}
		if len(ref) >= 4 && strings.HasPrefix(p.ID.String(), strings.ToLower(ref)) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return model.Project{}, fmt.Errorf("no project %q", ref)
	default:
		return model.Project{}, fmt.Errorf("%q matches %d projects", ref, len(found))
	}
}
