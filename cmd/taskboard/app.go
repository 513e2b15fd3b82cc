package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/gateway"
	"taskboard/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errNotSignedIn = errors.New("not signed in: run `taskboard login` first")

// app wires one CLI invocation: config, saved session, gateway client and stores.
type app struct {
	cfg       *Config
	state     *State
	statePath string
	log       *slog.Logger

	out    io.Writer
	errOut io.Writer
	in     io.Reader

	client   *gateway.Client
	session  *board.Session
	projects *board.ProjectSelector
	tasks    *board.TaskStore
	comments *board.CommentStore

	members []model.Profile
}

func newApp(cmd *cobra.Command) (*app, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(cmd, dir)
	if err != nil {
		return nil, err
	}
	path := statePath(dir)
	state, err := LoadState(path)
	if err != nil {
		return nil, err
	}

	// a token is only good for the gateway that issued it
	if state.URL != "" && state.URL != cfg.URL {
		state = &State{}
	}

	client, err := gateway.New(cfg.URL)
	if err != nil {
		return nil, err
	}
	client.SetToken(state.Token)

	a := &app{
		cfg:       cfg,
		state:     state,
		statePath: path,
		log:       config.NewLogger(cfg.LogLevel),
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		in:        cmd.InOrStdin(),
		client:    client,
	}

	notifier := board.NotifierFunc(func(n board.Notification) {
		fmt.Fprintf(a.errOut, "! %s\n", n)
	})
	remote := board.NewRemote(client)
	a.session = board.NewSession(client)
	a.projects = board.NewProjectSelector(remote, a.session, notifier, a.log)
	a.tasks = board.NewTaskStore(remote, a.session, notifier, a.log)
	a.comments = board.NewCommentStore(remote, a.session, notifier, a.log)

	a.session.OnChange(a.persistSession)
	a.projects.OnActiveChange(func(id uuid.UUID) {
		a.state.Project = id.String()
		a.save()
	})
	return a, nil
}

func (a *app) Close() {
	a.comments.Close()
	a.tasks.Close()
	a.projects.Close()
}

func (a *app) persistSession(id *board.Identity) {
	if id == nil {
		a.state = &State{URL: a.cfg.URL}
	} else {
		if a.state.Email != id.Email {
			a.state.Project = ""
		}
		a.state.URL = a.cfg.URL
		a.state.Token = id.Token
		a.state.Email = id.Email
	}
	a.save()
}

func (a *app) save() {
	if err := SaveState(a.statePath, a.state); err != nil {
		fmt.Fprintf(a.errOut, "! %v\n", err)
	}
}

// signedIn restores the saved session and fails when there is none.
func (a *app) signedIn(ctx context.Context) (*board.Identity, error) {
	if err := a.session.Init(ctx); err != nil {
		return nil, err
	}
	id := a.session.Current()
	if id == nil {
		return nil, errNotSignedIn
	}
	return id, nil
}

// openBoard loads projects and members side by side, then activates the
// saved project, or the newest one.
func (a *app) openBoard(ctx context.Context) (model.Project, error) {
	if _, err := a.signedIn(ctx); err != nil {
		return model.Project{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.projects.Load(gctx) })
	g.Go(func() error {
		members, err := a.client.ListProfiles(gctx)
		if err != nil {
			return fmt.Errorf("load members: %w", err)
		}
		a.members = members
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Project{}, err
	}

	project, ok := a.projects.Find(a.state.Project)
	if !ok {
		all := a.projects.Projects()
		if len(all) == 0 {
			return model.Project{}, errors.New("no projects yet: run `taskboard projects create NAME`")
		}
		project = all[0]
	}
	if err := a.projects.Select(project.ID); err != nil {
		return model.Project{}, err
	}
	if err := a.tasks.Activate(ctx, project.ID); err != nil {
		return model.Project{}, err
	}
	return project, nil
}

func (a *app) task(ref string) (board.Task, error) {
	task, ok := a.tasks.Find(ref)
	if !ok {
		return board.Task{}, fmt.Errorf("no task %q on this board", ref)
	}
	return task, nil
}

// resolveMember turns "me", a user id, a display name or an email local part into a user id.
func (a *app) resolveMember(ref string) (uuid.UUID, error) {
	ref = strings.TrimSpace(ref)
	if strings.EqualFold(ref, "me") {
		if id := a.session.Current(); id != nil {
			return id.UserID, nil
		}
		return uuid.Nil, errNotSignedIn
	}
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}

	var found []uuid.UUID
	for _, m := range a.members {
		if strings.EqualFold(m.DisplayName, ref) || strings.HasPrefix(m.ID.String(), strings.ToLower(ref)) {
			found = append(found, m.ID)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return uuid.Nil, fmt.Errorf("no member %q", ref)
	default:
		return uuid.Nil, fmt.Errorf("%q matches %d members; use the id", ref, len(found))
	}
}

func (a *app) memberName(id uuid.UUID) string {
	for i := range a.members {
		if a.members[i].ID == id {
			return a.members[i].Name()
		}
	}
	return id.String()[:8]
}

// prompt reads one line, for values not given as flags.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprintf(a.errOut, "%s: ", label)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// withApp runs fn with a fresh app and closes it after.
func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, cmd, args)
	}
}
