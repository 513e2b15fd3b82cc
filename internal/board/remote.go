// Package board keeps the client-side state of the task board: the session,
// the project list, the active project's tasks and the open task's comments.
// Every store mirrors the gateway by full re-fetch whenever the change feed
// reports a write in its scope.
package board

import (
	"context"
	"errors"
	"log/slog"

	"taskboard/internal/gateway"
	"taskboard/internal/model"
	"taskboard/internal/realtime"

	"github.com/google/uuid"
)

var (
	ErrNotSignedIn       = errors.New("not signed in")
	ErrNoProject         = errors.New("no active project")
	ErrNoTask            = errors.New("no open task")
	ErrEmptyName         = errors.New("project name is required")
	ErrEmptyTitle        = errors.New("task title is required")
	ErrEmptyComment      = errors.New("comment text is required")
	ErrNothingToUpdate   = errors.New("nothing to update")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrTaskNotFound      = errors.New("task not on the board")
	ErrUnknownProject    = errors.New("unknown project")
	ErrUnknownDropTarget = errors.New("unknown drop target")
)

// Remote is the part of the gateway the stores use.
type Remote interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, name, description string) (*model.Project, error)

	ListTasks(ctx context.Context, projectID uuid.UUID) ([]model.Task, error)
	CreateTask(ctx context.Context, projectID uuid.UUID, draft gateway.TaskDraft) (*model.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, patch gateway.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error

	ListProfiles(ctx context.Context, ids ...uuid.UUID) ([]model.Profile, error)

	ListComments(ctx context.Context, taskID uuid.UUID) ([]model.Comment, error)
	CreateComment(ctx context.Context, taskID uuid.UUID, text string) (*model.Comment, error)

	Subscribe(ctx context.Context, ch realtime.Channel) (realtime.Feed, error)
}

// Identities reports who is signed in. *Session implements it.
type Identities interface {
	Current() *Identity
}

type clientRemote struct {
	*gateway.Client
}

// NewRemote adapts a gateway client to Remote.
func NewRemote(c *gateway.Client) Remote {
	return clientRemote{Client: c}
}

func (r clientRemote) Subscribe(ctx context.Context, ch realtime.Channel) (realtime.Feed, error) {
	sub, err := r.Client.Subscribe(ctx, ch)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// follower keeps one change subscription open and calls refresh for every change.
type follower struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// follow subscribes to ch. lost is called if the feed ends while ctx is still live.
func follow(ctx context.Context, remote Remote, ch realtime.Channel, refresh func(context.Context), lost func()) (*follower, error) {
	ctx, cancel := context.WithCancel(ctx)
	feed, err := remote.Subscribe(ctx, ch)
	if err != nil {
		cancel()
		return nil, err
	}

	f := &follower{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer feed.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-feed.Events():
				if !ok {
					if ctx.Err() == nil {
						lost()
					}
					return
				}
				refresh(ctx)
			}
		}
	}()
	return f, nil
}

// stop ends the subscription and waits for the last refresh to finish.
// It must not be called from inside refresh.
func (f *follower) stop() {
	if f == nil {
		return
	}
	f.cancel()
	<-f.done
}

// resolveProfiles looks up the distinct non-nil ids in one call. A failed lookup
// is reported and yields an empty map: everyone displays as unresolved.
func resolveProfiles(ctx context.Context, remote Remote, notifier Notifier, log *slog.Logger, ids []uuid.UUID) map[uuid.UUID]*model.Profile {
	byID := make(map[uuid.UUID]*model.Profile)
	seen := make(map[uuid.UUID]struct{})
	var distinct []uuid.UUID
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	if len(distinct) == 0 {
		return byID
	}

	profiles, err := remote.ListProfiles(ctx, distinct...)
	if err != nil {
		log.Debug("profile lookup failed", "ids", len(distinct), "error", err)
		if ctx.Err() == nil {
			failure(notifier, err, "Could not load member names")
		}
		return byID
	}
	for i := range profiles {
		p := profiles[i]
		byID[p.ID] = &p
	}
	return byID
}

func orDefaultLogger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
