package board_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/gateway"
	"taskboard/internal/model"
	"taskboard/internal/realtime"

	"github.com/google/uuid"
)

var errRemote = errors.New("remote unavailable")

// fakeRemote is an in-memory gateway. Writes publish on its hub the way the
// real gateway does.
type fakeRemote struct {
	hub *realtime.Hub

	mu       sync.Mutex
	projects []model.Project
	tasks    []model.Task
	comments []model.Comment
	profiles map[uuid.UUID]model.Profile
	calls    map[string]int

	updateErr    error
	listTasksErr error
	// onUpdate runs inside UpdateTask before it answers.
	onUpdate func()
	// onListTasks runs after ListTasks has read its data; an error it returns
	// is what ListTasks answers.
	onListTasks func(ctx context.Context, call int) error
	// onListComments and onListProjects work the same way.
	onListComments func(ctx context.Context, call int) error
	onListProjects func(ctx context.Context, call int) error
}

// gate is a hook that parks the given call until its context ends and
// closes entered when it gets there.
func gate(target int, entered chan<- struct{}) func(context.Context, int) error {
	return func(ctx context.Context, call int) error {
		if call != target {
			return nil
		}
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}
}

var _ board.Remote = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		hub:      realtime.NewHub(nil),
		profiles: make(map[uuid.UUID]model.Profile),
		calls:    make(map[string]int),
	}
}

func (f *fakeRemote) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRemote) count(name string) int {
	f.calls[name]++
	return f.calls[name]
}

func (f *fakeRemote) addProfile(id uuid.UUID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = model.Profile{ID: id, DisplayName: name}
}

// seedTask stores a task without publishing, newest first.
func (f *fakeRemote) seedTask(projectID uuid.UUID, title string, status model.TaskStatus, assignee *uuid.UUID) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := model.Task{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Title:      title,
		Status:     status,
		AssignedTo: assignee,
		CreatedAt:  time.Now(),
	}
	f.tasks = append([]model.Task{t}, f.tasks...)
	return t
}

func (f *fakeRemote) setTitle(id uuid.UUID, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Title = title
		}
	}
}

func (f *fakeRemote) ListProjects(ctx context.Context) ([]model.Project, error) {
	f.mu.Lock()
	call := f.count("ListProjects")
	out := append([]model.Project(nil), f.projects...)
	hook := f.onListProjects
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateProject(_ context.Context, name, description string) (*model.Project, error) {
	f.mu.Lock()
	f.count("CreateProject")
	p := model.Project{ID: uuid.New(), Name: name, Description: description, CreatedAt: time.Now()}
	f.projects = append([]model.Project{p}, f.projects...)
	f.mu.Unlock()

	f.hub.Broadcast(realtime.NewChange(realtime.Projects(), realtime.Insert, p.ID))
	return &p, nil
}

func (f *fakeRemote) ListTasks(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	f.mu.Lock()
	call := f.count("ListTasks")
	err := f.listTasksErr
	var out []model.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	hook := f.onListTasks
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeRemote) CreateTask(_ context.Context, projectID uuid.UUID, draft gateway.TaskDraft) (*model.Task, error) {
	f.mu.Lock()
	f.count("CreateTask")
	f.mu.Unlock()

	status := draft.Status
	if status == "" {
		status = model.StatusTodo
	}
	t := f.seedTask(projectID, draft.Title, status, draft.AssignedTo)
	f.hub.Broadcast(realtime.NewChange(realtime.TasksOf(projectID), realtime.Insert, t.ID))
	return &t, nil
}

func (f *fakeRemote) UpdateTask(_ context.Context, id uuid.UUID, patch gateway.TaskPatch) (*model.Task, error) {
	f.mu.Lock()
	f.count("UpdateTask")
	hook, err := f.onUpdate, f.updateErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	var updated *model.Task
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if patch.Title != nil {
			f.tasks[i].Title = *patch.Title
		}
		if patch.Status != nil {
			f.tasks[i].Status = *patch.Status
		}
		if patch.AssignedTo.Set {
			f.tasks[i].AssignedTo = patch.AssignedTo.Value
		}
		t := f.tasks[i]
		updated = &t
	}
	f.mu.Unlock()

	if updated == nil {
		return nil, &gateway.APIError{Status: 404, Message: "Task not found"}
	}
	f.hub.Broadcast(realtime.NewChange(realtime.TasksOf(updated.ProjectID), realtime.Update, id))
	return updated, nil
}

func (f *fakeRemote) DeleteTask(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	f.count("DeleteTask")
	var project uuid.UUID
	kept := f.tasks[:0:0]
	for _, t := range f.tasks {
		if t.ID == id {
			project = t.ProjectID
			continue
		}
		kept = append(kept, t)
	}
	f.tasks = kept
	f.mu.Unlock()

	f.hub.Broadcast(realtime.NewChange(realtime.TasksOf(project), realtime.Delete, id))
	return nil
}

func (f *fakeRemote) ListProfiles(_ context.Context, ids ...uuid.UUID) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListProfiles")
	var out []model.Profile
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListComments(ctx context.Context, taskID uuid.UUID) ([]model.Comment, error) {
	f.mu.Lock()
	call := f.count("ListComments")
	var out []model.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	hook := f.onListComments
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateComment(_ context.Context, taskID uuid.UUID, text string) (*model.Comment, error) {
	f.mu.Lock()
	f.count("CreateComment")
	c := model.Comment{ID: uuid.New(), TaskID: taskID, UserID: me, Text: text, CreatedAt: time.Now()}
	f.comments = append(f.comments, c)
	f.mu.Unlock()

	f.hub.Broadcast(realtime.NewChange(realtime.CommentsOf(taskID), realtime.Insert, c.ID))
	return &c, nil
}

func (f *fakeRemote) Subscribe(_ context.Context, ch realtime.Channel) (realtime.Feed, error) {
	f.mu.Lock()
	f.count("Subscribe")
	f.mu.Unlock()
	return f.hub.Subscribe(ch), nil
}

// me is the signed-in user in these tests.
var me = uuid.New()

type signedIn struct{ id *board.Identity }

func (s signedIn) Current() *board.Identity { return s.id }

func asMe() board.Identities {
	return signedIn{id: &board.Identity{UserID: me, Email: "me@example.com"}}
}

func signedOut() board.Identities {
	return signedIn{}
}

// notifications records what the stores report.
type notifications struct {
	mu   sync.Mutex
	list []board.Notification
}

func (n *notifications) Notify(x board.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, x)
}

func (n *notifications) errors() []board.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []board.Notification
	for _, x := range n.list {
		if x.Level == board.LevelError {
			out = append(out, x)
		}
	}
	return out
}
