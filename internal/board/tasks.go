package board

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"taskboard/internal/gateway"
	"taskboard/internal/model"
	"taskboard/internal/realtime"

	"github.com/google/uuid"
)

// Task is a stored task with its assignee's profile attached for display.
// Assignee is nil when the task is unassigned or the profile was not found;
// AssignedTo is kept either way.
type Task struct {
	model.Task
	Assignee *model.Profile
}

func (t Task) AssigneeName() string {
	if t.Assignee == nil {
		return "Unassigned"
	}
	return t.Assignee.Name()
}

// TaskStore mirrors one project's tasks.
//
// The list is replaced wholesale by every fetch. Published slices are never
// modified in place, so a snapshot is just the old slice.
type TaskStore struct {
	remote   Remote
	session  Identities
	notifier Notifier
	log      *slog.Logger

	mu      sync.Mutex
	project uuid.UUID
	tasks   []Task
	// seq numbers fetches; only the latest one issued may land.
	seq uint64
	// version counts every change to tasks; fetched is the version the last
	// fetch produced.
	version  uint64
	fetched  uint64
	follower *follower

	observers emitter[[]Task]
}

func NewTaskStore(remote Remote, session Identities, notifier Notifier, log *slog.Logger) *TaskStore {
	return &TaskStore{
		remote:   remote,
		session:  session,
		notifier: orDiscard(notifier),
		log:      orDefaultLogger(log),
	}
}

// Activate switches the store to a project: the previous subscription is torn
// down, a new one opened, and the list fetched. Subscribing before the fetch
// means no write between the two is missed. The subscription lives until ctx
// is done, the next Activate, or Close.
func (s *TaskStore) Activate(ctx context.Context, projectID uuid.UUID) error {
	s.mu.Lock()
	old := s.follower
	s.follower = nil
	s.project = projectID
	s.seq++
	s.tasks = nil
	s.version++
	version := s.version
	s.mu.Unlock()

	old.stop()
	s.observers.emit(version, nil)

	if projectID == uuid.Nil {
		return nil
	}

	f, err := follow(ctx, s.remote, realtime.TasksOf(projectID),
		func(ctx context.Context) { _ = s.Refresh(ctx) },
		func() { failure(s.notifier, nil, "Live task updates stopped") },
	)
	if err != nil {
		failure(s.notifier, err, "Could not subscribe to task changes")
	} else {
		s.mu.Lock()
		if s.project == projectID && s.follower == nil {
			s.follower = f
			f = nil
		}
		s.mu.Unlock()
		// lost a race with another Activate
		f.stop()
	}

	return s.Refresh(ctx)
}

// Refresh fetches the project's tasks and their assignees and replaces the list.
// A fetch overtaken by a newer one, or by a project switch, is dropped.
func (s *TaskStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	project := s.project
	if project == uuid.Nil {
		s.mu.Unlock()
		return ErrNoProject
	}
	s.seq++
	n := s.seq
	s.mu.Unlock()

	fetched, err := s.remote.ListTasks(ctx, project)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		if !s.current(n, project) {
			s.log.Debug("dropping failed stale task fetch", "project", project, "seq", n, "error", err)
			return nil
		}
		failure(s.notifier, err, "Could not load tasks")
		return err
	}

	assignees := make([]uuid.UUID, 0, len(fetched))
	for _, t := range fetched {
		if t.AssignedTo != nil {
			assignees = append(assignees, *t.AssignedTo)
		}
	}
	profiles := resolveProfiles(ctx, s.remote, s.notifier, s.log, assignees)

	tasks := make([]Task, len(fetched))
	for i, t := range fetched {
		tasks[i] = Task{Task: t}
		if t.AssignedTo != nil {
			tasks[i].Assignee = profiles[*t.AssignedTo]
		}
	}

	s.mu.Lock()
	if n != s.seq || project != s.project {
		s.mu.Unlock()
		s.log.Debug("discarding stale task fetch", "project", project, "seq", n)
		return nil
	}
	s.tasks = tasks
	s.version++
	s.fetched = s.version
	version := s.version
	s.mu.Unlock()

	s.observers.emit(version, copyTasks(tasks))
	return nil
}

// current reports whether fetch n for project is still the latest.
func (s *TaskStore) current(n uint64, project uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return n == s.seq && project == s.project
}

// MoveTask sets a task's status optimistically: the local list changes at
// once and the update is sent after. If the update fails the list goes back
// to what it was, unless a fetch has replaced it in the meantime; fetched
// state is confirmed state and stays.
func (s *TaskStore) MoveTask(ctx context.Context, taskID uuid.UUID, status model.TaskStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if s.session.Current() == nil {
		return ErrNotSignedIn
	}

	s.mu.Lock()
	i := indexOfTask(s.tasks, taskID)
	if i < 0 {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if s.tasks[i].Status == status {
		s.mu.Unlock()
		return nil
	}

	project := s.project
	snapshot := s.tasks
	previous := snapshot[i].Status
	title := snapshot[i].Title

	next := copyTasks(snapshot)
	next[i].Status = status
	s.tasks = next
	s.version++
	applied := s.version
	fetchedAtApply := s.fetched
	s.mu.Unlock()

	s.observers.emit(applied, copyTasks(next))

	if _, err := s.remote.UpdateTask(ctx, taskID, gateway.TaskPatch{Status: &status}); err != nil {
		s.rollback(project, taskID, snapshot, applied, fetchedAtApply, previous, status)
		failure(s.notifier, err, "Could not move %q to %s", title, status.Label())
		return err
	}
	return nil
}

func (s *TaskStore) rollback(project, taskID uuid.UUID, snapshot []Task, applied, fetchedAtApply uint64, previous, attempted model.TaskStatus) {
	s.mu.Lock()
	switch {
	case s.project != project:
		s.mu.Unlock()
		return
	case s.version == applied:
		s.tasks = snapshot
	case s.fetched != fetchedAtApply:
		s.mu.Unlock()
		s.log.Debug("keeping fetched state over rollback", "task", taskID)
		return
	default:
		// other optimistic moves landed since; undo only this one
		i := indexOfTask(s.tasks, taskID)
		if i < 0 || s.tasks[i].Status != attempted {
			s.mu.Unlock()
			return
		}
		next := copyTasks(s.tasks)
		next[i].Status = previous
		s.tasks = next
	}
	s.version++
	version, tasks := s.version, copyTasks(s.tasks)
	s.mu.Unlock()

	s.log.Debug("rolled back task move", "task", taskID, "status", previous)
	s.observers.emit(version, tasks)
}

// MoveToTarget moves a task onto a drop target: either a status name or the id
// of another task, whose column is used.
func (s *TaskStore) MoveToTarget(ctx context.Context, taskID uuid.UUID, target string) error {
	status, err := s.resolveTarget(target)
	if err != nil {
		return err
	}
	return s.MoveTask(ctx, taskID, status)
}

func (s *TaskStore) resolveTarget(target string) (model.TaskStatus, error) {
	if status := model.TaskStatus(target); status.Valid() {
		return status, nil
	}
	id, err := uuid.Parse(target)
	if err != nil {
		return "", ErrUnknownDropTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOfTask(s.tasks, id); i >= 0 {
		return s.tasks[i].Status, nil
	}
	return "", ErrUnknownDropTarget
}

// CreateTask adds a task to the active project. The list is re-fetched after.
func (s *TaskStore) CreateTask(ctx context.Context, draft gateway.TaskDraft) (*model.Task, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	if draft.Title == "" {
		return nil, ErrEmptyTitle
	}
	if draft.Status != "" && !draft.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	project, err := s.activeProject()
	if err != nil {
		return nil, err
	}

	task, err := s.remote.CreateTask(ctx, project, draft)
	if err != nil {
		failure(s.notifier, err, "Could not create task %q", draft.Title)
		return nil, err
	}
	_ = s.Refresh(ctx)
	return task, nil
}

// UpdateTask edits a task. Unlike MoveTask it waits for the gateway.
func (s *TaskStore) UpdateTask(ctx context.Context, id uuid.UUID, patch gateway.TaskPatch) (*model.Task, error) {
	if patch.Empty() {
		return nil, ErrNothingToUpdate
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrEmptyTitle
		}
		patch.Title = &title
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if _, err := s.activeProject(); err != nil {
		return nil, err
	}

	task, err := s.remote.UpdateTask(ctx, id, patch)
	if err != nil {
		failure(s.notifier, err, "Could not update task")
		return nil, err
	}
	_ = s.Refresh(ctx)
	return task, nil
}

func (s *TaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if _, err := s.activeProject(); err != nil {
		return err
	}

	if err := s.remote.DeleteTask(ctx, id); err != nil {
		failure(s.notifier, err, "Could not delete task")
		return err
	}
	_ = s.Refresh(ctx)
	return nil
}

func (s *TaskStore) activeProject() (uuid.UUID, error) {
	if s.session.Current() == nil {
		return uuid.Nil, ErrNotSignedIn
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == uuid.Nil {
		return uuid.Nil, ErrNoProject
	}
	return s.project, nil
}

// Get returns a task from the local list.
func (s *TaskStore) Get(id uuid.UUID) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOfTask(s.tasks, id); i >= 0 {
		return s.tasks[i], true
	}
	return Task{}, false
}

// Find resolves a task by id or unique id prefix.
func (s *TaskStore) Find(ref string) (Task, bool) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.Get(id)
	}
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return Task{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var found []Task
	for _, t := range s.tasks {
		if strings.HasPrefix(t.ID.String(), ref) {
			found = append(found, t)
		}
	}
	if len(found) != 1 {
		return Task{}, false
	}
	return found[0], true
}

func (s *TaskStore) Project() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// Tasks returns a copy of the current list, newest first.
func (s *TaskStore) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTasks(s.tasks)
}

// OnChange registers fn for every new list, fetched or optimistic.
func (s *TaskStore) OnChange(fn func([]Task)) (cancel func()) {
	return s.observers.add(fn)
}

// Close drops the subscription. The list stays readable.
func (s *TaskStore) Close() {
	s.mu.Lock()
	f := s.follower
	s.follower = nil
	s.mu.Unlock()
	f.stop()
}

func indexOfTask(tasks []Task, id uuid.UUID) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func copyTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	return append([]Task(nil), tasks...)
}
