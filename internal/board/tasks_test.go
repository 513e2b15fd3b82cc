package board_test

import (
	"context"
	"testing"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/gateway"
	"taskboard/internal/model"
	"taskboard/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskStore(t *testing.T, remote *fakeRemote, ids board.Identities) (*board.TaskStore, *notifications) {
	t.Helper()
	n := &notifications{}
	s := board.NewTaskStore(remote, ids, n, nil)
	t.Cleanup(s.Close)
	return s, n
}

func statusOf(t *testing.T, s *board.TaskStore, id uuid.UUID) model.TaskStatus {
	t.Helper()
	task, ok := s.Get(id)
	require.True(t, ok)
	return task.Status
}

func TestActivate_FetchesNewestFirst(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	older := remote.seedTask(project, "older", model.StatusTodo, nil)
	newer := remote.seedTask(project, "newer", model.StatusTodo, nil)
	remote.seedTask(uuid.New(), "other project", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, asMe())

	// Act
	require.NoError(t, store.Activate(context.Background(), project))

	// Assert
	tasks := store.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, newer.ID, tasks[0].ID)
	assert.Equal(t, older.ID, tasks[1].ID)
}

func TestRefresh_UnmatchedAssigneeDisplaysUnassigned(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	known, ghost := uuid.New(), uuid.New()
	remote.addProfile(known, "Ann")
	a := remote.seedTask(project, "a", model.StatusTodo, &known)
	b := remote.seedTask(project, "b", model.StatusTodo, &ghost)
	c := remote.seedTask(project, "c", model.StatusTodo, &known)
	store, _ := newTaskStore(t, remote, asMe())

	// Act
	require.NoError(t, store.Activate(context.Background(), project))

	// Assert
	got, _ := store.Get(a.ID)
	assert.Equal(t, "Ann", got.AssigneeName())
	got, _ = store.Get(c.ID)
	assert.Equal(t, "Ann", got.AssigneeName())

	got, _ = store.Get(b.ID)
	assert.Equal(t, "Unassigned", got.AssigneeName())
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, ghost, *got.AssignedTo)

	assert.Equal(t, 1, remote.called("ListProfiles"), "assignees are looked up in one batch")
}

func TestRefresh_NoAssigneesSkipsLookup(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	remote.seedTask(project, "a", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, asMe())

	require.NoError(t, store.Activate(context.Background(), project))

	assert.Zero(t, remote.called("ListProfiles"))
}

func TestRefresh_Idempotent(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	assignee := uuid.New()
	remote.addProfile(assignee, "Ann")
	remote.seedTask(project, "a", model.StatusTodo, &assignee)
	remote.seedTask(project, "b", model.StatusCompleted, nil)
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	require.NoError(t, store.Refresh(context.Background()))
	first := store.Tasks()
	require.NoError(t, store.Refresh(context.Background()))

	assert.Equal(t, first, store.Tasks())
}

func TestRefresh_FailureKeepsList(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	remote.seedTask(project, "a", model.StatusTodo, nil)
	store, notes := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))
	before := store.Tasks()

	// Act
	remote.listTasksErr = errRemote
	err := store.Refresh(context.Background())

	// Assert
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, before, store.Tasks())
	assert.Len(t, notes.errors(), 1)
}

func TestRefresh_StaleFetchDiscarded(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	task := remote.seedTask(project, "before", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	entered := make(chan struct{})
	release := make(chan struct{})
	firstCall := remote.called("ListTasks") + 1
	remote.mu.Lock()
	remote.onListTasks = func(_ context.Context, call int) error {
		if call == firstCall {
			close(entered)
			<-release
		}
		return nil
	}
	remote.mu.Unlock()

	// Act: the first fetch reads "before" and stalls; the second reads "after" and lands first
	done := make(chan error)
	go func() { done <- store.Refresh(context.Background()) }()
	<-entered
	remote.setTitle(task.ID, "after")
	require.NoError(t, store.Refresh(context.Background()))
	close(release)
	require.NoError(t, <-done)

	// Assert
	got, _ := store.Get(task.ID)
	assert.Equal(t, "after", got.Title)
}

func TestMoveTask_FailureRestoresSnapshot(t *testing.T) {
	// Arrange: A todo, B in progress
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	b := remote.seedTask(project, "B", model.StatusInProgress, nil)
	store, notes := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))
	before := store.Tasks()

	var duringCall model.TaskStatus
	remote.onUpdate = func() { duringCall = statusOf(t, store, a.ID) }
	remote.updateErr = errRemote

	// Act
	err := store.MoveToTarget(context.Background(), a.ID, string(model.StatusInProgress))

	// Assert
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, model.StatusInProgress, duringCall, "applied before the remote call")
	assert.Equal(t, before, store.Tasks())
	assert.Equal(t, model.StatusTodo, statusOf(t, store, a.ID))
	assert.Equal(t, model.StatusInProgress, statusOf(t, store, b.ID))
	if errs := notes.errors(); assert.Len(t, errs, 1) {
		assert.Contains(t, errs[0].Message, "In Progress")
	}
}

func TestMoveTask_ObserversSeeMoveAndRollback(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))
	remote.updateErr = errRemote

	var seen []model.TaskStatus
	cancel := store.OnChange(func(tasks []board.Task) { seen = append(seen, tasks[0].Status) })
	defer cancel()

	_ = store.MoveTask(context.Background(), a.ID, model.StatusCompleted)

	assert.Equal(t, []model.TaskStatus{model.StatusCompleted, model.StatusTodo}, seen)
}

func TestMoveTask_Success(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	store, notes := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	require.NoError(t, store.MoveTask(context.Background(), a.ID, model.StatusCompleted))

	assert.Equal(t, model.StatusCompleted, statusOf(t, store, a.ID))
	assert.Empty(t, notes.errors())
	// the redundant re-fetch converges on the same state
	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, model.StatusCompleted, statusOf(t, store, a.ID))
}

func TestMoveTask_SameStatusIsNoop(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	require.NoError(t, store.MoveTask(context.Background(), a.ID, model.StatusTodo))

	assert.Zero(t, remote.called("UpdateTask"))
}

func TestMoveTask_RequiresSession(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, signedOut())
	require.NoError(t, store.Activate(context.Background(), project))

	err := store.MoveTask(context.Background(), a.ID, model.StatusCompleted)

	assert.ErrorIs(t, err, board.ErrNotSignedIn)
	assert.Zero(t, remote.called("UpdateTask"))
	assert.Equal(t, model.StatusTodo, statusOf(t, store, a.ID))
}

func TestRefresh_OvertakenFailureIsQuiet(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	remote.seedTask(project, "a", model.StatusTodo, nil)
	store, notes := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	entered := make(chan struct{})
	release := make(chan struct{})
	firstCall := remote.called("ListTasks") + 1
	remote.mu.Lock()
	remote.onListTasks = func(_ context.Context, call int) error {
		if call == firstCall {
			close(entered)
			<-release
			return errRemote
		}
		return nil
	}
	remote.mu.Unlock()

	// Act: the first fetch fails only after a newer one has landed
	done := make(chan error)
	go func() { done <- store.Refresh(context.Background()) }()
	<-entered
	require.NoError(t, store.Refresh(context.Background()))
	close(release)

	// Assert
	assert.NoError(t, <-done)
	assert.Empty(t, notes.errors())
	assert.Len(t, store.Tasks(), 1)
}

func TestActivate_TeardownDuringLiveFetchIsQuiet(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	p1, p2 := uuid.New(), uuid.New()
	remote.seedTask(p1, "in p1", model.StatusTodo, nil)
	remote.seedTask(p2, "in p2", model.StatusTodo, nil)
	store, notes := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), p1))

	// the live re-fetch for p1 waits on its context
	entered := make(chan struct{})
	liveCall := remote.called("ListTasks") + 1
	remote.mu.Lock()
	remote.onListTasks = gate(liveCall, entered)
	remote.mu.Unlock()
	remote.hub.Broadcast(realtime.NewChange(realtime.TasksOf(p1), realtime.Update, uuid.New()))
	<-entered

	// Act
	require.NoError(t, store.Activate(context.Background(), p2))

	// Assert
	assert.Empty(t, notes.errors())
	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "in p2", tasks[0].Title)
}

func TestClose_DuringLiveFetchIsQuiet(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	store, notes := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	entered := make(chan struct{})
	liveCall := remote.called("ListTasks") + 1
	remote.mu.Lock()
	remote.onListTasks = gate(liveCall, entered)
	remote.mu.Unlock()
	remote.hub.Broadcast(realtime.NewChange(realtime.TasksOf(project), realtime.Insert, uuid.New()))
	<-entered

	// Act
	store.Close()

	// Assert
	assert.Empty(t, notes.errors())
}

func TestMoveTask_FetchDuringFlightWins(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	b := remote.seedTask(project, "B", model.StatusTodo, nil)
	store, notes := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	// someone renames B and our re-fetch lands while the move is in flight
	remote.onUpdate = func() {
		remote.setTitle(b.ID, "B renamed")
		require.NoError(t, store.Refresh(context.Background()))
	}
	remote.updateErr = errRemote

	// Act
	err := store.MoveTask(context.Background(), a.ID, model.StatusCompleted)

	// Assert: the confirmed state stays, not the older snapshot
	assert.Error(t, err)
	got, _ := store.Get(b.ID)
	assert.Equal(t, "B renamed", got.Title)
	assert.Equal(t, model.StatusTodo, statusOf(t, store, a.ID))
	// the failure is still reported even though nothing was restored
	errs := notes.errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `Could not move "A"`)
	assert.ErrorIs(t, errs[0].Err, errRemote)
}

func TestMoveTask_OverlappingMovesUndoOnlyTheFailedOne(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	b := remote.seedTask(project, "B", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))
	// stop re-fetches so only local moves touch the list
	store.Close()

	nested := false
	remote.onUpdate = func() {
		if nested {
			return
		}
		nested = true
		remote.mu.Lock()
		remote.updateErr = nil
		remote.mu.Unlock()
		require.NoError(t, store.MoveTask(context.Background(), b.ID, model.StatusInProgress))
		remote.mu.Lock()
		remote.updateErr = errRemote
		remote.mu.Unlock()
	}
	remote.updateErr = errRemote

	// Act
	err := store.MoveTask(context.Background(), a.ID, model.StatusCompleted)

	// Assert
	assert.Error(t, err)
	assert.Equal(t, model.StatusTodo, statusOf(t, store, a.ID))
	assert.Equal(t, model.StatusInProgress, statusOf(t, store, b.ID))
}

func TestMoveToTarget_TaskTargetUsesItsColumn(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	b := remote.seedTask(project, "B", model.StatusCompleted, nil)
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	require.NoError(t, store.MoveToTarget(context.Background(), a.ID, b.ID.String()))
	assert.Equal(t, model.StatusCompleted, statusOf(t, store, a.ID))

	err := store.MoveToTarget(context.Background(), a.ID, "archive")
	assert.ErrorIs(t, err, board.ErrUnknownDropTarget)
}

func TestActivate_OneSubscriptionAtATime(t *testing.T) {
	// Arrange
	remote := newFakeRemote()
	p1, p2 := uuid.New(), uuid.New()
	store, _ := newTaskStore(t, remote, asMe())

	// Act
	require.NoError(t, store.Activate(context.Background(), p1))
	require.NoError(t, store.Activate(context.Background(), p2))

	// Assert
	assert.Zero(t, remote.hub.Subscribers(realtime.TasksOf(p1)))
	assert.Equal(t, 1, remote.hub.Subscribers(realtime.TasksOf(p2)))

	store.Close()
	assert.Zero(t, remote.hub.Subscribers(realtime.TasksOf(p2)))
}

func TestActivate_LiveChangesRefetch(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	// another client writes
	_, err := remote.CreateTask(context.Background(), project, gateway.TaskDraft{Title: "from elsewhere"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(store.Tasks()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestCreateTask(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	_, err := store.CreateTask(context.Background(), gateway.TaskDraft{Title: "   "})
	assert.ErrorIs(t, err, board.ErrEmptyTitle)
	assert.Zero(t, remote.called("CreateTask"))

	task, err := store.CreateTask(context.Background(), gateway.TaskDraft{Title: " Write docs "})
	require.NoError(t, err)
	assert.Equal(t, "Write docs", task.Title)
	_, ok := store.Get(task.ID)
	assert.True(t, ok, "store refreshed after create")
}

func TestUpdateTask_Validation(t *testing.T) {
	remote := newFakeRemote()
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), uuid.New()))

	_, err := store.UpdateTask(context.Background(), uuid.New(), gateway.TaskPatch{})
	assert.ErrorIs(t, err, board.ErrNothingToUpdate)

	blank := "  "
	_, err = store.UpdateTask(context.Background(), uuid.New(), gateway.TaskPatch{Title: &blank})
	assert.ErrorIs(t, err, board.ErrEmptyTitle)

	assert.Zero(t, remote.called("UpdateTask"))
}

func TestDeleteTask(t *testing.T) {
	remote := newFakeRemote()
	project := uuid.New()
	a := remote.seedTask(project, "A", model.StatusTodo, nil)
	store, _ := newTaskStore(t, remote, asMe())
	require.NoError(t, store.Activate(context.Background(), project))

	require.NoError(t, store.DeleteTask(context.Background(), a.ID))

	_, ok := store.Get(a.ID)
	assert.False(t, ok)
}
