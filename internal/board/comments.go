package board

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"taskboard/internal/model"
	"taskboard/internal/realtime"

	"github.com/google/uuid"
)

// Comment is a stored comment with its author's profile, when found.
type Comment struct {
	model.Comment
	Author *model.Profile
}

func (c Comment) AuthorName() string {
	if c.Author == nil {
		return "Unknown"
	}
	return c.Author.Name()
}

// CommentStore mirrors the comment thread of one open task, oldest first.
// Submitted comments are not appended locally; they show up with the
// re-fetch their change notification triggers.
type CommentStore struct {
	remote   Remote
	session  Identities
	notifier Notifier
	log      *slog.Logger

	mu       sync.Mutex
	task     uuid.UUID
	comments []Comment
	seq      uint64
	version  uint64
	follower *follower

	observers emitter[[]Comment]
}

func NewCommentStore(remote Remote, session Identities, notifier Notifier, log *slog.Logger) *CommentStore {
	return &CommentStore{
		remote:   remote,
		session:  session,
		notifier: orDiscard(notifier),
		log:      orDefaultLogger(log),
	}
}

// Open switches the store to a task's thread, subscribing before the first fetch.
func (s *CommentStore) Open(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	old := s.follower
	s.follower = nil
	s.task = taskID
	s.seq++
	s.comments = nil
	s.version++
	version := s.version
	s.mu.Unlock()

	old.stop()
	s.observers.emit(version, nil)

	if taskID == uuid.Nil {
		return nil
	}

	f, err := follow(ctx, s.remote, realtime.CommentsOf(taskID),
		func(ctx context.Context) { _ = s.Refresh(ctx) },
		func() { failure(s.notifier, nil, "Live comment updates stopped") },
	)
	if err != nil {
		failure(s.notifier, err, "Could not subscribe to comments")
	} else {
		s.mu.Lock()
		if s.task == taskID && s.follower == nil {
			s.follower = f
			f = nil
		}
		s.mu.Unlock()
		f.stop()
	}

	return s.Refresh(ctx)
}

func (s *CommentStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	task := s.task
	if task == uuid.Nil {
		s.mu.Unlock()
		return ErrNoTask
	}
	s.seq++
	n := s.seq
	s.mu.Unlock()

	fetched, err := s.remote.ListComments(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		if !s.current(n, task) {
			s.log.Debug("dropping failed stale comment fetch", "task", task, "seq", n, "error", err)
			return nil
		}
		failure(s.notifier, err, "Could not load comments")
		return err
	}

	authors := make([]uuid.UUID, len(fetched))
	for i, c := range fetched {
		authors[i] = c.UserID
	}
	profiles := resolveProfiles(ctx, s.remote, s.notifier, s.log, authors)

	comments := make([]Comment, len(fetched))
	for i, c := range fetched {
		comments[i] = Comment{Comment: c, Author: profiles[c.UserID]}
	}

	s.mu.Lock()
	if n != s.seq || task != s.task {
		s.mu.Unlock()
		s.log.Debug("discarding stale comment fetch", "task", task, "seq", n)
		return nil
	}
	s.comments = comments
	s.version++
	version := s.version
	s.mu.Unlock()

	s.observers.emit(version, append([]Comment(nil), comments...))
	return nil
}

func (s *CommentStore) current(n uint64, task uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return n == s.seq && task == s.task
}

// Submit posts a comment on the open task. Blank text is rejected before any call.
func (s *CommentStore) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyComment
	}
	if s.session.Current() == nil {
		return ErrNotSignedIn
	}

	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	if task == uuid.Nil {
		return ErrNoTask
	}

	if _, err := s.remote.CreateComment(ctx, task, text); err != nil {
		failure(s.notifier, err, "Could not post comment")
		return err
	}
	return nil
}

func (s *CommentStore) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Comment(nil), s.comments...)
}

func (s *CommentStore) OnChange(fn func([]Comment)) (cancel func()) {
	return s.observers.add(fn)
}

func (s *CommentStore) Close() {
	s.mu.Lock()
	f := s.follower
	s.follower = nil
	s.mu.Unlock()
	f.stop()
}
