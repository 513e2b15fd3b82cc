package handler_test

import (
	"context"
	"sync"

	"taskboard/internal/model"
	"taskboard/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Мок репозитория пользователей
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Register(ctx context.Context, user *model.User, profile *model.Profile) error {
	args := m.Called(ctx, user, profile)
	return args.Error(0)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	user := args.Get(0)
	if user == nil {
		return nil, args.Error(1)
	}
	return user.(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	user := args.Get(0)
	if user == nil {
		return nil, args.Error(1)
	}
	return user.(*model.User), args.Error(1)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	args := m.Called(ctx, id)
	profile := args.Get(0)
	if profile == nil {
		return nil, args.Error(1)
	}
	return profile.(*model.Profile), args.Error(1)
}

func (m *MockProfileRepository) List(ctx context.Context) ([]model.Profile, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Profile), args.Error(1)
}

func (m *MockProfileRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Profile, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]model.Profile), args.Error(1)
}

func (m *MockProfileRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.Profile, error) {
	args := m.Called(ctx, id, fields)
	profile := args.Get(0)
	if profile == nil {
		return nil, args.Error(1)
	}
	return profile.(*model.Profile), args.Error(1)
}

type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *model.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Project), args.Error(1)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	project := args.Get(0)
	if project == nil {
		return nil, args.Error(1)
	}
	return project.(*model.Project), args.Error(1)
}

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, id)
	task := args.Get(0)
	if task == nil {
		return nil, args.Error(1)
	}
	return task.(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.Task, error) {
	args := m.Called(ctx, id, fields)
	task := args.Get(0)
	if task == nil {
		return nil, args.Error(1)
	}
	return task.(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	args := m.Called(ctx, id)
	comment := args.Get(0)
	if comment == nil {
		return nil, args.Error(1)
	}
	return comment.(*model.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]model.Comment, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).([]model.Comment), args.Error(1)
}

func (m *MockCommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// recordingPublisher keeps every published change for assertions
type recordingPublisher struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (p *recordingPublisher) Publish(_ context.Context, change realtime.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingPublisher) Changes() []realtime.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Change(nil), p.changes...)
}
