package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"taskboard/internal/model"

	"github.com/google/uuid"
)

// TaskDraft is the input of CreateTask. An empty Status means todo.
type TaskDraft struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Status      model.TaskStatus `json:"status,omitempty"`
	AssignedTo  *uuid.UUID       `json:"assigned_to,omitempty"`
}

// TaskPatch is a partial update; nil fields are left alone.
// AssignedTo distinguishes "leave as is" from "unassign" (model.ClearUUID).
type TaskPatch struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Status      *model.TaskStatus  `json:"status,omitempty"`
	AssignedTo  model.OptionalUUID `json:"assigned_to,omitzero"`
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && !p.AssignedTo.Set
}

// ProfilePatch edits the caller's own profile.
type ProfilePatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.call(ctx, http.MethodGet, "/projects", nil, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) CreateProject(ctx context.Context, name, description string) (*model.Project, error) {
	in := map[string]string{"name": name, "description": description}

	var project model.Project
	if err := c.call(ctx, http.MethodPost, "/projects", nil, in, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListTasks returns a project's tasks, newest first.
func (c *Client) ListTasks(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.call(ctx, http.MethodGet, "/projects/"+projectID.String()+"/tasks", nil, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := c.call(ctx, http.MethodGet, "/tasks/"+id.String(), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateTask(ctx context.Context, projectID uuid.UUID, draft TaskDraft) (*model.Task, error) {
	var task model.Task
	if err := c.call(ctx, http.MethodPost, "/projects/"+projectID.String()+"/tasks", nil, draft, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id uuid.UUID, patch TaskPatch) (*model.Task, error) {
	var task model.Task
	if err := c.call(ctx, http.MethodPatch, "/tasks/"+id.String(), nil, patch, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return c.call(ctx, http.MethodDelete, "/tasks/"+id.String(), nil, nil, nil)
}

// ListProfiles returns the profiles with the given ids, or every profile when
// none are given. Unknown ids are simply absent from the result.
func (c *Client) ListProfiles(ctx context.Context, ids ...uuid.UUID) ([]model.Profile, error) {
	var query url.Values
	if len(ids) > 0 {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = id.String()
		}
		query = url.Values{"ids": {strings.Join(parts, ",")}}
	}

	var profiles []model.Profile
	if err := c.call(ctx, http.MethodGet, "/profiles", query, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (c *Client) UpdateMyProfile(ctx context.Context, patch ProfilePatch) (*model.Profile, error) {
	var profile model.Profile
	if err := c.call(ctx, http.MethodPatch, "/profiles/me", nil, patch, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListComments returns a task's comments, oldest first.
func (c *Client) ListComments(ctx context.Context, taskID uuid.UUID) ([]model.Comment, error) {
	var comments []model.Comment
	if err := c.call(ctx, http.MethodGet, "/tasks/"+taskID.String()+"/comments", nil, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, taskID uuid.UUID, text string) (*model.Comment, error) {
	in := map[string]string{"text": text}

	var comment model.Comment
	if err := c.call(ctx, http.MethodPost, "/tasks/"+taskID.String()+"/comments", nil, in, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return c.call(ctx, http.MethodDelete, "/comments/"+id.String(), nil, nil, nil)
}
