package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/realtime"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskHandler struct {
	tasks    repository.TaskRepositoryInterface
	projects repository.ProjectRepositoryInterface
	profiles repository.ProfileRepositoryInterface
	feed     changeFeed
}

func NewTaskHandler(
	tasks repository.TaskRepositoryInterface,
	projects repository.ProjectRepositoryInterface,
	profiles repository.ProfileRepositoryInterface,
	publisher realtime.Publisher,
	log *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		projects: projects,
		profiles: profiles,
		feed:     changeFeed{publisher: publisher, log: log},
	}
}

// CreateTaskRequest представляет запрос на создание задачи
type CreateTaskRequest struct {
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description"`
	Status      model.TaskStatus `json:"status"`
	AssignedTo  *uuid.UUID       `json:"assigned_to"`
}

// UpdateTaskRequest представляет частичное обновление задачи.
// assigned_to: null снимает исполнителя, отсутствие поля оставляет его как есть.
type UpdateTaskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *model.TaskStatus  `json:"status"`
	AssignedTo  model.OptionalUUID `json:"assigned_to"`
}

func (r UpdateTaskRequest) empty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil && !r.AssignedTo.Set
}

// Create создает новую задачу в проекте
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	projectID, ok := parseIDParam(c, "id", "project")
	if !ok {
		return
	}

	// Проверяем существование проекта
	if _, err := h.projects.GetByID(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		}
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task title is required"})
		return
	}

	status := req.Status
	if status == "" {
		status = model.StatusTodo
	}
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	if req.AssignedTo != nil && !h.assigneeExists(c, *req.AssignedTo) {
		return
	}

	task := &model.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   userID,
	}

	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	h.feed.announce(c.Request.Context(), realtime.TasksOf(projectID), realtime.Insert, task.ID)
	c.JSON(http.StatusCreated, task)
}

// GetByProject возвращает задачи проекта, новые первыми
func (h *TaskHandler) GetByProject(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id", "project")
	if !ok {
		return
	}

	tasks, err := h.tasks.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	c.JSON(http.StatusOK, tasks)
}

// GetByID получает задачу по ID
func (h *TaskHandler) GetByID(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	task, ok := h.loadTask(c, taskID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, task)
}

// Update обновляет задачу частично
func (h *TaskHandler) Update(c *gin.Context) {
	if _, ok := authenticatedUser(c); !ok {
		return
	}

	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Task title is required"})
			return
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		fields["status"] = *req.Status
	}
	if req.AssignedTo.Set {
		if req.AssignedTo.Value == nil {
			fields["assigned_to"] = nil
		} else {
			if !h.assigneeExists(c, *req.AssignedTo.Value) {
				return
			}
			fields["assigned_to"] = *req.AssignedTo.Value
		}
	}

	task, err := h.tasks.Update(c.Request.Context(), taskID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		}
		return
	}

	h.feed.announce(c.Request.Context(), realtime.TasksOf(task.ProjectID), realtime.Update, task.ID)
	c.JSON(http.StatusOK, task)
}

// Delete удаляет задачу. Разрешено автору задачи или создателю проекта.
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	task, ok := h.loadTask(c, taskID)
	if !ok {
		return
	}

	if task.CreatedBy != userID {
		project, err := h.projects.GetByID(c.Request.Context(), task.ProjectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
			return
		}
		if project.CreatedBy != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to delete this task"})
			return
		}
	}

	if err := h.tasks.Delete(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		}
		return
	}

	h.feed.announce(c.Request.Context(), realtime.TasksOf(task.ProjectID), realtime.Delete, task.ID)
	h.feed.announce(c.Request.Context(), realtime.CommentsOf(task.ID), realtime.Delete, task.ID)
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) loadTask(c *gin.Context, taskID uuid.UUID) (*model.Task, bool) {
	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return nil, false
	}
	return task, true
}

func (h *TaskHandler) assigneeExists(c *gin.Context, id uuid.UUID) bool {
	profile, err := h.profiles.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve assignee"})
		return false
	}
	if profile == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Assignee does not exist"})
		return false
	}
	return true
}
