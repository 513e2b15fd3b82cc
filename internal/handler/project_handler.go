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
)

type ProjectHandler struct {
	projects repository.ProjectRepositoryInterface
	feed     changeFeed
}

func NewProjectHandler(projects repository.ProjectRepositoryInterface, publisher realtime.Publisher, log *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		feed:     changeFeed{publisher: publisher, log: log},
	}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create creates a new project owned by the authenticated user
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project name is required"})
		return
	}

	project := &model.Project{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   userID,
	}

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	h.feed.announce(c.Request.Context(), realtime.Projects(), realtime.Insert, project.ID)
	c.JSON(http.StatusCreated, project)
}

// GetAll lists every project, newest first
func (h *ProjectHandler) GetAll(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve projects"})
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) GetByID(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id", "project")
	if !ok {
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		}
		return
	}

	c.JSON(http.StatusOK, project)
}
