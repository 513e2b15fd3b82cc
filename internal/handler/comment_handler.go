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

type CommentHandler struct {
	comments repository.CommentRepositoryInterface
	tasks    repository.TaskRepositoryInterface
	feed     changeFeed
}

func NewCommentHandler(
	comments repository.CommentRepositoryInterface,
	tasks repository.TaskRepositoryInterface,
	publisher realtime.Publisher,
	log *slog.Logger,
) *CommentHandler {
	return &CommentHandler{
		comments: comments,
		tasks:    tasks,
		feed:     changeFeed{publisher: publisher, log: log},
	}
}

type CreateCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// GetByTask returns the thread oldest first
func (h *CommentHandler) GetByTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	if _, err := h.tasks.GetByID(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	comments, err := h.comments.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}

	c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) Create(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment text is required"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment text is required"})
		return
	}

	if _, err := h.tasks.GetByID(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	comment := &model.Comment{
		TaskID: taskID,
		UserID: userID,
		Text:   text,
	}
	if err := h.comments.Create(c.Request.Context(), comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	h.feed.announce(c.Request.Context(), realtime.CommentsOf(taskID), realtime.Insert, comment.ID)
	c.JSON(http.StatusCreated, comment)
}

// Delete removes a comment. Only its author may do so.
func (h *CommentHandler) Delete(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	commentID, ok := parseIDParam(c, "id", "comment")
	if !ok {
		return
	}

	comment, err := h.comments.GetByID(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comment"})
		}
		return
	}

	if comment.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own comments"})
		return
	}

	if err := h.comments.Delete(c.Request.Context(), commentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}

	h.feed.announce(c.Request.Context(), realtime.CommentsOf(comment.TaskID), realtime.Delete, comment.ID)
	c.Status(http.StatusNoContent)
}
