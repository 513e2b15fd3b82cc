package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskboard/internal/middleware"
	"taskboard/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// authenticatedUser writes a 401 and returns false when the request carries no identity
func authenticatedUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}

// parseIDParam writes a 400 and returns false when the path parameter is not a uuid
func parseIDParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID format"})
		return uuid.Nil, false
	}
	return id, true
}

// changeFeed publishes after a successful write. A failed publish is logged, not
// returned: the write itself already happened.
type changeFeed struct {
	publisher realtime.Publisher
	log       *slog.Logger
}

func (f changeFeed) announce(ctx context.Context, ch realtime.Channel, typ realtime.EventType, recordID uuid.UUID) {
	if f.publisher == nil {
		return
	}
	// the request context may already be cancelled once the response is written
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := f.publisher.Publish(ctx, realtime.NewChange(ch, typ, recordID)); err != nil {
		f.log.Error("publish change failed", "channel", ch.String(), "type", typ, "record_id", recordID, "error", err)
	}
}
