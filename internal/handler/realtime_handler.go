package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"taskboard/internal/realtime"

	"github.com/gin-gonic/gin"
)

// RealtimeHandler streams change notifications as Server-Sent Events.
type RealtimeHandler struct {
	broker realtime.Broker
	ping   time.Duration
	log    *slog.Logger
}

func NewRealtimeHandler(broker realtime.Broker, ping time.Duration, log *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{broker: broker, ping: ping, log: log}
}

// Stream serves GET /realtime?table=tasks&filter=project_id=eq.<id>.
//
// The first event is "subscribed", sent once the subscription is registered, so
// a client that has seen it cannot miss a later change. After that the stream
// carries "change" events and a periodic "ping".
func (h *RealtimeHandler) Stream(c *gin.Context) {
	ch, err := realtime.ParseChannel(c.Query("table"), c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := h.broker.Subscribe(ch)
	defer sub.Close()

	h.log.Debug("realtime stream opened", "channel", ch.String())
	defer h.log.Debug("realtime stream closed", "channel", ch.String())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("subscribed", gin.H{"channel": ch.String()})
	c.Writer.Flush()

	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case change, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent("change", change)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
