// Package health serves the ops health endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HubStats is the slice of the hub the handler needs.
type HubStats interface {
	Stats(ctx context.Context) (connections, rooms int)
}

// Handler reports process liveness and hub occupancy.
type Handler struct {
	stats HubStats
}

// NewHandler creates a new health check handler.
func NewHandler(stats HubStats) *Handler {
	return &Handler{stats: stats}
}

// Register mounts the health route on a gin router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/health", h.healthCheck)
}

func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	connections, rooms := 0, 0
	if h.stats != nil {
		connections, rooms = h.stats.Stats(ctx)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"connections": connections,
		"rooms":       rooms,
	})
}
