package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/instance-remote/internal/models"
	"github.com/pandeptwidyaop/instance-remote/internal/ports"
	"github.com/pandeptwidyaop/instance-remote/internal/services"
)

// LaunchHandler handles batch launch, rollback, and history requests.
type LaunchHandler struct {
	coordinator *services.Coordinator
	history     *services.HistoryService
}

// NewLaunchHandler creates a new LaunchHandler instance.
func NewLaunchHandler(coordinator *services.Coordinator, history *services.HistoryService) *LaunchHandler {
	return &LaunchHandler{coordinator: coordinator, history: history}
}

// LaunchBatch launches the named instances together. The response is the
// full batch report; a rolled-back batch is still a 200 with rolled_back set.
func (h *LaunchHandler) LaunchBatch(c *gin.Context) {
	var req models.LaunchBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.coordinator.LaunchBatch(c.Request.Context(), req.Names)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInstanceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ports.ErrPortExhausted):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// Rollback restores every live backup.
func (h *LaunchHandler) Rollback(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.RollbackAll())
}

// RollbackStatus reports live backups awaiting cleanup or rollback.
func (h *LaunchHandler) RollbackStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.RollbackStatus())
}

// ListBatches returns persisted batch history, newest first.
func (h *LaunchHandler) ListBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	batches, err := h.history.ListBatches(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if batches == nil {
		batches = []models.Batch{}
	}
	c.JSON(http.StatusOK, batches)
}

// GetBatch returns one persisted batch with its launch results.
func (h *LaunchHandler) GetBatch(c *gin.Context) {
	batch, err := h.history.GetBatch(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, batch)
}
