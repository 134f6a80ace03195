// Package handlers provides HTTP request handlers for the coordinator API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/instance-remote/internal/models"
	"github.com/pandeptwidyaop/instance-remote/internal/services"
	"github.com/pandeptwidyaop/instance-remote/internal/validation"
)

// InstanceHandler handles HTTP requests for instance management.
type InstanceHandler struct {
	coordinator *services.Coordinator
}

// NewInstanceHandler creates a new InstanceHandler instance.
func NewInstanceHandler(coordinator *services.Coordinator) *InstanceHandler {
	return &InstanceHandler{coordinator: coordinator}
}

// List returns all registered instances in registration order.
func (h *InstanceHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.Instances())
}

// Get returns a snapshot of a single instance by name.
func (h *InstanceHandler) Get(c *gin.Context) {
	inst, err := h.coordinator.Instance(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}
	c.JSON(http.StatusOK, inst)
}

// Register registers a new instance.
func (h *InstanceHandler) Register(c *gin.Context) {
	var req models.RegisterInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateInstanceName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidatePath(req.Path); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidatePath(req.ConfigPath); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := h.coordinator.RegisterInstance(&req)
	if err != nil {
		if errors.Is(err, services.ErrInstanceExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "instance already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, inst)
}

// Unregister removes an instance.
func (h *InstanceHandler) Unregister(c *gin.Context) {
	if err := h.coordinator.UnregisterInstance(c.Param("name")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "instance unregistered"})
}

// Prepare allocates a port and mutates the config for one instance.
func (h *InstanceHandler) Prepare(c *gin.Context) {
	inst, err := h.coordinator.PrepareInstance(c.Param("name"))
	if err != nil {
		if errors.Is(err, services.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inst)
}
