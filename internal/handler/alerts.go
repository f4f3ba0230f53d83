package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/alert"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
)

func (h *Handlers) handleCreateAlert(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var spec alert.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		fail(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}
	spec.CreatedBy = user

	result, err := h.engine.CreateAlert(c.Request.Context(), spec)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handlers) handleAcknowledge(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	// Body is optional; notes default to empty.
	_ = c.ShouldBindJSON(&req)

	err := h.engine.Acknowledge(c.Request.Context(), c.Param("id"), user, req.Notes)
	if err != nil {
		if errors.IsAlreadyResolved(err) {
			// Late acknowledgment is benign, not a failure.
			c.JSON(http.StatusOK, gin.H{"status": "already_resolved"})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) handleAlertStatus(c *gin.Context) {
	view, err := h.engine.AlertStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
