package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/chat"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/errors"
)

func (h *Handlers) handleCreateCrew(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}
	crew, err := h.members.CreateCrew(c.Request.Context(), req.Name, user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"crew_id":          crew.ID,
		"alert_channel_id": crew.AlertChannelID,
	})
}

func (h *Handlers) handleCheckPermission(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	perm, err := models.ParsePermission(c.Param("permission"))
	if err != nil {
		fail(c, err)
		return
	}
	allowed, err := h.engine.CheckPermission(c.Request.Context(), user, c.Param("id"), perm)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": allowed})
}

func (h *Handlers) handleAddMember(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.members.AddMember(c.Request.Context(), actor, req.UserID, c.Param("id"), role); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (h *Handlers) handleChangeRole(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.engine.ChangeRole(c.Request.Context(), actor, c.Param("userID"), c.Param("id"), role); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) handleRemoveMember(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.members.RemoveMember(c.Request.Context(), actor, c.Param("userID"), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) handleShareJob(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		JobID    string `json:"job_id" binding:"required"`
		Title    string `json:"title" binding:"required"`
		Company  string `json:"company"`
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}
	job := chat.JobPostingPayload{
		JobID:    req.JobID,
		Title:    req.Title,
		Company:  req.Company,
		Location: req.Location,
	}
	if err := h.members.ShareJob(c.Request.Context(), user, c.Param("id"), job); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) handleRecordLocation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.InvalidArgument("invalid request: %v", err))
		return
	}
	if err := h.location.RecordLocation(c.Request.Context(), user, *req.Latitude, *req.Longitude); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
