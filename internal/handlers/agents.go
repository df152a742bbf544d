package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/dto"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/metrics"
	"github.com/agenthub/backend/internal/models"
	"github.com/agenthub/backend/internal/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListAgents returns the approved catalog with optional filtering.
// Query params: category, q (name/description substring), sort
// (newest|popular), page, page_size.
func (h *Handlers) ListAgents(c *gin.Context) {
	page, pageSize := util.ParsePagination(
		c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	query := database.DB.Model(&models.Agent{}).
		Where("status = ?", models.AgentStatusApproved)

	if category := c.Query("category"); category != "" {
		if !models.ValidCategory(category) {
			util.RespondValidationError(c, "category", "unknown category")
			return
		}
		query = query.Where("category = ?", category)
	}

	if q := util.NormalizeSearchQuery(c.Query("q")); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		util.RespondInternalError(c, "failed to list agents")
		return
	}

	switch c.DefaultQuery("sort", "newest") {
	case "popular":
		query = query.Order("view_count DESC, created_at DESC")
	case "newest":
		query = query.Order("created_at DESC")
	default:
		util.RespondValidationError(c, "sort", "sort must be newest or popular")
		return
	}

	var agents []models.Agent
	err := query.Preload("Author").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&agents).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list agents")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	c.JSON(http.StatusOK, dto.AgentListResponse{
		Agents:     dto.ToAgentResponses(agents, false),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// GetAgent returns one agent. Approved agents are visible to everyone;
// pending and rejected agents only to their author or an admin.
func (h *Handlers) GetAgent(c *gin.Context) {
	agentID := c.Param("id")

	var agent models.Agent
	err := database.DB.Preload("Author").First(&agent, "id = ?", agentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "agent")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to load agent")
		return
	}

	user, _ := c.Get("user")
	viewer, _ := user.(*models.User)

	if !agent.IsApproved() {
		if viewer == nil || (viewer.ID != agent.AuthorID && !viewer.IsAdmin()) {
			// Hidden agents 404 rather than 403 so their existence leaks nothing
			util.RespondNotFound(c, "agent")
			return
		}
	}

	// Opening the detail page counts as a view for signed-in users,
	// subject to the rolling-hour dedup
	if viewer != nil && agent.IsApproved() {
		counted, err := h.tracking.RecordView(c.Request.Context(), agent.ID, viewer.ID)
		if err != nil {
			logger.WarnWithFields("failed to record view", err,
				logger.WithAgentID(agent.ID), logger.WithUserID(viewer.ID))
		} else if counted {
			agent.ViewCount++
		}
	}

	isOwner := viewer != nil && (viewer.ID == agent.AuthorID || viewer.IsAdmin())
	c.JSON(http.StatusOK, dto.ToAgentResponse(&agent, isOwner))
}

// RecordAgentView counts a view for the authenticated user. Repeat views
// inside the rolling hour are acknowledged but not counted.
func (h *Handlers) RecordAgentView(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	counted, err := h.tracking.RecordView(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondTrackingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"counted": counted})
}

// CreateAgent submits a new agent to the catalog in pending state
func (h *Handlers) CreateAgent(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if !models.ValidCategory(req.Category) {
		util.RespondValidationError(c, "category", "unknown category")
		return
	}

	agent := models.Agent{
		Name:        req.Name,
		Description: req.Description,
		AppURL:      req.AppURL,
		Category:    models.AgentCategory(req.Category),
		Status:      models.AgentStatusPending,
		AuthorID:    user.ID,
	}
	if err := database.DB.Create(&agent).Error; err != nil {
		util.RespondInternalError(c, "failed to submit agent")
		return
	}
	agent.Author = *user

	metrics.Get().AgentSubmissions.WithLabelValues(req.Category).Inc()
	h.notifyAdminsOfNewSubmission(agent.Name, user.Username)

	c.JSON(http.StatusCreated, dto.ToAgentResponse(&agent, true))
}

// UpdateAgent lets the author edit a submission while it is still pending.
// Approved and rejected agents are frozen.
func (h *Handlers) UpdateAgent(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var agent models.Agent
	err := database.DB.First(&agent, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "agent")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to load agent")
		return
	}

	if agent.AuthorID != user.ID {
		util.RespondForbidden(c, "only the author can edit a submission")
		return
	}
	if agent.Status != models.AgentStatusPending {
		util.RespondConflict(c, "only pending submissions can be edited")
		return
	}

	var req dto.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.AppURL != nil {
		agent.AppURL = *req.AppURL
	}
	if req.Category != nil {
		if !models.ValidCategory(*req.Category) {
			util.RespondValidationError(c, "category", "unknown category")
			return
		}
		agent.Category = models.AgentCategory(*req.Category)
	}

	if err := database.DB.Save(&agent).Error; err != nil {
		util.RespondInternalError(c, "failed to update agent")
		return
	}

	c.JSON(http.StatusOK, dto.ToAgentResponse(&agent, true))
}

// ListCategories returns the fixed category vocabulary
func (h *Handlers) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": models.AllCategories})
}

// MySubmissions lists the caller's own agents in every state,
// including rejection reasons
func (h *Handlers) MySubmissions(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var agents []models.Agent
	err := database.DB.
		Where("author_id = ?", user.ID).
		Order("created_at DESC").
		Find(&agents).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list submissions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"agents": dto.ToAgentResponses(agents, true)})
}

// notifyAdminsOfNewSubmission emails every admin about a pending agent
func (h *Handlers) notifyAdminsOfNewSubmission(agentName, authorUsername string) {
	if h.email == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admins, err := h.users.ListAdmins(ctx)
	if err != nil {
		logger.ErrorWithFields("failed to list admins for notification", err)
		return
	}
	for _, admin := range admins {
		if err := h.email.SendAdminNewSubmissionEmail(ctx, admin.Email, agentName, authorUsername); err != nil {
			logger.ErrorWithFields("failed to send submission notification", err,
				logger.WithUserID(admin.ID),
			)
		}
	}
}
