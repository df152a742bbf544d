package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/dto"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/metrics"
	"github.com/agenthub/backend/internal/models"
	"github.com/agenthub/backend/internal/repository"
	"github.com/agenthub/backend/internal/util"
)

// ListPendingAgents returns agents awaiting review, oldest first
func (h *Handlers) ListPendingAgents(c *gin.Context) {
	page, pageSize := util.ParsePagination(
		c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	query := database.DB.Model(&models.Agent{}).
		Where("status = ?", models.AgentStatusPending)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		util.RespondInternalError(c, "failed to list pending agents")
		return
	}

	var agents []models.Agent
	err := query.Preload("Author").
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&agents).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list pending agents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"agents": dto.ToAgentResponses(agents, true),
		"total":  total,
		"page":   page,
	})
}

// ApproveAgent transitions a pending agent to approved. Approval and
// rejection are terminal: re-reviewing an already-decided agent is a conflict.
func (h *Handlers) ApproveAgent(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	agent, ok := h.loadPendingAgent(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	agent.Status = models.AgentStatusApproved
	agent.ApprovedBy = &admin.ID
	agent.ApprovedAt = &now
	if err := database.DB.Save(agent).Error; err != nil {
		util.RespondInternalError(c, "failed to approve agent")
		return
	}

	metrics.Get().AgentTransitions.WithLabelValues("approved").Inc()
	h.notifyAuthorOfDecision(agent, "approved", "")

	c.JSON(http.StatusOK, dto.ToAgentResponse(agent, true))
}

// RejectAgent transitions a pending agent to rejected, with an optional
// reviewer reason
func (h *Handlers) RejectAgent(c *gin.Context) {
	if _, ok := util.GetUserFromContext(c); !ok {
		return
	}

	// The reason is optional; an empty body is a valid rejection
	var req dto.RejectAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.RespondBadRequest(c, err.Error())
		return
	}

	agent, ok := h.loadPendingAgent(c)
	if !ok {
		return
	}

	agent.Status = models.AgentStatusRejected
	agent.RejectionReason = req.Reason
	if err := database.DB.Save(agent).Error; err != nil {
		util.RespondInternalError(c, "failed to reject agent")
		return
	}

	metrics.Get().AgentTransitions.WithLabelValues("rejected").Inc()
	h.notifyAuthorOfDecision(agent, "rejected", req.Reason)

	c.JSON(http.StatusOK, dto.ToAgentResponse(agent, true))
}

// loadPendingAgent fetches the agent and enforces the pending-only rule
func (h *Handlers) loadPendingAgent(c *gin.Context) (*models.Agent, bool) {
	var agent models.Agent
	err := database.DB.Preload("Author").First(&agent, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "agent")
		return nil, false
	} else if err != nil {
		util.RespondInternalError(c, "failed to load agent")
		return nil, false
	}

	if agent.Status != models.AgentStatusPending {
		util.RespondConflict(c, "agent has already been reviewed")
		return nil, false
	}
	return &agent, true
}

// ListUsers returns all users for admin review
func (h *Handlers) ListUsers(c *gin.Context) {
	page, pageSize := util.ParsePagination(
		c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	users, total, err := h.users.ListUsers(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		util.RespondInternalError(c, "failed to list users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": dto.ToUserDetailResponses(users),
		"total": total,
		"page":  page,
	})
}

// ListPendingUsers returns users awaiting activation, oldest first
func (h *Handlers) ListPendingUsers(c *gin.Context) {
	page, pageSize := util.ParsePagination(
		c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	users, total, err := h.users.ListPendingUsers(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		util.RespondInternalError(c, "failed to list pending users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": dto.ToUserDetailResponses(users),
		"total": total,
		"page":  page,
	})
}

// ApproveUser activates a pending user account
func (h *Handlers) ApproveUser(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	user, err := h.users.ApproveUser(c.Request.Context(), c.Param("id"), admin.ID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			util.RespondNotFound(c, "user")
		case errors.Is(err, repository.ErrUserActive):
			util.RespondConflict(c, "user is already active")
		default:
			util.RespondInternalError(c, "failed to approve user")
		}
		return
	}

	metrics.Get().UserTransitions.WithLabelValues("approved").Inc()
	if h.email != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.email.SendAccountApprovedEmail(ctx, user.Email, user.Username); err != nil {
			logger.ErrorWithFields("failed to send account approval email", err,
				logger.WithUserID(user.ID),
			)
		}
	}

	c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
}

// DeactivateUser flips an active user to inactive. Admins cannot
// deactivate themselves.
func (h *Handlers) DeactivateUser(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if admin.ID == c.Param("id") {
		util.RespondConflict(c, "cannot deactivate your own account")
		return
	}

	user, err := h.users.DeactivateUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			util.RespondNotFound(c, "user")
			return
		}
		util.RespondInternalError(c, "failed to deactivate user")
		return
	}

	metrics.Get().UserTransitions.WithLabelValues("deactivated").Inc()
	c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
}

// RejectUser permanently deletes a registration that was never activated
func (h *Handlers) RejectUser(c *gin.Context) {
	err := h.users.RejectPendingUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			util.RespondNotFound(c, "user")
		case errors.Is(err, repository.ErrUserActive):
			util.RespondConflict(c, "active users must be deactivated, not rejected")
		default:
			util.RespondInternalError(c, "failed to reject user")
		}
		return
	}

	metrics.Get().UserTransitions.WithLabelValues("rejected").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "registration rejected"})
}

// MakeAdmin grants the admin role to a user
func (h *Handlers) MakeAdmin(c *gin.Context) {
	user, err := h.users.PromoteToAdmin(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			util.RespondNotFound(c, "user")
			return
		}
		util.RespondInternalError(c, "failed to promote user")
		return
	}

	metrics.Get().UserTransitions.WithLabelValues("promoted").Inc()
	c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
}

// AdminStats returns catalog and engagement totals for the dashboard
func (h *Handlers) AdminStats(c *gin.Context) {
	type count struct {
		model interface{}
		where []interface{}
		dest  *int64
	}

	var (
		totalUsers, pendingUsers         int64
		totalAgents, pendingAgents       int64
		approvedAgents, rejectedAgents   int64
		totalViews, totalClicks          int64
		totalSessions, totalReviews      int64
	)

	counts := []count{
		{&models.User{}, nil, &totalUsers},
		{&models.User{}, []interface{}{"is_active = ?", false}, &pendingUsers},
		{&models.Agent{}, nil, &totalAgents},
		{&models.Agent{}, []interface{}{"status = ?", models.AgentStatusPending}, &pendingAgents},
		{&models.Agent{}, []interface{}{"status = ?", models.AgentStatusApproved}, &approvedAgents},
		{&models.Agent{}, []interface{}{"status = ?", models.AgentStatusRejected}, &rejectedAgents},
		{&models.AgentView{}, nil, &totalViews},
		{&models.AgentClick{}, nil, &totalClicks},
		{&models.AgentSession{}, nil, &totalSessions},
		{&models.AgentReview{}, nil, &totalReviews},
	}

	for _, cnt := range counts {
		q := database.DB.Model(cnt.model)
		if len(cnt.where) > 0 {
			q = q.Where(cnt.where[0], cnt.where[1:]...)
		}
		if err := q.Count(cnt.dest).Error; err != nil {
			util.RespondInternalError(c, "failed to compute stats")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  gin.H{"total": totalUsers, "pending": pendingUsers},
		"agents": gin.H{"total": totalAgents, "pending": pendingAgents, "approved": approvedAgents, "rejected": rejectedAgents},
		"engagement": gin.H{
			"views":    totalViews,
			"clicks":   totalClicks,
			"sessions": totalSessions,
			"reviews":  totalReviews,
		},
	})
}

// notifyAuthorOfDecision emails the author about an approval or rejection
func (h *Handlers) notifyAuthorOfDecision(agent *models.Agent, decision, reason string) {
	if h.email == nil || agent.Author.Email == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.email.SendAgentStatusEmail(ctx, agent.Author.Email, agent.Name, decision, reason); err != nil {
		logger.ErrorWithFields("failed to send agent decision email", err,
			logger.WithAgentID(agent.ID),
		)
	}
}
