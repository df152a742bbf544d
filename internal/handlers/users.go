package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/dto"
	"github.com/agenthub/backend/internal/models"
	"github.com/agenthub/backend/internal/repository"
	"github.com/agenthub/backend/internal/util"
)

// GetUser returns a user's public profile along with their approved agents
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			util.RespondNotFound(c, "user")
			return
		}
		util.RespondInternalError(c, "failed to load user")
		return
	}

	var agents []models.Agent
	err = database.DB.
		Where("author_id = ? AND status = ?", user.ID, models.AgentStatusApproved).
		Order("created_at DESC").
		Find(&agents).Error
	if err != nil {
		util.RespondInternalError(c, "failed to load user agents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   dto.ToUserResponse(user),
		"agents": dto.ToAgentResponses(agents, false),
	})
}
