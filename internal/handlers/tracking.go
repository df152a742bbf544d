package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agenthub/backend/internal/dto"
	"github.com/agenthub/backend/internal/util"
)

// RecordAgentClick stores a click event for the authenticated user
func (h *Handlers) RecordAgentClick(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req dto.RecordClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	click, err := h.tracking.RecordClick(c.Request.Context(), c.Param("id"), userID, req.ClickType, req.Referrer)
	if err != nil {
		if strings.Contains(err.Error(), "invalid click type") {
			util.RespondValidationError(c, "click_type", "click_type must be modal_open, new_tab, or external_link")
			return
		}
		respondTrackingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "click recorded",
		"click_type": click.ClickType,
	})
}

// RecordAgentSession stores a usage session. Sub-second sessions are
// acknowledged but discarded.
func (h *Handlers) RecordAgentSession(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req dto.RecordSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	persisted, err := h.tracking.RecordSession(c.Request.Context(), c.Param("id"), userID, req.DurationSeconds)
	if err != nil {
		respondTrackingError(c, err)
		return
	}

	status := http.StatusCreated
	if !persisted {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"persisted": persisted})
}

// RateAgent stores the caller's star rating for an agent, replacing any
// previous rating
func (h *Handlers) RateAgent(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req dto.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	rating, err := h.tracking.Rate(c.Request.Context(), c.Param("id"), userID, req.Rating)
	if err != nil {
		respondTrackingError(c, err)
		return
	}

	c.JSON(http.StatusOK, rating)
}

// GetAgentRatingStats returns the aggregate rating summary for an agent
func (h *Handlers) GetAgentRatingStats(c *gin.Context) {
	stats, err := h.tracking.GetRatingStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondTrackingError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
