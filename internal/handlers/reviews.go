package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthub/backend/internal/dto"
	"github.com/agenthub/backend/internal/util"
)

// ListAgentReviews returns reviews for an agent, newest first
func (h *Handlers) ListAgentReviews(c *gin.Context) {
	page, pageSize := util.ParsePagination(
		c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	reviews, total, err := h.tracking.ListReviews(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		respondTrackingError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ReviewListResponse{
		Reviews:  dto.ToReviewResponses(reviews),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// SubmitAgentReview creates or replaces the caller's review of an agent.
// 201 on create, 200 on replace.
func (h *Handlers) SubmitAgentReview(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	review, created, err := h.tracking.UpsertReview(c.Request.Context(), c.Param("id"), userID, req.Rating, req.ReviewText)
	if err != nil {
		respondTrackingError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.ToReviewResponse(review))
}

// DeleteAgentReview removes the caller's own review
func (h *Handlers) DeleteAgentReview(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.tracking.DeleteReview(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondTrackingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "review deleted"})
}

// MarkReviewHelpful records a helpful vote on someone else's review
func (h *Handlers) MarkReviewHelpful(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	review, err := h.tracking.MarkHelpful(c.Request.Context(), c.Param("review_id"), userID)
	if err != nil {
		respondTrackingError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToReviewResponse(review))
}
