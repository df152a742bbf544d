package dto

import (
	"time"

	"github.com/agenthub/backend/internal/models"
)

// ReviewResponse is the public representation of a review
type ReviewResponse struct {
	ID           string        `json:"id"`
	AgentID      string        `json:"agent_id"`
	Author       *UserResponse `json:"author,omitempty"`
	Rating       int           `json:"rating"`
	ReviewText   string        `json:"review_text"`
	HelpfulCount int           `json:"helpful_count"`
	ReviewedAt   time.Time     `json:"reviewed_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SubmitReviewRequest creates or replaces the caller's review
type SubmitReviewRequest struct {
	Rating     int    `json:"rating" binding:"required,min=1,max=5"`
	ReviewText string `json:"review_text" binding:"required"`
}

// SubmitRatingRequest stores a bare star rating
type SubmitRatingRequest struct {
	Rating int `json:"rating" binding:"required,min=1,max=5"`
}

// RecordClickRequest reports a click interaction
type RecordClickRequest struct {
	ClickType string `json:"click_type" binding:"required"`
	Referrer  string `json:"referrer,omitempty"`
}

// RecordSessionRequest reports time spent with an agent open
type RecordSessionRequest struct {
	DurationSeconds float64 `json:"duration_seconds" binding:"required"`
}

// ReviewListResponse wraps a paginated review listing
type ReviewListResponse struct {
	Reviews  []*ReviewResponse `json:"reviews"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ToReviewResponse converts models.AgentReview to ReviewResponse
func ToReviewResponse(review *models.AgentReview) *ReviewResponse {
	if review == nil {
		return nil
	}
	resp := &ReviewResponse{
		ID:           review.ID,
		AgentID:      review.AgentID,
		Rating:       review.Rating,
		ReviewText:   review.ReviewText,
		HelpfulCount: review.HelpfulCount,
		ReviewedAt:   review.ReviewedAt,
		UpdatedAt:    review.UpdatedAt,
	}
	if review.User.ID != "" {
		resp.Author = ToUserResponse(&review.User)
	}
	return resp
}

// ToReviewResponses converts a slice of reviews
func ToReviewResponses(reviews []models.AgentReview) []*ReviewResponse {
	out := make([]*ReviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, ToReviewResponse(&reviews[i]))
	}
	return out
}
