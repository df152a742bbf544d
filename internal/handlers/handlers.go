package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/agenthub/backend/internal/auth"
	apierrors "github.com/agenthub/backend/internal/errors"
	"github.com/agenthub/backend/internal/email"
	"github.com/agenthub/backend/internal/repository"
	"github.com/agenthub/backend/internal/tracking"
	"github.com/agenthub/backend/internal/util"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth     *auth.Service
	tracking *tracking.Service
	users    repository.UserRepository
	email    *email.EmailService
}

// NewHandlers creates a new handlers instance. emailService may be nil when
// outbound email is disabled.
func NewHandlers(authService *auth.Service, trackingService *tracking.Service, userRepo repository.UserRepository) *Handlers {
	return &Handlers{
		auth:     authService,
		tracking: trackingService,
		users:    userRepo,
	}
}

// SetEmailService enables outbound notification email
func (h *Handlers) SetEmailService(emailService *email.EmailService) {
	h.email = emailService
}

// respondTrackingError maps tracking service errors onto the API error taxonomy
func respondTrackingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracking.ErrAgentNotFound):
		util.RespondNotFound(c, "agent")
	case errors.Is(err, tracking.ErrAgentNotVisible):
		util.RespondNotFound(c, "agent")
	case errors.Is(err, tracking.ErrReviewNotFound):
		util.RespondNotFound(c, "review")
	case errors.Is(err, tracking.ErrSelfVote):
		util.RespondWithAPIError(c, apierrors.ValidationError("review_id", "cannot vote on your own review"))
	case errors.Is(err, tracking.ErrNotReviewOwner):
		util.RespondForbidden(c, "review belongs to another user")
	case errors.Is(err, tracking.ErrInvalidRating):
		util.RespondWithAPIError(c, apierrors.ValidationError("rating", "rating must be between 1 and 5"))
	case errors.Is(err, tracking.ErrInvalidDuration):
		util.RespondWithAPIError(c, apierrors.ValidationError("duration_seconds", "duration must be positive"))
	case errors.Is(err, tracking.ErrReviewTooShort):
		util.RespondWithAPIError(c, apierrors.ValidationError("review_text", "review text must be at least 10 characters"))
	case errors.Is(err, tracking.ErrReviewTooLong):
		util.RespondWithAPIError(c, apierrors.ValidationError("review_text", "review text must be at most 1000 characters"))
	default:
		util.RespondInternalError(c, "operation failed")
	}
}
