package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenthub/backend/internal/auth"
	"github.com/agenthub/backend/internal/dto"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/util"
)

// Register creates a new account. The account stays inactive until an
// administrator approves it; the response makes that explicit.
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	user, err := h.auth.Register(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			util.RespondConflict(c, "an account with this email already exists")
		case errors.Is(err, auth.ErrUsernameExists):
			util.RespondConflict(c, "username already taken")
		default:
			util.RespondInternalError(c, "registration failed")
		}
		return
	}

	h.notifyAdminsOfNewUser(user.Username, user.Email)

	c.JSON(http.StatusCreated, gin.H{
		"user":    dto.ToUserResponse(user),
		"message": "registration received, awaiting admin approval",
	})
}

// Login is step one of the two-step login: password check, then a one-time
// code is issued and (normally) emailed.
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	challenge, err := h.auth.InitiateLogin(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			// Same response for both so login probing can't enumerate accounts
			util.RespondUnauthorized(c, "invalid email or password")
		case errors.Is(err, auth.ErrUserInactive):
			util.RespondForbidden(c, "account pending approval")
		default:
			util.RespondInternalError(c, "login failed")
		}
		return
	}

	c.JSON(http.StatusOK, challenge)
}

// Verify is step two of login: the one-time code is exchanged for a JWT
func (h *Handlers) Verify(c *gin.Context) {
	var req auth.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.VerifyOTP(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidOTP):
			util.RespondUnauthorized(c, "invalid or expired code")
		default:
			util.RespondInternalError(c, "verification failed")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshToken issues a fresh token for the authenticated user
func (h *Handlers) RefreshToken(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	resp, err := h.auth.RefreshToken(user)
	if err != nil {
		util.RespondInternalError(c, "failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChangePassword replaces the caller's password after verifying the current one
func (h *Handlers) ChangePassword(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			util.RespondUnauthorized(c, "current password is incorrect")
			return
		}
		util.RespondInternalError(c, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// Me returns the authenticated user's own profile
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
}

// notifyAdminsOfNewUser emails every admin about a pending registration.
// Delivery failures are logged, never surfaced to the registrant.
func (h *Handlers) notifyAdminsOfNewUser(username, userEmail string) {
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
		if err := h.email.SendAdminNewUserEmail(ctx, admin.Email, username, userEmail); err != nil {
			logger.ErrorWithFields("failed to send new user notification", err,
				logger.WithUserID(admin.ID),
			)
		}
	}
}
