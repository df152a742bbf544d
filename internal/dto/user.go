package dto

import (
	"time"

	"github.com/agenthub/backend/internal/models"
)

// UserResponse is the public user representation (safe for API responses)
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDetailResponse includes private info for the user viewing their own
// profile and for admin listings
type UserDetailResponse struct {
	UserResponse
	Email        string     `json:"email"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// ChangePasswordRequest for authenticated password changes
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ToUserResponse converts models.User to UserResponse (excludes sensitive fields)
func ToUserResponse(user *models.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Roles:     user.Roles,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// ToUserDetailResponse converts models.User to UserDetailResponse
func ToUserDetailResponse(user *models.User) *UserDetailResponse {
	if user == nil {
		return nil
	}
	return &UserDetailResponse{
		UserResponse: *ToUserResponse(user),
		Email:        user.Email,
		ApprovedAt:   user.ApprovedAt,
		LastActiveAt: user.LastActiveAt,
	}
}

// ToUserResponses converts a slice of users
func ToUserResponses(users []*models.User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserResponse(u))
	}
	return out
}

// ToUserDetailResponses converts a slice of users with private fields
func ToUserDetailResponses(users []*models.User) []*UserDetailResponse {
	out := make([]*UserDetailResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserDetailResponse(u))
	}
	return out
}
