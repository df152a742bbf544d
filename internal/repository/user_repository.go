package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/agenthub/backend/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUserActive   = errors.New("user is already active")
)

// UserRepository handles all database operations for users
type UserRepository interface {
	// User CRUD
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// Lifecycle
	ListPendingUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)
	ApproveUser(ctx context.Context, userID, adminID string) (*models.User, error)
	DeactivateUser(ctx context.Context, userID string) (*models.User, error)
	RejectPendingUser(ctx context.Context, userID string) error
	PromoteToAdmin(ctx context.Context, userID string) (*models.User, error)

	// Queries
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)
	ListAdmins(ctx context.Context) ([]*models.User, error)
	GetTotalUserCount(ctx context.Context) (int64, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateUser creates a new user
func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// GetUser gets a user by ID
func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, err
}

// GetUserByEmail gets a user by email (case-insensitive)
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, err
}

// GetUserByUsername gets a user by username (case-insensitive)
func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, err
}

// UpdateUser saves changes to a user
func (r *userRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// ListPendingUsers returns users awaiting activation, oldest first
func (r *userRepository) ListPendingUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("is_active = ?", false).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*models.User
	err := r.db.WithContext(ctx).
		Where("is_active = ?", false).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	return users, total, err
}

// ApproveUser activates a pending user and records who approved them.
// Approving an already-active user is a no-op error so callers can 409.
func (r *userRepository) ApproveUser(ctx context.Context, userID, adminID string) (*models.User, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return nil, ErrUserActive
	}

	now := time.Now().UTC()
	user.IsActive = true
	user.ApprovedBy = &adminID
	user.ApprovedAt = &now
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateUser flips an active user to inactive. Their content stays; they
// can no longer authenticate until re-approved.
func (r *userRepository) DeactivateUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.IsActive = false
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// RejectPendingUser permanently removes a user that was never activated.
// Active users cannot be rejected, only deactivated.
func (r *userRepository) RejectPendingUser(ctx context.Context, userID string) error {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsActive {
		return ErrUserActive
	}

	return r.db.WithContext(ctx).Unscoped().Delete(user).Error
}

// PromoteToAdmin grants the admin role, activating the account if needed
func (r *userRepository) PromoteToAdmin(ctx context.Context, userID string) (*models.User, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.HasRole(models.RoleAdmin) {
		user.Roles = append(user.Roles, models.RoleAdmin)
	}
	user.IsActive = true
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users, newest first
func (r *userRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*models.User
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	return users, total, err
}

// ListAdmins returns every user holding the admin role. roles is text[]
// on postgres, where LIKE does not apply; sqlite stores it as plain text.
func (r *userRepository) ListAdmins(ctx context.Context) ([]*models.User, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Where("? = ANY(roles)", models.RoleAdmin)
	} else {
		query = query.Where("roles LIKE ?", "%"+models.RoleAdmin+"%")
	}

	var users []*models.User
	err := query.Find(&users).Error
	return users, err
}

// GetTotalUserCount returns the total number of users
func (r *userRepository) GetTotalUserCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}
