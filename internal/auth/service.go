package auth

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/hotp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/email"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/metrics"
	"github.com/agenthub/backend/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("account pending approval")
	ErrInvalidOTP         = errors.New("invalid or expired code")
)

// Service handles all authentication operations
type Service struct {
	jwtSecret        []byte
	emailService     *email.EmailService
	otpExpireMinutes int
	tokenExpireHours int
	devExposeOTP     bool
}

// NewService creates a new authentication service.
// emailService may be nil, in which case login codes are not delivered and
// devExposeOTP should be set so clients can complete the flow.
func NewService(jwtSecret []byte, emailService *email.EmailService, otpExpireMinutes, tokenExpireHours int, devExposeOTP bool) *Service {
	if otpExpireMinutes <= 0 {
		otpExpireMinutes = 5
	}
	if tokenExpireHours <= 0 {
		tokenExpireHours = 24
	}
	return &Service{
		jwtSecret:        jwtSecret,
		emailService:     emailService,
		otpExpireMinutes: otpExpireMinutes,
		tokenExpireHours: tokenExpireHours,
		devExposeOTP:     devExposeOTP,
	}
}

// AuthResponse represents a completed authentication
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// LoginChallenge is returned by the first login step. DevCode carries the
// one-time code only when dev_expose_otp is enabled; it is never set in
// production configurations.
type LoginChallenge struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
	DevCode   string    `json:"dev_code,omitempty"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=30"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the first step of login (password check, code issued)
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyRequest represents the second step of login (code check, token issued)
type VerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

// Register creates a new user account. Accounts start inactive and cannot
// log in until an administrator approves them.
func (s *Service) Register(req RegisterRequest) (*models.User, error) {
	var existing models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	err = database.DB.Where("LOWER(username) = LOWER(?)", req.Username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		Roles:        models.StringArray{models.RoleUser},
		IsActive:     false,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.Get().UserRegistrations.WithLabelValues("pending").Inc()
	return &user, nil
}

// InitiateLogin verifies the password and issues a one-time login code.
// The code is derived from a fresh per-login secret stored on the user row;
// the code itself is never persisted.
func (s *Service) InitiateLogin(ctx context.Context, req LoginRequest) (*LoginChallenge, error) {
	user, err := s.FindUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	secret, err := generateOTPSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate login code: %w", err)
	}

	code, err := hotp.GenerateCode(secret, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to generate login code: %w", err)
	}

	expiresAt := time.Now().UTC().Add(time.Duration(s.otpExpireMinutes) * time.Minute)
	updates := map[string]interface{}{
		"otp_secret":     secret,
		"otp_expires_at": expiresAt,
	}
	if err := database.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to store login challenge: %w", err)
	}

	challenge := &LoginChallenge{
		Message:   "verification code sent",
		ExpiresAt: expiresAt,
	}

	if s.emailService != nil {
		if err := s.emailService.SendLoginCodeEmail(ctx, user.Email, code, s.otpExpireMinutes); err != nil {
			logger.ErrorWithFields("failed to send login code email", err,
				logger.WithUserID(user.ID),
			)
			// fall through: dev_expose_otp installs still work
		} else {
			metrics.Get().OTPIssued.WithLabelValues("email").Inc()
		}
	}

	if s.devExposeOTP {
		challenge.DevCode = code
		metrics.Get().OTPIssued.WithLabelValues("dev").Inc()
	}

	return challenge, nil
}

// VerifyOTP checks the one-time code and, on success, clears the challenge
// and issues a JWT. Codes are single-use: a successful verification always
// invalidates the stored secret.
func (s *Service) VerifyOTP(req VerifyRequest) (*AuthResponse, error) {
	user, err := s.FindUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if user.OTPSecret == nil || user.OTPExpiresAt == nil {
		metrics.Get().OTPVerifications.WithLabelValues("no_challenge").Inc()
		return nil, ErrInvalidOTP
	}
	if time.Now().UTC().After(*user.OTPExpiresAt) {
		metrics.Get().OTPVerifications.WithLabelValues("expired").Inc()
		return nil, ErrInvalidOTP
	}

	expected, err := hotp.GenerateCode(*user.OTPSecret, 1)
	if err != nil || expected != req.Code {
		metrics.Get().OTPVerifications.WithLabelValues("mismatch").Inc()
		return nil, ErrInvalidOTP
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"otp_secret":     nil,
		"otp_expires_at": nil,
		"last_active_at": now,
	}
	if err := database.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to clear login challenge: %w", err)
	}
	user.OTPSecret = nil
	user.OTPExpiresAt = nil
	user.LastActiveAt = &now

	metrics.Get().OTPVerifications.WithLabelValues("success").Inc()
	return s.generateAuthResponse(user)
}

// FindUserByEmail finds a user by email (case-insensitive)
func (s *Service) FindUserByEmail(emailAddr string) (*models.User, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", emailAddr).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// ChangePassword verifies the current password and replaces it
func (s *Service) ChangePassword(userID, currentPassword, newPassword string) error {
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return database.DB.Model(&user).Update("password_hash", string(hashedPassword)).Error
}

// RefreshToken issues a new token for an already-authenticated user
func (s *Service) RefreshToken(user *models.User) (*AuthResponse, error) {
	return s.generateAuthResponse(user)
}

// generateAuthResponse creates JWT token and auth response
func (s *Service) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	expiresAt := time.Now().Add(time.Duration(s.tokenExpireHours) * time.Hour)

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"is_admin": user.IsAdmin(),
		"exp":      expiresAt.Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns fresh user data.
// Users deactivated after the token was issued are rejected here.
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid user_id in token")
	}

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return &user, nil
}

// generateOTPSecret returns a random base32 secret for HOTP derivation
func generateOTPSecret() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
