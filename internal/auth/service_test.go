package auth

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/models"
)

// AuthServiceTestSuite contains auth service tests
type AuthServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	authService *Service
	ctx         context.Context
}

func (suite *AuthServiceTestSuite) SetupSuite() {
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "postgres")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "")
	dbname := getEnvOrDefault("POSTGRES_DB", "agenthub_test")

	testDSN := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		testDSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping auth tests: database not available (%v)", err)
		return
	}

	database.DB = db

	require.NoError(suite.T(), db.AutoMigrate(&models.User{}))

	suite.db = db
	// nil email service: codes surface through dev_expose_otp
	suite.authService = NewService([]byte("test_jwt_secret_key"), nil, 5, 24, true)
	suite.ctx = context.Background()
}

func (suite *AuthServiceTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS users CASCADE")
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM users")
}

// registerActive registers a user and flips them active, as an admin would
func (suite *AuthServiceTestSuite) registerActive(email, username, password string) *models.User {
	user, err := suite.authService.Register(RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.Model(user).Update("is_active", true).Error)
	user.IsActive = true
	return user
}

func (suite *AuthServiceTestSuite) TestRegisterStartsInactive() {
	t := suite.T()

	user, err := suite.authService.Register(RegisterRequest{
		Email:    "new@example.com",
		Username: "newuser",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.Contains(t, user.Roles, models.RoleUser)

	// Duplicate email
	_, err = suite.authService.Register(RegisterRequest{
		Email:    "NEW@example.com",
		Username: "otheruser",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	// Duplicate username
	_, err = suite.authService.Register(RegisterRequest{
		Email:    "other@example.com",
		Username: "NewUser",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func (suite *AuthServiceTestSuite) TestInactiveUserCannotLogin() {
	t := suite.T()

	_, err := suite.authService.Register(RegisterRequest{
		Email:    "pending@example.com",
		Username: "pending",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "pending@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func (suite *AuthServiceTestSuite) TestLoginFlow() {
	t := suite.T()
	suite.registerActive("active@example.com", "active", "password123")

	// Wrong password
	_, err := suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "active@example.com",
		Password: "wrongpassword",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user
	_, err = suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "ghost@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Correct password issues a challenge with a dev-exposed code
	challenge, err := suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "active@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.Len(t, challenge.DevCode, 6)
	assert.True(t, challenge.ExpiresAt.After(time.Now()))

	// Wrong code
	_, err = suite.authService.VerifyOTP(VerifyRequest{
		Email: "active@example.com",
		Code:  "000000",
	})
	assert.ErrorIs(t, err, ErrInvalidOTP)

	// Correct code issues a token
	resp, err := suite.authService.VerifyOTP(VerifyRequest{
		Email: "active@example.com",
		Code:  challenge.DevCode,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotNil(t, resp.User.LastActiveAt)

	// Codes are single-use
	_, err = suite.authService.VerifyOTP(VerifyRequest{
		Email: "active@example.com",
		Code:  challenge.DevCode,
	})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func (suite *AuthServiceTestSuite) TestExpiredCodeRejected() {
	t := suite.T()
	user := suite.registerActive("expired@example.com", "expired", "password123")

	challenge, err := suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "expired@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, suite.db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("otp_expires_at", past).Error)

	_, err = suite.authService.VerifyOTP(VerifyRequest{
		Email: "expired@example.com",
		Code:  challenge.DevCode,
	})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func (suite *AuthServiceTestSuite) TestValidateToken() {
	t := suite.T()
	suite.registerActive("token@example.com", "tokenuser", "password123")

	challenge, err := suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "token@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	resp, err := suite.authService.VerifyOTP(VerifyRequest{
		Email: "token@example.com",
		Code:  challenge.DevCode,
	})
	require.NoError(t, err)

	validated, err := suite.authService.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, validated.ID)

	// Garbage token
	_, err = suite.authService.ValidateToken("not.a.token")
	assert.Error(t, err)

	// Deactivated after issuance: token no longer valid
	require.NoError(t, suite.db.Model(&models.User{}).Where("id = ?", resp.User.ID).
		Update("is_active", false).Error)
	_, err = suite.authService.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrUserInactive)
}

func (suite *AuthServiceTestSuite) TestChangePassword() {
	t := suite.T()
	user := suite.registerActive("change@example.com", "change", "oldpassword")

	err := suite.authService.ChangePassword(user.ID, "wrongpassword", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, suite.authService.ChangePassword(user.ID, "oldpassword", "newpassword1"))

	_, err = suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "change@example.com",
		Password: "oldpassword",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.authService.InitiateLogin(suite.ctx, LoginRequest{
		Email:    "change@example.com",
		Password: "newpassword1",
	})
	assert.NoError(t, err)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
