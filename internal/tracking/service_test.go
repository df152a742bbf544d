package tracking

import (
	"context"
	"fmt"
	"os"
	"strings"
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

// TrackingServiceTestSuite contains engagement tracking tests
type TrackingServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service
	ctx     context.Context
}

func (suite *TrackingServiceTestSuite) SetupSuite() {
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
		suite.T().Skipf("Skipping tracking tests: database not available (%v)", err)
		return
	}

	database.DB = db

	err = db.AutoMigrate(
		&models.User{},
		&models.Agent{},
		&models.AgentView{},
		&models.AgentClick{},
		&models.AgentSession{},
		&models.AgentRating{},
		&models.AgentReview{},
	)
	require.NoError(suite.T(), err)

	// Upsert paths depend on the pair uniqueness constraints
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_ratings_unique ON agent_ratings (agent_id, user_id)")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_reviews_unique ON agent_reviews (agent_id, user_id)")

	suite.db = db
	suite.service = NewService(db)
	suite.ctx = context.Background()
}

func (suite *TrackingServiceTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS agent_views, agent_clicks, agent_sessions, agent_ratings, agent_reviews, agents, users CASCADE")
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *TrackingServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM agent_views")
	suite.db.Exec("DELETE FROM agent_clicks")
	suite.db.Exec("DELETE FROM agent_sessions")
	suite.db.Exec("DELETE FROM agent_ratings")
	suite.db.Exec("DELETE FROM agent_reviews")
	suite.db.Exec("DELETE FROM agents")
	suite.db.Exec("DELETE FROM users")
}

func (suite *TrackingServiceTestSuite) createUser(username string) *models.User {
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(suite.T(), suite.db.Create(user).Error)
	return user
}

func (suite *TrackingServiceTestSuite) createAgent(author *models.User, status models.AgentStatus) *models.Agent {
	agent := &models.Agent{
		Name:        "Invoice Classifier",
		Description: "Classifies invoices into expense categories",
		AppURL:      "https://agents.example.com/invoices",
		Category:    models.CategoryFinance,
		Status:      status,
		AuthorID:    author.ID,
	}
	require.NoError(suite.T(), suite.db.Create(agent).Error)
	return agent
}

func (suite *TrackingServiceTestSuite) TestRecordViewCountsOncePerHour() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	counted, err := suite.service.RecordView(suite.ctx, agent.ID, viewer.ID)
	require.NoError(t, err)
	assert.True(t, counted)

	// Second view inside the window is acknowledged but not counted
	counted, err = suite.service.RecordView(suite.ctx, agent.ID, viewer.ID)
	require.NoError(t, err)
	assert.False(t, counted)

	var reloaded models.Agent
	require.NoError(t, suite.db.First(&reloaded, "id = ?", agent.ID).Error)
	assert.Equal(t, int64(1), reloaded.ViewCount)

	var viewRows int64
	suite.db.Model(&models.AgentView{}).Where("agent_id = ?", agent.ID).Count(&viewRows)
	assert.Equal(t, int64(1), viewRows)
}

func (suite *TrackingServiceTestSuite) TestRecordViewCountsAgainAfterWindow() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	stale := models.AgentView{
		AgentID:  agent.ID,
		UserID:   viewer.ID,
		ViewedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, suite.db.Create(&stale).Error)

	counted, err := suite.service.RecordView(suite.ctx, agent.ID, viewer.ID)
	require.NoError(t, err)
	assert.True(t, counted)
}

func (suite *TrackingServiceTestSuite) TestRecordViewDifferentUsersBothCount() {
	t := suite.T()
	author := suite.createUser("author")
	a := suite.createUser("alice")
	b := suite.createUser("bob")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	counted, err := suite.service.RecordView(suite.ctx, agent.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, counted)
	counted, err = suite.service.RecordView(suite.ctx, agent.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, counted)

	var reloaded models.Agent
	require.NoError(t, suite.db.First(&reloaded, "id = ?", agent.ID).Error)
	assert.Equal(t, int64(2), reloaded.ViewCount)
}

func (suite *TrackingServiceTestSuite) TestRecordViewRejectsHiddenAgents() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	pending := suite.createAgent(author, models.AgentStatusPending)

	_, err := suite.service.RecordView(suite.ctx, pending.ID, viewer.ID)
	assert.ErrorIs(t, err, ErrAgentNotVisible)

	_, err = suite.service.RecordView(suite.ctx, "00000000-0000-0000-0000-000000000000", viewer.ID)
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func (suite *TrackingServiceTestSuite) TestRecordClick() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	click, err := suite.service.RecordClick(suite.ctx, agent.ID, viewer.ID, "new_tab", "catalog")
	require.NoError(t, err)
	assert.Equal(t, models.ClickNewTab, click.ClickType)

	// Clicks are never deduplicated
	_, err = suite.service.RecordClick(suite.ctx, agent.ID, viewer.ID, "new_tab", "catalog")
	require.NoError(t, err)

	var clickRows int64
	suite.db.Model(&models.AgentClick{}).Where("agent_id = ?", agent.ID).Count(&clickRows)
	assert.Equal(t, int64(2), clickRows)

	_, err = suite.service.RecordClick(suite.ctx, agent.ID, viewer.ID, "double_click", "")
	assert.Error(t, err)
}

func (suite *TrackingServiceTestSuite) TestRecordSessionDiscardsShortSessions() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	persisted, err := suite.service.RecordSession(suite.ctx, agent.ID, viewer.ID, 0.5)
	require.NoError(t, err)
	assert.False(t, persisted)

	persisted, err = suite.service.RecordSession(suite.ctx, agent.ID, viewer.ID, 1.0)
	require.NoError(t, err)
	assert.False(t, persisted)

	var rows int64
	suite.db.Model(&models.AgentSession{}).Count(&rows)
	assert.Equal(t, int64(0), rows)

	_, err = suite.service.RecordSession(suite.ctx, agent.ID, viewer.ID, -3)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func (suite *TrackingServiceTestSuite) TestRecordSessionReconstructsStart() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	persisted, err := suite.service.RecordSession(suite.ctx, agent.ID, viewer.ID, 90.5)
	require.NoError(t, err)
	assert.True(t, persisted)

	var session models.AgentSession
	require.NoError(t, suite.db.First(&session, "agent_id = ?", agent.ID).Error)
	assert.InDelta(t, 90.5, session.DurationSeconds, 0.001)
	assert.InDelta(t, 90.5, session.SessionEnd.Sub(session.SessionStart).Seconds(), 0.01)
}

func (suite *TrackingServiceTestSuite) TestRateUpsertsSingleRow() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	_, err := suite.service.Rate(suite.ctx, agent.ID, viewer.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = suite.service.Rate(suite.ctx, agent.ID, viewer.ID, 6)
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = suite.service.Rate(suite.ctx, agent.ID, viewer.ID, 4)
	require.NoError(t, err)
	_, err = suite.service.Rate(suite.ctx, agent.ID, viewer.ID, 2)
	require.NoError(t, err)

	var ratings []models.AgentRating
	require.NoError(t, suite.db.Where("agent_id = ?", agent.ID).Find(&ratings).Error)
	require.Len(t, ratings, 1)
	assert.Equal(t, 2, ratings[0].Rating)
}

func (suite *TrackingServiceTestSuite) TestUpsertReviewMirrorsRating() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	review, created, err := suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 5, "Excellent agent, saved hours of manual triage.")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 5, review.Rating)

	// Rating table mirrors the review's stars
	var rating models.AgentRating
	require.NoError(t, suite.db.First(&rating, "agent_id = ? AND user_id = ?", agent.ID, viewer.ID).Error)
	assert.Equal(t, 5, rating.Rating)

	// Backdate the write timestamp so the overwrite is observable
	require.NoError(t, suite.db.Model(&models.AgentReview{}).
		Where("id = ?", review.ID).
		Update("updated_at", time.Now().UTC().Add(-time.Hour)).Error)

	// Resubmission replaces in place
	review, created, err = suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 3, "Quality dropped after the last update.")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 3, review.Rating)

	var reviewRows int64
	suite.db.Model(&models.AgentReview{}).Where("agent_id = ?", agent.ID).Count(&reviewRows)
	assert.Equal(t, int64(1), reviewRows)

	var stored models.AgentReview
	require.NoError(t, suite.db.First(&stored, "agent_id = ? AND user_id = ?", agent.ID, viewer.ID).Error)
	assert.True(t, stored.UpdatedAt.After(stored.ReviewedAt), "updated_at should advance past reviewed_at on overwrite")

	require.NoError(t, suite.db.First(&rating, "agent_id = ? AND user_id = ?", agent.ID, viewer.ID).Error)
	assert.Equal(t, 3, rating.Rating)
}

func (suite *TrackingServiceTestSuite) TestUpsertReviewValidatesText() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	_, _, err := suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 4, "too short")
	assert.ErrorIs(t, err, ErrReviewTooShort)

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	_, _, err = suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 4, string(long))
	assert.ErrorIs(t, err, ErrReviewTooLong)
}

func (suite *TrackingServiceTestSuite) TestUpsertReviewCountsCharacters() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	// 400 characters, 1200 bytes: well within the character limit
	review, created, err := suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 4, strings.Repeat("あ", 400))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 400, len([]rune(review.ReviewText)))

	// 5 characters padded with whitespace: 15+ bytes but still too short
	_, _, err = suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 4, "   あいうえお     ")
	assert.ErrorIs(t, err, ErrReviewTooShort)

	// 1001 characters is over the limit even though each is multi-byte
	_, _, err = suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 4, strings.Repeat("あ", 1001))
	assert.ErrorIs(t, err, ErrReviewTooLong)
}

func (suite *TrackingServiceTestSuite) TestDeleteReviewKeepsRating() {
	t := suite.T()
	author := suite.createUser("author")
	viewer := suite.createUser("viewer")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	_, _, err := suite.service.UpsertReview(suite.ctx, agent.ID, viewer.ID, 4, "Solid agent for routine paperwork.")
	require.NoError(t, err)

	require.NoError(t, suite.service.DeleteReview(suite.ctx, agent.ID, viewer.ID))

	var reviewRows, ratingRows int64
	suite.db.Model(&models.AgentReview{}).Where("agent_id = ?", agent.ID).Count(&reviewRows)
	suite.db.Model(&models.AgentRating{}).Where("agent_id = ?", agent.ID).Count(&ratingRows)
	assert.Equal(t, int64(0), reviewRows)
	assert.Equal(t, int64(1), ratingRows)

	assert.ErrorIs(t, suite.service.DeleteReview(suite.ctx, agent.ID, viewer.ID), ErrReviewNotFound)
}

func (suite *TrackingServiceTestSuite) TestMarkHelpfulRejectsSelfVote() {
	t := suite.T()
	author := suite.createUser("author")
	reviewer := suite.createUser("reviewer")
	other := suite.createUser("other")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	review, _, err := suite.service.UpsertReview(suite.ctx, agent.ID, reviewer.ID, 5, "Best in its category by a wide margin.")
	require.NoError(t, err)

	_, err = suite.service.MarkHelpful(suite.ctx, review.ID, reviewer.ID)
	assert.ErrorIs(t, err, ErrSelfVote)

	updated, err := suite.service.MarkHelpful(suite.ctx, review.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.HelpfulCount)

	_, err = suite.service.MarkHelpful(suite.ctx, "00000000-0000-0000-0000-000000000000", other.ID)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func (suite *TrackingServiceTestSuite) TestRatingStats() {
	t := suite.T()
	author := suite.createUser("author")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	ratings := []int{5, 4, 4, 2}
	for i, r := range ratings {
		user := suite.createUser(fmt.Sprintf("rater%d", i))
		_, err := suite.service.Rate(suite.ctx, agent.ID, user.ID, r)
		require.NoError(t, err)
	}

	reviewer := suite.createUser("reviewer")
	_, _, err := suite.service.UpsertReview(suite.ctx, agent.ID, reviewer.ID, 3, "Average experience overall, decent output.")
	require.NoError(t, err)

	stats, err := suite.service.GetRatingStats(suite.ctx, agent.ID)
	require.NoError(t, err)

	// (5+4+4+2+3)/5 = 3.6
	assert.InDelta(t, 3.6, stats.AverageRating, 0.001)
	assert.Equal(t, int64(5), stats.RatingCount)
	assert.Equal(t, int64(1), stats.ReviewCount)
	assert.Equal(t, 1, stats.Distribution[5])
	assert.Equal(t, 2, stats.Distribution[4])
	assert.Equal(t, 1, stats.Distribution[3])
	assert.Equal(t, 1, stats.Distribution[2])
	assert.Equal(t, 0, stats.Distribution[1])
}

func (suite *TrackingServiceTestSuite) TestRatingStatsEmpty() {
	t := suite.T()
	author := suite.createUser("author")
	agent := suite.createAgent(author, models.AgentStatusApproved)

	stats, err := suite.service.GetRatingStats(suite.ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(0), stats.AverageRating)
	assert.Equal(t, int64(0), stats.RatingCount)
}

func TestTrackingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TrackingServiceTestSuite))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
