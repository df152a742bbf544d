package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agenthub/backend/internal/auth"
	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/models"
	"github.com/agenthub/backend/internal/repository"
	"github.com/agenthub/backend/internal/tracking"
)

// HandlersTestSuite exercises the HTTP surface: catalog visibility rules
// and the moderation state machines
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	handlers *Handlers
	router   *gin.Engine

	admin       *models.User
	author      *models.User
	currentUser **models.User
}

// identity injects a user into the request context the way the auth
// middleware would
func identity(user **models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if *user != nil {
			c.Set("user", *user)
			c.Set("user_id", (*user).ID)
		}
		c.Next()
	}
}

func (suite *HandlersTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

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
		suite.T().Skipf("Skipping handler tests: database not available (%v)", err)
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
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_ratings_unique ON agent_ratings (agent_id, user_id)")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_reviews_unique ON agent_reviews (agent_id, user_id)")

	suite.db = db

	authService := auth.NewService([]byte("test_jwt_secret_key"), nil, 5, 24, true)
	trackingService := tracking.NewService(db)
	userRepo := repository.NewUserRepository(db)
	suite.handlers = NewHandlers(authService, trackingService, userRepo)

	var current *models.User
	r := gin.New()
	r.Use(identity(&current))
	r.GET("/agents", suite.handlers.ListAgents)
	r.GET("/agents/:id", suite.handlers.GetAgent)
	r.POST("/agents", suite.handlers.CreateAgent)
	r.POST("/agents/:id/approve", suite.handlers.ApproveAgent)
	r.POST("/agents/:id/reject", suite.handlers.RejectAgent)
	r.POST("/agents/:id/click", suite.handlers.RecordAgentClick)
	r.PUT("/agents/:id/reviews", suite.handlers.SubmitAgentReview)
	r.GET("/agents/:id/rating-stats", suite.handlers.GetAgentRatingStats)
	suite.router = r
	// currentUser lets each test pick the acting identity
	suite.currentUser = &current
}

func (suite *HandlersTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS agent_views, agent_clicks, agent_sessions, agent_ratings, agent_reviews, agents, users CASCADE")
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *HandlersTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM agent_views")
	suite.db.Exec("DELETE FROM agent_clicks")
	suite.db.Exec("DELETE FROM agent_ratings")
	suite.db.Exec("DELETE FROM agent_reviews")
	suite.db.Exec("DELETE FROM agents")
	suite.db.Exec("DELETE FROM users")

	suite.admin = suite.createUser("admin", true, true)
	suite.author = suite.createUser("author", true, false)
	*suite.currentUser = nil
}

func (suite *HandlersTestSuite) createUser(username string, active, isAdmin bool) *models.User {
	roles := models.StringArray{models.RoleUser}
	if isAdmin {
		roles = append(roles, models.RoleAdmin)
	}
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "x",
		Roles:        roles,
		IsActive:     active,
	}
	require.NoError(suite.T(), suite.db.Create(user).Error)
	return user
}

func (suite *HandlersTestSuite) createAgent(status models.AgentStatus) *models.Agent {
	agent := &models.Agent{
		Name:        "Claims Triage Agent",
		Description: "Routes insurance claims to the right adjuster queue",
		AppURL:      "https://agents.example.com/claims",
		Category:    models.CategoryInsurance,
		Status:      status,
		AuthorID:    suite.author.ID,
	}
	require.NoError(suite.T(), suite.db.Create(agent).Error)
	return agent
}

func (suite *HandlersTestSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) TestCatalogListsOnlyApproved() {
	t := suite.T()
	suite.createAgent(models.AgentStatusApproved)
	suite.createAgent(models.AgentStatusPending)
	suite.createAgent(models.AgentStatusRejected)

	w := suite.do("GET", "/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Agents []map[string]interface{} `json:"agents"`
		Total  int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Agents, 1)
	assert.Equal(t, "approved", resp.Agents[0]["status"])
}

func (suite *HandlersTestSuite) TestHiddenAgentIs404ForStrangers() {
	t := suite.T()
	pending := suite.createAgent(models.AgentStatusPending)

	// Anonymous: hidden
	w := suite.do("GET", "/agents/"+pending.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// A different user: still hidden
	stranger := suite.createUser("stranger", true, false)
	*suite.currentUser = stranger
	w = suite.do("GET", "/agents/"+pending.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The author sees their own pending submission
	*suite.currentUser = suite.author
	w = suite.do("GET", "/agents/"+pending.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Admins see everything
	*suite.currentUser = suite.admin
	w = suite.do("GET", "/agents/"+pending.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func (suite *HandlersTestSuite) TestSubmissionStartsPending() {
	t := suite.T()
	*suite.currentUser = suite.author

	w := suite.do("POST", "/agents", map[string]string{
		"name":        "Contract Review Agent",
		"description": "Reads vendor contracts and flags unusual clauses",
		"app_url":     "https://agents.example.com/contracts",
		"category":    "business",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp["status"])

	// Unknown category rejected
	w = suite.do("POST", "/agents", map[string]string{
		"name":        "Mystery Agent",
		"description": "An agent with a category nobody has heard of",
		"app_url":     "https://agents.example.com/mystery",
		"category":    "astrology",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestModerationIsTerminal() {
	t := suite.T()
	agent := suite.createAgent(models.AgentStatusPending)
	*suite.currentUser = suite.admin

	w := suite.do("POST", "/agents/"+agent.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Agent
	require.NoError(t, suite.db.First(&reloaded, "id = ?", agent.ID).Error)
	assert.Equal(t, models.AgentStatusApproved, reloaded.Status)
	assert.NotNil(t, reloaded.ApprovedAt)

	// Already decided: both transitions conflict
	w = suite.do("POST", "/agents/"+agent.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = suite.do("POST", "/agents/"+agent.ID+"/reject", map[string]string{"reason": "changed my mind"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func (suite *HandlersTestSuite) TestRejectReasonIsOptional() {
	t := suite.T()
	*suite.currentUser = suite.admin

	// No reason at all is a valid rejection
	bare := suite.createAgent(models.AgentStatusPending)
	w := suite.do("POST", "/agents/"+bare.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Agent
	require.NoError(t, suite.db.First(&reloaded, "id = ?", bare.ID).Error)
	assert.Equal(t, models.AgentStatusRejected, reloaded.Status)
	assert.Empty(t, reloaded.RejectionReason)

	// A reason, when given, is stored with the agent
	reasoned := suite.createAgent(models.AgentStatusPending)
	w = suite.do("POST", "/agents/"+reasoned.ID+"/reject", map[string]string{"reason": "dead app link"})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, suite.db.First(&reloaded, "id = ?", reasoned.ID).Error)
	assert.Equal(t, models.AgentStatusRejected, reloaded.Status)
	assert.Equal(t, "dead app link", reloaded.RejectionReason)
}

func (suite *HandlersTestSuite) TestGetAgentCountsView() {
	t := suite.T()
	agent := suite.createAgent(models.AgentStatusApproved)

	// Anonymous reads record nothing
	w := suite.do("GET", "/agents/"+agent.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var viewRows int64
	suite.db.Model(&models.AgentView{}).Where("agent_id = ?", agent.ID).Count(&viewRows)
	assert.Equal(t, int64(0), viewRows)

	// Signed-in reads count, once per rolling hour
	viewer := suite.createUser("viewer", true, false)
	*suite.currentUser = viewer
	w = suite.do("GET", "/agents/"+agent.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = suite.do("GET", "/agents/"+agent.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	suite.db.Model(&models.AgentView{}).Where("agent_id = ?", agent.ID).Count(&viewRows)
	assert.Equal(t, int64(1), viewRows)

	var reloaded models.Agent
	require.NoError(t, suite.db.First(&reloaded, "id = ?", agent.ID).Error)
	assert.Equal(t, int64(1), reloaded.ViewCount)
}

func (suite *HandlersTestSuite) TestClickReturnsAck() {
	t := suite.T()
	agent := suite.createAgent(models.AgentStatusApproved)
	viewer := suite.createUser("viewer", true, false)
	*suite.currentUser = viewer

	w := suite.do("POST", "/agents/"+agent.ID+"/click", map[string]string{"click_type": "new_tab"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "click recorded", resp["message"])
	assert.Equal(t, "new_tab", resp["click_type"])
	// The ack stays small: no event row echoed back
	assert.NotContains(t, resp, "id")
	assert.NotContains(t, resp, "user_id")

	var clickRows int64
	suite.db.Model(&models.AgentClick{}).Where("agent_id = ?", agent.ID).Count(&clickRows)
	assert.Equal(t, int64(1), clickRows)
}

func (suite *HandlersTestSuite) TestReviewRoundTrip() {
	t := suite.T()
	agent := suite.createAgent(models.AgentStatusApproved)
	reviewer := suite.createUser("reviewer", true, false)
	*suite.currentUser = reviewer

	w := suite.do("PUT", "/agents/"+agent.ID+"/reviews", map[string]interface{}{
		"rating":      5,
		"review_text": "Handles every claim format we threw at it.",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Resubmission replaces, not duplicates
	w = suite.do("PUT", "/agents/"+agent.ID+"/reviews", map[string]interface{}{
		"rating":      4,
		"review_text": "Still good, though the latest update is slower.",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = suite.do("GET", "/agents/"+agent.ID+"/rating-stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, float64(4), stats["average_rating"])
	assert.Equal(t, float64(1), stats["rating_count"])
	assert.Equal(t, float64(1), stats["review_count"])
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
