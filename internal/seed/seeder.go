package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/models"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with a realistic catalog:
// an admin, a mix of active and pending users, agents in every state,
// and engagement events against the approved ones.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Seeding users...")
	users, err := s.seedUsers(40)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Seeding agents...")
	agents, err := s.seedAgents(users, 60)
	if err != nil {
		return fmt.Errorf("failed to seed agents: %w", err)
	}

	logger.Log.Info("Seeding engagement...")
	if err := s.seedEngagement(users, agents); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}

	logger.Log.Info("Seed complete",
		zap.Int("users", len(users)),
		zap.Int("agents", len(agents)),
	)
	return nil
}

// seedUsers creates one known admin plus n random users. Roughly one in
// five stays pending so the admin approval screens have content.
func (s *Seeder) seedUsers(n int) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	admin := models.User{
		Email:        "admin@agenthub.dev",
		Username:     "admin",
		PasswordHash: string(hash),
		Roles:        models.StringArray{models.RoleUser, models.RoleAdmin},
		IsActive:     true,
		ApprovedAt:   &now,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return nil, err
	}

	users := []models.User{admin}
	for i := 0; i < n; i++ {
		active := rand.Intn(5) != 0
		user := models.User{
			Email:        gofakeit.Email(),
			Username:     fmt.Sprintf("%s%d", gofakeit.Username(), i),
			PasswordHash: string(hash),
			Roles:        models.StringArray{models.RoleUser},
			IsActive:     active,
		}
		if active {
			approvedAt := now.Add(-time.Duration(rand.Intn(90*24)) * time.Hour)
			user.ApprovedBy = &admin.ID
			user.ApprovedAt = &approvedAt
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// seedAgents creates n agents across all categories: ~70% approved,
// ~20% pending, ~10% rejected
func (s *Seeder) seedAgents(users []models.User, n int) ([]models.Agent, error) {
	admin := users[0]
	var agents []models.Agent

	for i := 0; i < n; i++ {
		author := users[rand.Intn(len(users))]
		category := models.AllCategories[rand.Intn(len(models.AllCategories))]

		agent := models.Agent{
			Name:        fmt.Sprintf("%s %s Agent", gofakeit.Company(), gofakeit.HackerNoun()),
			Description: gofakeit.Paragraph(1, 3, 12, " "),
			AppURL:      gofakeit.URL(),
			Category:    category,
			AuthorID:    author.ID,
		}

		switch roll := rand.Intn(10); {
		case roll < 7:
			approvedAt := time.Now().UTC().Add(-time.Duration(rand.Intn(60*24)) * time.Hour)
			agent.Status = models.AgentStatusApproved
			agent.ApprovedBy = &admin.ID
			agent.ApprovedAt = &approvedAt
		case roll < 9:
			agent.Status = models.AgentStatusPending
		default:
			agent.Status = models.AgentStatusRejected
			agent.RejectionReason = gofakeit.Sentence(8)
		}

		if err := s.db.Create(&agent).Error; err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// seedEngagement generates views, clicks, sessions, ratings, and reviews
// against approved agents from active users
func (s *Seeder) seedEngagement(users []models.User, agents []models.Agent) error {
	clickTypes := []models.ClickType{models.ClickModalOpen, models.ClickNewTab, models.ClickExternalLink}

	var activeUsers []models.User
	for _, u := range users {
		if u.IsActive {
			activeUsers = append(activeUsers, u)
		}
	}

	for _, agent := range agents {
		if agent.Status != models.AgentStatusApproved {
			continue
		}

		viewers := rand.Intn(len(activeUsers))
		for v := 0; v < viewers; v++ {
			user := activeUsers[rand.Intn(len(activeUsers))]
			viewedAt := time.Now().UTC().Add(-time.Duration(rand.Intn(30*24)) * time.Hour)

			view := models.AgentView{AgentID: agent.ID, UserID: user.ID, ViewedAt: viewedAt}
			if err := s.db.Create(&view).Error; err != nil {
				return err
			}
			if err := s.db.Model(&models.Agent{}).Where("id = ?", agent.ID).
				UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
				return err
			}

			if rand.Intn(2) == 0 {
				click := models.AgentClick{
					AgentID:   agent.ID,
					UserID:    user.ID,
					ClickType: clickTypes[rand.Intn(len(clickTypes))],
				}
				if err := s.db.Create(&click).Error; err != nil {
					return err
				}
			}

			if rand.Intn(3) == 0 {
				duration := 2 + rand.Float64()*600
				end := viewedAt.Add(time.Duration(duration * float64(time.Second)))
				session := models.AgentSession{
					AgentID:         agent.ID,
					UserID:          user.ID,
					SessionStart:    viewedAt,
					SessionEnd:      end,
					DurationSeconds: duration,
				}
				if err := s.db.Create(&session).Error; err != nil {
					return err
				}
			}

			if rand.Intn(3) == 0 {
				rating := 1 + rand.Intn(5)
				if err := s.upsertRating(agent.ID, user.ID, rating, viewedAt); err != nil {
					return err
				}

				if rand.Intn(2) == 0 {
					review := models.AgentReview{
						AgentID:      agent.ID,
						UserID:       user.ID,
						Rating:       rating,
						ReviewText:   gofakeit.Paragraph(1, 2, 10, " "),
						HelpfulCount: rand.Intn(20),
						ReviewedAt:   viewedAt,
					}
					err := s.db.Clauses(clause.OnConflict{
						Columns:   []clause.Column{{Name: "agent_id"}, {Name: "user_id"}},
						DoUpdates: clause.AssignmentColumns([]string{"rating", "review_text"}),
					}).Create(&review).Error
					if err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (s *Seeder) upsertRating(agentID, userID string, rating int, ratedAt time.Time) error {
	row := models.AgentRating{
		AgentID: agentID,
		UserID:  userID,
		Rating:  rating,
		RatedAt: ratedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "rated_at"}),
	}).Create(&row).Error
}
