package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agenthub/backend/internal/cache"
	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/metrics"
	"github.com/agenthub/backend/internal/models"
)

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrAgentNotVisible = errors.New("agent is not approved")
	ErrReviewNotFound  = errors.New("review not found")
	ErrNotReviewOwner  = errors.New("review belongs to another user")
	ErrSelfVote        = errors.New("cannot vote on your own review")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrReviewTooShort  = errors.New("review text must be at least 10 characters")
	ErrReviewTooLong   = errors.New("review text must be at most 1000 characters")
)

// Views from the same user within this window count once
const viewDedupWindow = time.Hour

// Sessions at or below this length are treated as accidental opens
const minSessionSeconds = 1.0

// Service records engagement events and aggregates rating statistics.
// All write paths operate on approved agents only.
type Service struct {
	db *gorm.DB
}

// NewService creates a tracking service backed by the given DB handle.
// Pass nil to use the global connection.
func NewService(db *gorm.DB) *Service {
	if db == nil {
		db = database.DB
	}
	return &Service{db: db}
}

// RatingStats is the aggregate rating summary for one agent
type RatingStats struct {
	AgentID       string      `json:"agent_id"`
	AverageRating float64     `json:"average_rating"`
	RatingCount   int64       `json:"rating_count"`
	ReviewCount   int64       `json:"review_count"`
	Distribution  map[int]int `json:"distribution"`
}

// visibleAgent loads an agent and verifies it is approved
func (s *Service) visibleAgent(agentID string) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.First(&agent, "id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !agent.IsApproved() {
		return nil, ErrAgentNotVisible
	}
	return &agent, nil
}

// RecordView counts a view of an agent by a user. A user contributes at most
// one counted view per agent per rolling hour; the event row and the
// materialized counter are written in one transaction so they cannot drift.
// Returns true when the view was counted, false when deduplicated.
func (s *Service) RecordView(ctx context.Context, agentID, userID string) (bool, error) {
	agent, err := s.visibleAgent(agentID)
	if err != nil {
		return false, err
	}

	counted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cutoff := time.Now().UTC().Add(-viewDedupWindow)

		var recent int64
		if err := tx.Model(&models.AgentView{}).
			Where("agent_id = ? AND user_id = ? AND viewed_at > ?", agentID, userID, cutoff).
			Count(&recent).Error; err != nil {
			return err
		}
		if recent > 0 {
			return nil
		}

		view := models.AgentView{
			AgentID:  agentID,
			UserID:   userID,
			ViewedAt: time.Now().UTC(),
		}
		if err := tx.Create(&view).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Agent{}).
			Where("id = ?", agentID).
			UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
			return err
		}

		counted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record view: %w", err)
	}

	if counted {
		metrics.Get().AgentViewsTotal.WithLabelValues(string(agent.Category)).Inc()
	} else {
		metrics.Get().AgentViewsDeduped.WithLabelValues(string(agent.Category)).Inc()
	}
	return counted, nil
}

// RecordClick stores a click event. Clicks are never deduplicated; every
// interaction is kept for analytics.
func (s *Service) RecordClick(ctx context.Context, agentID, userID, clickType, referrer string) (*models.AgentClick, error) {
	if !models.ValidClickType(clickType) {
		return nil, fmt.Errorf("invalid click type %q", clickType)
	}

	if _, err := s.visibleAgent(agentID); err != nil {
		return nil, err
	}

	click := models.AgentClick{
		AgentID:   agentID,
		UserID:    userID,
		ClickType: models.ClickType(clickType),
		Referrer:  referrer,
	}
	if err := s.db.WithContext(ctx).Create(&click).Error; err != nil {
		return nil, fmt.Errorf("failed to record click: %w", err)
	}

	metrics.Get().AgentClicksTotal.WithLabelValues(clickType).Inc()
	return &click, nil
}

// RecordSession stores how long a user kept an agent open. The client reports
// only the duration; the start time is reconstructed as now minus duration.
// Sessions of one second or less are discarded and the call reports false.
func (s *Service) RecordSession(ctx context.Context, agentID, userID string, durationSeconds float64) (bool, error) {
	if durationSeconds < 0 {
		return false, ErrInvalidDuration
	}

	agent, err := s.visibleAgent(agentID)
	if err != nil {
		return false, err
	}

	if durationSeconds <= minSessionSeconds {
		metrics.Get().SessionsDiscarded.WithLabelValues(string(agent.Category)).Inc()
		return false, nil
	}

	end := time.Now().UTC()
	session := models.AgentSession{
		AgentID:         agentID,
		UserID:          userID,
		SessionStart:    end.Add(-time.Duration(durationSeconds * float64(time.Second))),
		SessionEnd:      end,
		DurationSeconds: durationSeconds,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return false, fmt.Errorf("failed to record session: %w", err)
	}

	metrics.Get().AgentSessionsTotal.WithLabelValues(string(agent.Category)).Inc()
	return true, nil
}

// Rate stores a bare star rating, one row per (agent, user). Resubmitting
// overwrites the previous value. Reviews are untouched; a user can hold a
// rating without a review.
func (s *Service) Rate(ctx context.Context, agentID, userID string, rating int) (*models.AgentRating, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	if _, err := s.visibleAgent(agentID); err != nil {
		return nil, err
	}

	row := models.AgentRating{
		AgentID: agentID,
		UserID:  userID,
		Rating:  rating,
		RatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "rated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store rating: %w", err)
	}

	cache.InvalidateRatingStats(ctx, agentID)
	metrics.Get().RatingsSubmitted.WithLabelValues(fmt.Sprintf("%d", rating)).Inc()
	return &row, nil
}

// UpsertReview creates or replaces the user's review of an agent. The rating
// carried on the review is mirrored into the ratings table so aggregates see
// one source of truth. Returns the review and whether it was newly created.
func (s *Service) UpsertReview(ctx context.Context, agentID, userID string, rating int, reviewText string) (*models.AgentReview, bool, error) {
	if rating < 1 || rating > 5 {
		return nil, false, ErrInvalidRating
	}
	// Length bounds are in characters, not bytes
	reviewText = strings.TrimSpace(reviewText)
	if utf8.RuneCountInString(reviewText) < 10 {
		return nil, false, ErrReviewTooShort
	}
	if utf8.RuneCountInString(reviewText) > 1000 {
		return nil, false, ErrReviewTooLong
	}

	if _, err := s.visibleAgent(agentID); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	var review models.AgentReview
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("agent_id = ? AND user_id = ?", agentID, userID).First(&review).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			review = models.AgentReview{
				AgentID:    agentID,
				UserID:     userID,
				Rating:     rating,
				ReviewText: reviewText,
				ReviewedAt: now,
			}
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		default:
			review.Rating = rating
			review.ReviewText = reviewText
			review.UpdatedAt = now
			if err := tx.Save(&review).Error; err != nil {
				return err
			}
		}

		// Mirror into the ratings table
		mirrored := models.AgentRating{
			AgentID: agentID,
			UserID:  userID,
			Rating:  rating,
			RatedAt: now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "rated_at"}),
		}).Create(&mirrored).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store review: %w", err)
	}

	cache.InvalidateRatingStats(ctx, agentID)
	op := "update"
	if created {
		op = "create"
	}
	metrics.Get().ReviewsSubmitted.WithLabelValues(op).Inc()
	return &review, created, nil
}

// DeleteReview removes the user's review of an agent. The mirrored rating row
// stays: deleting the prose does not retract the star rating.
func (s *Service) DeleteReview(ctx context.Context, agentID, userID string) error {
	var review models.AgentReview
	err := s.db.Where("agent_id = ? AND user_id = ?", agentID, userID).First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrReviewNotFound
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&review).Error; err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	cache.InvalidateRatingStats(ctx, agentID)
	return nil
}

// MarkHelpful increments the helpful counter on a review. Authors cannot
// vote on their own reviews.
func (s *Service) MarkHelpful(ctx context.Context, reviewID, voterID string) (*models.AgentReview, error) {
	var review models.AgentReview
	err := s.db.First(&review, "id = ?", reviewID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReviewNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if review.UserID == voterID {
		metrics.Get().HelpfulVotesTotal.WithLabelValues("self_vote_rejected").Inc()
		return nil, ErrSelfVote
	}

	err = s.db.WithContext(ctx).Model(&review).
		UpdateColumn("helpful_count", gorm.Expr("helpful_count + 1")).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record helpful vote: %w", err)
	}
	review.HelpfulCount++

	metrics.Get().HelpfulVotesTotal.WithLabelValues("counted").Inc()
	return &review, nil
}

// GetRatingStats returns the aggregate rating summary for an agent: average
// rounded to two decimals, total rating count, review count, and the count
// of each star value. Served from cache when fresh.
func (s *Service) GetRatingStats(ctx context.Context, agentID string) (*RatingStats, error) {
	if _, err := s.visibleAgent(agentID); err != nil {
		return nil, err
	}

	var stats RatingStats
	if cache.GetRatingStats(ctx, agentID, &stats) {
		metrics.Get().CacheHitsTotal.WithLabelValues("rating_stats").Inc()
		return &stats, nil
	}
	metrics.Get().CacheMissesTotal.WithLabelValues("rating_stats").Inc()

	stats = RatingStats{
		AgentID:      agentID,
		Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	type bucket struct {
		Rating int
		Count  int
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).Model(&models.AgentRating{}).
		Select("rating, COUNT(*) as count").
		Where("agent_id = ?", agentID).
		Group("rating").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	var sum, total int64
	for _, b := range buckets {
		if b.Rating >= 1 && b.Rating <= 5 {
			stats.Distribution[b.Rating] = b.Count
			sum += int64(b.Rating) * int64(b.Count)
			total += int64(b.Count)
		}
	}
	stats.RatingCount = total
	if total > 0 {
		stats.AverageRating = math.Round(float64(sum)/float64(total)*100) / 100
	}

	if err := s.db.WithContext(ctx).Model(&models.AgentReview{}).
		Where("agent_id = ?", agentID).
		Count(&stats.ReviewCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	cache.SetRatingStats(ctx, agentID, &stats)
	logger.Log.Debug("rating stats computed",
		zap.String("agent_id", agentID),
		zap.Int64("rating_count", stats.RatingCount),
	)
	return &stats, nil
}

// ListReviews returns reviews for an agent, newest first, with authors preloaded
func (s *Service) ListReviews(ctx context.Context, agentID string, page, pageSize int) ([]models.AgentReview, int64, error) {
	if _, err := s.visibleAgent(agentID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.Model(&models.AgentReview{}).Where("agent_id = ?", agentID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []models.AgentReview
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("agent_id = ?", agentID).
		Order("reviewed_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}

	return reviews, total, nil
}
