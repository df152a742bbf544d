package models

import (
	"time"

	"gorm.io/gorm"
)

// AgentStatus is the moderation state of a submitted agent
type AgentStatus string

const (
	AgentStatusPending  AgentStatus = "pending"
	AgentStatusApproved AgentStatus = "approved"
	AgentStatusRejected AgentStatus = "rejected"
)

// AgentCategory is the catalog category of an agent
type AgentCategory string

const (
	CategoryBusiness    AgentCategory = "business"
	CategoryHealthcare  AgentCategory = "healthcare"
	CategoryFinance     AgentCategory = "finance"
	CategorySupplyChain AgentCategory = "supply_chain"
	CategoryInsurance   AgentCategory = "insurance"
	CategoryHR          AgentCategory = "hr"
	CategoryOperations  AgentCategory = "operations"
	CategoryEngineering AgentCategory = "engineering"
)

// AllCategories lists every valid category in display order
var AllCategories = []AgentCategory{
	CategoryBusiness,
	CategoryHealthcare,
	CategoryFinance,
	CategorySupplyChain,
	CategoryInsurance,
	CategoryHR,
	CategoryOperations,
	CategoryEngineering,
}

// ValidCategory reports whether s names a known category
func ValidCategory(s string) bool {
	for _, c := range AllCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// ClickType classifies how a user interacted with an agent listing
type ClickType string

const (
	ClickModalOpen    ClickType = "modal_open"
	ClickNewTab       ClickType = "new_tab"
	ClickExternalLink ClickType = "external_link"
)

// ValidClickType reports whether s names a known click type
func ValidClickType(s string) bool {
	switch ClickType(s) {
	case ClickModalOpen, ClickNewTab, ClickExternalLink:
		return true
	}
	return false
}

// Agent represents an externally-hosted AI agent submitted to the catalog.
// Agents are never hard-deleted in normal flow; rejection is a soft state.
type Agent struct {
	ID          string        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name        string        `gorm:"not null;index" json:"name"`
	Description string        `gorm:"type:text;not null" json:"description"`
	AppURL      string        `gorm:"not null" json:"app_url"`
	Category    AgentCategory `gorm:"not null;index" json:"category"`
	Status      AgentStatus   `gorm:"default:pending;index" json:"status"`

	// Author relationship
	AuthorID string `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	// Approval tracking
	ApprovedBy      *string    `gorm:"type:uuid" json:"-"`
	ApprovedAt      *time.Time `json:"approved_at"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`

	// Materialized aggregate of agent_views; updated in the same
	// transaction as the event insert so it cannot drift
	ViewCount int64 `gorm:"default:0" json:"view_count"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsApproved reports whether the agent is visible in the public catalog
func (a *Agent) IsApproved() bool {
	return a.Status == AgentStatusApproved
}

// AgentView records a counted view of an agent by a user.
// At most one view per (agent, user) is counted per rolling hour.
type AgentView struct {
	ID       string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID  string    `gorm:"not null;index:idx_agent_views_pair" json:"agent_id"`
	Agent    Agent     `gorm:"foreignKey:AgentID" json:"-"`
	UserID   string    `gorm:"not null;index:idx_agent_views_pair" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	ViewedAt time.Time `gorm:"not null;index" json:"viewed_at"`
}

// TableName specifies the table name
func (AgentView) TableName() string {
	return "agent_views"
}

// AgentClick records a click interaction. Every click is kept as-is,
// no deduplication, for full analytics granularity.
type AgentClick struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID   string    `gorm:"not null;index" json:"agent_id"`
	Agent     Agent     `gorm:"foreignKey:AgentID" json:"-"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	ClickType ClickType `gorm:"not null" json:"click_type"`
	Referrer  string    `json:"referrer,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name
func (AgentClick) TableName() string {
	return "agent_clicks"
}

// AgentSession records time a user spent with an agent open.
// Sessions of one second or less are treated as noise and never persisted.
type AgentSession struct {
	ID              string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID         string    `gorm:"not null;index" json:"agent_id"`
	Agent           Agent     `gorm:"foreignKey:AgentID" json:"-"`
	UserID          string    `gorm:"not null;index" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID" json:"-"`
	SessionStart    time.Time `gorm:"not null" json:"session_start"`
	SessionEnd      time.Time `gorm:"not null" json:"session_end"`
	DurationSeconds float64   `gorm:"not null" json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name
func (AgentSession) TableName() string {
	return "agent_sessions"
}

// AgentRating is a bare star rating, one row per (agent, user).
// Resubmission overwrites the existing row.
type AgentRating struct {
	ID      string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID string    `gorm:"not null;index:idx_agent_ratings_pair" json:"agent_id"`
	Agent   Agent     `gorm:"foreignKey:AgentID" json:"-"`
	UserID  string    `gorm:"not null;index:idx_agent_ratings_pair" json:"user_id"`
	User    User      `gorm:"foreignKey:UserID" json:"-"`
	Rating  int       `gorm:"not null" json:"rating"`
	RatedAt time.Time `gorm:"not null" json:"rated_at"`
}

// TableName specifies the table name
func (AgentRating) TableName() string {
	return "agent_ratings"
}

// AgentReview is a written review, one row per (agent, user).
// The rating is denormalized here for display; the AgentRating table
// remains the source for aggregate stats.
type AgentReview struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentID    string `gorm:"not null;index:idx_agent_reviews_pair" json:"agent_id"`
	Agent      Agent  `gorm:"foreignKey:AgentID" json:"-"`
	UserID     string `gorm:"not null;index:idx_agent_reviews_pair" json:"user_id"`
	User       User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Rating     int    `gorm:"not null" json:"rating"`
	ReviewText string `gorm:"type:text;not null" json:"review_text"`

	HelpfulCount int `gorm:"default:0" json:"helpful_count"`

	ReviewedAt time.Time `gorm:"not null" json:"reviewed_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (AgentReview) TableName() string {
	return "agent_reviews"
}

// BeforeCreate hooks for GORM

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	if a.Status == "" {
		a.Status = AgentStatusPending
	}
	return nil
}

func (v *AgentView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	return nil
}

func (c *AgentClick) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (s *AgentSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	return nil
}

func (r *AgentRating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	if r.RatedAt.IsZero() {
		r.RatedAt = time.Now().UTC()
	}
	return nil
}

func (r *AgentReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	if r.ReviewedAt.IsZero() {
		r.ReviewedAt = time.Now().UTC()
	}
	return nil
}
