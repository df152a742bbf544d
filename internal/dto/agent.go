package dto

import (
	"time"

	"github.com/agenthub/backend/internal/models"
)

// AgentResponse is the catalog representation of an agent
type AgentResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	AppURL      string        `json:"app_url"`
	Category    string        `json:"category"`
	Status      string        `json:"status"`
	Author      *UserResponse `json:"author,omitempty"`
	ViewCount   int64         `json:"view_count"`
	CreatedAt   time.Time     `json:"created_at"`
	ApprovedAt  *time.Time    `json:"approved_at,omitempty"`

	// Only populated on the author's own submissions
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// CreateAgentRequest for catalog submissions
type CreateAgentRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=100"`
	Description string `json:"description" binding:"required,min=10,max=2000"`
	AppURL      string `json:"app_url" binding:"required,url"`
	Category    string `json:"category" binding:"required"`
}

// UpdateAgentRequest for author edits to pending submissions
type UpdateAgentRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,min=3,max=100"`
	Description *string `json:"description,omitempty" binding:"omitempty,min=10,max=2000"`
	AppURL      *string `json:"app_url,omitempty" binding:"omitempty,url"`
	Category    *string `json:"category,omitempty"`
}

// RejectAgentRequest optionally carries the reviewer's reason for rejection
type RejectAgentRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// AgentListResponse wraps a paginated agent listing
type AgentListResponse struct {
	Agents     []*AgentResponse `json:"agents"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// ToAgentResponse converts models.Agent to AgentResponse.
// includePrivate adds moderation fields only the author or an admin should see.
func ToAgentResponse(agent *models.Agent, includePrivate bool) *AgentResponse {
	if agent == nil {
		return nil
	}

	resp := &AgentResponse{
		ID:          agent.ID,
		Name:        agent.Name,
		Description: agent.Description,
		AppURL:      agent.AppURL,
		Category:    string(agent.Category),
		Status:      string(agent.Status),
		ViewCount:   agent.ViewCount,
		CreatedAt:   agent.CreatedAt,
		ApprovedAt:  agent.ApprovedAt,
	}
	if agent.Author.ID != "" {
		resp.Author = ToUserResponse(&agent.Author)
	}
	if includePrivate {
		resp.RejectionReason = agent.RejectionReason
	}
	return resp
}

// ToAgentResponses converts a slice of agents
func ToAgentResponses(agents []models.Agent, includePrivate bool) []*AgentResponse {
	out := make([]*AgentResponse, 0, len(agents))
	for i := range agents {
		out = append(out, ToAgentResponse(&agents[i], includePrivate))
	}
	return out
}
