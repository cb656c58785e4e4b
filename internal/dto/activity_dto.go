package dto

import (
	"time"

	"github.com/tmshq/tms-go-api/internal/models"
)

// ActivityListRequest carries the feed query parameters after parsing.
type ActivityListRequest struct {
	Limit      int    `validate:"omitempty,min=1,max=200"`
	Offset     int    `validate:"omitempty,min=0"`
	ActionType string `validate:"omitempty,max=64"`
	EntityType string `validate:"omitempty,oneof=user project task comment attachment system"`
	DateFrom   string
	DateTo     string
	Search     string `validate:"omitempty,max=255"`
	Scope      string `validate:"omitempty,oneof=all me notifications"`
}

// ActivityItem is one feed entry. ActorName is resolved from the current users
// table at read time; everything else comes straight off the stored event.
type ActivityItem struct {
	ID          uint                   `json:"id"`
	ActorID     uint                   `json:"actor_id"`
	ActorName   string                 `json:"actor_name"`
	ActionType  string                 `json:"action_type"`
	EntityType  string                 `json:"entity_type"`
	EntityID    *uint                  `json:"entity_id"`
	Description string                 `json:"description"`
	OldValue    *string                `json:"old_value,omitempty"`
	NewValue    *string                `json:"new_value,omitempty"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ActivityListResponse is the payload of GET /api/activity.
type ActivityListResponse struct {
	Activities []ActivityItem `json:"activities"`
	Pagination Pagination     `json:"pagination"`
}

// ActivityCreateRequest is the admin-only manual audit entry payload.
type ActivityCreateRequest struct {
	ActionType  string                 `json:"action_type" validate:"required,max=64"`
	EntityType  string                 `json:"entity_type" validate:"required,oneof=user project task comment attachment system"`
	EntityID    *uint                  `json:"entity_id"`
	Description string                 `json:"description" validate:"required,max=2000"`
	OldValue    *string                `json:"old_value"`
	NewValue    *string                `json:"new_value"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// NewActivityItem maps a stored event plus the resolved actor name.
func NewActivityItem(event models.ActivityEvent, actorName string) ActivityItem {
	return ActivityItem{
		ID:          event.ID,
		ActorID:     event.ActorID,
		ActorName:   actorName,
		ActionType:  event.ActionType,
		EntityType:  event.EntityType,
		EntityID:    event.EntityID,
		Description: event.Description,
		OldValue:    event.OldValue,
		NewValue:    event.NewValue,
		Metadata:    map[string]interface{}(event.Metadata),
		CreatedAt:   event.CreatedAt,
	}
}
