package models

import (
	"time"

	"gorm.io/datatypes"
)

// Action types recorded in the activity log. The set is closed; the recorder
// wrappers are the only writers.
const (
	ActionUserCreated           = "user_created"
	ActionUserUpdated           = "user_updated"
	ActionUserDeleted           = "user_deleted"
	ActionProjectCreated        = "project_created"
	ActionProjectUpdated        = "project_updated"
	ActionProjectDeleted        = "project_deleted"
	ActionProjectStatusChanged  = "project_status_changed"
	ActionTaskCreated           = "task_created"
	ActionTaskUpdated           = "task_updated"
	ActionTaskDeleted           = "task_deleted"
	ActionTaskAssigned          = "task_assigned"
	ActionTaskReassigned        = "task_reassigned"
	ActionTaskStatusChanged     = "task_status_changed"
	ActionTaskPriorityChanged   = "task_priority_changed"
	ActionTaskCommentAdded      = "task_comment_added"
	ActionTaskAttachmentAdded   = "task_attachment_added"
	ActionTaskAttachmentDeleted = "task_attachment_deleted"
	ActionMemberAdded           = "member_added"
	ActionMemberRemoved         = "member_removed"
	ActionLogin                 = "login"
	ActionLogout                = "logout"
	ActionPasswordChanged       = "password_changed"
)

// Entity types an activity event may concern.
const (
	EntityUser       = "user"
	EntityProject    = "project"
	EntityTask       = "task"
	EntityComment    = "comment"
	EntityAttachment = "attachment"
	EntitySystem     = "system"
)

// ActivityEvent is one immutable row of the append-only activity log.
// Description and metadata are denormalized at write time so history stays
// readable after renames and deletions; entity_id may reference a row that no
// longer exists.
type ActivityEvent struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ActorID     uint              `gorm:"not null;index;index:idx_actor_created,priority:1" json:"actor_id"`
	ActionType  string            `gorm:"size:64;not null;index" json:"action_type"`
	EntityType  string            `gorm:"size:32;not null;index:idx_entity,priority:1" json:"entity_type"`
	EntityID    *uint             `gorm:"index:idx_entity,priority:2" json:"entity_id"`
	Description string            `gorm:"type:text;not null" json:"description"`
	OldValue    *string           `gorm:"type:text" json:"old_value"`
	NewValue    *string           `gorm:"type:text" json:"new_value"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	IPAddress   *string           `gorm:"size:45" json:"ip_address"`
	UserAgent   *string           `gorm:"size:500" json:"user_agent"`
	CreatedAt   time.Time         `gorm:"index;index:idx_actor_created,priority:2" json:"created_at"`
}
