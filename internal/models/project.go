package models

import "time"

// Project statuses.
const (
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Project groups tasks under a single manager.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ManagerID   uint      `gorm:"not null;index" json:"manager_id"`
	Status      string    `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectMember links member accounts to the projects they participate in.
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_user,priority:1" json:"project_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_project_user,priority:2;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
