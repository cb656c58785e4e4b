package dto

// TaskCreateRequest creates a task inside a project.
type TaskCreateRequest struct {
	ProjectID   uint   `json:"project_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	AssigneeID  *uint  `json:"assignee_id"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

// TaskAssignRequest reassigns a task to a member.
type TaskAssignRequest struct {
	AssigneeID uint `json:"assignee_id" validate:"required"`
}

// TaskStatusRequest moves a task to a new status.
type TaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress in_review done"`
}

// TaskNoteRequest adds a comment to a task.
type TaskNoteRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}
