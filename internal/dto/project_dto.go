package dto

// ProjectCreateRequest creates a project owned by a manager.
type ProjectCreateRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	ManagerID   uint   `json:"manager_id" validate:"required"`
	MemberIDs   []uint `json:"member_ids"`
}

// ProjectUpdateRequest applies a partial update to a project.
type ProjectUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	ManagerID   *uint   `json:"manager_id"`
}

// ProjectMemberRequest adds a user to a project.
type ProjectMemberRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

// ProjectStatusRequest transitions a project to a new status.
type ProjectStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active on_hold completed archived"`
}
