package dto

// UserCreateRequest creates an account (admin only).
type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin manager member"`
}

// UserUpdateRequest applies a partial update to an account (admin only).
type UserUpdateRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin manager member"`
}
