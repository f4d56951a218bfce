package api

// LoginRequest carries credentials for POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the opaque session token.
type LoginResponse struct {
	Token string `json:"token"`
}

// ChangePasswordRequest carries the old and new password for the
// authenticated user.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// CreateOrganizationRequest creates a tenancy root.
type CreateOrganizationRequest struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// UpdateOrganizationRequest updates mutable organization fields.
type UpdateOrganizationRequest struct {
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// CreateStudyRequest creates a study under an organization.
type CreateStudyRequest struct {
	StudyCode      string `json:"study_code"`
	Name           string `json:"name,omitempty"`
	Description    string `json:"description,omitempty"`
	OrganizationID string `json:"organization_id"`
}

// UpdateStudyRequest updates mutable study fields. The owning
// organization never changes.
type UpdateStudyRequest struct {
	StudyCode   string `json:"study_code"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateUserRequest creates a user account within an organization.
type CreateUserRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Email          string `json:"email,omitempty"`
	OrganizationID string `json:"organization_id"`
	AccessLevel    string `json:"access_level,omitempty"`
}

// UpdateUserRequest updates mutable user fields. Password changes go
// through the dedicated password endpoint.
type UpdateUserRequest struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	AccessLevel string `json:"access_level,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// GrantRequest identifies the user receiving a study grant.
type GrantRequest struct {
	UserID string `json:"user_id"`
}
