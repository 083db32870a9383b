package domain

// UserStatus is the account state managed by administrators.
type UserStatus string

const (
	UserActive   UserStatus = "activo"
	UserInactive UserStatus = "inactivo"
)

// User is an account as served by the users and auth endpoints.
type User struct {
	ID          string     `json:"_id,omitempty"`
	Username    string     `json:"username" validate:"min=3"`
	Email       string     `json:"email" validate:"required,email"`
	Password    *string    `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName    string     `json:"fullName" validate:"min=3"`
	DateOfBirth *string    `json:"dateOfBirth,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Role        Role       `json:"role" validate:"oneof=admin user"`
	Status      UserStatus `json:"status" validate:"oneof=activo inactivo"`
	CreatedAt   string     `json:"createdAt,omitempty"`
}

// ApplyDefaults fills the role and status the API may omit.
func (u *User) ApplyDefaults() {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserActive
	}
}

// Validate applies defaults and checks the user schema.
func (u *User) Validate() error {
	u.ApplyDefaults()
	return Validate("user", u)
}

// Credentials is the password login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
