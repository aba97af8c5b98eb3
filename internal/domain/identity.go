package domain

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

// Role is the privilege level of an administrator account.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

const (
	IdentityNameMaxLen     = 50
	IdentityPasswordMinLen = 6

	// IdentityPasswordMaxBytes is the longest input bcrypt accepts.
	IdentityPasswordMaxBytes = 72
)

// Identity is an administrator account. PasswordHash never leaves the process.
type Identity struct {
	ID           uuid.UUID  `json:"_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IdentitySummary is the subset of an identity returned by signup and login.
type IdentitySummary struct {
	ID          uuid.UUID  `json:"_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
}

// Summary returns the public summary of the identity.
func (i *Identity) Summary() IdentitySummary {
	return IdentitySummary{
		ID:          i.ID,
		Name:        i.Name,
		Email:       i.Email,
		Role:        i.Role,
		LastLoginAt: i.LastLoginAt,
	}
}

// NormalizeEmail trims and lower-cases an email address so that uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignupInput carries the fields needed to create an identity.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Normalize trims the name and normalizes the email in place.
func (in *SignupInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = RoleAdmin
	}
}

func (in SignupInput) Validate() error {
	return toValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("name is required"),
			validation.RuneLength(1, IdentityNameMaxLen).Error("name must be at most 50 characters"),
		),
		validation.Field(&in.Email,
			validation.Required.Error("email is required"),
			is.EmailFormat.Error("invalid email format"),
		),
		validation.Field(&in.Password, passwordRules...),
		validation.Field(&in.Role,
			validation.By(func(value interface{}) error {
				if r, _ := value.(Role); !r.Valid() {
					return validation.NewError("validation_role", "role must be admin or superadmin")
				}
				return nil
			}),
		),
	))
}

// ProfilePatch carries the optional fields of a profile update.
type ProfilePatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// Normalize trims supplied fields in place.
func (p *ProfilePatch) Normalize() {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		p.Email = &email
	}
}

func (p ProfilePatch) Validate() error {
	return toValidationError(validation.ValidateStruct(&p,
		validation.Field(&p.Name,
			validation.NilOrNotEmpty.Error("name cannot be blank"),
			validation.RuneLength(1, IdentityNameMaxLen).Error("name must be at most 50 characters"),
		),
		validation.Field(&p.Email,
			validation.NilOrNotEmpty.Error("email cannot be blank"),
			is.EmailFormat.Error("invalid email format"),
		),
	))
}

var passwordRules = []validation.Rule{
	validation.Required.Error("password is required"),
	validation.RuneLength(IdentityPasswordMinLen, 0).Error("password must be at least 6 characters"),
	validation.By(func(value interface{}) error {
		if password, _ := value.(string); len(password) > IdentityPasswordMaxBytes {
			return validation.NewError("validation_password_too_long", "password must be at most 72 bytes")
		}
		return nil
	}),
}

// ValidatePassword checks the password policy for new passwords.
func ValidatePassword(password string) error {
	return toValidationError(validation.Errors{
		"password": validation.Validate(password, passwordRules...),
	}.Filter())
}
