package user

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

var Roles = []Role{
	{Name: "Student", Value: core.RoleStudent},
	{Name: "Admin", Value: core.RoleAdmin},
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	FullName       null.String `json:"full_name"`
	Role           string      `json:"role"`
	EmailConfirmed bool        `json:"email_confirmed"`
	PasswordHash   []byte      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"` // UTC
	UpdatedAt      time.Time   `json:"updated_at"` // UTC
	LastLogin      time.Time   `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == core.RoleAdmin }
func (u *User) IsStudent() bool { return u.Role == core.RoleStudent }

// AsCaller projects the profile into the Caller value passed to service
// operations.
func (u *User) AsCaller() core.Caller {
	return core.Caller{
		ID:             u.ID,
		Email:          u.Email,
		Role:           u.Role,
		EmailConfirmed: u.EmailConfirmed,
	}
}

// Identity is what the authentication layer knows about a caller before the
// persisted profile is consulted: a stable id, an email and an optional
// cached role claim.
type Identity struct {
	ID             string
	Email          string
	RoleClaim      string
	EmailConfirmed bool
}

// NewUser contains information needed to register a new User.
// Registration always yields a student profile; admins are provisioned
// through the admin CLI.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, svc Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

type VerifyEmail struct {
	UID   string `json:"uid,omitempty" validate:"required"`
	Token string `json:"token,omitempty" validate:"required"`
}

func (ve VerifyEmail) Validate() error { return validate.Struct(ve) }

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return validate.Struct(rp) }
