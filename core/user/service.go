package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string) error
		Register(ctx context.Context, nu NewUser) (User, error)
		Create(ctx context.Context, nu NewUser, role string) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		// ResolveRole determines the effective role of an authenticated
		// identity. It never fails: persistence errors are logged and the
		// student role is returned as a safe default.
		ResolveRole(ctx context.Context, ident Identity) string
		RequestEmailVerification(ctx context.Context, email string) error
		VerifyEmail(ctx context.Context, ve VerifyEmail) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error)
	}

	service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a student profile and kicks off email verification.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	return svc.Create(ctx, nu, core.RoleStudent)
}

func (svc *service) Create(ctx context.Context, nu NewUser, role string) (User, error) {
	usr, err := svc.createUser(ctx, nu, role)
	if err != nil {
		return User{}, err
	}
	go svc.sendEmailVerificationMail(usr)
	return usr, nil
}

func (svc *service) createUser(ctx context.Context, nu NewUser, role string) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Email:     nu.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.FullName != "" {
		usr.FullName.SetValid(nu.FullName)
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ResolveRole(ctx context.Context, ident Identity) string {
	if ident.RoleClaim != "" {
		return ident.RoleClaim
	}

	usr, err := svc.repo.GetUserByID(ctx, ident.ID)
	if err == nil {
		return usr.Role
	}
	if !errors.Is(err, ErrNotFound) {
		svc.logger.Error(fmt.Sprintf("resolving role for %s: %v", ident.ID, err), err)
		return core.RoleStudent
	}

	// first sighting of this identity: provision a student profile so
	// enrollments and progress have something to attach to.
	now := time.Now().UTC()
	_, err = svc.repo.CreateUser(ctx, User{
		ID:             ident.ID,
		Email:          ident.Email,
		Role:           core.RoleStudent,
		EmailConfirmed: ident.EmailConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil && !errors.Is(err, ErrEmailExists) {
		// a concurrent request may have won the race; anything else is
		// logged and the caller proceeds as a student regardless.
		svc.logger.Error(fmt.Sprintf("provisioning student profile for %s: %v", ident.ID, err), err)
	}
	return core.RoleStudent
}

func (svc *service) RequestEmailVerification(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.EmailConfirmed {
		return nil
	}
	go svc.sendEmailVerificationMail(usr)
	return nil
}

func (svc *service) VerifyEmail(ctx context.Context, ve VerifyEmail) (User, error) {
	usr, err := svc.getUserForToken(ctx, ve.UID)
	if err != nil {
		return User{}, err
	}
	if err = verifyEmailVerificationToken(svc.conf, usr, ve.Token); err != nil {
		return User{}, core.NewValidationError(err)
	}
	if usr.EmailConfirmed {
		return usr, nil
	}
	usr.EmailConfirmed = true
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	usr, err := svc.getUserForToken(ctx, rp.UID)
	if err != nil {
		return User{}, err
	}
	if err = verifyPasswordResetToken(svc.conf, usr, rp.Token); err != nil {
		return User{}, core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) getUserForToken(ctx context.Context, uid string) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, core.NewValidationError(errInvalidToken)
		}
		return User{}, err
	}
	return usr, nil
}

func (svc *service) sendEmailVerificationMail(usr User) {
	token, err := MakeEmailVerificationToken(svc.conf, usr)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("generating email verification token: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName.String, Address: usr.Email}},
		Subject:      fmt.Sprintf("%s - Confirm your email address", svc.conf.AppName),
		TemplateName: "verify-email",
		TemplateData: struct {
			User  User
			UID   string
			Token string
		}{usr, EncodeUID(usr), token},
	})
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := MakePasswordResetToken(svc.conf, usr)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("generating password reset token: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName.String, Address: usr.Email}},
		Subject:      fmt.Sprintf("%s - Password reset", svc.conf.AppName),
		TemplateName: "password-reset",
		TemplateData: struct {
			User  User
			UID   string
			Token string
		}{usr, EncodeUID(usr), token},
	})
}
