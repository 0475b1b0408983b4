package user

import (
	"context"

	"github.com/trezcool/academia/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose email side effects run synchronously.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &serviceMock{
		service: service{
			conf:    conf,
			repo:    repo,
			mailSvc: mailSvc,
			logger:  logger,
		},
	}
}

func (svc *serviceMock) Create(ctx context.Context, nu NewUser, role string) (User, error) {
	usr, err := svc.service.createUser(ctx, nu, role)
	if err != nil {
		return User{}, err
	}
	// run synchronously
	svc.sendEmailVerificationMail(usr)
	return usr, nil
}

func (svc *serviceMock) Register(ctx context.Context, nu NewUser) (User, error) {
	return svc.Create(ctx, nu, core.RoleStudent)
}

func (svc *serviceMock) RequestEmailVerification(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.EmailConfirmed {
		return nil
	}
	// run synchronously
	svc.sendEmailVerificationMail(usr)
	return nil
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
