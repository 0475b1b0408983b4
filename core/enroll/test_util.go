package enroll

import (
	"context"

	"github.com/trezcool/academia/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose email side effects run synchronously.
func NewServiceMock(conf *core.Config, repo Repository, courses CourseGetter, mailSvc core.EmailService, logger core.Logger) Service {
	return &serviceMock{
		service: service{
			conf:    conf,
			repo:    repo,
			courses: courses,
			mailSvc: mailSvc,
			logger:  logger,
		},
	}
}

func (svc *serviceMock) Submit(ctx context.Context, clr core.Caller, na NewApplication) (Application, error) {
	app, err := svc.service.submit(ctx, clr, na)
	if err != nil {
		return Application{}, err
	}
	// run synchronously
	svc.sendApplicationReceivedMail(clr, app)
	return app, nil
}

func (svc *serviceMock) Review(ctx context.Context, clr core.Caller, id string, ra ReviewApplication) (Application, error) {
	app, err := svc.service.review(ctx, clr, id, ra)
	if err != nil {
		return Application{}, err
	}
	// run synchronously
	svc.sendApplicationReviewedMail(app)
	return app, nil
}

func (svc *serviceMock) ConfirmPayment(ctx context.Context, clr core.Caller, cp ConfirmPayment) (Enrollment, error) {
	enr, err := svc.service.confirmPayment(ctx, clr, cp)
	if err != nil {
		return Enrollment{}, err
	}
	// run synchronously
	svc.sendPaymentReceivedMail(clr, enr)
	return enr, nil
}
