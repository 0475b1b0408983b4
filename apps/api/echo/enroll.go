package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/user"
)

type enrollApi struct {
	svc    enroll.Service
	usrSvc user.Service
}

func registerEnrollAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := enrollApi{
		svc:    deps.EnrollSvc,
		usrSvc: deps.UserSvc,
	}

	ag := g.Group("/applications", jwt)
	ag.POST("", api.submitApplication)
	ag.GET("", api.queryApplications)
	ag.PATCH("/:id", api.reviewApplication, adminMiddleware(api.usrSvc))

	eg := g.Group("/enrollments", jwt)
	eg.GET("", api.queryEnrollments)
	eg.POST("/payments", api.confirmPayment)

	pg := g.Group("/progress", jwt)
	pg.GET("", api.queryProgress)
	pg.PUT("", api.setProgress)
}

// Handlers

func (api *enrollApi) submitApplication(ctx echo.Context) error {
	var data enroll.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}

	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	app, err := api.svc.Submit(ctx.Request().Context(), clr, data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *enrollApi) queryApplications(ctx echo.Context) error {
	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	apps, err := api.svc.Query(ctx.Request().Context(), clr)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []enroll.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *enrollApi) reviewApplication(ctx echo.Context) error {
	var data enroll.ReviewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewApplication")
	}

	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	app, err := api.svc.Review(ctx.Request().Context(), clr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *enrollApi) queryEnrollments(ctx echo.Context) error {
	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	enrollments, err := api.svc.QueryEnrollments(ctx.Request().Context(), clr)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []enroll.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollApi) confirmPayment(ctx echo.Context) error {
	var data enroll.ConfirmPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmPayment")
	}

	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	enr, err := api.svc.ConfirmPayment(ctx.Request().Context(), clr, data)
	if err != nil {
		return errors.Wrap(err, "confirming payment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollApi) queryProgress(ctx echo.Context) error {
	var filter enroll.ProgressFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ProgressFilter")
	}

	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	progress, err := api.svc.QueryProgress(ctx.Request().Context(), clr, filter)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	if progress == nil {
		progress = []enroll.LessonProgress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *enrollApi) setProgress(ctx echo.Context) error {
	var data enroll.SetProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetProgress")
	}

	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	prg, err := api.svc.SetCompletion(ctx.Request().Context(), clr, data)
	if err != nil {
		return errors.Wrap(err, "setting lesson progress")
	}
	return ctx.JSON(http.StatusOK, prg)
}
