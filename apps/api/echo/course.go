package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

type courseApi struct {
	svc    course.Service
	usrSvc user.Service
}

func registerCourseAPI(g *echo.Group, jwt, optJWT echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:    deps.CourseSvc,
		usrSvc: deps.UserSvc,
	}

	cg := g.Group("/courses")

	// catalog endpoints are public; a token widens what admins see
	cg.GET("", api.query, optJWT)
	cg.GET("/:id", api.retrieve, optJWT)

	// authed endpoints
	cg.POST("", api.create, jwt, adminMiddleware(api.usrSvc))
	cg.GET("/:id/lessons", api.queryLessons, jwt)
	cg.POST("/:id/lessons", api.createLesson, jwt, adminMiddleware(api.usrSvc))
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	clr, err := getOptionalCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting optional caller")
	}

	courses, err := api.svc.Query(ctx.Request().Context(), clr)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	clr, err := getOptionalCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting optional caller")
	}

	crs, err := api.svc.Get(ctx.Request().Context(), clr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}

	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), clr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) queryLessons(ctx echo.Context) error {
	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	lessons, err := api.svc.Lessons(ctx.Request().Context(), clr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *courseApi) createLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}

	clr, err := getContextCaller(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context caller")
	}

	lsn, err := api.svc.CreateLesson(ctx.Request().Context(), clr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}
