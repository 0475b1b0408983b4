package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/user"
)

func adminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			clr, err := getContextCaller(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context caller")
			}
			if clr.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
