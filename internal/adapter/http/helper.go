package http

import (
	"errors"
	"log/slog"
	"net/http"

	"agriloan/internal/adapter/middleware"
	"agriloan/internal/domain/actor"
	"agriloan/internal/domain/apperr"

	"github.com/labstack/echo/v4"
)

var errUnauthenticated = errors.New("unauthenticated")

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrDependency):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c echo.Context, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		return c.JSON(code, ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(code, ErrorResponse{Error: err.Error()})
}

// bindAndValidate writes the 400/422 response itself and reports false when
// the handler should stop.
func bindAndValidate(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}

func currentActor(c echo.Context) (actor.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return actor.Actor{}, errUnauthenticated
	}
	return a, nil
}
