package httpapi

import (
	"errors"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/gofiber/fiber/v2"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

// statusFor maps the error taxonomy onto HTTP. tokenStatus is the status used
// for invalid tokens: 400 where the token is an input, 401 where it is the
// caller's credential.
func statusFor(err error, tokenStatus int) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrorConflict):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorInvalidCredentials):
		return fiber.StatusBadRequest, "Incorrect username or password"
	case errors.Is(err, common.ErrTokenExpired):
		return tokenStatus, "Token expired"
	case errors.Is(err, common.ErrInvalidToken):
		return tokenStatus, "Invalid or expired token"
	case errors.Is(err, common.ErrorUnauthorized):
		return fiber.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, common.ErrorEmailNotVerified):
		return fiber.StatusForbidden, "Email not verified"
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound, err.Error()
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) fail(c *fiber.Ctx, err error, tokenStatus int) error {
	status, detail := statusFor(err, tokenStatus)
	if status == fiber.StatusInternalServerError {
		s.logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err.Error())
	}
	if status == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, common.BearerScheme)
	}
	return c.Status(status).JSON(errorBody{Detail: detail})
}

// handleFiberError renders errors that escape handlers, such as unknown routes.
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Detail: fe.Message})
	}
	return s.fail(c, err, fiber.StatusUnauthorized)
}
