package httpapi

import (
	"fmt"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

type messageResponse struct {
	Message string `json:"message"`
}

type registerResponse struct {
	Message           string `json:"message"`
	VerificationToken string `json:"verification_token"`
}

type verifyResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type verifyTokenResponse struct {
	Valid   bool   `json:"valid"`
	Subject string `json:"subject"`
}

type deleteResponse struct {
	Message string `json:"message"`
	*models.DeletionReport
}

func badBody(err error) error {
	return fmt.Errorf("%w: invalid request body: %v", common.ErrorValidation, err)
}

func (s *Server) healthz(c *fiber.Ctx) error {
	if s.ping != nil {
		if err := s.ping(c.UserContext()); err != nil {
			s.logger.Warn(c.UserContext(), "health check failed", "error", err.Error())
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) register(c *fiber.Ctx) error {
	var in models.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badBody(err), fiber.StatusBadRequest)
	}

	res, err := s.accounts.Register(c.UserContext(), in)
	if err != nil {
		return s.fail(c, err, fiber.StatusBadRequest)
	}

	return c.Status(fiber.StatusCreated).JSON(registerResponse{
		Message:           "User registered. Please verify your email.",
		VerificationToken: res.VerificationToken,
	})
}

func (s *Server) verify(c *fiber.Ctx) error {
	if _, err := s.verifyFromQuery(c); err != nil {
		return s.fail(c, err, fiber.StatusBadRequest)
	}
	return c.JSON(verifyResponse{Message: "Email verified successfully"})
}

func (s *Server) verifyManual(c *fiber.Ctx) error {
	email, err := s.verifyFromQuery(c)
	if err != nil {
		return s.fail(c, err, fiber.StatusBadRequest)
	}
	return c.JSON(verifyResponse{Message: "Email verified successfully", Email: email})
}

func (s *Server) verifyFromQuery(c *fiber.Ctx) (string, error) {
	token := c.Query("token")
	if token == "" {
		return "", fmt.Errorf("%w: token is required", common.ErrorValidation)
	}
	return s.accounts.VerifyEmail(c.UserContext(), token)
}

func (s *Server) resendVerification(c *fiber.Ctx) error {
	var in resendRequest
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badBody(err), fiber.StatusBadRequest)
	}

	already, err := s.accounts.ResendVerification(c.UserContext(), in.Email)
	if err != nil {
		return s.fail(c, err, fiber.StatusBadRequest)
	}
	if already {
		return c.JSON(messageResponse{Message: "Email already verified"})
	}
	return c.JSON(messageResponse{Message: "Verification email sent"})
}

// login accepts an OAuth2 password-grant style form; username may be an email.
func (s *Server) login(c *fiber.Ctx) error {
	token, err := s.accounts.Login(c.UserContext(), c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return s.fail(c, err, fiber.StatusBadRequest)
	}
	return c.JSON(tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) verifyToken(c *fiber.Ctx) error {
	token, ok := bearerToken(c)
	if !ok {
		return s.fail(c, common.ErrorUnauthorized, fiber.StatusUnauthorized)
	}

	at, err := s.accounts.VerifyAccessToken(c.UserContext(), token)
	if err != nil {
		return s.fail(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(verifyTokenResponse{Valid: true, Subject: at.Subject})
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var in models.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return s.fail(c, badBody(err), fiber.StatusBadRequest)
	}

	if err := s.accounts.UpdateProfile(c.UserContext(), currentAccount(c).Username, in); err != nil {
		return s.fail(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(messageResponse{Message: "Profile updated successfully"})
}

func (s *Server) logout(c *fiber.Ctx) error {
	if err := s.accounts.Logout(c.UserContext(), currentToken(c)); err != nil {
		return s.fail(c, err, fiber.StatusUnauthorized)
	}
	return c.JSON(messageResponse{Message: "Logout successful"})
}

func (s *Server) deleteAccount(c *fiber.Ctx) error {
	account := currentAccount(c)

	report, err := s.accounts.DeleteAccount(c.UserContext(), account.Username, account.Email)
	if err != nil {
		return s.fail(c, err, fiber.StatusUnauthorized)
	}

	msg := "Account and all files deleted successfully."
	if report.Status == models.StatusDegraded {
		msg = "Account deleted; some cleanup steps failed."
	}
	return c.JSON(deleteResponse{Message: msg, DeletionReport: report})
}
