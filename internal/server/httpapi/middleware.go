package httpapi

import (
	"strings"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/auth"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

const (
	localAccount = "account"
	localToken   = "access_token"
)

// bearerToken extracts the credential from "Authorization: Bearer <token>".
func bearerToken(c *fiber.Ctx) (string, bool) {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireAccount authenticates the bearer token and stores the live account
// and decoded token in Locals.
func (s *Server) requireAccount(c *fiber.Ctx) error {
	token, ok := bearerToken(c)
	if !ok {
		return s.fail(c, common.ErrorUnauthorized, fiber.StatusUnauthorized)
	}

	account, at, err := s.accounts.Authenticate(c.UserContext(), token)
	if err != nil {
		return s.fail(c, err, fiber.StatusUnauthorized)
	}

	c.Locals(localAccount, account)
	c.Locals(localToken, at)
	return c.Next()
}

func currentAccount(c *fiber.Ctx) *models.Account {
	a, _ := c.Locals(localAccount).(*models.Account)
	return a
}

func currentToken(c *fiber.Ctx) auth.AccessToken {
	t, _ := c.Locals(localToken).(auth.AccessToken)
	return t
}
