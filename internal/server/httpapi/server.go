// Package httpapi exposes the account service over HTTP using Fiber.
package httpapi

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/cloudsentiment/internal/logging"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/auth"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 5 * time.Second

// AccountService is the account lifecycle as seen by the HTTP layer.
type AccountService interface {
	Register(ctx context.Context, in models.RegisterInput) (*services.RegisterResult, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
	ResendVerification(ctx context.Context, email string) (bool, error)
	Login(ctx context.Context, identifier, password string) (string, error)
	VerifyAccessToken(ctx context.Context, token string) (auth.AccessToken, error)
	Authenticate(ctx context.Context, token string) (*models.Account, auth.AccessToken, error)
	UpdateProfile(ctx context.Context, username string, in models.ProfileInput) error
	Logout(ctx context.Context, token auth.AccessToken) error
	DeleteAccount(ctx context.Context, username, email string) (*models.DeletionReport, error)
}

// Pinger reports storage readiness for /healthz.
type Pinger func(ctx context.Context) error

type Server struct {
	address  string
	app      *fiber.App
	accounts AccountService
	ping     Pinger
	logger   logging.Logger
}

func NewServer(address string, accounts AccountService, ping Pinger, l logging.Logger) *Server {
	s := &Server{
		address:  address,
		accounts: accounts,
		ping:     ping,
		logger:   l.With("module", "http_server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "cloudsentiment",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		ErrorHandler:          s.handleFiberError,
		// Parsed values outlive the request once stored in the account repository.
		Immutable: true,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.routes()

	return s
}

// App exposes the underlying Fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.healthz)

	g := s.app.Group("/auth")
	g.Post("/register", s.register)
	g.Get("/verify", s.verify)
	g.Post("/verify", s.verify)
	g.Post("/verify/manual", s.verifyManual)
	g.Post("/verify/resend", s.resendVerification)
	g.Post("/token", s.login)
	g.Get("/verify-token", s.verifyToken)

	protected := g.Group("", s.requireAccount)
	protected.Put("/profile", s.updateProfile)
	protected.Post("/logout", s.logout)
	protected.Delete("/account", s.deleteAccount)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(shCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	return s.app.Listener(listen)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		// Let the error handler set the final status before logging it.
		if herr := s.handleFiberError(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}
	s.logger.Debug(c.UserContext(), "http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start).String(),
	)
	return nil
}
