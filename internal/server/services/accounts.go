// Package services contains server-side business logic. AccountService runs
// the account lifecycle: registration, email verification, login, profile
// updates, logout and the deletion cascade.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/dmitrijs2005/cloudsentiment/internal/logging"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/auth"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/notify"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/objectstore"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/revocations"
)

const defaultDependencyTimeout = 10 * time.Second

// Dependencies are the collaborators AccountService composes.
type Dependencies struct {
	Accounts    accounts.Repository
	Revocations revocations.Repository
	Hasher      auth.PasswordHasher
	Tokens      *auth.TokenCodec
	Objects     objectstore.ObjectStore
	Notifier    notify.Gateway
	Logger      logging.Logger

	// DependencyTimeout bounds each object-store and notification call.
	DependencyTimeout time.Duration
}

type AccountService struct {
	accounts          accounts.Repository
	revocations       revocations.Repository
	hasher            auth.PasswordHasher
	tokens            *auth.TokenCodec
	objects           objectstore.ObjectStore
	notifier          notify.Gateway
	logger            logging.Logger
	dependencyTimeout time.Duration

	dummyHash string
}

func NewAccountService(d Dependencies) *AccountService {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	timeout := d.DependencyTimeout
	if timeout <= 0 {
		timeout = defaultDependencyTimeout
	}
	s := &AccountService{
		accounts:          d.Accounts,
		revocations:       d.Revocations,
		hasher:            d.Hasher,
		tokens:            d.Tokens,
		objects:           d.Objects,
		notifier:          d.Notifier,
		logger:            logger.With("module", "accounts"),
		dependencyTimeout: timeout,
	}
	if s.hasher != nil {
		s.initDummyHash()
	}
	return s
}

// RegisterResult is returned by Register. The verification token is also
// mailed; returning it lets clients without mail complete verification.
type RegisterResult struct {
	Account           *models.Account
	VerificationToken string
}

// Register creates an unverified account and sends its verification email.
// A failed email is logged and does not undo the account.
func (s *AccountService) Register(ctx context.Context, in models.RegisterInput) (*RegisterResult, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	// Friendly pre-check only; the store's unique indexes decide races.
	if err := s.ensureAbsent(ctx, in.Username, "username"); err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(ctx, in.Email, "email"); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, fmt.Errorf("%w: username or email already registered", common.ErrorConflict)
		}
		return nil, fmt.Errorf("%w: create account: %v", common.ErrorInternal, err)
	}

	token, err := s.tokens.IssueVerification(account.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	s.sendVerification(ctx, account.Email, token)
	s.logger.Info(ctx, "account registered", "username", account.Username)

	return &RegisterResult{Account: account, VerificationToken: token}, nil
}

// hashPassword reports passwords the hash algorithm cannot take as
// validation errors.
func (s *AccountService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	switch {
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "", fmt.Errorf("%w: password: must be at most %d bytes", common.ErrorValidation, auth.MaxBcryptPasswordBytes)
	case err != nil:
		return "", fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}
	return hash, nil
}

func (s *AccountService) ensureAbsent(ctx context.Context, identifier, field string) error {
	_, err := s.accounts.FindByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s already registered", common.ErrorConflict, field)
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return fmt.Errorf("%w: lookup %s: %v", common.ErrorInternal, field, err)
	}
}

// VerifyEmail marks the token's email as verified and returns it. Verifying
// twice is a no-op.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (string, error) {
	vt, err := s.tokens.DecodeVerification(token)
	if err != nil {
		return "", err
	}

	n, err := s.accounts.MarkVerified(ctx, vt.Email)
	if err != nil {
		return "", fmt.Errorf("%w: mark verified: %v", common.ErrorInternal, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: no account for this email", common.ErrorNotFound)
	}

	s.logger.Info(ctx, "email verified", "email", vt.Email)
	return vt.Email, nil
}

// ResendVerification mails a fresh verification token. It reports
// alreadyVerified instead of sending when there is nothing to verify.
func (s *AccountService) ResendVerification(ctx context.Context, email string) (alreadyVerified bool, err error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return false, fmt.Errorf("%w: email is required", common.ErrorValidation)
	}

	account, err := s.accounts.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, fmt.Errorf("%w: no account for this email", common.ErrorNotFound)
		}
		return false, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if account.Verified {
		return true, nil
	}

	token, err := s.tokens.IssueVerification(account.Email)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	s.sendVerification(ctx, account.Email, token)
	return false, nil
}

func (s *AccountService) sendVerification(ctx context.Context, email, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dependencyTimeout)
	defer cancel()

	if err := s.notifier.SendVerification(ctx, email, token); err != nil {
		s.logger.Warn(ctx, "verification email not sent", "email", email, "error", err.Error())
	}
}

// Login checks credentials and issues an access token whose subject is the
// username, whichever identifier was supplied. Unknown identifiers and wrong
// passwords fail identically; unverified accounts fail with
// common.ErrorEmailNotVerified.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		identifier = models.NormalizeEmail(identifier)
	}
	if identifier == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	account, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		// Spend the same hashing time as a real check.
		_, _ = s.hasher.Verify(password, s.dummyHash)
		return "", common.ErrorInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash unusable", "username", account.Username, "error", err.Error())
		return "", common.ErrorInvalidCredentials
	}
	if !ok {
		return "", common.ErrorInvalidCredentials
	}

	if !account.Verified {
		return "", common.ErrorEmailNotVerified
	}

	token, _, err := s.tokens.IssueAccess(account.Username)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return token, nil
}

// initDummyHash prepares the hash that unknown-identifier logins verify
// against.
func (s *AccountService) initDummyHash() {
	h, err := s.hasher.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
	if err != nil {
		s.logger.Error(context.Background(), "dummy password hash unavailable", "error", err.Error())
		return
	}
	s.dummyHash = h
}

// VerifyAccessToken decodes an access token and rejects revoked ones.
func (s *AccountService) VerifyAccessToken(ctx context.Context, token string) (auth.AccessToken, error) {
	at, err := s.tokens.DecodeAccess(token)
	if err != nil {
		return auth.AccessToken{}, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, at.ID)
	if err != nil {
		return auth.AccessToken{}, fmt.Errorf("%w: revocation lookup: %v", common.ErrorInternal, err)
	}
	if revoked {
		return auth.AccessToken{}, common.ErrTokenRevoked
	}
	return at, nil
}

// Authenticate resolves a bearer token to the live account it names.
// Tokens of deleted accounts yield common.ErrorUnauthorized.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.Account, auth.AccessToken, error) {
	at, err := s.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, auth.AccessToken{}, err
	}

	account, err := s.accounts.FindByIdentifier(ctx, at.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, auth.AccessToken{}, fmt.Errorf("%w: account no longer exists", common.ErrorUnauthorized)
		}
		return nil, auth.AccessToken{}, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if account.Username != at.Subject {
		return nil, auth.AccessToken{}, common.ErrorUnauthorized
	}
	return account, at, nil
}

// UpdateProfile applies the supplied fields in one write. With nothing
// supplied the stored record is left untouched.
func (s *AccountService) UpdateProfile(ctx context.Context, username string, in models.ProfileInput) error {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	update := models.AccountUpdate{Name: in.Name, Email: in.Email}

	if in.Email != nil {
		owner, err := s.accounts.FindByIdentifier(ctx, *in.Email)
		switch {
		case err == nil && owner.Username != username:
			return fmt.Errorf("%w: email already in use", common.ErrorConflict)
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
	}

	if in.Password != nil {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return err
		}
		update.PasswordHash = &hash
	}

	if err := s.accounts.UpdateFields(ctx, username, update); err != nil {
		switch {
		case errors.Is(err, common.ErrorConflict):
			return fmt.Errorf("%w: email already in use", common.ErrorConflict)
		case errors.Is(err, common.ErrorNotFound):
			return err
		default:
			return fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
	}
	return nil
}

// Logout revokes the access token until it would have expired anyway.
func (s *AccountService) Logout(ctx context.Context, token auth.AccessToken) error {
	if err := s.revocations.Revoke(ctx, token.ID, token.ExpiresAt); err != nil {
		return fmt.Errorf("%w: revoke token: %v", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "logged out", "username", token.Subject)
	return nil
}

// DeleteAccount removes the credential record, then the account's objects,
// then sends a goodbye email. Once the record is gone the remaining steps
// always run; their failures turn the report "degraded" instead of failing
// the call.
func (s *AccountService) DeleteAccount(ctx context.Context, username, email string) (*models.DeletionReport, error) {
	n, err := s.accounts.Delete(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: delete account: %v", common.ErrorInternal, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: account %q", common.ErrorNotFound, username)
	}

	report := &models.DeletionReport{Username: username, Status: models.StatusSuccess}
	report.Record(models.StepCredentialStore, nil)

	// The record is committed; the cascade must not stop with the request.
	ctx = context.WithoutCancel(ctx)

	deleted, err := s.deleteObjects(ctx, username)
	report.DeletedObjects = deleted
	report.Record(models.StepObjectStore, err)
	if err != nil {
		s.logger.Warn(ctx, "account objects not fully deleted",
			"username", username, "step", models.StepObjectStore, "deleted", deleted, "error", err.Error())
	}

	err = s.sendGoodbye(ctx, email)
	report.Record(models.StepNotification, err)
	if err != nil {
		s.logger.Warn(ctx, "goodbye email not sent",
			"username", username, "step", models.StepNotification, "error", err.Error())
	}

	s.logger.Info(ctx, "account deleted", "username", username, "status", report.Status)
	return report, nil
}

func (s *AccountService) deleteObjects(ctx context.Context, username string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dependencyTimeout)
	defer cancel()

	n, err := s.objects.DeleteFolder(ctx, username+"/")
	if err != nil {
		return n, fmt.Errorf("%w: %v", common.ErrorDependency, err)
	}
	return n, nil
}

func (s *AccountService) sendGoodbye(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, s.dependencyTimeout)
	defer cancel()

	if err := s.notifier.SendGoodbye(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorDependency, err)
	}
	return nil
}
