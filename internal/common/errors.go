// Package common defines shared constants and sentinel errors used across
// the account service layers. Callers should use errors.Is to match these
// values; lower layers add context with fmt.Errorf("...: %w", err).
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Input errors, raised before storage is touched.
	ErrorValidation = errors.New("validation error")

	// Service-level errors.
	ErrorInternal           = errors.New("internal error")
	ErrorUnauthorized       = errors.New("unauthorized")
	ErrorInvalidCredentials = errors.New("incorrect username or password")
	ErrorEmailNotVerified   = errors.New("email not verified")

	// External collaborator (object store, mail provider) failures.
	ErrorDependency = errors.New("dependency error")

	// Token errors. ErrTokenExpired always matches ErrInvalidToken too.
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = expiredError{}
	ErrTokenRevoked  = revokedError{}
	ErrWrongTokenUse = wrongUseError{}
)

type expiredError struct{}

func (expiredError) Error() string        { return "token expired" }
func (expiredError) Is(target error) bool { return target == ErrInvalidToken }

type revokedError struct{}

func (revokedError) Error() string        { return "token revoked" }
func (revokedError) Is(target error) bool { return target == ErrInvalidToken }

// wrongUseError is returned when a well-formed token of one class is presented
// where the other class is required.
type wrongUseError struct{}

func (wrongUseError) Error() string        { return "token not valid for this operation" }
func (wrongUseError) Is(target error) bool { return target == ErrInvalidToken }
