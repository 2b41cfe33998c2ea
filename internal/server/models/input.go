package models

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Usernames double as object-store prefixes, so '/' and '@' are excluded.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

const (
	maxPasswordLength = 128
	maxNameLength     = 200
	maxEmailLength    = 254
)

// RegisterInput is the registration request body.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims whitespace and lowercases the email.
func (r *RegisterInput) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = NormalizeEmail(r.Email)
}

func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required,
			validation.Match(usernamePattern),
			validation.NotIn(".", ".."),
		),
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, maxPasswordLength)),
	)
}

// ProfileInput is the profile update body; absent fields stay untouched.
type ProfileInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Normalize drops blank optional fields, matching the "only supplied fields"
// rule, and lowercases the email.
func (p *ProfileInput) Normalize() {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		p.Name = nil
	}
	if p.Email != nil {
		if e := NormalizeEmail(*p.Email); e == "" {
			p.Email = nil
		} else {
			p.Email = &e
		}
	}
	if p.Password != nil && *p.Password == "" {
		p.Password = nil
	}
}

func (p ProfileInput) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, maxNameLength)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&p.Password, validation.NilOrNotEmpty, validation.Length(1, maxPasswordLength)),
	)
}

// IsEmpty reports whether the update supplies nothing.
func (p ProfileInput) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
