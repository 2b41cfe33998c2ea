// Package auth holds the credential primitives: the JWT token codec and the
// password hashers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token is the decoded form of a signed token: either AccessToken or
// VerificationToken.
type Token interface {
	token()
}

// AccessToken authorises API calls on behalf of Subject (a username).
type AccessToken struct {
	Subject   string
	ID        string
	ExpiresAt time.Time
}

// VerificationToken proves control of Email.
type VerificationToken struct {
	Email     string
	ExpiresAt time.Time
}

func (AccessToken) token()       {}
func (VerificationToken) token() {}

// Claims is the wire payload. Access tokens carry no type; verification
// tokens carry type "verification".
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type,omitempty"`
}

// TokenCodec signs and verifies HS256 tokens with one shared secret.
type TokenCodec struct {
	secret          []byte
	accessTTL       time.Duration
	verificationTTL time.Duration
	now             func() time.Time
}

func NewTokenCodec(secret []byte, accessTTL, verificationTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:          secret,
		accessTTL:       accessTTL,
		verificationTTL: verificationTTL,
		now:             time.Now,
	}
}

// WithClock returns a copy of the codec reading time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *TokenCodec) sign(claims Claims) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// IssueAccess mints an access token for username.
func (c *TokenCodec) IssueAccess(username string) (string, AccessToken, error) {
	now := c.now()
	t := AccessToken{
		Subject:   username,
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(c.accessTTL).UTC().Truncate(jwt.TimePrecision),
	}

	s, err := c.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   t.Subject,
			ID:        t.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(t.ExpiresAt),
		},
	})
	if err != nil {
		return "", AccessToken{}, err
	}
	return s, t, nil
}

// IssueVerification mints a verification token for email.
func (c *TokenCodec) IssueVerification(email string) (string, error) {
	now := c.now()
	return c.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.verificationTTL)),
		},
		Type: common.VerificationTokenType,
	})
}

// Decode verifies signature and expiry and returns the token variant.
// Expired tokens yield common.ErrTokenExpired; every other failure wraps
// common.ErrInvalidToken.
func (c *TokenCodec) Decode(tokenString string) (Token, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}
	expiresAt := claims.ExpiresAt.Time.UTC()

	switch claims.Type {
	case "":
		if claims.ID == "" {
			return nil, fmt.Errorf("%w: missing token id", common.ErrInvalidToken)
		}
		return AccessToken{Subject: claims.Subject, ID: claims.ID, ExpiresAt: expiresAt}, nil
	case common.VerificationTokenType:
		return VerificationToken{Email: claims.Subject, ExpiresAt: expiresAt}, nil
	default:
		return nil, fmt.Errorf("%w: unknown token type %q", common.ErrInvalidToken, claims.Type)
	}
}

// DecodeAccess accepts only access tokens.
func (c *TokenCodec) DecodeAccess(tokenString string) (AccessToken, error) {
	t, err := c.Decode(tokenString)
	if err != nil {
		return AccessToken{}, err
	}
	at, ok := t.(AccessToken)
	if !ok {
		return AccessToken{}, common.ErrWrongTokenUse
	}
	return at, nil
}

// DecodeVerification accepts only verification tokens.
func (c *TokenCodec) DecodeVerification(tokenString string) (VerificationToken, error) {
	t, err := c.Decode(tokenString)
	if err != nil {
		return VerificationToken{}, err
	}
	vt, ok := t.(VerificationToken)
	if !ok {
		return VerificationToken{}, common.ErrWrongTokenUse
	}
	return vt, nil
}
