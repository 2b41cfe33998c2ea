// Package config handles configuration for the server component: defaults,
// an optional JSON file, environment variables and command-line flags, applied
// in that order.
package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Hash algorithm names accepted in PasswordHashAlgorithm.
const (
	HashArgon2id = "argon2id"
	HashBcrypt   = "bcrypt"
)

// argon2 needs 8 KiB per lane and hashes with 2 lanes.
const minArgon2MemoryKiB = 16

// Config holds runtime settings for the account server.
//
// An empty S3BaseEndpoint selects the in-memory object store, an empty
// RedisAddr the in-memory revocation list and an empty SendGridAPIKey the
// log-only mailer. SecretKey signs every token; the default is for local
// development only.
type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR"`
	GRPCHealthAddr string `env:"GRPC_HEALTH_ADDR"`
	DatabaseDSN    string `env:"DATABASE_DSN"`
	LogLevel       string `env:"LOG_LEVEL"`

	SecretKey                         string        `env:"SECRET_KEY"`
	AccessTokenValidityDuration       time.Duration `env:"ACCESS_TOKEN_TTL"`
	VerificationTokenValidityDuration time.Duration `env:"VERIFICATION_TOKEN_TTL"`

	PasswordHashAlgorithm string `env:"PASSWORD_HASH_ALGORITHM"`
	BcryptCost            int    `env:"BCRYPT_COST"`
	Argon2Iterations      uint32 `env:"ARGON2_ITERATIONS"`
	Argon2MemoryKiB       uint32 `env:"ARGON2_MEMORY_KIB"`

	S3RootUser     string `env:"S3_ROOT_USER"`
	S3RootPassword string `env:"S3_ROOT_PASSWORD"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`

	RedisAddr string `env:"REDIS_ADDR"`

	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	MailFrom       string `env:"SENDGRID_FROM_EMAIL"`
	AppBaseURL     string `env:"APP_BASE_URL"`

	DependencyTimeout time.Duration `env:"DEPENDENCY_TIMEOUT"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key must be overridden outside local development.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCHealthAddr = ":50051"
	c.DatabaseDSN = "memory://"
	c.LogLevel = "info"
	c.SecretKey = "super_secret_key_change_me"
	c.AccessTokenValidityDuration = 30 * time.Minute
	c.VerificationTokenValidityDuration = 24 * time.Hour
	c.PasswordHashAlgorithm = HashArgon2id
	c.BcryptCost = 12
	c.Argon2Iterations = 3
	c.Argon2MemoryKiB = 64 * 1024
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "vault"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.RedisAddr = ""
	c.SendGridAPIKey = ""
	c.MailFrom = "no-reply@localhost"
	c.AppBaseURL = "http://localhost:8080"
	c.DependencyTimeout = 10 * time.Second
}

// LoadConfig builds a Config from defaults, then the JSON file, then the
// environment, then command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must not be empty"))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, fmt.Errorf("access token lifetime must be positive, got %s", c.AccessTokenValidityDuration))
	}
	if c.VerificationTokenValidityDuration <= 0 {
		errs = append(errs, fmt.Errorf("verification token lifetime must be positive, got %s", c.VerificationTokenValidityDuration))
	}
	switch c.PasswordHashAlgorithm {
	case HashArgon2id, HashBcrypt:
	default:
		errs = append(errs, fmt.Errorf("unknown password hash algorithm %q", c.PasswordHashAlgorithm))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be within [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost))
	}
	if c.Argon2Iterations < 1 {
		errs = append(errs, errors.New("argon2 iterations must be at least 1"))
	}
	if c.Argon2MemoryKiB < minArgon2MemoryKiB {
		errs = append(errs, fmt.Errorf("argon2 memory must be at least %d KiB, got %d", minArgon2MemoryKiB, c.Argon2MemoryKiB))
	}
	if c.DependencyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dependency timeout must be positive, got %s", c.DependencyTimeout))
	}

	return errors.Join(errs...)
}
