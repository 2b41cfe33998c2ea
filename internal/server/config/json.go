package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/cloudsentiment/internal/flagx"
	"github.com/dmitrijs2005/cloudsentiment/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "30m" strings or
// integer nanoseconds.
type JsonConfig struct {
	HTTPAddr       string `json:"http_addr"`
	GRPCHealthAddr string `json:"grpc_health_addr"`
	DatabaseDSN    string `json:"database_dsn"`
	LogLevel       string `json:"log_level"`

	SecretKey                         string         `json:"secret_key"`
	AccessTokenValidityDuration       timex.Duration `json:"access_token_validity_duration"`
	VerificationTokenValidityDuration timex.Duration `json:"verification_token_validity_duration"`

	PasswordHashAlgorithm string `json:"password_hash_algorithm"`
	BcryptCost            int    `json:"bcrypt_cost"`
	Argon2Iterations      uint32 `json:"argon2_iterations"`
	Argon2MemoryKiB       uint32 `json:"argon2_memory_kib"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	RedisAddr string `json:"redis_addr"`

	SendGridAPIKey string `json:"sendgrid_api_key"`
	MailFrom       string `json:"mail_from"`
	AppBaseURL     string `json:"app_base_url"`

	DependencyTimeout timex.Duration `json:"dependency_timeout"`
}

// parseJson overlays the JSON file named by -c/-config (or $CONFIG) onto
// config. Keys absent from the file keep their current values. An unreadable
// or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFilePath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.VerificationTokenValidityDuration, c.VerificationTokenValidityDuration)
	setString(&config.PasswordHashAlgorithm, c.PasswordHashAlgorithm)
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.Argon2Iterations != 0 {
		config.Argon2Iterations = c.Argon2Iterations
	}
	if c.Argon2MemoryKiB != 0 {
		config.Argon2MemoryKiB = c.Argon2MemoryKiB
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SendGridAPIKey, c.SendGridAPIKey)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.AppBaseURL, c.AppBaseURL)
	setDuration(&config.DependencyTimeout, c.DependencyTimeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
