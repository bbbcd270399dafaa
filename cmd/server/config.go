package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds all configuration options
type Config struct {
	// Server config
	Port          string   `long:"port" env:"PORT" default:"8443" description:"Server port"`
	RPID          string   `long:"rp-id" env:"RP_ID" default:"localhost" description:"Relying party ID"`
	RPOrigins     []string `long:"rp-origin" env:"RP_ORIGIN" env-delim:"," default:"https://localhost:8443" description:"Relying party origins"`
	RPDisplayName string   `long:"rp-display-name" env:"RP_DISPLAY_NAME" default:"Hikaweb Admin" description:"Relying party display name"`

	// Ceremony config
	ChallengeTTL time.Duration `long:"challenge-ttl" env:"CHALLENGE_TTL" default:"5m" description:"Lifetime of issued WebAuthn challenges"`
	PolicyPath   string        `long:"policy-path" env:"POLICY_PATH" default:"./policy.yaml" description:"Security policy file (privileged roles, seed users)"`

	// Storage config
	StoreMode string `long:"store-mode" env:"STORE_MODE" default:"redis" choice:"redis" choice:"memory" description:"Credential and challenge storage backend"`

	// Redis config
	Redis struct {
		Addr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
		Password string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
		DB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	} `group:"Redis Options"`

	// Audit trail config
	Audit struct {
		Enabled   bool   `long:"audit-enabled" env:"AUDIT_ENABLED" description:"Record ceremony outcomes to object storage"`
		Endpoint  string `long:"audit-endpoint" env:"AUDIT_ENDPOINT" default:"localhost:9000" description:"S3 endpoint (host:port)"`
		Bucket    string `long:"audit-bucket" env:"AUDIT_BUCKET" default:"hikaweb-audit" description:"S3 bucket name"`
		AccessKey string `long:"audit-access-key" env:"AUDIT_ACCESS_KEY" default:"minioadmin" description:"S3 access key"`
		SecretKey string `long:"audit-secret-key" env:"AUDIT_SECRET_KEY" default:"minioadmin" description:"S3 secret key"`
		UseSSL    bool   `long:"audit-use-ssl" env:"AUDIT_USE_SSL" description:"Use SSL for S3 connections"`
	} `group:"Audit Trail Options"`

	// Token config
	JWT struct {
		Secret string        `long:"jwt-secret" env:"JWT_SECRET" description:"HMAC signing secret for access tokens"`
		Issuer string        `long:"jwt-issuer" env:"JWT_ISSUER" default:"hikaweb-auth" description:"Issuer claim for access tokens"`
		TTL    time.Duration `long:"jwt-ttl" env:"JWT_TTL" default:"15m" description:"Access token lifetime"`
	} `group:"Token Options"`
}

// LoadConfig parses configuration from environment variables and command line flags
func LoadConfig() (*Config, error) {
	var config Config

	parser := flags.NewParser(&config, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}
