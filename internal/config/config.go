// Package config loads server settings from flags, the environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server settings. Flags override environment values.
type Config struct {
	HTTPAddr   string
	HealthAddr string
	DBDSN      string
	JWTKey     string
	AccessTTL  time.Duration
	Env        string

	TLSCert string
	TLSKey  string

	RedisAddr   string
	AssetBucket string
	AssetDir    string

	VerifyMaxFails int
	VerifyWindow   time.Duration
	VerifyBlock    time.Duration

	LoginMaxFails int
	LoginWindow   time.Duration
	LoginBlock    time.Duration

	CORSOrigins []string

	AdminUser     string
	AdminPassword string

	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelHeaders     string
	OTelSampleRatio float64
}

// Load reads .env (if present), then parses args with env-derived defaults.
func Load(args []string) (*Config, error) {
	// missing .env is fine
	_ = godotenv.Load(".env")
	return parse(args, os.Getenv)
}

func parse(args []string, getenv func(string) string) (*Config, error) {
	var (
		cfg     Config
		origins string
		errList []error
	)
	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	dur := func(key string, def time.Duration) time.Duration {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}
	boolean := func(key string) bool {
		switch strings.ToLower(strings.TrimSpace(getenv(key))) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	}
	ratio := func(key string, def float64) float64 {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return f
	}
	num := func(key string, def int) int {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}

	fs := flag.NewFlagSet("kriya-server", flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "addr", str("HTTP_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", str("HEALTH_ADDR", ":8081"), "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.DBDSN, "dsn", str("DB_DSN", ""), "PostgreSQL DSN (required)")
	fs.StringVar(&cfg.JWTKey, "jwt-key", str("JWT_KEY", ""), "HS256 signing key (required)")
	fs.DurationVar(&cfg.AccessTTL, "access-ttl", dur("ACCESS_TTL", 15*time.Minute), "access token TTL")
	fs.StringVar(&cfg.Env, "env", str("ENV", "development"), "environment: development|production")
	fs.StringVar(&cfg.TLSCert, "tls-cert", str("TLS_CERT", ""), "TLS certificate (PEM); plain HTTP when empty")
	fs.StringVar(&cfg.TLSKey, "tls-key", str("TLS_KEY", ""), "TLS private key (PEM)")
	fs.StringVar(&cfg.RedisAddr, "redis", str("REDIS_ADDR", ""), "Redis address for the attempt limiter; Postgres when empty")
	fs.StringVar(&cfg.AssetBucket, "asset-bucket", str("ASSET_BUCKET", ""), "GCS bucket with lesson audio")
	fs.StringVar(&cfg.AssetDir, "asset-dir", str("ASSET_DIR", ""), "local directory with lesson audio (dev)")
	fs.IntVar(&cfg.VerifyMaxFails, "verify-max-fails", num("VERIFY_MAX_FAILS", 5), "failed code checks before a block")
	fs.DurationVar(&cfg.VerifyWindow, "verify-window", dur("VERIFY_WINDOW", 15*time.Minute), "code check failure counting window")
	fs.DurationVar(&cfg.VerifyBlock, "verify-block", dur("VERIFY_BLOCK", 15*time.Minute), "code check block duration")
	fs.IntVar(&cfg.LoginMaxFails, "login-max-fails", num("LOGIN_MAX_FAILS", 10), "failed logins before a block")
	fs.DurationVar(&cfg.LoginWindow, "login-window", dur("LOGIN_WINDOW", 15*time.Minute), "login failure counting window")
	fs.DurationVar(&cfg.LoginBlock, "login-block", dur("LOGIN_BLOCK", 15*time.Minute), "login block duration")
	fs.StringVar(&origins, "cors-origins", str("CORS_ORIGINS", ""), "comma-separated allowed origins")
	fs.StringVar(&cfg.AdminUser, "admin-user", str("ADMIN_USER", ""), "bootstrap admin username")
	fs.StringVar(&cfg.AdminPassword, "admin-password", str("ADMIN_PASSWORD", ""), "bootstrap admin password")
	fs.BoolVar(&cfg.OTelEnabled, "otel", boolean("OTEL_ENABLED"), "export request traces")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", str("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP/HTTP endpoint; stdout when empty")
	fs.BoolVar(&cfg.OTelInsecure, "otel-insecure", boolean("OTEL_EXPORTER_OTLP_INSECURE"), "plain HTTP to the OTLP endpoint")
	fs.StringVar(&cfg.OTelHeaders, "otel-headers", str("OTEL_EXPORTER_OTLP_HEADERS", ""), "k=v,k=v headers for the OTLP endpoint")
	fs.Float64Var(&cfg.OTelSampleRatio, "otel-sample", ratio("OTEL_SAMPLER_RATIO", 0.1), "trace sampling ratio 0..1")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.DBDSN == "" {
		errList = append(errList, errors.New("DB_DSN is required but not set"))
	}
	if cfg.JWTKey == "" {
		errList = append(errList, errors.New("JWT_KEY is required but not set"))
	}
	if cfg.AssetBucket != "" && cfg.AssetDir != "" {
		errList = append(errList, errors.New("set only one of ASSET_BUCKET and ASSET_DIR"))
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		errList = append(errList, errors.New("TLS_CERT and TLS_KEY must be set together"))
	}
	if (cfg.AdminUser == "") != (cfg.AdminPassword == "") {
		errList = append(errList, errors.New("ADMIN_USER and ADMIN_PASSWORD must be set together"))
	}
	if cfg.VerifyMaxFails <= 0 {
		errList = append(errList, errors.New("VERIFY_MAX_FAILS must be positive"))
	}
	if cfg.LoginMaxFails <= 0 {
		errList = append(errList, errors.New("LOGIN_MAX_FAILS must be positive"))
	}
	if cfg.OTelSampleRatio < 0 || cfg.OTelSampleRatio > 1 {
		errList = append(errList, errors.New("OTEL_SAMPLER_RATIO must be within 0..1"))
	}
	if cfg.AccessTTL <= 0 {
		errList = append(errList, errors.New("ACCESS_TTL must be positive"))
	}
	if len(errList) > 0 {
		return nil, errors.Join(errList...)
	}
	return &cfg, nil
}
