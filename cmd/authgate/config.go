package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/msavelyev/authgate/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultIssuer          = "authgate"
	defaultAudience        = "authgate-api"
	defaultLoginAttempts   = 5
	defaultRegisterLimit   = 3
	defaultRateLimitWindow = time.Minute

	minSecretKeyLen = 32
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key used to sign access tokens
	SecretKey string

	// Environment: development, staging or production
	Environment string

	// Access and refresh token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Issuer and audience claims of access tokens
	TokenIssuer   string
	TokenAudience string

	// Cookie transport attributes
	CookieSecure bool
	CookieDomain string

	// Origin allowed to call the API with credentials, development only
	CORSOrigin string

	// Whether the edge sets X-Forwarded-For authoritatively
	TrustForwardedFor bool

	// Redis address for the shared rate limiter
	// Empty means the in-process limiter is used
	RedisAddr string

	// Admission control for authentication endpoints
	LoginMaxAttempts    int
	RegisterMaxAttempts int
	RateLimitWindow     time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:            defaultLoggingLevel,
		ListenAddr:          defaultListenAddr,
		Environment:         defaultEnvironment,
		AccessTokenTTL:      defaultAccessTTL,
		RefreshTokenTTL:     defaultRefreshTTL,
		TokenIssuer:         defaultIssuer,
		TokenAudience:       defaultAudience,
		CookieSecure:        true,
		LoginMaxAttempts:    defaultLoginAttempts,
		RegisterMaxAttempts: defaultRegisterLimit,
		RateLimitWindow:     defaultRateLimitWindow,
	}
}

// Load variables from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	var parseErr error

	// Set option to value if it is not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setBool := func(o *bool) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			v, err := strconv.ParseBool(value)
			if err != nil {
				parseErr = errors.Join(parseErr, err)
				return
			}
			*o = v
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				parseErr = errors.Join(parseErr, err)
				return
			}
			*o = v
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			v, err := time.ParseDuration(value)
			if err != nil {
				parseErr = errors.Join(parseErr, err)
				return
			}
			*o = v
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":           setString(&c.ListenAddr),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"SECRET_KEY":            setString(&c.SecretKey),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"ENVIRONMENT":           setString(&c.Environment),
		"ACCESS_TOKEN_TTL":      setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":     setDuration(&c.RefreshTokenTTL),
		"TOKEN_ISSUER":          setString(&c.TokenIssuer),
		"TOKEN_AUDIENCE":        setString(&c.TokenAudience),
		"COOKIE_SECURE":         setBool(&c.CookieSecure),
		"COOKIE_DOMAIN":         setString(&c.CookieDomain),
		"CORS_ORIGIN":           setString(&c.CORSOrigin),
		"TRUST_FORWARDED_FOR":   setBool(&c.TrustForwardedFor),
		"REDIS_ADDR":            setString(&c.RedisAddr),
		"LOGIN_MAX_ATTEMPTS":    setInt(&c.LoginMaxAttempts),
		"REGISTER_MAX_ATTEMPTS": setInt(&c.RegisterMaxAttempts),
		"RATE_LIMIT_WINDOW":     setDuration(&c.RateLimitWindow),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}

	return parseErr
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authgate", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, staging, production)")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for the shared rate limiter")

	return fs.Parse(args)
}

// Validate checks the invariants the rest of the service relies on.
// Called once at startup so a bad deployment fails fast instead of lazily.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case logger.EnvDevelopment, logger.EnvStaging, logger.EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	switch {
	case c.SecretKey == "":
		errs = append(errs, errors.New("SECRET_KEY is required. Generate with: authgate-gensecret"))
	case len(c.SecretKey) < minSecretKeyLen:
		errs = append(errs, fmt.Errorf("SECRET_KEY must be at least %d characters", minSecretKeyLen))
	case looksWeak(c.SecretKey):
		errs = append(errs, errors.New("SECRET_KEY appears to contain common weak patterns, use a cryptographically random value"))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}

	// Cookies without the Secure flag can be intercepted over HTTP,
	// allowed in local development only
	if !c.CookieSecure && c.Environment != logger.EnvDevelopment {
		errs = append(errs, fmt.Errorf("COOKIE_SECURE=false is not allowed in %s", c.Environment))
	}

	return errors.Join(errs...)
}

func looksWeak(secret string) bool {
	lowered := strings.ToLower(secret)
	for _, pattern := range []string{"secret", "password", "test", "123", "admin", "changeme"} {
		if strings.Contains(lowered, pattern) {
			return true
		}
	}
	return false
}
