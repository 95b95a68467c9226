package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Identity provider (AWS Cognito style hosted provider). Leave empty to
	// run with the local development login instead.
	Region       string // e.g. ap-southeast-2
	UserPoolID   string // e.g. ap-southeast-2_AbCdEfGh
	ClientID     string
	ClientSecret string // Optional: empty for public clients
	HostedDomain string // Full origin of the hosted UI, e.g. https://auth.example.com
	AdminGroup   string // Provider group granting admin rights (default: admin)
	LocalLogin   bool   // Enable the passwordless dev login. Refused alongside a provider.
	AppURL       string // Public origin of this app, used to build the callback URI
	SessionTTL   time.Duration
	RedisURL     string // Optional: redis session store; empty means in-memory
	DatabaseFile string // Path to the SQLite database file (default: ./tasks.db)

	Env                 string // Environment (dev, staging, prod) (default: dev)
	LogLevel            string // Log level (debug, info, warn, error) (default: info)
	LogFormat           string // Log format (json, text) (default: json)
	Port                int    // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration
}

func LoadConfig() Config {
	return Config{
		Region:       os.Getenv("COGNITO_REGION"),
		UserPoolID:   os.Getenv("COGNITO_USER_POOL_ID"),
		ClientID:     os.Getenv("COGNITO_CLIENT_ID"),
		ClientSecret: os.Getenv("COGNITO_CLIENT_SECRET"),
		HostedDomain: os.Getenv("COGNITO_DOMAIN"),
		AdminGroup:   getEnvOrDefault("ADMIN_GROUP", "admin"),
		LocalLogin:   getEnvBoolOrDefault("LOCAL_LOGIN", false),
		AppURL:       getEnvOrDefault("APP_URL", "http://localhost:8080"),
		SessionTTL:   getEnvDurationOrDefault("SESSION_TTL", 8*time.Hour),
		RedisURL:     os.Getenv("REDIS_URL"),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "tasks.db"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// ProviderEnabled reports whether the hosted identity provider is
// configured at all.
func (c Config) ProviderEnabled() bool {
	return c.UserPoolID != "" || c.ClientID != "" || c.HostedDomain != ""
}

// Validate refuses inconsistent configurations at startup rather than
// branching on them at request time.
func (c Config) Validate() error {
	if !c.ProviderEnabled() {
		if !c.LocalLogin {
			return errors.New("no authentication configured: set the COGNITO_* variables or LOCAL_LOGIN=true")
		}
		return nil
	}

	if c.LocalLogin {
		return errors.New("LOCAL_LOGIN cannot be enabled while an identity provider is configured")
	}
	if c.Region == "" || c.UserPoolID == "" || c.ClientID == "" || c.HostedDomain == "" {
		return errors.New("incomplete provider configuration: COGNITO_REGION, COGNITO_USER_POOL_ID, COGNITO_CLIENT_ID and COGNITO_DOMAIN are all required")
	}
	if _, err := url.ParseRequestURI(c.HostedDomain); err != nil {
		return fmt.Errorf("invalid COGNITO_DOMAIN: %w", err)
	}
	if _, err := url.ParseRequestURI(c.AppURL); err != nil {
		return fmt.Errorf("invalid APP_URL: %w", err)
	}
	return nil
}

// IssuerURL is the exact issuer the identity tokens must carry.
func (c Config) IssuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

func (c Config) JWKSURL() string {
	return c.IssuerURL() + "/.well-known/jwks.json"
}

func (c Config) TokenURL() string {
	return c.HostedDomain + "/oauth2/token"
}

func (c Config) AuthorizeURL() string {
	return c.HostedDomain + "/oauth2/authorize"
}

// LogoutURL sends the browser to the hosted logout endpoint and back to the
// app afterwards.
func (c Config) LogoutURL() string {
	q := url.Values{}
	q.Set("client_id", c.ClientID)
	q.Set("logout_uri", c.AppURL)
	return c.HostedDomain + "/logout?" + q.Encode()
}

func (c Config) RedirectURI() string {
	return c.AppURL + "/callback"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are read as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
