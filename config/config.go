package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Annany2002/cadastro-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Config holds application configuration values
type Config struct {
	ServerPort    string
	JWTSecret     string
	JWTExpiration time.Duration

	DatabaseURL string
	Schema      string

	// Grants mirror: a privileged connection used only for CREATE ROLE / GRANT / REVOKE.
	GrantsEnabled     bool
	GrantsDatabaseURL string
	GrantsRolePrefix  string

	// Optional bootstrap administrator created on startup when absent.
	AdminUsername string
	AdminPassword string

	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	port := getEnv("SERVER_PORT", "8080")
	jwtSecret := os.Getenv("JWT_SECRET")
	jwtExpHoursStr := getEnv("JWT_EXPIRATION_HOURS", "24")

	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable must be set")
	}

	jwtExpHours, err := strconv.Atoi(jwtExpHoursStr)
	if err != nil || jwtExpHours <= 0 {
		customLog.Warnf("Invalid JWT_EXPIRATION_HOURS '%s'. Using default 24h. Error: %v", jwtExpHoursStr, err)
		jwtExpHours = 24
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = buildPostgresURL(
			getEnv("POSTGRES_USER", "cadastro_user"),
			getEnv("POSTGRES_PASSWORD", "cadastro_password"),
			getEnv("POSTGRES_HOST", "localhost"),
			getEnv("POSTGRES_PORT", "5436"),
			getEnv("POSTGRES_DB", "cadastro_db"),
			getEnv("POSTGRES_SSLMODE", "disable"),
		)
	}

	grantsURL := getEnv("GRANTS_DATABASE_URL", dbURL)

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120"))
	if err != nil || rateLimit <= 0 {
		customLog.Warnf("Invalid RATE_LIMIT_PER_MINUTE. Using default 120. Error: %v", err)
		rateLimit = 120
	}

	cfg := &Config{
		ServerPort:         strings.TrimPrefix(port, ":"),
		JWTSecret:          jwtSecret,
		JWTExpiration:      time.Hour * time.Duration(jwtExpHours),
		DatabaseURL:        dbURL,
		Schema:             getEnv("DB_SCHEMA", "public"),
		GrantsEnabled:      getBool("GRANTS_ENABLED", true),
		GrantsDatabaseURL:  grantsURL,
		GrantsRolePrefix:   getEnv("GRANTS_ROLE_PREFIX", "cad_"),
		AdminUsername:      os.Getenv("ADMIN_USERNAME"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMinute: rateLimit,
	}

	if cfg.AdminUsername != "" && cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_PASSWORD must be set when ADMIN_USERNAME is set")
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, JWT Exp: %v, Schema: %s, Grants mirror: %v",
		cfg.ServerPort, cfg.JWTExpiration, cfg.Schema, cfg.GrantsEnabled)
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		customLog.Warnf("Invalid boolean for %s: '%s'. Using %v", key, raw, fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func buildPostgresURL(user, password, host, port, dbName, sslMode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		Path:     "/" + dbName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}
