package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration of the application.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	LockBuffer   time.Duration
}

// Load reads configuration from environment variables. A .env file is
// loaded when present, which keeps local development convenient; a missing
// file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	lockBufferStr := os.Getenv("LOCK_BUFFER_MINUTES")
	if lockBufferStr == "" {
		lockBufferStr = "10"
	}
	lockBufferMin, err := strconv.Atoi(lockBufferStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_BUFFER_MINUTES environment variable: %w", err)
	}
	if lockBufferMin < 0 {
		return nil, fmt.Errorf("LOCK_BUFFER_MINUTES must not be negative, got %d", lockBufferMin)
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		LockBuffer:   time.Duration(lockBufferMin) * time.Minute,
	}

	return cfg, nil
}
