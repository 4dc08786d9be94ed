package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	portEnvVar         = "PORT"
	appNameVar         = "APP_NAME"
	baseURLVar         = "BASE_URL"
	frontendURLVar     = "FRONTEND_URL"
	defaultAppName     = "Broker Gate"
	defaultBaseURL     = "http://localhost:8080"
	defaultFrontendURL = "http://localhost:3000"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetServerAddress() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, defaultAppName)
}

// GetBaseURL returns the externally reachable base URL of this proxy
// (e.g. "https://trade.example.com"). Used to derive the OAuth redirect URI.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, defaultBaseURL)
}

// GetFrontendURL returns the web front end's origin, used for the
// post-callback redirect and as the default CORS origin.
func (EnvVars) GetFrontendURL() string {
	return GetEnv(frontendURLVar, defaultFrontendURL)
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func GetEnvSeconds(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return time.Duration(n) * time.Second
}
