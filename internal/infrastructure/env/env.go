package env

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"voice-navigator/internal/application/port/output"
)

var _ output.ConfigPort = (*EnvService)(nil)

type EnvService struct{}

// NewEnvService loads .env and then .env.<APP_ENV> on top of it.
func NewEnvService() *EnvService {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load %s: %v", envFile, err)
	}

	return &EnvService{}
}

// Lookup reports a non-blank value for key.
func (e *EnvService) Lookup(key string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	return val, val != ""
}

func (e *EnvService) GetWithDefault(key string, defaultValue string) string {
	if val, ok := e.Lookup(key); ok {
		return val
	}
	return defaultValue
}

func (e *EnvService) GetBool(key string, defaultValue bool) bool {
	return parse(e, key, defaultValue, strconv.ParseBool)
}

func (e *EnvService) GetInt(key string, defaultValue int) int {
	return parse(e, key, defaultValue, strconv.Atoi)
}

func (e *EnvService) GetFloat(key string, defaultValue float64) float64 {
	return parse(e, key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func (e *EnvService) GetDuration(key string, defaultValue time.Duration) time.Duration {
	return parse(e, key, defaultValue, time.ParseDuration)
}

func parse[T any](e *EnvService, key string, defaultValue T, fn func(string) (T, error)) T {
	val, ok := e.Lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := fn(val)
	if err != nil {
		log.Printf("Warning: ignoring %s=%q: %v", key, val, err)
		return defaultValue
	}
	return parsed
}
