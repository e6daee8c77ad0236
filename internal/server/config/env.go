package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv is a seam for tests. godotenv never overrides variables that
// are already set in the process environment.
var loadDotEnv = func() error { return godotenv.Load() }

// parseEnv overlays environment variables onto config. A .env file in the
// working directory is loaded first when present.
func parseEnv(config *Config) error {
	if err := loadDotEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var problems []string

	lookupString("HTTP_ADDR", &config.EndpointAddrHTTP)
	lookupString("GRPC_ADDR", &config.EndpointAddrGRPC)
	lookupString("DATABASE_DSN", &config.DatabaseDSN)
	lookupString("SECRET_KEY", &config.SecretKey)
	lookupString("REDIS_ADDR", &config.RedisAddr)
	lookupString("S3_ROOT_USER", &config.S3RootUser)
	lookupString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	lookupString("S3_BUCKET", &config.S3Bucket)
	lookupString("S3_REGION", &config.S3Region)
	lookupString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	lookupString("LOG_LEVEL", &config.LogLevel)

	lookupDuration("TOKEN_TTL", &config.TokenTTL, &problems)
	lookupDuration("LOGIN_RATE_WINDOW", &config.LoginRateWindow, &problems)

	if v, ok := lookupInt("LOGIN_RATE_LIMIT", 32, &problems); ok {
		config.LoginRateLimit = int(v)
	}
	if v, ok := lookupInt("ARGON2_TIME", 32, &problems); ok {
		config.Argon2Time = uint32(v)
	}
	if v, ok := lookupInt("ARGON2_MEMORY_KIB", 32, &problems); ok {
		config.Argon2MemoryKiB = uint32(v)
	}
	if v, ok := lookupInt("ARGON2_THREADS", 8, &problems); ok {
		config.Argon2Threads = uint8(v)
	}

	if len(problems) > 0 {
		return errors.New("environment errors:\n- " + strings.Join(problems, "\n- "))
	}
	return nil
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func lookupDuration(key string, dst *time.Duration, problems *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid value for %s: expected duration, got %q", key, v))
		return
	}
	*dst = d
}

func lookupInt(key string, bits int, problems *[]string) (int64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, bits)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid value for %s: expected integer, got %q", key, v))
		return 0, false
	}
	return n, true
}
