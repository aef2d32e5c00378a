package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "PORTAL_"

var lookupEnv = os.LookupEnv

// dotEnvFile is read into the process environment when present. Variables
// already set in the environment win over the file.
var dotEnvFile = ".env"

func loadDotEnv() error {
	err := godotenv.Load(dotEnvFile)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", dotEnvFile, err)
}

// parseEnv overlays PORTAL_* variables onto config.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return v, ok && v != ""
	}

	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("GRPC_HEALTH_ADDR", &config.GRPCHealthAddr)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)
	str("REDIS_ADDR", &config.RedisAddr)
	str("REDIS_PASSWORD", &config.RedisPassword)
	str("BLOB_BACKEND", &config.BlobBackend)
	str("UPLOAD_ROOT", &config.UploadRoot)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("AMQP_URL", &config.AMQPURL)
	str("ORPHAN_QUEUE", &config.OrphanQueue)
	str("LOG_LEVEL", &config.LogLevel)

	durations := map[string]*time.Duration{
		"SESSION_TTL":           &config.SessionTTL,
		"HEALTH_CHECK_INTERVAL": &config.HealthCheckInterval,
	}
	for name, dst := range durations {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = d
		}
	}

	if v, ok := get("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", envPrefix, err)
		}
		config.RedisDB = n
	}

	if v, ok := get("MAX_REQUEST_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_REQUEST_BYTES: %w", envPrefix, err)
		}
		config.MaxRequestBytes = n
	}

	bools := map[string]*bool{
		"REJECT_UNKNOWN_ACTIONS": &config.RejectUnknownActions,
		"COOKIE_SECURE":          &config.CookieSecure,
	}
	for name, dst := range bools {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}

	return nil
}
