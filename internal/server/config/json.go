package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/enrollportal/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "90s" and integer nanoseconds are accepted. Only
// fields present with a non-zero value override the current Config.
type JsonConfig struct {
	HTTPAddr             string         `json:"http_addr"`
	GRPCHealthAddr       string         `json:"grpc_health_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	SessionTTL           timex.Duration `json:"session_ttl"`
	HealthCheckInterval  timex.Duration `json:"health_check_interval"`
	RedisAddr            string         `json:"redis_addr"`
	RedisPassword        string         `json:"redis_password"`
	RedisDB              int            `json:"redis_db"`
	BlobBackend          string         `json:"blob_backend"`
	UploadRoot           string         `json:"upload_root"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	AMQPURL              string         `json:"amqp_url"`
	OrphanQueue          string         `json:"orphan_queue"`
	MaxRequestBytes      int64          `json:"max_request_bytes"`
	LogLevel             string         `json:"log_level"`
	RejectUnknownActions *bool          `json:"reject_unknown_actions"`
	CookieSecure         *bool          `json:"cookie_secure"`
}

func parseJson(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.SessionTTL.Duration > 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.HealthCheckInterval.Duration > 0 {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.UploadRoot, c.UploadRoot)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.OrphanQueue, c.OrphanQueue)
	if c.MaxRequestBytes > 0 {
		config.MaxRequestBytes = c.MaxRequestBytes
	}
	setString(&config.LogLevel, c.LogLevel)
	if c.RejectUnknownActions != nil {
		config.RejectUnknownActions = *c.RejectUnknownActions
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
