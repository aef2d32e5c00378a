package config

import (
	"github.com/spf13/pflag"
)

const (
	flagConfig               = "config"
	flagHTTPAddr             = "http-addr"
	flagGRPCHealthAddr       = "grpc-health-addr"
	flagDatabaseDSN          = "database-dsn"
	flagSecretKey            = "secret-key"
	flagSessionTTL           = "session-ttl"
	flagRedisAddr            = "redis-addr"
	flagBlobBackend          = "blob-backend"
	flagUploadRoot           = "upload-root"
	flagS3Bucket             = "s3-bucket"
	flagS3Region             = "s3-region"
	flagS3BaseEndpoint       = "s3-endpoint"
	flagAMQPURL              = "amqp-url"
	flagMaxRequestBytes      = "max-request-bytes"
	flagLogLevel             = "log-level"
	flagRejectUnknownActions = "reject-unknown-actions"
)

// RegisterFlags declares the server flags on fs. Defaults shown in help come
// from LoadDefaults; only flags the user actually sets override the other
// sources.
//
//	-c, --config string          JSON config file
//	-a, --http-addr string       web listen address
//	-d, --database-dsn string    PostgreSQL DSN
//	-s, --secret-key string      session cookie HMAC key
//	-b, --blob-backend string    local | s3
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(flagConfig, "c", "", "path to JSON config file")
	fs.StringP(flagHTTPAddr, "a", d.HTTPAddr, "address and port to serve HTTP on")
	fs.String(flagGRPCHealthAddr, d.GRPCHealthAddr, "address and port of the gRPC health service")
	fs.StringP(flagDatabaseDSN, "d", d.DatabaseDSN, "database DSN")
	fs.StringP(flagSecretKey, "s", d.SecretKey, "session signing key")
	fs.Duration(flagSessionTTL, d.SessionTTL, "session lifetime")
	fs.String(flagRedisAddr, d.RedisAddr, "redis address for sessions (empty: in-memory)")
	fs.StringP(flagBlobBackend, "b", d.BlobBackend, "blob backend: local or s3")
	fs.String(flagUploadRoot, d.UploadRoot, "root directory of the local blob store")
	fs.String(flagS3Bucket, d.S3Bucket, "S3 bucket")
	fs.String(flagS3Region, d.S3Region, "S3 region")
	fs.String(flagS3BaseEndpoint, d.S3BaseEndpoint, "S3 base endpoint")
	fs.String(flagAMQPURL, d.AMQPURL, "AMQP URL for orphaned blob reports (empty: log only)")
	fs.Int64(flagMaxRequestBytes, d.MaxRequestBytes, "maximum request body size in bytes")
	fs.String(flagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.Bool(flagRejectUnknownActions, d.RejectUnknownActions, "report unknown dashboard actions as errors")
}

// applyFlags copies every flag that was explicitly set on fs into config.
func applyFlags(config *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case flagHTTPAddr:
			config.HTTPAddr, err = fs.GetString(f.Name)
		case flagGRPCHealthAddr:
			config.GRPCHealthAddr, err = fs.GetString(f.Name)
		case flagDatabaseDSN:
			config.DatabaseDSN, err = fs.GetString(f.Name)
		case flagSecretKey:
			config.SecretKey, err = fs.GetString(f.Name)
		case flagSessionTTL:
			config.SessionTTL, err = fs.GetDuration(f.Name)
		case flagRedisAddr:
			config.RedisAddr, err = fs.GetString(f.Name)
		case flagBlobBackend:
			config.BlobBackend, err = fs.GetString(f.Name)
		case flagUploadRoot:
			config.UploadRoot, err = fs.GetString(f.Name)
		case flagS3Bucket:
			config.S3Bucket, err = fs.GetString(f.Name)
		case flagS3Region:
			config.S3Region, err = fs.GetString(f.Name)
		case flagS3BaseEndpoint:
			config.S3BaseEndpoint, err = fs.GetString(f.Name)
		case flagAMQPURL:
			config.AMQPURL, err = fs.GetString(f.Name)
		case flagMaxRequestBytes:
			config.MaxRequestBytes, err = fs.GetInt64(f.Name)
		case flagLogLevel:
			config.LogLevel, err = fs.GetString(f.Name)
		case flagRejectUnknownActions:
			config.RejectUnknownActions, err = fs.GetBool(f.Name)
		}
	})
	return err
}
