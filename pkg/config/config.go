package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Blob   BlobConfig
	GCP    GCPConfig
	GCS    GCSConfig
	Grant  GrantConfig
	Media  MediaConfig
	PubSub PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Blob.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLIPHIVE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLIPHIVE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CLIPHIVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLIPHIVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CLIPHIVE_DB_DSN" required:"true"`
	Driver string `envconfig:"CLIPHIVE_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"CLIPHIVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLIPHIVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLIPHIVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLIPHIVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"CLIPHIVE_DB_AUTO_MIGRATE" default:"false"`
}

type MongoConfig struct {
	URI            string        `envconfig:"CLIPHIVE_MONGO_URI" required:"true"`
	Database       string        `envconfig:"CLIPHIVE_MONGO_DATABASE" default:"cliphive"`
	ConnectTimeout time.Duration `envconfig:"CLIPHIVE_MONGO_CONNECT_TIMEOUT" default:"10s"`
	MaxPoolSize    uint64        `envconfig:"CLIPHIVE_MONGO_MAX_POOL_SIZE" default:"20"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLIPHIVE_REDIS_URL"`
	Address      string        `envconfig:"CLIPHIVE_REDIS_ADDR"`
	Password     string        `envconfig:"CLIPHIVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLIPHIVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLIPHIVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLIPHIVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLIPHIVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLIPHIVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLIPHIVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CLIPHIVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CLIPHIVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CLIPHIVE_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenDays  int    `envconfig:"CLIPHIVE_JWT_REFRESH_TOKEN_DAYS" default:"7"`
}

// RefreshTokenTTL converts the configured refresh window into a duration.
func (c JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// BlobConfig selects and tunes the binary object store backend.
type BlobConfig struct {
	Backend string `envconfig:"CLIPHIVE_BLOB_BACKEND" default:"gcs"`
	FSRoot  string `envconfig:"CLIPHIVE_BLOB_FS_ROOT" default:"./blobdata"`
}

func (b BlobConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(b.Backend)) {
	case "gcs", "fs":
		return nil
	}
	return fmt.Errorf("unknown blob backend %q", b.Backend)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CLIPHIVE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CLIPHIVE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CLIPHIVE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"CLIPHIVE_GCS_BUCKET_NAME"`
}

// GrantConfig tunes the signed access-grant issuer. TTLs requested above
// MaxTTL are clamped, never honored.
type GrantConfig struct {
	SigningSecret string        `envconfig:"CLIPHIVE_GRANT_SIGNING_SECRET" required:"true"`
	MaxTTL        time.Duration `envconfig:"CLIPHIVE_GRANT_MAX_TTL" default:"1h"`
	UploadTTL     time.Duration `envconfig:"CLIPHIVE_GRANT_UPLOAD_TTL" default:"15m"`
	DownloadTTL   time.Duration `envconfig:"CLIPHIVE_GRANT_DOWNLOAD_TTL" default:"15m"`
}

type MediaConfig struct {
	MaxUploadMiB int `envconfig:"CLIPHIVE_MEDIA_MAX_UPLOAD_MIB" default:"100"`
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	return int64(m.MaxUploadMiB) * 1024 * 1024
}

type PubSubConfig struct {
	CleanupTopic        string `envconfig:"CLIPHIVE_PUBSUB_CLEANUP_TOPIC" default:"ch-blob-cleanup"`
	CleanupSubscription string `envconfig:"CLIPHIVE_PUBSUB_CLEANUP_SUBSCRIPTION"`
}
