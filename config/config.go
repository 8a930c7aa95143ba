package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server configuration
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Storage configuration
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"redis"`
	RedisURL      string `env:"REDIS_URL"      envDefault:"localhost:6379"`

	// Business rules
	MaxQueueLength  int           `env:"MAX_QUEUE_LENGTH"  envDefault:"10"`
	CheckinCooldown time.Duration `env:"CHECKIN_COOLDOWN"  envDefault:"5m"`
	VideoDuration   time.Duration `env:"VIDEO_DURATION"    envDefault:"30s"`
	HistoryLimit    int           `env:"HISTORY_LIMIT"     envDefault:"50"`
	BulkChunkSize   int           `env:"BULK_CHUNK_SIZE"   envDefault:"500"`
	DefaultAIScore  float64       `env:"DEFAULT_AI_SCORE"  envDefault:"0.95"`

	// Recognition service
	RecognitionURL           string        `env:"AI_SERVICE_URL"            envDefault:"http://localhost:8000"`
	RecognitionTimeout       time.Duration `env:"AI_SERVICE_TIMEOUT"        envDefault:"10s"`
	RecognitionHealthTimeout time.Duration `env:"AI_SERVICE_HEALTH_TIMEOUT" envDefault:"5s"`
	BreakerMaxRequests       uint32        `env:"AI_BREAKER_MAX_REQUESTS"   envDefault:"3"`
	BreakerInterval          time.Duration `env:"AI_BREAKER_INTERVAL"       envDefault:"60s"`
	BreakerTimeout           time.Duration `env:"AI_BREAKER_TIMEOUT"        envDefault:"30s"`
	BreakerFailureRatio      float64       `env:"AI_BREAKER_FAILURE_RATIO"  envDefault:"0.6"`

	// PubNub configuration
	PubNubPublishKey   string `env:"PUBNUB_PUBLISH_KEY"`
	PubNubSubscribeKey string `env:"PUBNUB_SUBSCRIBE_KEY"`
	PubNubSecretKey    string `env:"PUBNUB_SECRET_KEY"`
	PubNubUserID       string `env:"PUBNUB_USER_ID"       envDefault:"checkin-backend"`
	DisplayChannel     string `env:"DISPLAY_CHANNEL"      envDefault:"venue-display"`

	// Media store
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"   envDefault:"localhost:9000"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
	MediaBucket    string `env:"MEDIA_BUCKET"     envDefault:"checkin-media"`
	MediaPublicURL string `env:"MEDIA_PUBLIC_URL"`

	// Admin auth
	AdminUsername     string        `env:"ADMIN_USERNAME"      envDefault:"admin"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	AdminPassword     string        `env:"ADMIN_PASSWORD"      envDefault:"admin123"`
	JWTSecret         string        `env:"JWT_SECRET"          envDefault:"checkin-dev-secret-change-in-production"`
	JWTIssuer         string        `env:"JWT_ISSUER"          envDefault:"checkin-backend"`
	JWTAudience       string        `env:"JWT_AUDIENCE"        envDefault:"checkin-api"`
	TokenTTL          time.Duration `env:"TOKEN_TTL"           envDefault:"1h"`

	// Rate limiting
	CheckinRateLimit int           `env:"CHECKIN_RATE_LIMIT" envDefault:"30"`
	AIRateLimit      int           `env:"AI_RATE_LIMIT"      envDefault:"10"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW"  envDefault:"1m"`

	// Monitoring
	EnableMetrics   bool          `env:"ENABLE_METRICS"   envDefault:"true"`
	MetricsPort     string        `env:"METRICS_PORT"     envDefault:"9090"`
	MetricsInterval time.Duration `env:"METRICS_INTERVAL" envDefault:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
