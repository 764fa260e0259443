package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

type R2 struct {
	AccountID     string `long:"r2-account-id" env:"R2_ACCOUNT_ID" description:"Cloudflare account id"`
	AccessKey     string `long:"r2-access-key" env:"R2_ACCESS_KEY" description:"R2 access key id"`
	SecretKey     string `long:"r2-secret-key" env:"R2_SECRET_KEY" description:"R2 secret access key"`
	BucketName    string `long:"r2-bucket" env:"R2_BUCKET_NAME" description:"R2 bucket name"`
	PublicBaseURL string `long:"r2-public-base-url" env:"R2_PUBLIC_BASE_URL" description:"Public base URL serving the bucket"`
}

// Enabled reports whether uploads to R2 are configured.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != "" && r.PublicBaseURL != ""
}

type Config struct {
	PostgresURI string   `long:"postgres-uri" env:"POSTGRES_URI" description:"PostgreSQL connection string"`
	RedisURI    string   `long:"redis-uri" env:"REDIS_URI" default:"127.0.0.1:6379" description:"Redis address for asynq and the scheduler lease"`
	Port        string   `long:"port" env:"PORT" default:"8000" description:"HTTP server port"`
	BaseURL     string   `long:"base-url" env:"BASE_URL" default:"http://127.0.0.1:8000" description:"Public base URL used to absolutize local media paths"`
	MediaDir    string   `long:"media-dir" env:"MEDIA_DIR" default:"./media" description:"Directory for locally served media"`
	SecretKey   string   `long:"secret-key" env:"SECRET_KEY" description:"32 byte key for token encryption and JWT signing"`
	APIKey      string   `long:"api-key" env:"API_ACCESS_KEY" description:"Static operator API key (optional)"`
	Operators   []string `long:"operator" env:"OPERATORS" env-delim:"," description:"Operators allowed to use tokens (repeatable, empty allows all)"`

	InstagramUserID      string `long:"instagram-user-id" env:"INSTAGRAM_USER_ID" description:"Fallback Instagram business user id"`
	InstagramAccessToken string `long:"instagram-access-token" env:"INSTAGRAM_ACCESS_TOKEN" description:"Fallback Instagram access token"`
	GraphAPIBase         string `long:"graph-api-base" env:"GRAPH_API_BASE" default:"https://graph.facebook.com/v19.0" description:"Graph API base URL"`
	InstagramRefreshURL  string `long:"instagram-refresh-url" env:"INSTAGRAM_REFRESH_URL" default:"https://graph.instagram.com/refresh_access_token" description:"Long-lived token refresh endpoint"`

	GeminiAPIKey string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key for captions and hashtags"`
	GeminiTier   string `long:"gemini-tier" env:"GEMINI_TIER" default:"free" description:"Gemini quota tier"`
	ImageAPIURL  string `long:"image-api-url" env:"IMAGE_API_URL" default:"https://api.openai.com/v1/images/generations" description:"Image generation endpoint"`
	ImageAPIKey  string `long:"image-api-key" env:"IMAGE_API_KEY" description:"Image generation API key"`
	DefaultTopic string `long:"default-topic" env:"DEFAULT_TOPIC" default:"motivation" description:"Topic used when no trend is available"`
	Affiliate    string `long:"affiliate-text" env:"AFFILIATE_TEXT" description:"Text appended to generated captions"`

	R2 R2 `group:"R2 storage"`

	Timezone           string        `long:"timezone" env:"TZ" default:"UTC" description:"Operator timezone for automation slots"`
	SweepInterval      time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"30s" description:"Scheduled publish sweep interval"`
	AutomationInterval time.Duration `long:"automation-interval" env:"AUTOMATION_INTERVAL" default:"30s" description:"Automation evaluation interval"`
	DuplicateWindow    time.Duration `long:"duplicate-window" env:"DUPLICATE_WINDOW" default:"10m" description:"Window in which a second automated draft is suppressed"`
	AutoPublishDelay   time.Duration `long:"auto-publish-delay" env:"AUTO_PUBLISH_DELAY" default:"60s" description:"Delay before an auto-published draft is sent"`
	HTTPTimeout        time.Duration `long:"http-timeout" env:"HTTP_TIMEOUT" default:"30s" description:"Timeout for external API calls"`

	SchedulerLock string        `long:"scheduler-lock" env:"SCHEDULER_LOCK" default:"redis" choice:"redis" choice:"pidfile" description:"Scheduler lock backend"`
	LockFile      string        `long:"lock-file" env:"LOCK_FILE" default:"./scheduler.lock" description:"PID lock file path"`
	LockTTL       time.Duration `long:"lock-ttl" env:"LOCK_TTL" default:"90s" description:"Redis lease TTL"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	location *time.Location
}

// LoadConfig parses flags and environment for the current process.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

func Load(args []string) (*Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.SecretKey != "" && len(cfg.SecretKey) != 32 {
		return nil, fmt.Errorf("SECRET_KEY must be 32 bytes, got %d", len(cfg.SecretKey))
	}

	return &cfg, nil
}

func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
