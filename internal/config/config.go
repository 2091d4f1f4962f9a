package config

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Quiz      QuizConfig
	Playback  PlaybackConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
	// Generated is set when no secret was configured outside release mode
	// and a random one was created for this process.
	Generated bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Enabled reports whether an object store is configured for course videos.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type QuizConfig struct {
	// PassMark is the minimum percentage that counts as a pass.
	PassMark int
}

type PlaybackConfig struct {
	DefaultVolume   float64
	SkipSeconds     float64
	DefaultVideoURL string
}

type LogConfig struct {
	File string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "learnhub")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", 24*time.Hour)

	v.SetDefault("cors.allowed_origins", "http://localhost:3000")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.url_expiry", time.Hour)

	v.SetDefault("rate_limit.max_requests", 20)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("quiz.pass_mark", 70)

	v.SetDefault("playback.default_volume", 80)
	v.SetDefault("playback.skip_seconds", 10)
	v.SetDefault("playback.default_video_url", "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4")

	v.SetDefault("log.file", "logs/app.log")
}

// Load reads an optional .env file and then the process environment.
// Keys map to env vars by upper-casing and replacing dots with underscores,
// so quiz.pass_mark is read from QUIZ_PASS_MARK.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, errors.Wrap(err, "load env file")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Mode: v.GetString("server.mode"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Expiry: v.GetDuration("jwt.expiry"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("minio.endpoint"),
			AccessKey: v.GetString("minio.access_key"),
			SecretKey: v.GetString("minio.secret_key"),
			Bucket:    v.GetString("minio.bucket"),
			Region:    v.GetString("minio.region"),
			UseSSL:    v.GetBool("minio.use_ssl"),
			URLExpiry: v.GetDuration("minio.url_expiry"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: v.GetInt("rate_limit.max_requests"),
			Window:      v.GetDuration("rate_limit.window"),
		},
		Quiz: QuizConfig{
			PassMark: v.GetInt("quiz.pass_mark"),
		},
		Playback: PlaybackConfig{
			DefaultVolume:   v.GetFloat64("playback.default_volume"),
			SkipSeconds:     v.GetFloat64("playback.skip_seconds"),
			DefaultVideoURL: v.GetString("playback.default_video_url"),
		},
		Log: LogConfig{
			File: v.GetString("log.file"),
		},
	}

	if cfg.JWT.Secret == "" && cfg.Server.Mode != "release" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWT.Secret = secret
		cfg.JWT.Generated = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate jwt secret")
	}
	return hex.EncodeToString(buf), nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required")
	}
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return errors.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Quiz.PassMark < 0 || c.Quiz.PassMark > 100 {
		return errors.Errorf("quiz pass mark %d out of range 0-100", c.Quiz.PassMark)
	}
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 100 {
		return errors.Errorf("default volume %v out of range 0-100", c.Playback.DefaultVolume)
	}
	if c.Playback.SkipSeconds <= 0 {
		return errors.New("skip seconds must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
