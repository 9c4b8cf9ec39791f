package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	// DATETIME の読み書きに使うタイムゾーン（app.timezone から補完）
	Location string `yaml:"-"`
}

// DSN: 教師リポと同じパラメータ。loc だけ運用タイムゾーンに合わせる
func (c DatabaseConfig) DSN() string {
	loc := c.Location
	if loc == "" {
		loc = "UTC"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, url.QueryEscape(loc))
}

type AppConfig struct {
	Timezone string `yaml:"timezone"`
	Release  string `yaml:"release"`
}

type SessionConfig struct {
	Secret string `yaml:"secret"`
	MaxAge int    `yaml:"max_age"` // 秒
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type UploadsConfig struct {
	Dir          string `yaml:"dir"`
	MaxCapturePx int    `yaml:"max_capture_px"`
	MaxBodyMB    int64  `yaml:"max_body_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

type JobsConfig struct {
	HoursResyncInterval time.Duration `yaml:"hours_resync_interval"`
}

type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	Version string         `yaml:"version"`
	Mode    string         `yaml:"mode"` // dev | release
	App     AppConfig      `yaml:"app"`
	HTTP    HTTPConfig     `yaml:"http"`
	DB      DatabaseConfig `yaml:"database"`
	Session SessionConfig  `yaml:"session"`
	JWT     JWTConfig      `yaml:"jwt"`
	Uploads UploadsConfig  `yaml:"uploads"`
	Log     LogConfig      `yaml:"log"`
	Sentry  SentryConfig   `yaml:"sentry"`
	Jobs    JobsConfig     `yaml:"jobs"`
	Seed    SeedConfig     `yaml:"seed"`
}

func Default() Config {
	return Config{
		Version: "dev",
		Mode:    "dev",
		App:     AppConfig{Timezone: "Asia/Manila"},
		HTTP: HTTPConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		DB:      DatabaseConfig{Host: "127.0.0.1", Port: 3306, Username: "ims", DBName: "ims"},
		Session: SessionConfig{MaxAge: 7 * 24 * 3600},
		JWT:     JWTConfig{TTL: 24 * time.Hour},
		Uploads: UploadsConfig{Dir: "uploads", MaxCapturePx: 1280, MaxBodyMB: 16},
		Log:     LogConfig{Level: "info"},
		Jobs:    JobsConfig{HoursResyncInterval: time.Hour},
	}
}

// Load: .env（任意）→ YAML → 環境変数 の順で上書きする
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// 設定ファイル無しでも環境変数だけで起動できる
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.DB.Location = cfg.App.Timezone

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Mode, "IMS_MODE")
	setString(&c.HTTP.Addr, "IMS_HTTP_ADDR")
	setString(&c.DB.Host, "IMS_DB_HOST")
	setString(&c.DB.Username, "IMS_DB_USER")
	setString(&c.DB.Password, "IMS_DB_PASSWORD")
	setString(&c.DB.DBName, "IMS_DB_NAME")
	setString(&c.Session.Secret, "IMS_SESSION_SECRET")
	setString(&c.JWT.Secret, "IMS_JWT_SECRET")
	setString(&c.Sentry.DSN, "IMS_SENTRY_DSN")
	setString(&c.Uploads.Dir, "IMS_UPLOADS_DIR")
	setString(&c.Log.Level, "IMS_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if c.Session.Secret == "" {
		return errors.New("session.secret is required (IMS_SESSION_SECRET)")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required (IMS_JWT_SECRET)")
	}
	if c.Uploads.Dir == "" {
		return errors.New("uploads.dir is required")
	}
	if c.Uploads.MaxCapturePx <= 0 {
		c.Uploads.MaxCapturePx = 1280
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	return nil
}

// Location: Validate 済みが前提
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
