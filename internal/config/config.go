package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type InferenceConfig struct {
	URL           string
	Timeout       time.Duration
	VideoTimeout  time.Duration
	VideoPreviews bool
}

type CameraConfig struct {
	RTSPURL      string
	HTTPHost     string
	SnapshotPath string
	Model        string
}

type LiveConfig struct {
	Interval  time.Duration
	AutoStart bool
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

type Config struct {
	Environment string
	Timezone    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Inference   InferenceConfig
	Camera      CameraConfig
	Live        LiveConfig
	Storage     StorageConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		Timezone:    v.GetString("APP_TIMEZONE"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Inference: InferenceConfig{
			URL:           v.GetString("INFERENCE_URL"),
			Timeout:       v.GetDuration("INFERENCE_TIMEOUT"),
			VideoTimeout:  v.GetDuration("INFERENCE_VIDEO_TIMEOUT"),
			VideoPreviews: v.GetBool("INFERENCE_VIDEO_PREVIEWS"),
		},
		Camera: CameraConfig{
			RTSPURL:      v.GetString("CAMERA_RTSP_URL"),
			HTTPHost:     v.GetString("CAMERA_HTTP_HOST"),
			SnapshotPath: v.GetString("CAMERA_SNAPSHOT_PATH"),
			Model:        v.GetString("CAMERA_MODEL"),
		},
		Live: LiveConfig{
			Interval:  v.GetDuration("LIVE_INTERVAL"),
			AutoStart: v.GetBool("LIVE_AUTOSTART"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("R2_ENDPOINT"),
			AccessKey:     v.GetString("R2_ACCESS_KEY_ID"),
			SecretKey:     v.GetString("R2_SECRET_ACCESS_KEY"),
			Bucket:        v.GetString("R2_BUCKET"),
			Region:        v.GetString("R2_REGION"),
			PublicBaseURL: v.GetString("R2_PUBLIC_BASE_URL"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Jakarta"
	}
	if cfg.Inference.URL == "" {
		cfg.Inference.URL = "http://localhost:8000"
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = 30 * time.Second
	}
	if cfg.Inference.VideoTimeout == 0 {
		cfg.Inference.VideoTimeout = 10 * time.Minute
	}
	if cfg.Camera.SnapshotPath == "" {
		cfg.Camera.SnapshotPath = "/ISAPI/Streaming/channels/101/picture"
	}
	if cfg.Camera.Model == "" {
		cfg.Camera.Model = "DS-TCG406-E"
	}
	if cfg.Live.Interval == 0 {
		cfg.Live.Interval = time.Second
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the configured timezone used for "today".
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Live.Interval < 100*time.Millisecond {
		return fmt.Errorf("LIVE_INTERVAL must be at least 100ms")
	}
	return nil
}
