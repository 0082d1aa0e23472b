// Package config loads runtime settings from configs/config.yml and GLOVE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dataglove/internal/refresh"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override: serial.baud -> GLOVE_SERIAL_BAUD.
const EnvPrefix = "GLOVE"

type Config struct {
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type SerialConfig struct {
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type IngestConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
	MaxBuffer    int           `mapstructure:"max_buffer"`
}

type RefreshConfig struct {
	FPS int `mapstructure:"fps"`
}

type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// SourcesConfig names ports to connect at startup. Both empty means wait for the API.
type SourcesConfig struct {
	Angle    string `mapstructure:"angle"`
	Pressure string `mapstructure:"pressure"`
}

type SimulatorConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RateHz  float64 `mapstructure:"rate_hz"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", ":memory:")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.read_timeout", 100*time.Millisecond)
	v.SetDefault("ingest.poll_interval", 10*time.Millisecond)
	v.SetDefault("ingest.stop_timeout", time.Second)
	v.SetDefault("ingest.max_buffer", 4096)
	v.SetDefault("refresh.fps", refresh.DefaultRate)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("sources.angle", "")
	v.SetDefault("sources.pressure", "")
	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.rate_hz", 50.0)
}

// Load reads config.yml from the first of dirs that has one. A missing file is not an
// error: defaults and environment overrides still apply.
func Load(dirs ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if len(dirs) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if !refresh.Supported(c.Refresh.FPS) {
		return fmt.Errorf("refresh.fps: %w: %d", refresh.ErrUnsupportedRate, c.Refresh.FPS)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Ingest.PollInterval <= 0 || c.Ingest.PollInterval >= 100*time.Millisecond {
		return fmt.Errorf("ingest.poll_interval must be in (0, 100ms), got %s", c.Ingest.PollInterval)
	}
	if c.Ingest.StopTimeout <= 0 {
		return fmt.Errorf("ingest.stop_timeout must be positive, got %s", c.Ingest.StopTimeout)
	}
	if c.Simulator.Enabled && c.Simulator.RateHz <= 0 {
		return fmt.Errorf("simulator.rate_hz must be positive, got %v", c.Simulator.RateHz)
	}
	return nil
}
