package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig     `yaml:"site" toml:"site"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Composer ComposerConfig `yaml:"composer" toml:"composer"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" default:"info"`
}

type SiteConfig struct {
	Name          string `yaml:"name" toml:"name" default:"The Feed"`
	Placeholder   string `yaml:"placeholder" toml:"placeholder" default:"What's on your mind?"`
	DefaultAvatar string `yaml:"default_avatar" toml:"default_avatar" default:"https://github.com/shadcn.png"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" toml:"port" default:"12600"`
}

type AuthConfig struct {
	// Type selects the identity provider: "clerk" or "static".
	Type string `yaml:"type" toml:"type" default:"clerk"`

	// Used by the static provider only.
	StaticUserID    string `yaml:"static_user_id" toml:"static_user_id" default:""`
	StaticFirstName string `yaml:"static_first_name" toml:"static_first_name" default:""`
	StaticLastName  string `yaml:"static_last_name" toml:"static_last_name" default:""`
}

type ComposerConfig struct {
	GuardDoubleSubmit   bool          `yaml:"guard_double_submit" toml:"guard_double_submit" default:"true"`
	SubmitTimeout       time.Duration `yaml:"submit_timeout" toml:"submit_timeout" default:"30s"`
	MaxImageBytes       int           `yaml:"max_image_bytes" toml:"max_image_bytes" default:"10485760"`
	SessionIdleTimeout  time.Duration `yaml:"session_idle_timeout" toml:"session_idle_timeout" default:"1h"`
	SubmitRatePerMinute int           `yaml:"submit_rate_per_minute" toml:"submit_rate_per_minute" default:"30"`
	SubmitBurst         int           `yaml:"submit_burst" toml:"submit_burst" default:"5"`
}

type StorageConfig struct {
	DatabasePath string `yaml:"database_path" toml:"database_path" default:"./database.db"`
	// Compression is applied to post text at rest: "zstd" or "gzip".
	Compression string `yaml:"compression" toml:"compression" default:"zstd"`
	// MediaBackend selects where post images live: "fs", "s3" or "memory".
	MediaBackend  string `yaml:"media_backend" toml:"media_backend" default:"fs"`
	MediaDir      string `yaml:"media_dir" toml:"media_dir" default:"./media"`
	MediaBucket   string `yaml:"media_bucket" toml:"media_bucket" default:""`
	MaxImageWidth int    `yaml:"max_image_width" toml:"max_image_width" default:"1600"`
}

// Secrets are read from the environment, never from the config file.
type Secrets struct {
	ClerkKey       string `env:"CLERK_API"`
	ClerkWebhook   string `env:"CLERK_WEBHOOK_SECRET"`
	S3AccessKeyID  string `env:"S3_ACCESS_KEY_ID"`
	S3AccessSecret string `env:"S3_ACCESS_KEY_SECRET"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	ConfigPath     string `env:"FEED_CONFIG,default=config.yaml"`
}

var AppConfig *Config

func LoadSecrets(ctx context.Context) (Secrets, error) {
	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return Secrets{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return s, nil
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return config, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	AppConfig = config
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Auth.Type {
	case "clerk", "static":
	default:
		return fmt.Errorf(ErrUnknownOptionFmt, "auth.type", c.Auth.Type)
	}
	switch c.Storage.Compression {
	case "zstd", "gzip":
	default:
		return fmt.Errorf(ErrUnknownOptionFmt, "storage.compression", c.Storage.Compression)
	}
	switch c.Storage.MediaBackend {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf(ErrUnknownOptionFmt, "storage.media_backend", c.Storage.MediaBackend)
	}
	if c.Composer.MaxImageBytes <= 0 {
		return fmt.Errorf("composer.max_image_bytes must be positive, got %d", c.Composer.MaxImageBytes)
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if d, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(d))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
