// Package config provides configuration loading, validation, and management
// for the bot. It handles reading from YAML files, setting default values,
// and validating configuration parameters.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config defines the application configuration parameters for all components
// of the bot: logging, WhatsApp session, Gemini integration, quota limits,
// storage paths, and the external service credentials.
type Config struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogJSON  bool   `koanf:"log_json"`

	// AdminJID is the WhatsApp JID allowed to run privileged commands
	// (!timeout, !status).
	AdminJID string `koanf:"admin_jid" validate:"required"`

	GeminiAPIKey string `koanf:"gemini_api_key" validate:"required"`

	WeatherAPIKey string `koanf:"weather_api_key"`
	RiotAPIKey    string `koanf:"riot_api_key"`

	DBPath      string `koanf:"db_path"`
	SessionPath string `koanf:"session_path"`
	UsagePath   string `koanf:"usage_path"`
	AssetsDir   string `koanf:"assets_dir"`

	// SpamCooldown is the minimum interval between accepted conversational
	// messages from the same sender.
	SpamCooldown time.Duration `koanf:"spam_cooldown" validate:"min=1s,max=10m"`

	// DailyAILimit and DailyTranslateLimit cap per-user daily usage of the
	// AI-backed and translation commands.
	DailyAILimit        int `koanf:"daily_ai_limit"        validate:"min=1"`
	DailyTranslateLimit int `koanf:"daily_translate_limit" validate:"min=1"`

	// ModelLimits maps model name to its daily call quota. Models not listed
	// here fall back to DefaultModelLimit.
	ModelLimits       map[string]int `koanf:"model_limits"`
	DefaultModelLimit int            `koanf:"default_model_limit" validate:"min=1"`
}

// Load reads configuration from config.yaml, sets default values for
// optional fields, and validates the configuration. If the config file
// doesn't exist, defaults plus environment-free YAML-less operation apply.
//
// Returns the validated configuration or an error if loading or validation fails.
func Load(configPath string) (*Config, error) {
	startTime := time.Now()
	slog.Info("loading configuration", "path", configPath)

	config := &Config{}
	setDefaults(config)

	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load configuration file",
				"error", err,
				"path", configPath)
			return nil, err
		}
		slog.Info("configuration file not found, using defaults", "path", configPath)
	} else {
		if err := k.Unmarshal("", config); err != nil {
			slog.Error("failed to parse configuration",
				"error", err,
				"path", configPath)
			return nil, err
		}
	}

	if err := validator.New().Struct(config); err != nil {
		slog.Error("configuration validation failed", "error", err)
		return nil, err
	}

	slog.Info("configuration loaded successfully",
		"log_level", config.LogLevel,
		"db_path", config.DBPath,
		"duration_ms", time.Since(startTime).Milliseconds())

	slog.Debug("detailed configuration",
		"spam_cooldown", config.SpamCooldown,
		"daily_ai_limit", config.DailyAILimit,
		"daily_translate_limit", config.DailyTranslateLimit,
		"default_model_limit", config.DefaultModelLimit)

	return config, nil
}

func setDefaults(config *Config) {
	config.LogLevel = "info"

	config.DBPath = "storage.db"
	config.SessionPath = "session.db"
	config.UsagePath = "usage_stats.json"
	config.AssetsDir = "Assets"

	config.SpamCooldown = 10 * time.Second
	config.DailyAILimit = 30
	config.DailyTranslateLimit = 10

	config.DefaultModelLimit = 20
	config.ModelLimits = map[string]int{
		"gemini-2.5-flash-lite": 1000,
		"gemini-2.5-flash":      250,
		"gemini-2.5-pro":        50,
	}
}
