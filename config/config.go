package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	Gamification GamificationConfig `mapstructure:"gamification"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	SessionName   string `mapstructure:"session_name"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"` // empty disables the file sink
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// GamificationConfig carries the point rules and the level threshold table.
// A misconfigured table is a startup failure, not a runtime condition.
type GamificationConfig struct {
	PointsPerActivity    int   `mapstructure:"points_per_activity"`
	DailyLoginBonus      int   `mapstructure:"daily_login_bonus"`
	TripleActivityBonus  int   `mapstructure:"triple_activity_bonus"`
	TripleActivityTarget int   `mapstructure:"triple_activity_target"`
	LevelThresholds      []int `mapstructure:"level_thresholds"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	viper.SetDefault("auth.session_secret", "change-this-in-production")
	viper.SetDefault("auth.session_name", "pingbadge-session")

	viper.SetDefault("database.path", "./pingbadge.db")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 7)

	viper.SetDefault("gamification.points_per_activity", 10)
	viper.SetDefault("gamification.daily_login_bonus", 5)
	viper.SetDefault("gamification.triple_activity_bonus", 50)
	viper.SetDefault("gamification.triple_activity_target", 3)
	viper.SetDefault("gamification.level_thresholds", []int{0, 100, 250, 500, 1000, 2000, 5000})

	// Allow environment variables
	viper.SetEnvPrefix("PINGBADGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
