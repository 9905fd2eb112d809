package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		AdminIDs []int64 `yaml:"admin_ids"`
	} `yaml:"telegram"`
	Database struct {
		Path           string `yaml:"path"`
		MigrationsPath string `yaml:"migrations_path"`
	} `yaml:"database"`
	Submissions struct {
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"submissions"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
// The BOT_TOKEN environment variable overrides telegram.bot_token.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		config.Telegram.BotToken = token
	}

	if config.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram.bot_token is required (config or BOT_TOKEN env)")
	}
	if len(config.Telegram.AdminIDs) == 0 {
		return nil, fmt.Errorf("telegram.admin_ids must list at least one administrator")
	}

	if config.Database.Path == "" {
		config.Database.Path = "data/anonbox.db"
	}
	if config.Database.MigrationsPath == "" {
		config.Database.MigrationsPath = "migrations"
	}
	if config.Submissions.MaxEntries <= 0 {
		config.Submissions.MaxEntries = 1000
	}

	return config, nil
}
