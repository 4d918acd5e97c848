// Package config loads settings from a YAML file, FLASHDECK_ environment variables
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "FLASHDECK_"

// Config holds all configuration for the application.
type Config struct {
	DataDir    string              `koanf:"data_dir" validate:"required"`
	DB         string              `koanf:"db" validate:"required"`
	Log        LogConfig           `koanf:"log"`
	Categories map[string][]string `koanf:"categories" validate:"dive,keys,required,endkeys,min=1,dive,required"`
	Sources    []string            `koanf:"sources" validate:"dive,required"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// DefaultCategories groups sets by the directory layout decks have always used.
func DefaultCategories() map[string][]string {
	return map[string][]string{
		"foundation":            {"Chinese->English/Foundation/"},
		"vocabulary":            {"Chinese->English/Vocabulary/"},
		"production_foundation": {"English->Chinese/Foundation/"},
		"production_vocabulary": {"English->Chinese/Vocabulary/"},
		"ruby":                  {"Ruby/"},
	}
}

// RegisterFlags adds the global flags to flags. Their defaults are the configuration defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("data_dir", ".", "Directory holding the card set files")
	flags.String("db", "flashdeck.db", "Path to the SQLite review journal")
	flags.String("log.level", "info", "Log level: debug, info, warn or error")
	flags.String("log.format", "text", "Log format: text or json")
}

// Load builds the configuration from the config file named by the "config" flag,
// the environment and the flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, _ := flags.GetString("config")
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps FLASHDECK_DATA_DIR to data_dir and FLASHDECK_LOG_LEVEL to log.level.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "log_"); ok {
		return "log." + rest
	}
	return key
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}
