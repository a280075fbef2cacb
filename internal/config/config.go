// Package config loads prepcards settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. PREPCARDS_CARDS__PATH.
const EnvPrefix = "PREPCARDS_"

// Config is the fully resolved application configuration.
type Config struct {
	Cards    CardsConfig    `koanf:"cards"`
	Progress ProgressConfig `koanf:"progress"`
	Sources  SourcesConfig  `koanf:"sources"`
	Server   ServerConfig   `koanf:"server"`
	Reminder ReminderConfig `koanf:"reminder"`
	Study    StudyConfig    `koanf:"study"`
	Log      LogConfig      `koanf:"log"`
}

// CardsConfig locates the flashcard document.
type CardsConfig struct {
	Path        string  `koanf:"path" validate:"required"`
	DefaultEase float64 `koanf:"default_ease" validate:"gte=1.3"`
	// Timezone is an IANA name used for naive timestamps and due-date
	// comparisons. Empty means the local zone.
	Timezone string `koanf:"timezone"`
}

type ProgressConfig struct {
	DBPath string `koanf:"db_path" validate:"required"`
}

type SourcesConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

type ReminderConfig struct {
	Enabled bool   `koanf:"enabled"`
	Cron    string `koanf:"cron" validate:"required_if=Enabled true"`
}

type StudyConfig struct {
	Shuffle bool `koanf:"shuffle"`
	Limit   int  `koanf:"limit" validate:"gte=0"`
}

type LogConfig struct {
	Mode string `koanf:"mode" validate:"oneof=development production"`
}

// Location resolves the configured time zone.
func (c CardsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid cards.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"cards.path":         "cards.json",
		"cards.default_ease": 2.5,
		"cards.timezone":     "",
		"progress.db_path":   "prepcards.db",
		"sources.repos_dir":  "repos",
		"server.addr":        "127.0.0.1:8080",
		"reminder.enabled":   false,
		"reminder.cron":      "0 9 * * *",
		"study.shuffle":      true,
		"study.limit":        0,
		"log.mode":           "development",
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"cards":    "cards.path",
	"db":       "progress.db_path",
	"tz":       "cards.timezone",
	"addr":     "server.addr",
	"log-mode": "log.mode",
	"repos":    "sources.repos_dir",
	"limit":    "study.limit",
	"shuffle":  "study.shuffle",
	"remind":   "reminder.enabled",
}

// RegisterFlags adds the global override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("env-file", ".env", "dotenv file loaded before reading the environment")
	fs.String("cards", "cards.json", "path to the flashcard JSON document")
	fs.String("db", "prepcards.db", "path to the SQLite progress database")
	fs.String("tz", "", "IANA time zone for due dates (default: local)")
	fs.String("log-mode", "development", "log encoding: development or production")
}

// Load resolves the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	var path, envFile string
	if fs != nil {
		path, _ = fs.GetString("config")
		envFile, _ = fs.GetString("env-file")
	}
	if err := loadDotenv(envFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the time zone.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Cards.Location(); err != nil {
		return err
	}
	return nil
}

// envKey turns PREPCARDS_CARDS__DEFAULT_EASE into cards.default_ease.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
