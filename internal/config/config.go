package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/1broseidon/tsps/internal/apperr"
	"github.com/1broseidon/tsps/internal/logging"
)

// EnvPrefix namespaces environment overrides, e.g. TSPS_TMUX_BINARY.
const EnvPrefix = "TSPS"

// Config holds tool settings. Layout documents are not configuration; they
// are loaded by the layout package.
type Config struct {
	Tmux   TmuxConfig   `mapstructure:"tmux"`
	Layout LayoutConfig `mapstructure:"layout"`
	Log    LogConfig    `mapstructure:"log"`
}

// TmuxConfig controls how tmux is invoked.
type TmuxConfig struct {
	Binary string `mapstructure:"binary"`
	// Socket selects a named server (tmux -L). Empty uses the default server.
	Socket string `mapstructure:"socket"`
	// PaneBaseIndex must match the server's pane-base-index option.
	PaneBaseIndex int `mapstructure:"pane_base_index"`
}

// LayoutConfig tunes the layout engine.
type LayoutConfig struct {
	Arrangement string        `mapstructure:"arrangement"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Tmux: TmuxConfig{
			Binary: "tmux",
		},
		Layout: LayoutConfig{
			Arrangement: "tiled",
			SettleDelay: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  logging.LevelWarn,
			Format: logging.FormatAuto,
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("tmux.binary", defaults.Tmux.Binary)
	v.SetDefault("tmux.socket", defaults.Tmux.Socket)
	v.SetDefault("tmux.pane_base_index", defaults.Tmux.PaneBaseIndex)

	v.SetDefault("layout.arrangement", defaults.Layout.Arrangement)
	v.SetDefault("layout.settle_delay", defaults.Layout.SettleDelay)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
}

// New returns a viper instance with defaults and environment overrides set,
// reading cfgFile if given, otherwise config.yaml from ConfigDir when present.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// TSPS_LAYOUT_SETTLE_DELAY for layout.settle_delay
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "cannot read config file '%s'", cfgFile)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "cannot read config file")
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "invalid configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "invalid configuration")
	}
	return &cfg, nil
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Tmux.Binary) == "" {
		return &ValidationError{Path: "tmux.binary", Err: fmt.Errorf("tmux.binary is required")}
	}
	if c.Tmux.PaneBaseIndex < 0 {
		return &ValidationError{Path: "tmux.pane_base_index", Err: fmt.Errorf("pane_base_index must be >= 0")}
	}
	if strings.TrimSpace(c.Layout.Arrangement) == "" {
		return &ValidationError{Path: "layout.arrangement", Err: fmt.Errorf("arrangement is required")}
	}
	if c.Layout.SettleDelay < 0 {
		return &ValidationError{Path: "layout.settle_delay", Err: fmt.Errorf("settle_delay must be >= 0")}
	}
	if !logging.ValidLevel(c.Log.Level) {
		return &ValidationError{Path: "log.level", Err: fmt.Errorf("log.level must be one of: debug, info, warn, error")}
	}
	if !logging.ValidFormat(c.Log.Format) {
		return &ValidationError{Path: "log.format", Err: fmt.Errorf("log.format must be one of: auto, text, json")}
	}
	return nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tsps")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tsps"
	}
	return filepath.Join(home, ".config", "tsps")
}

// ConfigFile returns the path to the default config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LayoutDir holds named layouts usable as --layout NAME.
func LayoutDir() string {
	return filepath.Join(ConfigDir(), "layouts")
}
