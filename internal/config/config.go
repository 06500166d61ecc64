// Package config provides configuration management for shadertool
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/RedClaus/cortex-shadertool/internal/logging"
	"github.com/RedClaus/cortex-shadertool/internal/screenshot"
)

// Config holds all application configuration
type Config struct {
	Window     WindowConfig     `mapstructure:"window"`
	Reload     ReloadConfig     `mapstructure:"reload"`
	Log        LogConfig        `mapstructure:"log"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
}

// WindowConfig configures the preview window
type WindowConfig struct {
	Title  string `mapstructure:"title"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	VSync  bool   `mapstructure:"vsync"`
}

// ReloadConfig configures shader reloading
type ReloadConfig struct {
	Auto bool `mapstructure:"auto"` // watch shader files and reload on save
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`
}

// ScreenshotConfig configures screenshot output
type ScreenshotConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"` // png, bmp, tiff
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "ShaderTool",
			Width:  800,
			Height: 800,
			VSync:  true,
		},
		Reload: ReloadConfig{
			Auto: false,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		Screenshot: ScreenshotConfig{
			Dir:    ".",
			Format: string(screenshot.PNG),
		},
	}
}

// Load reads configuration from the given file (or the default search
// paths when empty) and SHADERTOOL_* environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SHADERTOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("shadertool")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/shadertool")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window size: %dx%d", c.Window.Width, c.Window.Height)
	}

	if !logging.LogLevel(c.Log.Level).Valid() {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	if _, err := screenshot.ParseFormat(c.Screenshot.Format); err != nil {
		return fmt.Errorf("invalid screenshot format: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("window.title", defaults.Window.Title)
	v.SetDefault("window.width", defaults.Window.Width)
	v.SetDefault("window.height", defaults.Window.Height)
	v.SetDefault("window.vsync", defaults.Window.VSync)
	v.SetDefault("reload.auto", defaults.Reload.Auto)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("screenshot.dir", defaults.Screenshot.Dir)
	v.SetDefault("screenshot.format", defaults.Screenshot.Format)
}

// Overrides holds command line settings. Zero values leave the loaded
// configuration unchanged.
type Overrides struct {
	LogLevel         string
	AutoReload       bool
	Width            int
	Height           int
	ScreenshotDir    string
	ScreenshotFormat string
}

// Apply merges o into c.
func (c *Config) Apply(o Overrides) {
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.AutoReload {
		c.Reload.Auto = true
	}
	if o.Width != 0 {
		c.Window.Width = o.Width
	}
	if o.Height != 0 {
		c.Window.Height = o.Height
	}
	if o.ScreenshotDir != "" {
		c.Screenshot.Dir = o.ScreenshotDir
	}
	if o.ScreenshotFormat != "" {
		c.Screenshot.Format = o.ScreenshotFormat
	}
}
