// Package config provides configuration management for faceadmin.
// It loads configuration from YAML files with sensible defaults and
// applies FACEADMIN_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SystemConfigPath is checked first by LoadDefault.
	SystemConfigPath = "/etc/faceadmin/faceadmin.yaml"
	// UserConfigPath is relative to the user's home directory.
	UserConfigPath = ".config/faceadmin/faceadmin.yaml"
)

// Config holds all faceadmin configuration.
type Config struct {
	Capture     CaptureConfig     `yaml:"capture"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
	Auth        AuthConfig        `yaml:"auth"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CaptureConfig holds live camera settings.
type CaptureConfig struct {
	Device      int    `yaml:"device"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	InputFormat string `yaml:"input_format"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
}

// RecognitionConfig holds matching and model settings.
type RecognitionConfig struct {
	Threshold float64 `yaml:"threshold"`
	ModelPath string  `yaml:"model_path"`
}

// EnrollmentConfig holds sample collection settings.
type EnrollmentConfig struct {
	Samples int `yaml:"samples"`
	// Timeout bounds a live enrollment session, in seconds. Zero disables it.
	Timeout int `yaml:"timeout"`
}

// AuthConfig holds authentication session settings, in seconds.
type AuthConfig struct {
	Timeout       int `yaml:"timeout"`
	CameraTimeout int `yaml:"camera_timeout"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
	CORS   bool   `yaml:"cors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Capture: CaptureConfig{
			Device:      0,
			FFmpegPath:  "ffmpeg",
			InputFormat: "v4l2",
			Width:       640,
			Height:      480,
			FPS:         15,
		},
		Recognition: RecognitionConfig{
			Threshold: 0.6,
			ModelPath: filepath.Join(homeDir, ".local/share/faceadmin/models"),
		},
		Enrollment: EnrollmentConfig{
			Samples: 5,
			Timeout: 60,
		},
		Auth: AuthConfig{
			Timeout:       10,
			CameraTimeout: 15,
		},
		Storage: StorageConfig{
			DataDir:           filepath.Join(homeDir, ".local/share/faceadmin/face_data"),
			EncryptionEnabled: true,
		},
		Server: ServerConfig{
			Addr: ":5000",
			CORS: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}

// Load loads configuration from the specified file on top of the defaults.
// On error the defaults are returned together with the error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat(SystemConfigPath); err == nil {
		return Load(SystemConfigPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, UserConfigPath)
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overrides configuration values from FACEADMIN_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FACEADMIN_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FACEADMIN_MODEL_PATH"); v != "" {
		c.Recognition.ModelPath = v
	}
	if v := os.Getenv("FACEADMIN_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Recognition.Threshold = f
		}
	}
	if v := os.Getenv("FACEADMIN_CAMERA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Capture.Device = n
		}
	}
	if v := os.Getenv("FACEADMIN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FACEADMIN_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("FACEADMIN_ENCRYPTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Storage.EncryptionEnabled = b
		}
	}
	if v := os.Getenv("FACEADMIN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Capture.Device < 0 {
		return fmt.Errorf("invalid camera device index: %d", c.Capture.Device)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.FPS <= 0 {
		return fmt.Errorf("invalid camera FPS: %d", c.Capture.FPS)
	}

	if c.Recognition.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", c.Recognition.Threshold)
	}

	if c.Enrollment.Samples <= 0 {
		return fmt.Errorf("enrollment samples must be positive, got %d", c.Enrollment.Samples)
	}
	if c.Enrollment.Timeout < 0 {
		return fmt.Errorf("enrollment timeout must not be negative, got %d", c.Enrollment.Timeout)
	}

	if c.Auth.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Auth.Timeout)
	}
	if c.Auth.CameraTimeout <= 0 {
		return fmt.Errorf("camera_timeout must be positive, got %d", c.Auth.CameraTimeout)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir must be set")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates the storage, model and log directories.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := os.MkdirAll(c.Recognition.ModelPath, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	if c.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}

// EnrollmentTimeout returns the enrollment session bound, zero if unbounded.
func (c *Config) EnrollmentTimeout() time.Duration {
	return time.Duration(c.Enrollment.Timeout) * time.Second
}

// AuthTimeout returns the default authentication session bound.
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.Auth.Timeout) * time.Second
}

// CameraAuthTimeout returns the bound used by camera-initiated API logins.
func (c *Config) CameraAuthTimeout() time.Duration {
	return time.Duration(c.Auth.CameraTimeout) * time.Second
}
