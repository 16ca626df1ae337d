package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hotload-labs/hotload/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Recognized configuration keys.
const (
	KeyServerURL      = "server_url"
	KeyDeploymentKey  = "deployment_key"
	KeyAppVersion     = "app_version"
	KeyDeviceDir      = "device_dir"
	KeyBinaryHash     = "binary_hash"
	KeyClientUniqueID = "client_unique_id"
	KeyPlatform       = "platform"
	KeyDebugMode      = "debug_mode"
	KeyLogLevel       = "log_level"
	KeyLogFile        = "log_file"
)

// Settings is the decoded view of the configuration file and environment.
type Settings struct {
	ServerURL      string `mapstructure:"server_url"`
	DeploymentKey  string `mapstructure:"deployment_key"`
	AppVersion     string `mapstructure:"app_version"`
	DeviceDir      string `mapstructure:"device_dir"`
	BinaryHash     string `mapstructure:"binary_hash"`
	ClientUniqueID string `mapstructure:"client_unique_id"`
	Platform       string `mapstructure:"platform"`
	DebugMode      bool   `mapstructure:"debug_mode"`
	LogLevel       string `mapstructure:"log_level"`
	LogFile        string `mapstructure:"log_file"`
}

// Dir returns the path to the HotLoad config directory (~/.hotload/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.hotload/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeyServerURL, branding.ServerURL())
	viper.SetDefault(KeyAppVersion, "1.0.0")
	viper.SetDefault(KeyDeviceDir, filepath.Join(Dir(), "device"))
	viper.SetDefault(KeyPlatform, "android")
	viper.SetDefault(KeyLogLevel, "info")

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Current decodes the loaded configuration into Settings and validates it.
func Current() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings the sync engine cannot run without.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.ServerURL) == "" {
		return fmt.Errorf("%s must be set", KeyServerURL)
	}
	if _, err := semver.NewVersion(strings.TrimPrefix(s.AppVersion, "v")); err != nil {
		return fmt.Errorf("%s %q is not a semantic version: %w", KeyAppVersion, s.AppVersion, err)
	}
	switch s.Platform {
	case "android", "ios":
	default:
		return fmt.Errorf("%s must be android or ios, got %q", KeyPlatform, s.Platform)
	}
	return nil
}
