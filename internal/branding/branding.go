// Package branding provides compile-time identity values for the CLI and the
// sync engine.
//
// branding.yaml is embedded with //go:embed, so forks only edit that file to
// rename the tool, its home directory, env prefix and default release server.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName     string `yaml:"cli_name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	HomeDir     string `yaml:"home_dir"`
	EnvPrefix   string `yaml:"env_prefix"`
	GoModule    string `yaml:"go_module"`
	ServerURL   string `yaml:"server_url"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:     "hotload",
			DisplayName: "HotLoad",
			Description: "Over-the-air content updates for installed applications",
			HomeDir:     ".hotload",
			EnvPrefix:   "HOTLOAD",
			GoModule:    "github.com/hotload-labs/hotload",
			ServerURL:   "https://hotload.maxleap.cn/",
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "hotload").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "HotLoad").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".hotload").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "HOTLOAD").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// ServerURL returns the default release service base URL.
func ServerURL() string { load(); return defaults.ServerURL }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "HOTLOAD_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
