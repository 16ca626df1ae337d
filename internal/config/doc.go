// Package config manages user-level settings stored at ~/.hotload/config.yaml.
// It provides functions to load, read, and write configuration keys such as
// the release server URL, the deployment key and the device state directory
// consumed by the sync engine. Every key can be overridden through a
// HOTLOAD_-prefixed environment variable.
package config
