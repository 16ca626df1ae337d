package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hotload-labs/hotload/internal/hotload"
)

const (
	statusFileName      = "hotload.json"
	preferencesFileName = "preferences.json"
	metadataFileName    = "app.json"
	packagesDirName     = "packages"
	downloadsDirName    = "downloads"
)

// packageStatus records which package runs now and which one ran before it.
type packageStatus struct {
	CurrentPackage  string `json:"currentPackage,omitempty"`
	PreviousPackage string `json:"previousPackage,omitempty"`
}

// pendingUpdate is an installed package that has not confirmed a successful
// start yet. IsLoading is set once a launch has tried to run it.
type pendingUpdate struct {
	Hash                      string              `json:"hash"`
	IsLoading                 bool                `json:"isLoading"`
	InstallMode               hotload.InstallMode `json:"installMode,omitempty"`
	MinimumBackgroundDuration int                 `json:"minimumBackgroundDuration,omitempty"`
}

type preferences struct {
	ClientUniqueID       string                `json:"clientUniqueId,omitempty"`
	FailedUpdates        []hotload.PackageInfo `json:"failedUpdates,omitempty"`
	PendingUpdate        *pendingUpdate        `json:"pendingUpdate,omitempty"`
	LastDeploymentReport string                `json:"lastDeploymentReport,omitempty"`
}

// packageMetadata is the app.json written next to an extracted package.
type packageMetadata struct {
	hotload.PackageInfo
	DownloadURL string `json:"downloadUrl,omitempty"`
	PackageSize int64  `json:"packageSize,omitempty"`
	BundlePath  string `json:"bundlePath,omitempty"`
}

// loadJSON decodes path into v. A missing file leaves v untouched and
// reports false.
func loadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func (d *Device) statusPath() string      { return filepath.Join(d.dir, statusFileName) }
func (d *Device) preferencesPath() string { return filepath.Join(d.dir, preferencesFileName) }
func (d *Device) packagesDir() string     { return filepath.Join(d.dir, packagesDirName) }

func (d *Device) packageDir(hash string) string {
	return filepath.Join(d.packagesDir(), hash)
}

// checkPackageHash rejects hashes that are not a single path element, since
// the hash names the package directory.
func checkPackageHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("%w: package has no hash", ErrInvalidUpdate)
	}
	if hash == "." || hash == ".." || filepath.Base(hash) != hash || strings.ContainsAny(hash, `/\`) {
		return fmt.Errorf("%w: illegal package hash %q", ErrInvalidUpdate, hash)
	}
	return nil
}

func (d *Device) loadStatus() (packageStatus, error) {
	var st packageStatus
	_, err := loadJSON(d.statusPath(), &st)
	return st, err
}

func (d *Device) saveStatus(st packageStatus) error {
	return saveJSON(d.statusPath(), st)
}

// loadPreferences reads preferences.json. Unreadable content is replaced
// with empty preferences rather than failing every later call.
func (d *Device) loadPreferences() (preferences, error) {
	var prefs preferences
	_, err := loadJSON(d.preferencesPath(), &prefs)
	if err == nil {
		return prefs, nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		d.log.Warn().Err(err).Msg("Resetting unrecognized preferences.")
		prefs = preferences{}
		return prefs, d.savePreferences(prefs)
	}
	return preferences{}, err
}

func (d *Device) savePreferences(prefs preferences) error {
	return saveJSON(d.preferencesPath(), prefs)
}

func (d *Device) updatePreferences(fn func(*preferences)) error {
	prefs, err := d.loadPreferences()
	if err != nil {
		return err
	}
	fn(&prefs)
	return d.savePreferences(prefs)
}

// loadMetadata reads the app.json of the package with the given hash. It
// returns nil, nil when the package is not on disk.
func (d *Device) loadMetadata(hash string) (*packageMetadata, error) {
	if hash == "" {
		return nil, nil
	}
	var meta packageMetadata
	found, err := loadJSON(filepath.Join(d.packageDir(hash), metadataFileName), &meta)
	if err != nil || !found {
		return nil, err
	}
	return &meta, nil
}

func (d *Device) currentMetadata() (*packageMetadata, error) {
	st, err := d.loadStatus()
	if err != nil {
		return nil, err
	}
	return d.loadMetadata(st.CurrentPackage)
}

func (p preferences) isFailed(hash string) bool {
	if hash == "" {
		return false
	}
	for _, failed := range p.FailedUpdates {
		if failed.PackageHash == hash {
			return true
		}
	}
	return false
}

// isPending reports whether an installed update is waiting for its first
// launch. An empty hash matches any pending update.
func (p preferences) isPending(hash string) bool {
	pending := p.PendingUpdate
	return pending != nil && !pending.IsLoading && (hash == "" || pending.Hash == hash)
}
