package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/hotload-labs/hotload/internal/hotload"
	"github.com/hotload-labs/hotload/internal/logger"
)

var (
	// ErrInvalidUpdate is returned when a downloaded package cannot be
	// installed. The package is recorded as a failed update.
	ErrInvalidUpdate = errors.New("invalid update")
	// ErrNoPendingUpdate is returned by Resume when no resume install waits.
	ErrNoPendingUpdate = errors.New("no pending update")
)

const defaultBundleFileName = "index.bundle"

// Options configures a Device.
type Options struct {
	AppVersion    string
	DeploymentKey string
	ServerURL     string
	// ClientUniqueID defaults to a random id persisted in the device dir.
	ClientUniqueID string
	// BinaryHash is the hash of the bundle shipped inside the binary.
	BinaryHash string
	// BundleFileName is the entry file searched for in zip updates.
	BundleFileName string
	IsDebugMode    bool
	// Passive opens the state without launching: nothing is rolled back,
	// marked or discarded. Use it to inspect a device between launches.
	Passive bool

	HTTPClient *http.Client
	Logger     *logger.Logger
	// RestartHook replaces the default restart, which reloads state from
	// disk as a fresh launch would.
	RestartHook func(ctx context.Context) error
}

// Device is a filesystem hotload.NativeBridge.
type Device struct {
	dir  string
	opts Options
	rest *resty.Client
	log  *logger.Logger

	mu sync.Mutex

	// Per launch.
	didUpdate          bool
	needRollbackReport bool
	runningBinary      bool

	subMu   sync.Mutex
	subs    map[int]func(hotload.DownloadProgress)
	nextSub int
}

var _ hotload.NativeBridge = (*Device)(nil)

// Open loads the device state under dir and performs launch reconciliation:
// a pending update that never confirmed readiness is rolled back, a fresh
// pending update is marked as loading, and packages built for another
// binary version are discarded.
func Open(dir string, opts Options) (*Device, error) {
	if opts.AppVersion == "" {
		return nil, fmt.Errorf("app version is required")
	}
	if opts.BundleFileName == "" {
		opts.BundleFileName = defaultBundleFileName
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	d := &Device{
		dir:  dir,
		opts: opts,
		log:  opts.Logger.WithComponent("device"),
		subs: map[int]func(hotload.DownloadProgress){},
	}
	if opts.HTTPClient != nil {
		d.rest = resty.NewWithClient(opts.HTTPClient)
	} else {
		d.rest = resty.New()
	}
	d.rest.SetHeader("User-Agent", "hotload-device")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating device directory: %w", err)
	}

	if d.opts.ClientUniqueID == "" {
		id, err := d.clientUniqueID()
		if err != nil {
			return nil, err
		}
		d.opts.ClientUniqueID = id
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if opts.Passive {
		meta, err := d.currentMetadata()
		if err != nil {
			return nil, err
		}
		d.runningBinary = meta == nil || meta.AppVersion != opts.AppVersion
		return d, nil
	}
	if err := d.launch(); err != nil {
		return nil, err
	}
	return d, nil
}

// Dir returns the state directory.
func (d *Device) Dir() string { return d.dir }

func (d *Device) clientUniqueID() (string, error) {
	prefs, err := d.loadPreferences()
	if err != nil {
		return "", err
	}
	if prefs.ClientUniqueID != "" {
		return prefs.ClientUniqueID, nil
	}
	prefs.ClientUniqueID = uuid.NewString()
	return prefs.ClientUniqueID, d.savePreferences(prefs)
}

// launch runs the start of a new app process. Callers hold d.mu.
func (d *Device) launch() error {
	d.didUpdate = false
	d.needRollbackReport = false

	prefs, err := d.loadPreferences()
	if err != nil {
		return err
	}

	if pending := prefs.PendingUpdate; pending != nil {
		d.didUpdate = true
		if pending.IsLoading {
			d.log.Warn().Str("package_hash", pending.Hash).
				Msg("Update did not finish loading the last time, rolling back to a previous version.")
			d.needRollbackReport = true
			if err := d.rollback(); err != nil {
				return err
			}
		} else {
			loading := *pending
			loading.IsLoading = true
			if err := d.updatePreferences(func(p *preferences) { p.PendingUpdate = &loading }); err != nil {
				return err
			}
		}
	}

	return d.selectBundle()
}

// selectBundle decides whether the installed package or the binary's own
// bundle runs. A package installed for another app version is dropped.
func (d *Device) selectBundle() error {
	meta, err := d.currentMetadata()
	if err != nil {
		return err
	}
	if meta == nil {
		d.runningBinary = true
		return nil
	}
	if meta.AppVersion == d.opts.AppVersion {
		d.runningBinary = false
		return nil
	}

	d.log.Info().Str("package_app_version", meta.AppVersion).Str("app_version", d.opts.AppVersion).
		Msg("The binary version is newer, discarding installed updates.")
	d.didUpdate = false
	d.runningBinary = true
	if !d.opts.IsDebugMode {
		return d.clearUpdates()
	}
	return nil
}

func (d *Device) rollback() error {
	st, err := d.loadStatus()
	if err != nil {
		return err
	}
	failed, err := d.loadMetadata(st.CurrentPackage)
	if err != nil {
		return err
	}

	if err := d.updatePreferences(func(p *preferences) {
		if failed != nil {
			p.FailedUpdates = append(p.FailedUpdates, failed.PackageInfo)
		}
		p.PendingUpdate = nil
	}); err != nil {
		return err
	}

	if st.CurrentPackage != "" {
		os.RemoveAll(d.packageDir(st.CurrentPackage))
	}
	return d.saveStatus(packageStatus{CurrentPackage: st.PreviousPackage})
}

func (d *Device) clearUpdates() error {
	os.Remove(d.statusPath())
	if err := os.RemoveAll(d.packagesDir()); err != nil {
		return fmt.Errorf("removing packages: %w", err)
	}
	return d.updatePreferences(func(p *preferences) {
		p.PendingUpdate = nil
		p.FailedUpdates = nil
	})
}

// GetConfiguration describes the running binary.
func (d *Device) GetConfiguration(context.Context) (*hotload.Configuration, error) {
	return &hotload.Configuration{
		AppVersion:     d.opts.AppVersion,
		DeploymentKey:  d.opts.DeploymentKey,
		PackageHash:    d.opts.BinaryHash,
		ClientUniqueID: d.opts.ClientUniqueID,
		ServerURL:      d.opts.ServerURL,
	}, nil
}

// GetCurrentPackage returns the installed package, or nil when the binary
// has never installed one.
func (d *Device) GetCurrentPackage(context.Context) (*hotload.LocalPackage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	meta, err := d.currentMetadata()
	if err != nil || meta == nil {
		return nil, err
	}
	prefs, err := d.loadPreferences()
	if err != nil {
		return nil, err
	}
	return &hotload.LocalPackage{
		PackageInfo: meta.PackageInfo,
		IsPending:   prefs.isPending(meta.PackageHash),
		IsDebugOnly: d.runningBinary,
	}, nil
}

// IsFailedUpdate reports whether the package was rolled back before.
func (d *Device) IsFailedUpdate(_ context.Context, packageHash string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefs, err := d.loadPreferences()
	if err != nil {
		return false, err
	}
	return prefs.isFailed(packageHash), nil
}

// IsFirstRun reports whether this launch is the first since the package was
// installed.
func (d *Device) IsFirstRun(_ context.Context, packageHash string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.didUpdate || packageHash == "" {
		return false, nil
	}
	st, err := d.loadStatus()
	if err != nil {
		return false, err
	}
	return st.CurrentPackage == packageHash, nil
}

// DownloadUpdate fetches and unpacks pkg into packages/<hash>. Unpacking
// failures record pkg as a failed update.
func (d *Device) DownloadUpdate(ctx context.Context, pkg *hotload.RemotePackage) (*hotload.LocalPackage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkPackageHash(pkg.PackageHash); err != nil {
		return nil, err
	}

	target := d.packageDir(pkg.PackageHash)
	os.RemoveAll(target)

	archive := filepath.Join(d.dir, downloadsDirName, downloadFileName)
	header, err := d.fetch(ctx, pkg.DownloadURL, archive)
	if err != nil {
		os.Remove(archive)
		return nil, err
	}

	meta := &packageMetadata{
		PackageInfo: pkg.PackageInfo,
		DownloadURL: pkg.DownloadURL,
		PackageSize: pkg.PackageSize,
	}
	meta.FailedInstall = false

	if err := d.unpack(archive, header, meta); err != nil {
		os.RemoveAll(target)
		if errors.Is(err, ErrInvalidUpdate) {
			if saveErr := d.updatePreferences(func(p *preferences) {
				p.FailedUpdates = append(p.FailedUpdates, pkg.PackageInfo)
			}); saveErr != nil {
				d.log.Warn().Err(saveErr).Msg("Could not record failed update.")
			}
		}
		return nil, err
	}
	if err := saveJSON(filepath.Join(target, metadataFileName), meta); err != nil {
		return nil, err
	}

	d.log.Info().Str("label", pkg.Label).Str("package_hash", pkg.PackageHash).
		Str("bundle", meta.BundlePath).Msg("Update downloaded.")
	return &hotload.LocalPackage{PackageInfo: meta.PackageInfo}, nil
}

// InstallUpdate makes pkg the current package and records it as pending.
// The package runs after the next launch, or the next qualifying resume for
// on-next-resume installs.
func (d *Device) InstallUpdate(_ context.Context, pkg *hotload.LocalPackage, mode hotload.InstallMode, minimumBackgroundDuration int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkPackageHash(pkg.PackageHash); err != nil {
		return err
	}

	prefs, err := d.loadPreferences()
	if err != nil {
		return err
	}
	st, err := d.loadStatus()
	if err != nil {
		return err
	}

	if prefs.isPending("") {
		// The replaced pending package never ran, so previous stays.
		if st.CurrentPackage != "" && st.CurrentPackage != pkg.PackageHash {
			os.RemoveAll(d.packageDir(st.CurrentPackage))
		}
	} else {
		if st.PreviousPackage != "" && st.PreviousPackage != pkg.PackageHash {
			os.RemoveAll(d.packageDir(st.PreviousPackage))
		}
		st.PreviousPackage = st.CurrentPackage
	}
	st.CurrentPackage = pkg.PackageHash
	if err := d.saveStatus(st); err != nil {
		return err
	}

	prefs.PendingUpdate = &pendingUpdate{
		Hash:                      pkg.PackageHash,
		InstallMode:               mode,
		MinimumBackgroundDuration: minimumBackgroundDuration,
	}
	if err := d.savePreferences(prefs); err != nil {
		return err
	}

	d.log.Info().Str("label", pkg.Label).Str("install_mode", mode.String()).Msg("Update installed.")
	return nil
}

// RestartApp relaunches, unless onlyIfPending is set and nothing is
// pending.
func (d *Device) RestartApp(ctx context.Context, onlyIfPending bool) error {
	d.mu.Lock()
	if onlyIfPending {
		prefs, err := d.loadPreferences()
		if err != nil {
			d.mu.Unlock()
			return err
		}
		if !prefs.isPending("") {
			d.mu.Unlock()
			return nil
		}
	}
	d.mu.Unlock()

	return d.restart(ctx)
}

func (d *Device) restart(ctx context.Context) error {
	d.log.Info().Msg("Restarting app.")
	if d.opts.RestartHook != nil {
		return d.opts.RestartHook(ctx)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launch()
}

// Resume tells the device the app returned to the foreground after
// backgroundFor. A pending on-next-resume install restarts the app once the
// minimum background duration has elapsed; the restart reports true.
func (d *Device) Resume(ctx context.Context, backgroundFor time.Duration) (bool, error) {
	d.mu.Lock()
	prefs, err := d.loadPreferences()
	d.mu.Unlock()
	if err != nil {
		return false, err
	}

	pending := prefs.PendingUpdate
	if !prefs.isPending("") || pending.InstallMode != hotload.InstallModeOnNextResume {
		return false, ErrNoPendingUpdate
	}
	if backgroundFor < time.Duration(pending.MinimumBackgroundDuration)*time.Second {
		return false, nil
	}
	return true, d.restart(ctx)
}

// NotifyApplicationReady confirms the running package started, which
// clears the pending record.
func (d *Device) NotifyApplicationReady(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.updatePreferences(func(p *preferences) { p.PendingUpdate = nil })
}

// AwaitingReady reports whether the current launch started a pending
// update that has not confirmed readiness yet.
func (d *Device) AwaitingReady() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefs, err := d.loadPreferences()
	if err != nil {
		return false, err
	}
	return prefs.PendingUpdate != nil && prefs.PendingUpdate.IsLoading, nil
}

// SubscribeDownloadProgress registers fn for download progress events.
func (d *Device) SubscribeDownloadProgress(fn func(hotload.DownloadProgress)) func() {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			d.subMu.Lock()
			defer d.subMu.Unlock()
			delete(d.subs, id)
		})
	}
}

func (d *Device) emitProgress(p hotload.DownloadProgress) {
	d.subMu.Lock()
	subs := make([]func(hotload.DownloadProgress), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.subMu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}
