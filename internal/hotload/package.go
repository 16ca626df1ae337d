package hotload

import (
	"context"

	"github.com/hotload-labs/hotload/internal/logger"
)

// downloadReporter tells the release service a package was downloaded.
type downloadReporter func(ctx context.Context, pkg *RemotePackage) error

// RemotePackage is an update offered by the release service. It can be
// downloaded but never installed directly, and is never pending.
type RemotePackage struct {
	PackageInfo
	DownloadURL string `json:"downloadUrl"`
	PackageSize int64  `json:"packageSize"`

	native   NativeBridge
	reporter downloadReporter
	log      *logger.Logger
}

// Info returns the shared descriptor.
func (p *RemotePackage) Info() PackageInfo { return p.PackageInfo }

// Pending is always false for a remote package.
func (p *RemotePackage) Pending() bool { return false }

// Download fetches the package through the native layer and returns it as an
// installable LocalPackage. onProgress, when non-nil, receives progress
// events for the duration of this call only. A download report is sent to
// the release service if one was bound when the package was created; its
// failure is logged and does not fail the download.
func (p *RemotePackage) Download(ctx context.Context, onProgress func(DownloadProgress)) (*LocalPackage, error) {
	if p.DownloadURL == "" {
		return nil, &PreconditionError{Op: "download", Reason: "cannot download an update without a download url"}
	}
	if p.native == nil {
		return nil, &PreconditionError{Op: "download", Reason: "package is not bound to a native bridge"}
	}

	if onProgress != nil {
		unsubscribe := p.native.SubscribeDownloadProgress(onProgress)
		defer unsubscribe()
	}

	downloaded, err := p.native.DownloadUpdate(ctx, p)
	if err != nil {
		return nil, nativeErr("downloadUpdate", err)
	}
	if downloaded == nil {
		return nil, nativeErr("downloadUpdate", errEmptyResult)
	}

	if p.reporter != nil {
		if err := p.reporter(ctx, p); err != nil && p.log != nil {
			p.log.Warn().Err(err).Str("label", p.Label).Msg("Download report failed.")
		}
	}

	local := *downloaded
	local.IsPending = false
	local.native = p.native
	return &local, nil
}

// LocalPackage is a package stored on the device: downloaded, installed, or
// currently running.
type LocalPackage struct {
	PackageInfo
	IsPending   bool `json:"isPending"`
	IsFirstRun  bool `json:"isFirstRun"`
	IsDebugOnly bool `json:"isDebugOnly,omitempty"`

	native NativeBridge
}

// Info returns the shared descriptor.
func (p *LocalPackage) Info() PackageInfo { return p.PackageInfo }

// Pending reports whether the package is installed but not yet active.
func (p *LocalPackage) Pending() bool { return p.IsPending }

// Install hands the package to the native installer. onInstalled, when
// non-nil, runs once the installer accepted it. With InstallModeImmediate the
// application is restarted and IsPending stays false; any other mode marks
// the package pending until the native layer activates it.
func (p *LocalPackage) Install(ctx context.Context, mode InstallMode, minimumBackgroundDuration int, onInstalled func()) error {
	if p.native == nil {
		return &PreconditionError{Op: "install", Reason: "package is not bound to a native bridge"}
	}
	if mode == 0 {
		mode = InstallModeOnNextRestart
	}
	if minimumBackgroundDuration < 0 {
		return &PreconditionError{Op: "install", Reason: "minimum background duration must not be negative"}
	}

	if err := p.native.InstallUpdate(ctx, p, mode, minimumBackgroundDuration); err != nil {
		return nativeErr("installUpdate", err)
	}
	if onInstalled != nil {
		onInstalled()
	}

	if mode == InstallModeImmediate {
		return nativeErr("restartApp", p.native.RestartApp(ctx, false))
	}
	p.IsPending = true
	return nil
}

// bind attaches the native bridge so the package can be installed.
func (p *LocalPackage) bind(native NativeBridge) *LocalPackage {
	if p != nil {
		p.native = native
	}
	return p
}
