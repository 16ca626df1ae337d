package hotload

import (
	"context"
	"fmt"
	"strings"

	"github.com/hotload-labs/hotload/internal/acquisition"
)

// InstallMode selects when an installed update takes effect. The zero value
// means "not set" and is replaced by the sync defaults.
type InstallMode int

const (
	// InstallModeImmediate restarts the application right after installing.
	InstallModeImmediate InstallMode = iota + 1
	// InstallModeOnNextRestart lets the update be picked up on the next launch.
	InstallModeOnNextRestart
	// InstallModeOnNextResume restarts the application the next time it
	// returns from the background.
	InstallModeOnNextResume
)

func (m InstallMode) String() string {
	switch m {
	case InstallModeImmediate:
		return "immediate"
	case InstallModeOnNextRestart:
		return "on-next-restart"
	case InstallModeOnNextResume:
		return "on-next-resume"
	default:
		return fmt.Sprintf("InstallMode(%d)", int(m))
	}
}

// ParseInstallMode accepts the names returned by InstallMode.String.
func ParseInstallMode(s string) (InstallMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immediate":
		return InstallModeImmediate, nil
	case "on-next-restart", "restart":
		return InstallModeOnNextRestart, nil
	case "on-next-resume", "resume":
		return InstallModeOnNextResume, nil
	default:
		return 0, fmt.Errorf("unknown install mode %q (want immediate, on-next-restart or on-next-resume)", s)
	}
}

// SyncStatus is reported to the status observer as Sync progresses.
type SyncStatus int

const (
	StatusUnknownError       SyncStatus = -1
	StatusCheckingForUpdate  SyncStatus = 0
	StatusAwaitingUserAction SyncStatus = 1
	StatusDownloadingPackage SyncStatus = 2
	StatusInstallingUpdate   SyncStatus = 3
	// StatusUpToDate: the running app is up to date.
	StatusUpToDate SyncStatus = 4
	// StatusUpdateIgnored: an optional update was declined by the user.
	StatusUpdateIgnored SyncStatus = 5
	// StatusUpdateInstalled: an update was downloaded and installed.
	StatusUpdateInstalled SyncStatus = 6
	// StatusSyncInProgress: another Sync call is still running.
	StatusSyncInProgress SyncStatus = 7
)

func (s SyncStatus) String() string {
	switch s {
	case StatusUnknownError:
		return "UNKNOWN_ERROR"
	case StatusCheckingForUpdate:
		return "CHECKING_FOR_UPDATE"
	case StatusAwaitingUserAction:
		return "AWAITING_USER_ACTION"
	case StatusDownloadingPackage:
		return "DOWNLOADING_PACKAGE"
	case StatusInstallingUpdate:
		return "INSTALLING_UPDATE"
	case StatusUpToDate:
		return "UP_TO_DATE"
	case StatusUpdateIgnored:
		return "UPDATE_IGNORED"
	case StatusUpdateInstalled:
		return "UPDATE_INSTALLED"
	case StatusSyncInProgress:
		return "SYNC_IN_PROGRESS"
	default:
		return fmt.Sprintf("SyncStatus(%d)", int(s))
	}
}

// DownloadProgress is emitted zero or more times while a package downloads.
type DownloadProgress struct {
	TotalBytes    int64
	ReceivedBytes int64
}

// Platform distinguishes hash-attachment semantics of the host OS.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// AttachesBinaryHash reports whether update checks made without an installed
// package send the binary's own bundle hash. Android does not, so that the
// server never offers diffs against the shipped bundle.
func (p Platform) AttachesBinaryHash() bool {
	return p == PlatformIOS
}

// Configuration is resolved from the native layer once per Client.
type Configuration struct {
	AppVersion     string `json:"appVersion"`
	DeploymentKey  string `json:"deploymentKey"`
	PackageHash    string `json:"packageHash,omitempty"` // hash of the bundle shipped in the binary
	ClientUniqueID string `json:"clientUniqueId"`
	ServerURL      string `json:"serverUrl"`
}

// PackageInfo is the descriptor shared by remote and local packages.
type PackageInfo struct {
	AppVersion    string `json:"appVersion"`
	DeploymentKey string `json:"deploymentKey"`
	Description   string `json:"description,omitempty"`
	FailedInstall bool   `json:"failedInstall"`
	IsMandatory   bool   `json:"isMandatory"`
	Label         string `json:"label"`
	PackageHash   string `json:"packageHash"`
}

// Package is implemented by *RemotePackage and *LocalPackage.
type Package interface {
	Info() PackageInfo
	Pending() bool
}

// StatusReport is a deployment outcome the native layer has not yet reported
// to the release service. AppVersion is set for binary updates; Package and
// Status are set for package deployments and rollbacks.
type StatusReport struct {
	AppVersion                string                       `json:"appVersion,omitempty"`
	Package                   *PackageInfo                 `json:"package,omitempty"`
	Status                    acquisition.DeploymentStatus `json:"status,omitempty"`
	PreviousLabelOrAppVersion string                       `json:"previousLabelOrAppVersion,omitempty"`
	PreviousDeploymentKey     string                       `json:"previousDeploymentKey,omitempty"`
}

// NativeBridge is the on-device installer boundary. Every call may fail;
// failures propagate to the caller wrapped in a *NativeError.
type NativeBridge interface {
	GetConfiguration(ctx context.Context) (*Configuration, error)
	// GetCurrentPackage returns nil, nil when the binary's own bundle is running.
	GetCurrentPackage(ctx context.Context) (*LocalPackage, error)
	IsFailedUpdate(ctx context.Context, packageHash string) (bool, error)
	IsFirstRun(ctx context.Context, packageHash string) (bool, error)
	DownloadUpdate(ctx context.Context, pkg *RemotePackage) (*LocalPackage, error)
	InstallUpdate(ctx context.Context, pkg *LocalPackage, mode InstallMode, minimumBackgroundDuration int) error
	RestartApp(ctx context.Context, onlyIfPending bool) error
	NotifyApplicationReady(ctx context.Context) error
	// GetNewStatusReport returns nil, nil when there is nothing to report.
	GetNewStatusReport(ctx context.Context) (*StatusReport, error)
	// SubscribeDownloadProgress registers fn for progress events and returns
	// the function that removes it.
	SubscribeDownloadProgress(fn func(DownloadProgress)) (unsubscribe func())
}

// Acquisition is the release service client. *acquisition.Client implements it.
type Acquisition interface {
	QueryUpdate(ctx context.Context, current acquisition.QueryPackage) (*acquisition.UpdateCheckResponse, error)
	ReportDeploy(ctx context.Context, report acquisition.DeployReport) error
	ReportDownload(ctx context.Context, pkg acquisition.DeployedPackage) error
}

// AcquisitionFactory builds an Acquisition scoped to one configuration.
type AcquisitionFactory func(cfg Configuration) Acquisition

// NewAcquisition is the default AcquisitionFactory.
func NewAcquisition(cfg Configuration) Acquisition {
	return acquisition.New(acquisition.Config{
		ServerURL:      cfg.ServerURL,
		DeploymentKey:  cfg.DeploymentKey,
		AppVersion:     cfg.AppVersion,
		ClientUniqueID: cfg.ClientUniqueID,
	})
}
