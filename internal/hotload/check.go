package hotload

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/hotload-labs/hotload/internal/acquisition"
)

// CheckForUpdate asks the release service whether an update applicable to
// the running binary exists. deploymentKey, when non-empty, overrides the
// configured deployment key for this call only.
//
// It returns nil, nil when there is nothing to install: no update, an update
// requiring a newer binary, an update whose hash matches the installed
// package, or (with no installed package) an update whose hash matches the
// bundle shipped in the binary.
func (c *Client) CheckForUpdate(ctx context.Context, deploymentKey string) (*RemotePackage, error) {
	nativeConfig, err := c.GetConfiguration(ctx)
	if err != nil {
		return nil, err
	}

	cfg := nativeConfig
	if deploymentKey != "" {
		cfg.DeploymentKey = deploymentKey
	}
	acq := c.newAcquisition(cfg)

	local, err := c.GetCurrentPackage(ctx)
	if err != nil {
		return nil, err
	}

	// An installed package lets the server diff against what is running;
	// otherwise only the app version matters.
	var query acquisition.QueryPackage
	if local != nil {
		query = acquisition.QueryPackage{
			AppVersion:  local.AppVersion,
			PackageHash: local.PackageHash,
			Label:       local.Label,
		}
	} else {
		query = acquisition.QueryPackage{AppVersion: cfg.AppVersion}
		if c.platform.AttachesBinaryHash() && cfg.PackageHash != "" {
			query.PackageHash = cfg.PackageHash
		}
	}

	update, err := acq.QueryUpdate(ctx, query)
	if err != nil {
		return nil, err
	}

	if c.suppress(cfg, local, update) {
		return nil, nil
	}

	failed, err := c.native.IsFailedUpdate(ctx, update.PackageHash)
	if err != nil {
		return nil, nativeErr("isFailedUpdate", err)
	}

	return &RemotePackage{
		PackageInfo: PackageInfo{
			AppVersion:    update.AppVersion,
			DeploymentKey: cfg.DeploymentKey,
			Description:   update.Description,
			FailedInstall: failed,
			IsMandatory:   update.IsMandatory,
			Label:         update.Label,
			PackageHash:   update.PackageHash,
		},
		DownloadURL: update.DownloadURL,
		PackageSize: update.PackageSize,
		native:      c.native,
		reporter:    downloadReporterFor(acq),
		log:         c.log,
	}, nil
}

func (c *Client) suppress(cfg Configuration, local *LocalPackage, update *acquisition.UpdateCheckResponse) bool {
	switch {
	case update == nil:
		return true
	case update.UpdateAppVersion:
		ev := c.log.Info().Str("app_version", cfg.AppVersion)
		if update.AppVersion != "" {
			ev = ev.Str("target_app_version", update.AppVersion)
			current, currErr := semver.NewVersion(cfg.AppVersion)
			target, targetErr := semver.NewVersion(update.AppVersion)
			if currErr == nil && targetErr == nil {
				ev = ev.Bool("target_is_newer", target.GreaterThan(current))
			}
		}
		ev.Msg("An update is available but it is targeting a newer binary version than you are currently running.")
		return true
	case local != nil && update.PackageHash == local.PackageHash:
		// The server should never offer the running package.
		return true
	case (local == nil || local.IsDebugOnly) && cfg.PackageHash != "" && update.PackageHash == cfg.PackageHash:
		// Binaries that do not attach their hash to the query may be offered
		// their own bundle.
		return true
	default:
		return false
	}
}

func downloadReporterFor(acq Acquisition) downloadReporter {
	return func(ctx context.Context, pkg *RemotePackage) error {
		return acq.ReportDownload(ctx, acquisition.DeployedPackage{
			AppVersion:    pkg.AppVersion,
			Label:         pkg.Label,
			DeploymentKey: pkg.DeploymentKey,
		})
	}
}
