package device

import (
	"context"
	"strings"

	"github.com/hotload-labs/hotload/internal/acquisition"
	"github.com/hotload-labs/hotload/internal/hotload"
)

// GetNewStatusReport returns the deployment outcome the release service has
// not heard about yet, or nil. A rollback during this launch reports the
// failed package; a first launch of a new package reports it as succeeded;
// a binary whose version differs from the last report reports the binary.
func (d *Device) GetNewStatusReport(context.Context) (*hotload.StatusReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefs, err := d.loadPreferences()
	if err != nil {
		return nil, err
	}

	switch {
	case d.needRollbackReport:
		d.needRollbackReport = false
		if n := len(prefs.FailedUpdates); n > 0 {
			failed := prefs.FailedUpdates[n-1]
			return &hotload.StatusReport{Package: &failed, Status: acquisition.DeploymentFailed}, nil
		}
	case d.didUpdate:
		meta, err := d.currentMetadata()
		if err != nil || meta == nil {
			return nil, err
		}
		return d.updateReport(&prefs, meta.PackageInfo)
	case d.runningBinary:
		return d.binaryUpdateReport(&prefs)
	}
	return nil, nil
}

func (d *Device) updateReport(prefs *preferences, pkg hotload.PackageInfo) (*hotload.StatusReport, error) {
	id := deploymentIdentifier(pkg.DeploymentKey, pkg.Label)
	previous := prefs.LastDeploymentReport
	if previous == id {
		return nil, nil
	}

	report := &hotload.StatusReport{Package: &pkg, Status: acquisition.DeploymentSucceeded}
	fillPrevious(report, previous)
	return report, d.recordReport(prefs, id)
}

func (d *Device) binaryUpdateReport(prefs *preferences) (*hotload.StatusReport, error) {
	previous := prefs.LastDeploymentReport
	if previous == d.opts.AppVersion {
		return nil, nil
	}

	report := &hotload.StatusReport{AppVersion: d.opts.AppVersion}
	fillPrevious(report, previous)
	return report, d.recordReport(prefs, d.opts.AppVersion)
}

func (d *Device) recordReport(prefs *preferences, id string) error {
	prefs.LastDeploymentReport = id
	return d.savePreferences(*prefs)
}

// fillPrevious describes what ran before: a deployment identifier names a
// package, anything else is an app version.
func fillPrevious(report *hotload.StatusReport, previous string) {
	if previous == "" {
		return
	}
	if key, label, ok := strings.Cut(previous, ":"); ok {
		report.PreviousDeploymentKey = key
		report.PreviousLabelOrAppVersion = label
		return
	}
	report.PreviousLabelOrAppVersion = previous
}

func deploymentIdentifier(deploymentKey, label string) string {
	return deploymentKey + ":" + label
}
