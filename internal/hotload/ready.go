package hotload

import (
	"context"

	"github.com/hotload-labs/hotload/internal/acquisition"
)

// NotifyApplicationReady confirms to the native layer that the running
// bundle started successfully, so a freshly installed update is not rolled
// back on the next launch. Only the first call per Client does any work;
// later calls return the same result. The ctx of the first call is the one
// used.
//
// A pending deployment status report is sent to the release service
// afterwards. Report failures are logged and never returned.
func (c *Client) NotifyApplicationReady(ctx context.Context) error {
	c.readyOnce.Do(func() {
		c.readyErr = c.notifyApplicationReady(ctx)
	})
	return c.readyErr
}

func (c *Client) notifyApplicationReady(ctx context.Context) error {
	if err := c.native.NotifyApplicationReady(ctx); err != nil {
		return nativeErr("notifyApplicationReady", err)
	}

	report, err := c.native.GetNewStatusReport(ctx)
	if err != nil {
		return nativeErr("getNewStatusReport", err)
	}
	if report == nil {
		return nil
	}

	cfg, err := c.GetConfiguration(ctx)
	if err != nil {
		return err
	}

	previousDeploymentKey := report.PreviousDeploymentKey
	if previousDeploymentKey == "" {
		previousDeploymentKey = cfg.DeploymentKey
	}

	deploy := acquisition.DeployReport{
		PreviousLabelOrAppVersion: report.PreviousLabelOrAppVersion,
		PreviousDeploymentKey:     previousDeploymentKey,
	}

	switch {
	case report.AppVersion != "":
		// Binary update: nothing but the previous identity to report.
	case report.Package != nil:
		if report.Package.DeploymentKey != "" {
			cfg.DeploymentKey = report.Package.DeploymentKey
		}
		deploy.Package = &acquisition.DeployedPackage{
			AppVersion:    report.Package.AppVersion,
			Label:         report.Package.Label,
			DeploymentKey: report.Package.DeploymentKey,
		}
		deploy.Status = report.Status
	default:
		c.log.Warn().Msg("Ignoring status report without app version or package.")
		return nil
	}

	if err := c.newAcquisition(cfg).ReportDeploy(ctx, deploy); err != nil {
		c.log.Warn().Err(err).Msg("Deploy status report failed.")
	}
	return nil
}
