package hotload

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Sync checks for an update and, when one applies, downloads and installs
// it. Only one Sync runs per Client at a time: an overlapping call reports
// StatusSyncInProgress and returns immediately without starting a check.
//
// onStatus receives every status in order; onProgress receives download
// progress. Either may be nil, in which case a line per event is logged.
// Any failure is reported as StatusUnknownError to onStatus and returned.
func (c *Client) Sync(ctx context.Context, opts *SyncOptions, onStatus func(SyncStatus), onProgress func(DownloadProgress)) (SyncStatus, error) {
	if !c.syncing.CompareAndSwap(false, true) {
		if onStatus != nil {
			onStatus(StatusSyncInProgress)
		} else {
			c.log.Info().Msg("Sync already in progress.")
		}
		return StatusSyncInProgress, nil
	}
	defer c.syncing.Store(false)

	s := &syncRun{client: c, onStatus: onStatus, onProgress: onProgress}
	if s.onProgress == nil {
		s.onProgress = c.logProgress
	}

	status, err := s.run(ctx, opts)
	if err != nil {
		s.report(StatusUnknownError)
		c.log.Error().Err(err).Msg("Sync failed.")
		return StatusUnknownError, err
	}
	return status, nil
}

// syncRun is the state of one Sync call.
type syncRun struct {
	client     *Client
	options    SyncOptions
	onStatus   func(SyncStatus)
	onProgress func(DownloadProgress)

	// resolvedMode is known only after the download, once mandatoriness is.
	resolvedMode InstallMode
}

func (s *syncRun) report(status SyncStatus) {
	if s.onStatus != nil {
		s.onStatus(status)
		return
	}
	s.client.logStatus(status, s.resolvedMode, s.options.MinimumBackgroundDuration)
}

func (s *syncRun) run(ctx context.Context, opts *SyncOptions) (SyncStatus, error) {
	options, err := resolveSyncOptions(opts)
	if err != nil {
		return StatusUnknownError, err
	}
	s.options = options

	if err := s.client.NotifyApplicationReady(ctx); err != nil {
		return StatusUnknownError, err
	}

	s.report(StatusCheckingForUpdate)
	remote, err := s.client.CheckForUpdate(ctx, options.DeploymentKey)
	if err != nil {
		return StatusUnknownError, err
	}

	ignored := remote != nil && remote.FailedInstall && options.ignoreFailedUpdates()
	if remote == nil || ignored {
		if ignored {
			s.client.log.Info().Str("package_hash", remote.PackageHash).
				Msg("An update is available, but it is being ignored due to having been previously rolled back.")
		}
		s.report(StatusUpToDate)
		return StatusUpToDate, nil
	}

	if options.UpdateDialog != nil {
		return s.confirm(ctx, remote)
	}
	return s.downloadAndInstall(ctx, remote)
}

func (s *syncRun) confirm(ctx context.Context, remote *RemotePackage) (SyncStatus, error) {
	if s.client.presenter == nil {
		return StatusUnknownError, ErrNoPresenter
	}

	dialogOpts, err := resolveUpdateDialog(s.options.UpdateDialog)
	if err != nil {
		return StatusUnknownError, err
	}
	dialog := buildDialog(dialogOpts, remote)

	s.report(StatusAwaitingUserAction)
	choice, err := s.client.presenter.Present(ctx, dialog)
	if err != nil {
		return StatusUnknownError, fmt.Errorf("presenting update dialog: %w", err)
	}
	if choice < 0 || choice >= len(dialog.Buttons) {
		return StatusUnknownError, fmt.Errorf("presenter returned button %d of %d", choice, len(dialog.Buttons))
	}

	switch dialog.Buttons[choice].Action {
	case ActionIgnore:
		s.report(StatusUpdateIgnored)
		return StatusUpdateIgnored, nil
	default:
		return s.downloadAndInstall(ctx, remote)
	}
}

func (s *syncRun) downloadAndInstall(ctx context.Context, remote *RemotePackage) (SyncStatus, error) {
	s.report(StatusDownloadingPackage)
	local, err := remote.Download(ctx, s.onProgress)
	if err != nil {
		return StatusUnknownError, err
	}

	s.resolvedMode = s.options.InstallMode
	if local.IsMandatory {
		s.resolvedMode = s.options.MandatoryInstallMode
	}

	s.report(StatusInstallingUpdate)
	err = local.Install(ctx, s.resolvedMode, s.options.MinimumBackgroundDuration, func() {
		s.report(StatusUpdateInstalled)
	})
	if err != nil {
		return StatusUnknownError, err
	}
	return StatusUpdateInstalled, nil
}

// logStatus is the status observer used when the caller supplies none.
func (c *Client) logStatus(status SyncStatus, mode InstallMode, minimumBackgroundDuration int) {
	switch status {
	case StatusCheckingForUpdate:
		c.log.Info().Msg("Checking for update.")
	case StatusAwaitingUserAction:
		c.log.Info().Msg("Awaiting user action.")
	case StatusDownloadingPackage:
		c.log.Info().Msg("Downloading package.")
	case StatusInstallingUpdate:
		c.log.Info().Msg("Installing update.")
	case StatusUpToDate:
		c.log.Info().Msg("App is up to date.")
	case StatusUpdateIgnored:
		c.log.Info().Msg("User cancelled the update.")
	case StatusUpdateInstalled:
		switch {
		case mode == InstallModeImmediate:
			c.log.Info().Msg("Update is installed and the app is restarting.")
		case mode == InstallModeOnNextRestart:
			c.log.Info().Msg("Update is installed and will be run on the next app restart.")
		case minimumBackgroundDuration > 0:
			c.log.Info().Msgf("Update is installed and will be run after the app has been in the background for at least %d seconds.", minimumBackgroundDuration)
		default:
			c.log.Info().Msg("Update is installed and will be run when the app next resumes.")
		}
	case StatusUnknownError:
		c.log.Info().Msg("An unknown error occurred.")
	}
}

// logProgress is the progress observer used when the caller supplies none.
func (c *Client) logProgress(p DownloadProgress) {
	c.log.Debug().Msg(printer.Sprintf("Expecting %d bytes, received %d bytes.", p.TotalBytes, p.ReceivedBytes))
}
