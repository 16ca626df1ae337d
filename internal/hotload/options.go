package hotload

import (
	"fmt"

	"dario.cat/mergo"
)

// SyncOptions tunes a Sync call. Zero-valued fields take the defaults of
// DefaultSyncOptions.
type SyncOptions struct {
	// DeploymentKey overrides the configured deployment key.
	DeploymentKey string
	// IgnoreFailedUpdates skips updates that were rolled back before.
	// nil means true; use Bool(false) to install them anyway.
	IgnoreFailedUpdates *bool
	// InstallMode applies to optional updates. Defaults to OnNextRestart.
	InstallMode InstallMode
	// MandatoryInstallMode applies to mandatory updates. Defaults to Immediate.
	MandatoryInstallMode InstallMode
	// MinimumBackgroundDuration is the number of seconds the app must spend
	// in the background before an OnNextResume install is applied.
	MinimumBackgroundDuration int
	// UpdateDialog, when non-nil, asks the user before installing.
	// &UpdateDialog{} selects the default texts.
	UpdateDialog *UpdateDialog
}

// DefaultSyncOptions returns the options used for fields left unset.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		InstallMode:          InstallModeOnNextRestart,
		MandatoryInstallMode: InstallModeImmediate,
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// ignoreFailedUpdates resolves the nil-means-true default.
func (o SyncOptions) ignoreFailedUpdates() bool {
	return o.IgnoreFailedUpdates == nil || *o.IgnoreFailedUpdates
}

func resolveSyncOptions(custom *SyncOptions) (SyncOptions, error) {
	resolved := DefaultSyncOptions()
	if custom == nil {
		return resolved, nil
	}
	if err := mergo.Merge(&resolved, *custom, mergo.WithOverride); err != nil {
		return SyncOptions{}, fmt.Errorf("merging sync options: %w", err)
	}
	if resolved.MinimumBackgroundDuration < 0 {
		return SyncOptions{}, &PreconditionError{Op: "sync", Reason: "minimum background duration must not be negative"}
	}
	return resolved, nil
}
