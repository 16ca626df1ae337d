package hotload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSyncOptions(t *testing.T) {
	t.Run("nil takes defaults", func(t *testing.T) {
		got, err := resolveSyncOptions(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultSyncOptions(), got)
		assert.True(t, got.ignoreFailedUpdates())
	})

	t.Run("set fields override", func(t *testing.T) {
		got, err := resolveSyncOptions(&SyncOptions{
			DeploymentKey:             "staging-key",
			IgnoreFailedUpdates:       Bool(false),
			InstallMode:               InstallModeOnNextResume,
			MinimumBackgroundDuration: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, "staging-key", got.DeploymentKey)
		assert.False(t, got.ignoreFailedUpdates())
		assert.Equal(t, InstallModeOnNextResume, got.InstallMode)
		assert.Equal(t, InstallModeImmediate, got.MandatoryInstallMode)
		assert.Equal(t, 60, got.MinimumBackgroundDuration)
		assert.Nil(t, got.UpdateDialog)
	})

	t.Run("negative duration", func(t *testing.T) {
		_, err := resolveSyncOptions(&SyncOptions{MinimumBackgroundDuration: -1})
		assert.ErrorIs(t, err, ErrPrecondition)
	})
}

func TestResolveUpdateDialog(t *testing.T) {
	custom := &UpdateDialog{Title: "New release", AppendReleaseDescription: true}

	got, err := resolveUpdateDialog(custom)
	require.NoError(t, err)

	want := DefaultUpdateDialog()
	want.Title = "New release"
	want.AppendReleaseDescription = true
	assert.Equal(t, want, got)
	assert.Equal(t, "New release", custom.Title)
	assert.Empty(t, custom.OptionalInstallButtonLabel, "caller's dialog must not be modified")
}

func TestBuildDialog(t *testing.T) {
	opts := DefaultUpdateDialog()

	t.Run("optional", func(t *testing.T) {
		d := buildDialog(opts, &RemotePackage{PackageInfo: PackageInfo{Description: "fixes"}})
		assert.Equal(t, "An update is available. Would you like to install it?", d.Message)
		assert.Equal(t, []DialogButton{
			{Text: "Install", Action: ActionInstall},
			{Text: "Ignore", Action: ActionIgnore},
		}, d.Buttons)
	})

	t.Run("mandatory", func(t *testing.T) {
		d := buildDialog(opts, &RemotePackage{PackageInfo: PackageInfo{IsMandatory: true}})
		require.Len(t, d.Buttons, 1)
		assert.Equal(t, ActionInstall, d.Buttons[0].Action)
	})

	t.Run("appends description", func(t *testing.T) {
		withDesc := opts
		withDesc.AppendReleaseDescription = true
		withDesc.DescriptionPrefix = "Notes:"
		d := buildDialog(withDesc, &RemotePackage{PackageInfo: PackageInfo{IsMandatory: true, Description: "fixes"}})
		assert.Equal(t, "An update is available that must be installed.Notes: fixes", d.Message)
	})
}

func TestParseInstallMode(t *testing.T) {
	for in, want := range map[string]InstallMode{
		"immediate":       InstallModeImmediate,
		"on-next-restart": InstallModeOnNextRestart,
		"Restart":         InstallModeOnNextRestart,
		" resume ":        InstallModeOnNextResume,
	} {
		got, err := ParseInstallMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got.String(), want.String())
	}

	_, err := ParseInstallMode("later")
	assert.Error(t, err)
}

func TestSyncStatusString(t *testing.T) {
	assert.Equal(t, "UP_TO_DATE", StatusUpToDate.String())
	assert.Equal(t, "SYNC_IN_PROGRESS", StatusSyncInProgress.String())
	assert.Equal(t, "UNKNOWN_ERROR", StatusUnknownError.String())
	assert.Equal(t, "SyncStatus(42)", SyncStatus(42).String())
}
