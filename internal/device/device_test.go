package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotload-labs/hotload/internal/acquisition"
	"github.com/hotload-labs/hotload/internal/hotload"
)

func TestOpen_Fresh(t *testing.T) {
	dir := t.TempDir()
	d := openDevice(t, dir, func(o *Options) { o.BinaryHash = "bin" })
	ctx := context.Background()

	pkg, err := d.GetCurrentPackage(ctx)
	require.NoError(t, err)
	assert.Nil(t, pkg)

	cfg, err := d.GetConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", cfg.AppVersion)
	assert.Equal(t, "prod-key", cfg.DeploymentKey)
	assert.Equal(t, "bin", cfg.PackageHash)
	assert.NotEmpty(t, cfg.ClientUniqueID)

	again := openDevice(t, dir)
	cfg2, err := again.GetConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.ClientUniqueID, cfg2.ClientUniqueID, "client id must persist")
}

func TestOpen_RequiresAppVersion(t *testing.T) {
	_, err := Open(t.TempDir(), Options{})
	assert.Error(t, err)
}

func TestDownloadUpdate_Zip(t *testing.T) {
	d := openDevice(t, t.TempDir())
	srv := serveFiles(t, map[string][]byte{
		"/v1.zip": buildZip(t, map[string]string{
			"bundle/index.bundle": "console.log(1)",
			"bundle/assets/a.png": "png",
		}),
	})

	var events []hotload.DownloadProgress
	unsubscribe := d.SubscribeDownloadProgress(func(p hotload.DownloadProgress) { events = append(events, p) })
	defer unsubscribe()

	local, err := d.DownloadUpdate(context.Background(), remotePackage(srv.URL+"/v1.zip", "hash-1", "v1"))
	require.NoError(t, err)
	assert.Equal(t, "hash-1", local.PackageHash)
	assert.Equal(t, "v1", local.Label)

	pkgDir := d.packageDir("hash-1")
	assert.Equal(t, "console.log(1)", readFile(t, pkgDir, "bundle", "index.bundle"))
	assert.Equal(t, "png", readFile(t, pkgDir, "bundle", "assets", "a.png"))

	meta, err := d.loadMetadata("hash-1")
	require.NoError(t, err)
	assert.Equal(t, "bundle/index.bundle", meta.BundlePath)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, last.TotalBytes, last.ReceivedBytes)
}

func TestDownloadUpdate_PlainBundle(t *testing.T) {
	d := openDevice(t, t.TempDir())
	srv := serveFiles(t, map[string][]byte{"/v1.js": []byte("console.log(1)")})

	_, err := d.DownloadUpdate(context.Background(), remotePackage(srv.URL+"/v1.js", "hash-1", "v1"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", readFile(t, d.packageDir("hash-1"), plainBundleFileName))
}

func TestDownloadUpdate_MissingBundleIsFailedUpdate(t *testing.T) {
	d := openDevice(t, t.TempDir())
	srv := serveFiles(t, map[string][]byte{
		"/v1.zip": buildZip(t, map[string]string{"readme.txt": "no bundle"}),
	})
	ctx := context.Background()

	_, err := d.DownloadUpdate(ctx, remotePackage(srv.URL+"/v1.zip", "hash-1", "v1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidUpdate)

	failed, err := d.IsFailedUpdate(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, failed)
	assert.NoDirExists(t, d.packageDir("hash-1"))
}

func TestDownloadUpdate_RejectsEscapingPaths(t *testing.T) {
	d := openDevice(t, t.TempDir())
	srv := serveFiles(t, map[string][]byte{
		"/v1.zip": buildZip(t, map[string]string{"../../evil.bundle": "x", "index.bundle": "ok"}),
	})

	_, err := d.DownloadUpdate(context.Background(), remotePackage(srv.URL+"/v1.zip", "hash-1", "v1"))
	assert.ErrorIs(t, err, ErrInvalidUpdate)
}

func TestDownloadUpdate_RejectsEscapingHash(t *testing.T) {
	root := t.TempDir()
	victim := filepath.Join(root, "victim")
	require.NoError(t, os.MkdirAll(victim, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(victim, "keep.txt"), []byte("keep"), 0644))

	d := openDevice(t, filepath.Join(root, "dev"))
	srv := serveFiles(t, map[string][]byte{})
	ctx := context.Background()

	for _, hash := range []string{"../../victim", "..", ".", "a/b", `a\b`} {
		_, err := d.DownloadUpdate(ctx, remotePackage(srv.URL+"/missing.zip", hash, "v1"))
		assert.ErrorIs(t, err, ErrInvalidUpdate, "hash %q", hash)

		err = d.InstallUpdate(ctx, &hotload.LocalPackage{PackageInfo: hotload.PackageInfo{PackageHash: hash}}, hotload.InstallModeOnNextRestart, 0)
		assert.ErrorIs(t, err, ErrInvalidUpdate, "hash %q", hash)
	}

	assert.Equal(t, "keep", readFile(t, victim, "keep.txt"))
	failed, err := d.IsFailedUpdate(ctx, "../../victim")
	require.NoError(t, err)
	assert.False(t, failed, "a rejected hash is not recorded")
}

func TestDownloadUpdate_HTTPError(t *testing.T) {
	d := openDevice(t, t.TempDir())
	srv := serveFiles(t, nil)
	ctx := context.Background()

	_, err := d.DownloadUpdate(ctx, remotePackage(srv.URL+"/missing.zip", "hash-1", "v1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidUpdate)

	failed, err := d.IsFailedUpdate(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, failed, "transport errors are not failed updates")
}

func TestDownloadUpdate_Diff(t *testing.T) {
	d := openDevice(t, t.TempDir())
	ctx := context.Background()

	base := serveFiles(t, map[string][]byte{
		"/v1.zip": buildZip(t, map[string]string{
			"index.bundle": "v1",
			"keep.png":     "keep",
			"old.png":      "old",
		}),
	})
	local, err := d.DownloadUpdate(ctx, remotePackage(base.URL+"/v1.zip", "hash-1", "v1"))
	require.NoError(t, err)
	require.NoError(t, d.InstallUpdate(ctx, local, hotload.InstallModeOnNextRestart, 0))

	// The expected tree after applying the diff.
	want := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(want, "index.bundle"), []byte("v2"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(want, "keep.png"), []byte("keep"), 0644))
	hash, err := contentsHash(want)
	require.NoError(t, err)

	diff := serveFiles(t, map[string][]byte{
		"/v2.zip": buildZip(t, map[string]string{
			"index.bundle":       "v2",
			diffManifestFileName: `{"deletedFiles":["old.png"]}`,
		}),
	})
	_, err = d.DownloadUpdate(ctx, remotePackage(diff.URL+"/v2.zip", hash, "v2"))
	require.NoError(t, err)

	dir := d.packageDir(hash)
	assert.Equal(t, "v2", readFile(t, dir, "index.bundle"))
	assert.Equal(t, "keep", readFile(t, dir, "keep.png"))
	assert.NoFileExists(t, filepath.Join(dir, "old.png"))
	assert.NoFileExists(t, filepath.Join(dir, diffManifestFileName))
}

func TestDownloadUpdate_DiffIntegrityFailure(t *testing.T) {
	d := openDevice(t, t.TempDir())
	srv := serveFiles(t, map[string][]byte{
		"/v2.zip": buildZip(t, map[string]string{
			"index.bundle":       "v2",
			diffManifestFileName: `{"deletedFiles":[]}`,
		}),
	})

	_, err := d.DownloadUpdate(context.Background(), remotePackage(srv.URL+"/v2.zip", "not-the-hash", "v2"))
	assert.ErrorIs(t, err, ErrInvalidUpdate)
}

func TestLifecycle_InstallRestartReady(t *testing.T) {
	dir := t.TempDir()
	d := openDevice(t, dir)
	ctx := context.Background()

	installPackage(t, d, "hash-1", "v1", hotload.InstallModeOnNextRestart)

	pkg, err := d.GetCurrentPackage(ctx)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "hash-1", pkg.PackageHash)
	assert.True(t, pkg.IsPending)

	require.NoError(t, d.RestartApp(ctx, true))

	pkg, err = d.GetCurrentPackage(ctx)
	require.NoError(t, err)
	assert.False(t, pkg.IsPending, "a launched update is no longer pending")
	first, err := d.IsFirstRun(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, first)

	report, err := d.GetNewStatusReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, acquisition.DeploymentSucceeded, report.Status)
	assert.Equal(t, "v1", report.Package.Label)

	report, err = d.GetNewStatusReport(ctx)
	require.NoError(t, err)
	assert.Nil(t, report, "a deployment is reported once")

	require.NoError(t, d.NotifyApplicationReady(ctx))

	// A confirmed update survives the next launch.
	reopened := openDevice(t, dir)
	pkg, err = reopened.GetCurrentPackage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", pkg.PackageHash)
	first, err = reopened.IsFirstRun(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, first)
}

func TestLifecycle_RollbackAfterCrash(t *testing.T) {
	dir := t.TempDir()
	d := openDevice(t, dir)
	ctx := context.Background()

	installPackage(t, d, "hash-1", "v1", hotload.InstallModeOnNextRestart)
	require.NoError(t, d.NotifyApplicationReady(ctx))
	installPackage(t, d, "hash-2", "v2", hotload.InstallModeOnNextRestart)

	// The launch that tries v2 never confirms readiness.
	require.NoError(t, d.RestartApp(ctx, false))
	crashed := openDevice(t, dir)

	pkg, err := crashed.GetCurrentPackage(ctx)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "hash-1", pkg.PackageHash)

	failed, err := crashed.IsFailedUpdate(ctx, "hash-2")
	require.NoError(t, err)
	assert.True(t, failed)
	assert.NoDirExists(t, crashed.packageDir("hash-2"))

	report, err := crashed.GetNewStatusReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, acquisition.DeploymentFailed, report.Status)
	assert.Equal(t, "v2", report.Package.Label)
}

func TestLifecycle_ReplacePendingKeepsPrevious(t *testing.T) {
	d := openDevice(t, t.TempDir())

	installPackage(t, d, "hash-1", "v1", hotload.InstallModeOnNextRestart)
	require.NoError(t, d.NotifyApplicationReady(context.Background()))
	installPackage(t, d, "hash-2", "v2", hotload.InstallModeOnNextRestart)
	installPackage(t, d, "hash-3", "v3", hotload.InstallModeOnNextRestart)

	st, err := d.loadStatus()
	require.NoError(t, err)
	assert.Equal(t, packageStatus{CurrentPackage: "hash-3", PreviousPackage: "hash-1"}, st)
	assert.NoDirExists(t, d.packageDir("hash-2"))
	assert.DirExists(t, d.packageDir("hash-1"))
}

func TestLifecycle_BinaryUpdateDiscardsPackages(t *testing.T) {
	dir := t.TempDir()
	d := openDevice(t, dir)
	ctx := context.Background()

	installPackage(t, d, "hash-1", "v1", hotload.InstallModeOnNextRestart)
	require.NoError(t, d.RestartApp(ctx, false))
	_, err := d.GetNewStatusReport(ctx)
	require.NoError(t, err)
	require.NoError(t, d.NotifyApplicationReady(ctx))

	upgraded := openDevice(t, dir, func(o *Options) { o.AppVersion = "2.0.0" })
	pkg, err := upgraded.GetCurrentPackage(ctx)
	require.NoError(t, err)
	assert.Nil(t, pkg)

	report, err := upgraded.GetNewStatusReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "2.0.0", report.AppVersion)
	assert.Equal(t, "v1", report.PreviousLabelOrAppVersion)
	assert.Equal(t, "prod-key", report.PreviousDeploymentKey)
}

func TestBinaryReport_OncePerVersion(t *testing.T) {
	dir := t.TempDir()
	d := openDevice(t, dir)
	ctx := context.Background()

	report, err := d.GetNewStatusReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, &hotload.StatusReport{AppVersion: "1.0.0"}, report)

	report, err = openDevice(t, dir).GetNewStatusReport(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)

	report, err = openDevice(t, dir, func(o *Options) { o.AppVersion = "1.1.0" }).GetNewStatusReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "1.1.0", report.AppVersion)
	assert.Equal(t, "1.0.0", report.PreviousLabelOrAppVersion)
}

func TestRestartApp_OnlyIfPending(t *testing.T) {
	restarts := 0
	d := openDevice(t, t.TempDir(), func(o *Options) {
		o.RestartHook = func(context.Context) error { restarts++; return nil }
	})
	ctx := context.Background()

	require.NoError(t, d.RestartApp(ctx, true))
	assert.Equal(t, 0, restarts)

	installPackage(t, d, "hash-1", "v1", hotload.InstallModeOnNextRestart)
	require.NoError(t, d.RestartApp(ctx, true))
	assert.Equal(t, 1, restarts)

	require.NoError(t, d.RestartApp(ctx, false))
	assert.Equal(t, 2, restarts)
}

func TestAwaitingReady(t *testing.T) {
	d := openDevice(t, t.TempDir())
	ctx := context.Background()

	waiting, err := d.AwaitingReady()
	require.NoError(t, err)
	assert.False(t, waiting)

	installPackage(t, d, "hash-1", "v1", hotload.InstallModeImmediate)
	waiting, err = d.AwaitingReady()
	require.NoError(t, err)
	assert.False(t, waiting, "an installed update waits for a launch, not readiness")

	require.NoError(t, d.RestartApp(ctx, false))
	waiting, err = d.AwaitingReady()
	require.NoError(t, err)
	assert.True(t, waiting)

	require.NoError(t, d.NotifyApplicationReady(ctx))
	waiting, err = d.AwaitingReady()
	require.NoError(t, err)
	assert.False(t, waiting)
}

func TestResume(t *testing.T) {
	d := openDevice(t, t.TempDir())
	ctx := context.Background()

	_, err := d.Resume(ctx, time.Hour)
	assert.ErrorIs(t, err, ErrNoPendingUpdate)

	srv := serveFiles(t, map[string][]byte{
		"/v1.zip": buildZip(t, map[string]string{"index.bundle": "v1"}),
	})
	local, err := d.DownloadUpdate(ctx, remotePackage(srv.URL+"/v1.zip", "hash-1", "v1"))
	require.NoError(t, err)
	require.NoError(t, d.InstallUpdate(ctx, local, hotload.InstallModeOnNextResume, 60))

	restarted, err := d.Resume(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, restarted)

	restarted, err = d.Resume(ctx, 90*time.Second)
	require.NoError(t, err)
	assert.True(t, restarted)

	pkg, err := d.GetCurrentPackage(ctx)
	require.NoError(t, err)
	assert.False(t, pkg.IsPending)
}

func TestSubscribeDownloadProgress_Unsubscribe(t *testing.T) {
	d := openDevice(t, t.TempDir())

	calls := 0
	unsubscribe := d.SubscribeDownloadProgress(func(hotload.DownloadProgress) { calls++ })
	d.emitProgress(hotload.DownloadProgress{TotalBytes: 1, ReceivedBytes: 1})
	unsubscribe()
	unsubscribe()
	d.emitProgress(hotload.DownloadProgress{TotalBytes: 1, ReceivedBytes: 1})
	assert.Equal(t, 1, calls)
}

func TestOpen_PassiveDoesNotLaunch(t *testing.T) {
	dir := t.TempDir()
	d := openDevice(t, dir)
	installPackage(t, d, "hash-1", "v1", hotload.InstallModeOnNextRestart)

	for range 2 {
		passive := openDevice(t, dir, func(o *Options) { o.Passive = true })
		pkg, err := passive.GetCurrentPackage(context.Background())
		require.NoError(t, err)
		require.NotNil(t, pkg)
		assert.True(t, pkg.IsPending, "passive opens must not mark the update as loading")
		assert.False(t, pkg.IsDebugOnly)
	}
}
