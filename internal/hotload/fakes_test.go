package hotload

import (
	"context"
	"sync"

	"github.com/hotload-labs/hotload/internal/acquisition"
)

type installCall struct {
	hash                      string
	mode                      InstallMode
	minimumBackgroundDuration int
}

// fakeNative is an in-memory NativeBridge.
type fakeNative struct {
	mu sync.Mutex

	config      *Configuration
	configErr   error
	configCalls int

	current    *LocalPackage
	currentErr error

	failed   map[string]bool
	firstRun map[string]bool

	downloaded     *LocalPackage
	downloadErr    error
	downloadCalls  int
	progressEvents []DownloadProgress

	installErr   error
	installCalls []installCall
	restartCalls []bool

	readyErr     error
	readyCalls   int
	statusReport *StatusReport

	nextSub     int
	subscribers map[int]func(DownloadProgress)
	subscribes  int
}

func newFakeNative() *fakeNative {
	return &fakeNative{
		config: &Configuration{
			AppVersion:     "1.0.0",
			DeploymentKey:  "prod-key",
			ClientUniqueID: "device-1",
			ServerURL:      "http://release.test/",
		},
		failed:      map[string]bool{},
		firstRun:    map[string]bool{},
		subscribers: map[int]func(DownloadProgress){},
	}
}

func (f *fakeNative) GetConfiguration(context.Context) (*Configuration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configCalls++
	if f.configErr != nil {
		return nil, f.configErr
	}
	cfg := *f.config
	return &cfg, nil
}

func (f *fakeNative) GetCurrentPackage(context.Context) (*LocalPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil || f.current == nil {
		return nil, f.currentErr
	}
	pkg := *f.current
	return &pkg, nil
}

func (f *fakeNative) IsFailedUpdate(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed[hash], nil
}

func (f *fakeNative) IsFirstRun(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.firstRun[hash], nil
}

func (f *fakeNative) DownloadUpdate(_ context.Context, pkg *RemotePackage) (*LocalPackage, error) {
	f.mu.Lock()
	f.downloadCalls++
	subs := make([]func(DownloadProgress), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	events := f.progressEvents
	err := f.downloadErr
	result := f.downloaded
	f.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &LocalPackage{PackageInfo: pkg.PackageInfo}, nil
	}
	out := *result
	return &out, nil
}

func (f *fakeNative) InstallUpdate(_ context.Context, pkg *LocalPackage, mode InstallMode, minimumBackgroundDuration int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installCalls = append(f.installCalls, installCall{pkg.PackageHash, mode, minimumBackgroundDuration})
	return f.installErr
}

func (f *fakeNative) RestartApp(_ context.Context, onlyIfPending bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restartCalls = append(f.restartCalls, onlyIfPending)
	return nil
}

func (f *fakeNative) NotifyApplicationReady(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyCalls++
	return f.readyErr
}

func (f *fakeNative) GetNewStatusReport(context.Context) (*StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report := f.statusReport
	f.statusReport = nil
	return report, nil
}

func (f *fakeNative) SubscribeDownloadProgress(fn func(DownloadProgress)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subscribes++
	f.subscribers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, id)
	}
}

func (f *fakeNative) activeSubscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// fakeAcquisition records every call made by the Client.
type fakeAcquisition struct {
	mu sync.Mutex

	response *acquisition.UpdateCheckResponse
	queryErr error
	queries  []acquisition.QueryPackage
	configs  []Configuration

	// entered is closed when the first query starts; release blocks it.
	entered chan struct{}
	release chan struct{}

	deployErr error
	deploys   []acquisition.DeployReport
	downloads []acquisition.DeployedPackage
}

func (a *fakeAcquisition) factory(cfg Configuration) Acquisition {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configs = append(a.configs, cfg)
	return a
}

func (a *fakeAcquisition) QueryUpdate(ctx context.Context, q acquisition.QueryPackage) (*acquisition.UpdateCheckResponse, error) {
	a.mu.Lock()
	a.queries = append(a.queries, q)
	first := len(a.queries) == 1
	a.mu.Unlock()

	if first && a.entered != nil {
		close(a.entered)
	}
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.queryErr != nil {
		return nil, a.queryErr
	}
	if a.response == nil {
		return nil, nil
	}
	resp := *a.response
	return &resp, nil
}

func (a *fakeAcquisition) ReportDeploy(_ context.Context, report acquisition.DeployReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deploys = append(a.deploys, report)
	return a.deployErr
}

func (a *fakeAcquisition) ReportDownload(_ context.Context, pkg acquisition.DeployedPackage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.downloads = append(a.downloads, pkg)
	return nil
}

func (a *fakeAcquisition) queryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queries)
}

// scriptedPresenter picks a fixed button and records the dialog it saw.
type scriptedPresenter struct {
	choice int
	err    error
	seen   []Dialog
}

func (p *scriptedPresenter) Present(_ context.Context, d Dialog) (int, error) {
	p.seen = append(p.seen, d)
	return p.choice, p.err
}

// statusRecorder collects statuses in order.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []SyncStatus
}

func (r *statusRecorder) observe(s SyncStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) all() []SyncStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SyncStatus(nil), r.statuses...)
}

func newTestClient(native *fakeNative, acq *fakeAcquisition, opts ...Option) *Client {
	opts = append([]Option{WithAcquisitionFactory(acq.factory)}, opts...)
	return New(native, opts...)
}
