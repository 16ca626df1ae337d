package hotload

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hotload-labs/hotload/internal/logger"
)

// Client owns the per-process state of the update engine: the cached
// configuration, the readiness result and the single-flight sync flag. It is
// initialized on first use and lives as long as the application process.
type Client struct {
	native         NativeBridge
	newAcquisition AcquisitionFactory
	presenter      Presenter
	log            *logger.Logger
	platform       Platform

	configMu sync.Mutex
	config   *Configuration

	readyOnce sync.Once
	readyErr  error

	syncing atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithAcquisitionFactory replaces the release service client constructor.
func WithAcquisitionFactory(f AcquisitionFactory) Option {
	return func(c *Client) {
		c.newAcquisition = f
	}
}

// WithPresenter sets the presenter used for update confirmation dialogs.
func WithPresenter(p Presenter) Option {
	return func(c *Client) {
		c.presenter = p
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithPlatform sets the host platform. Defaults to PlatformAndroid.
func WithPlatform(p Platform) Option {
	return func(c *Client) {
		c.platform = p
	}
}

// New creates a Client on top of the native installer boundary.
func New(native NativeBridge, opts ...Option) *Client {
	c := &Client{
		native:         native,
		newAcquisition: NewAcquisition,
		log:            logger.Nop(),
		platform:       PlatformAndroid,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("hotload")
	return c
}

// GetConfiguration returns the native configuration, resolving it on the
// first call and serving the cached copy afterwards.
func (c *Client) GetConfiguration(ctx context.Context) (Configuration, error) {
	c.configMu.Lock()
	defer c.configMu.Unlock()

	if c.config != nil {
		return *c.config, nil
	}

	cfg, err := c.native.GetConfiguration(ctx)
	if err != nil {
		return Configuration{}, nativeErr("getConfiguration", err)
	}
	if cfg == nil {
		return Configuration{}, nativeErr("getConfiguration", errEmptyResult)
	}
	cached := *cfg
	c.config = &cached
	return cached, nil
}

// GetCurrentPackage returns the installed package, or nil when the binary's
// own bundle is running. FailedInstall and IsFirstRun are resolved from the
// native bookkeeping before the package is returned.
func (c *Client) GetCurrentPackage(ctx context.Context) (*LocalPackage, error) {
	pkg, err := c.native.GetCurrentPackage(ctx)
	if err != nil {
		return nil, nativeErr("getCurrentPackage", err)
	}
	if pkg == nil {
		return nil, nil
	}

	if pkg.FailedInstall, err = c.native.IsFailedUpdate(ctx, pkg.PackageHash); err != nil {
		return nil, nativeErr("isFailedUpdate", err)
	}
	if pkg.IsFirstRun, err = c.native.IsFirstRun(ctx, pkg.PackageHash); err != nil {
		return nil, nativeErr("isFirstRun", err)
	}
	return pkg.bind(c.native), nil
}

// RestartApp asks the native layer to restart the application. With
// onlyIfPending set, nothing happens unless an update is pending.
func (c *Client) RestartApp(ctx context.Context, onlyIfPending bool) error {
	return nativeErr("restartApp", c.native.RestartApp(ctx, onlyIfPending))
}
