package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/hotload-labs/hotload/internal/config"
	"github.com/hotload-labs/hotload/internal/device"
	"github.com/hotload-labs/hotload/internal/hotload"
)

// openEngine opens the configured device and a sync client bound to it.
// With launch set the invocation counts as a fresh start of the app;
// otherwise the device state is only inspected.
func openEngine(launch bool, opts ...hotload.Option) (*device.Device, *hotload.Client, error) {
	s, err := config.Current()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dev, err := device.Open(s.DeviceDir, device.Options{
		AppVersion:     s.AppVersion,
		DeploymentKey:  s.DeploymentKey,
		ServerURL:      s.ServerURL,
		ClientUniqueID: s.ClientUniqueID,
		BinaryHash:     s.BinaryHash,
		IsDebugMode:    s.DebugMode,
		Passive:        !launch,
		Logger:         log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening device %s: %w", s.DeviceDir, err)
	}

	return dev, newClient(dev, s, opts...), nil
}

func newClient(dev *device.Device, s *config.Settings, opts ...hotload.Option) *hotload.Client {
	opts = append([]hotload.Option{
		hotload.WithLogger(log),
		hotload.WithPlatform(hotload.Platform(s.Platform)),
	}, opts...)
	return hotload.New(dev, opts...)
}

// confirmRelaunch notifies readiness from a fresh client when a sync
// restarted the app in this invocation. The restarted bundle is a new
// process, so the sync's own client cannot confirm it.
func confirmRelaunch(ctx context.Context, dev *device.Device) error {
	relaunched, err := dev.AwaitingReady()
	if err != nil || !relaunched {
		return err
	}
	s, err := config.Current()
	if err != nil {
		return err
	}
	return newClient(dev, s).NotifyApplicationReady(ctx)
}

func requireDeploymentKey(override string) error {
	if override != "" || config.Get(config.KeyDeploymentKey) != "" {
		return nil
	}
	fmt.Fprintf(os.Stderr, "No deployment key configured. Run '%s config set %s <key>'.\n", rootCmd.Name(), config.KeyDeploymentKey)
	return fmt.Errorf("%s is not set", config.KeyDeploymentKey)
}
