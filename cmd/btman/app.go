package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/btman/adapter"
	"github.com/srg/btman/adapter/bluez"
	"github.com/srg/btman/adapter/goble"
	"github.com/srg/btman/internal/prefs"
	"github.com/srg/btman/manager"
	"github.com/srg/btman/notify"
	"github.com/srg/btman/pkg/config"
	"github.com/srg/btman/redirector"
)

const prefsStoreName = "bluetooth_settings"

const redirectorBufferSize = 256

// app is the composition root: it owns the adapter backend, the manager,
// and the redirector for the lifetime of a command.
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	adapter    adapter.Adapter
	manager    *manager.Manager
	redirector *redirector.Redirector
}

// buildApp wires config -> logger -> backend -> manager -> redirector.
func buildApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = defaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	var (
		backend adapter.Adapter
		audio   adapter.AudioRouter
	)
	switch cfg.Backend {
	case config.BackendBlueZ:
		bz, err := bluez.New(logger)
		if err != nil {
			return nil, err
		}
		backend = bz
		audio = bluez.NewMediaRouter(bz, logger)
	case config.BackendGoBLE:
		gb, err := goble.New(cfg.DiscoveryDuration, logger)
		if err != nil {
			return nil, err
		}
		backend = gb
	}

	prefsDir, err := cfg.ResolvePrefsDir()
	if err != nil {
		backend.Close()
		return nil, err
	}
	store, err := prefs.Open(prefsDir, prefsStoreName, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	mgr, err := manager.New(manager.Options{
		Adapter:      backend,
		Audio:        audio,
		Prefs:        store,
		Logger:       logger,
		ScanCooldown: cfg.ScanCooldown,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := mgr.Start(); err != nil {
		backend.Close()
		return nil, err
	}

	red, err := redirector.New(backend.Events(), mgr, redirectorBufferSize, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := red.Start(); err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to start event redirector: %w", err)
	}

	// An interactive terminal is the foreground surface for error alerts;
	// piped output falls back to the transient notifier.
	if session, err := notify.NewTerminalSession(os.Stderr, int(os.Stderr.Fd())); err == nil {
		mgr.SetForegroundSession(session)
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		adapter:    backend,
		manager:    mgr,
		redirector: red,
	}, nil
}

// Close stops the redirector and releases the platform handle.
func (a *app) Close() {
	if err := a.redirector.Stop(); err != nil {
		a.logger.WithError(err).Warn("Redirector did not stop cleanly")
	}
	if err := a.adapter.Close(); err != nil {
		a.logger.WithError(err).Warn("Adapter did not close cleanly")
	}
}

func defaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "btman", "config.yaml")
}
