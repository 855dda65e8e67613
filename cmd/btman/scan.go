package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/btman/devicecache"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Trigger device discovery",
	Long: `Trigger device discovery and display the resulting device cache.

Unforced scans are throttled: a scan inside the cooldown window since the
last successful start is skipped, as is scanning while audio is playing.
Use --force to bypass both checks.`,
	RunE: runScan,
}

var (
	scanForce    bool
	scanWatch    bool
	scanDuration time.Duration
)

func init() {
	scanCmd.Flags().BoolVarP(&scanForce, "force", "f", false, "Bypass the scan cooldown and audio checks")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Keep printing device events until interrupted")
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "How long to collect results (defaults to the configured discovery duration)")
}

func runScan(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	cmd.SilenceUsage = true

	duration := scanDuration
	if duration <= 0 {
		duration = app.cfg.DiscoveryDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	app.manager.StartScanning(ctx, scanForce)

	if scanWatch {
		return watchDeviceEvents(ctx, app)
	}

	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}

	return displayDeviceTable(os.Stdout, app.manager.Cache().Devices())
}

func watchDeviceEvents(ctx context.Context, app *app) error {
	events := app.manager.Cache().Events()

	for {
		select {
		case <-ctx.Done():
			return displayDeviceTable(os.Stdout, app.manager.Cache().Devices())
		case ev := <-events:
			switch ev.Type {
			case devicecache.EventAdded:
				fmt.Printf("+ %s (%s)\n", ev.Device.DisplayName(), ev.Device.Address)
			case devicecache.EventRemoved:
				fmt.Printf("- %s (%s)\n", ev.Device.DisplayName(), ev.Device.Address)
			}
		}
	}
}
