package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/btman/devicecache"
	"github.com/srg/btman/manager"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show adapter state and cached devices",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	cmd.SilenceUsage = true

	state := app.manager.State()
	fmt.Printf("Adapter:  %s\n", app.adapter.Address())
	fmt.Printf("State:    %s\n", colorizeState(state))
	fmt.Printf("Scanning: %v\n", app.adapter.Discovering())
	fmt.Println()

	return displayDeviceTable(os.Stdout, app.manager.Cache().Devices())
}

func colorizeState(s manager.State) string {
	switch s {
	case manager.StateOn:
		return color.GreenString(s.String())
	case manager.StateOff:
		return color.RedString(s.String())
	case manager.StateTurningOn, manager.StateTurningOff:
		return color.YellowString(s.String())
	default:
		return s.String()
	}
}

func displayDeviceTable(out io.Writer, devices []devicecache.Device) error {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices cached")
		return nil
	}

	// Paired devices first, then by name
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Paired != devices[j].Paired {
			return devices[i].Paired
		}
		return devices[i].DisplayName() < devices[j].DisplayName()
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tPAIRED\tRSSI\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 70))

	for _, dev := range devices {
		name := dev.DisplayName()
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		lastSeen := "-"
		if !dev.LastSeen.IsZero() {
			lastSeen = time.Since(dev.LastSeen).Truncate(time.Second).String() + " ago"
		}

		fmt.Fprintf(w, "%s\t%s\t%v\t%d dBm\t%s\n",
			name, dev.Address, dev.Paired, dev.RSSI, lastSeen)
	}

	return w.Flush()
}
