package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// enableCmd represents the enable command
var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Power the Bluetooth adapter on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(cmd, true)
	},
}

// disableCmd represents the disable command
var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Power the Bluetooth adapter off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(cmd, false)
	},
}

func runSetEnabled(cmd *cobra.Command, enabled bool) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	cmd.SilenceUsage = true

	// Command rejection is absorbed by the manager: the state below then
	// reflects a fresh platform query rather than a transition.
	app.manager.SetEnabled(enabled)

	fmt.Printf("State: %s\n", colorizeState(app.manager.State()))
	return nil
}
