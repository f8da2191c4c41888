package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bluekiller/homemate-bridge/internal/monitor"
)

var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal dashboard for a running bridge",
	Long: `Connect to a running bridge's diagnostics endpoint and show the live
session table. The bridge must be started with diagnostics enabled.`,
	Example: `  # Monitor a local bridge
  homemate-bridge monitor

  # Monitor a bridge on another host
  homemate-bridge monitor --addr 192.168.1.10:8099`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitor.Run(fmt.Sprintf("ws://%s/ws", monitorAddr))
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "127.0.0.1:8099", "Diagnostics endpoint address")
}
