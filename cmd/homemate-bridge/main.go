// Homemate-bridge terminates the Orvibo HomeMate cloud protocol on the local
// network.
//
// HomeMate smart switches and covers phone home to a vendor cloud over a
// proprietary AES-encrypted TCP protocol. Pointing their DNS at this bridge
// keeps them fully local: the bridge speaks the device protocol, tracks each
// device's state, and exposes it over MQTT and a diagnostics endpoint.
//
// Usage:
//
//	homemate-bridge serve [flags]
//
// See 'homemate-bridge serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluekiller/homemate-bridge/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "homemate-bridge",
	Short: "Local bridge for Orvibo HomeMate devices",
	Long: `A local TCP bridge for Orvibo HomeMate smart switches and covers.

Devices are redirected to the bridge via DNS override of the vendor cloud
hostname. The bridge terminates the proprietary protocol, keeps per-device
state, publishes it over MQTT and accepts control commands back.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("homemate-bridge %s\n", version.Full())
	},
}
