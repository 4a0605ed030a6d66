// fileshare is a peer-to-peer file sharing agent. It keeps a locally chosen
// set of files listed with a remote share registry and serves them to other
// peers over a minimal point-to-point transfer protocol.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "fileshare",
	Short:         "Peer-to-peer file sharing agent",
	Long: `fileshare keeps a locally chosen set of files registered with a remote
share registry and serves them to other peers over a minimal transfer
protocol. Configuration comes from environment variables; REGISTRY_URL is
required.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(runCmd, searchCmd, fetchCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
