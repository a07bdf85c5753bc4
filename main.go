// offline-gateway fronts the published short-position dashboard with an
// offline-first cache: HTML is served network-first with a cached fallback,
// static assets cache-first with populate-on-miss, and bumping the
// configured cache generation invalidates everything at activation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/traderecks888/offline-gateway/cmd/purge"
	"github.com/traderecks888/offline-gateway/cmd/serve"
)

func main() {
	root := &cobra.Command{
		Use:           "offline-gateway",
		Short:         "Offline-first caching gateway for the short-position dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serve.Cmd)
	root.AddCommand(purge.Cmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
