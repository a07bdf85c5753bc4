// Package serve implements the serve command, the gateway's main mode.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/traderecks888/offline-gateway/cmd/common"
	"github.com/traderecks888/offline-gateway/internal/app"
)

// Cmd runs the gateway: install, activate, then serve until shutdown.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the offline gateway",
	Long: `Serve installs the interception agent (precaching the configured shell
assets), activates it (purging stale cache generations), and then fronts the
dashboard origin until shutdown.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := common.Setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		return app.Run(cmd.Context(), cfg, log)
	},
}
