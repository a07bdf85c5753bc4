// Package purge implements the purge command.
package purge

import (
	"github.com/spf13/cobra"

	"github.com/traderecks888/offline-gateway/cmd/common"
	"github.com/traderecks888/offline-gateway/internal/app"
)

// Cmd deletes every cache generation except the configured one. Running it
// when only the current generation exists deletes nothing.
var Cmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete stale cache generations",
	Long: `Purge enumerates the cache generations in the configured backend and
deletes every one whose name differs from cache.generation. This is the same
sweep the gateway performs at activation.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := common.Setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		return app.Purge(cmd.Context(), cfg, log)
	},
}
