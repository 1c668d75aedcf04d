package cli

import (
	"os"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/mcp"
	"hark/internal/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdio (JSON-RPC, one message per line)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// the backend comes up lazily on initialize so configuration
		// problems surface as protocol errors, not startup crashes
		captured := settings
		srv := mcp.NewServer("hark", version.Version, os.Stdin, os.Stdout, func() (mcp.Backend, error) {
			svc, err := app.NewService(captured)
			if err != nil {
				return nil, err
			}
			return svc, nil
		})
		return srv.Run(cmd.Context())
	},
}
