package tunnel

import (
	"fmt"

	"quickflare/internal/models"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the tunnel and wait for the new public URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var rsp models.TunnelResponse
		if err := c.Post(cmd.Context(), "/quickflare/api/v1/tunnel/restart", &rsp); err != nil {
			return fmt.Errorf("failed to restart tunnel: %w", err)
		}
		fmt.Printf(" * Running on %s\n", rsp.PublicURL)
		return nil
	},
}

func init() {
	tunnelCmd.AddCommand(restartCmd)
}
