package tunnel

import (
	"fmt"
	"io"
	"os"
	"time"

	"quickflare/internal/models"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mode, status and public URL of the tunnel",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var detail models.TunnelDetail
		if err := c.Get(cmd.Context(), "/quickflare/api/v1/tunnel", &detail); err != nil {
			return err
		}
		printDetail(os.Stdout, &detail)
		return nil
	},
}

/**
 * Print tunnel detail as aligned key/value lines
 * @param {io.Writer} w - Output
 * @param {*models.TunnelDetail} d - Tunnel detail fetched from the control API
 */
func printDetail(w io.Writer, d *models.TunnelDetail) {
	publicURL := d.PublicURL
	if publicURL == "" {
		publicURL = "-"
	}
	fmt.Fprintf(w, "%-14s%s\n", "Mode:", d.Mode)
	fmt.Fprintf(w, "%-14s%s\n", "Status:", d.Status)
	fmt.Fprintf(w, "%-14s%s\n", "Public URL:", publicURL)
	fmt.Fprintf(w, "%-14s%s\n", "Local URL:", d.LocalURL)
	fmt.Fprintf(w, "%-14s%s\n", "Metrics:", d.MetricsURL)
	fmt.Fprintf(w, "%-14s%v\n", "Keep-alive:", d.KeepAlive)
	if d.LastStarted != nil {
		fmt.Fprintf(w, "%-14s%s\n", "Last started:", d.LastStarted.Format(time.RFC3339))
	}
	if d.Process != nil {
		fmt.Fprintf(w, "%-14s%d (%s)\n", "PID:", d.Process.Pid, d.Process.Status)
	}
}

func init() {
	tunnelCmd.AddCommand(statusCmd)
}
