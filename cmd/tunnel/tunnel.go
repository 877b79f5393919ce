package tunnel

import (
	"errors"
	"time"

	"quickflare/cmd/root"
	"quickflare/internal/config"
	"quickflare/internal/rpc"

	"github.com/spf13/cobra"
)

const requestTimeout = 2 * time.Minute

var tunnelCmd = &cobra.Command{
	Use:   "tunnel",
	Short: "Inspect or restart the tunnel of a running quickflare",
	Long:  `Talks to the control API of a quickflare started with --api-addr`,
}

const tunnelExample = `  # show the tunnel of the instance listening on 127.0.0.1:8099
  quickflare tunnel status --api-addr 127.0.0.1:8099

  # restart it and print the new public URL
  quickflare tunnel restart --api-addr 127.0.0.1:8099`

func newClient() (*rpc.Client, error) {
	addr := config.Get().Server.Address
	if addr == "" {
		return nil, errors.New("control API address not set, use --api-addr or server.address")
	}
	// restart waits for the readiness probe
	return rpc.NewClient(addr, requestTimeout), nil
}

func init() {
	root.RootCmd.AddCommand(tunnelCmd)

	tunnelCmd.Example = tunnelExample
}
