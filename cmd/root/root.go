package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quickflare/controllers"
	"quickflare/internal/config"
	"quickflare/internal/env"
	"quickflare/internal/logger"
	"quickflare/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	settingsFile string
	downloadOnly bool
)

var RootCmd = &cobra.Command{
	Use:   "quickflare",
	Short: "Expose a local HTTP service through a Cloudflare tunnel",
	Long: `quickflare downloads cloudflared for the host platform, starts a quick, named or
config-driven tunnel to a local service and keeps it alive until interrupted`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runTunnel(ctx, config.Get())
	},
}

func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(settingsFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.InitLogger(&cfg.Log)
	return nil
}

/**
 * Run the tunnel until ctx is cancelled
 * @param {context.Context} ctx - Cancelled by SIGINT/SIGTERM
 * @param {*config.AppConfig} cfg - Loaded configuration
 * @returns {error} Returns start errors; a clean shutdown returns nil
 * @description
 * - With --download only stages cloudflared and returns
 * - Serves the control API when server.address is set
 * - Close() is always called, the child never outlives quickflare
 */
func runTunnel(ctx context.Context, cfg *config.AppConfig) error {
	manager, err := services.NewCloudflaredManager(cfg.Tunnel)
	if err != nil {
		return err
	}
	defer manager.Close()

	if downloadOnly {
		exe, err := manager.EnsureBinary(ctx)
		if err != nil {
			return err
		}
		fmt.Printf(" * cloudflared is ready at %s\n", exe)
		return nil
	}

	url, err := manager.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Printf(" * Running on %s\n", url)
	fmt.Printf(" * Forwarding %s tunnel to %s\n", manager.Mode(), manager.LocalURL())
	fmt.Printf(" * Traffic stats available on %s\n", manager.MetricsURL())

	serveDone := make(chan struct{})
	if cfg.Server.Address != "" {
		ln, err := services.CreateListener(services.ParseListenAddr(cfg.Server.Address))
		if err != nil {
			return err
		}
		gin.SetMode(cfg.Server.Mode)
		server := services.NewServer(manager, env.SoftwareVer)
		go func() {
			defer close(serveDone)
			if err := server.Serve(ctx, ln, controllers.NewRouter(server, server.Tunnel())); err != nil {
				logger.Errorf("Control API stopped: %v", err)
			}
		}()
	} else {
		close(serveDone)
	}

	<-ctx.Done()
	logger.Info("Shutting down tunnel")
	<-serveDone
	return nil
}

func init() {
	pflags := RootCmd.PersistentFlags()
	pflags.StringVar(&settingsFile, "settings", "", "quickflare settings file (default ./quickflare.yaml or $HOME/.quickflare/quickflare.yaml)")
	pflags.String("log-level", config.DefaultLogLevel, "Log level (debug/info/warn/error)")
	pflags.String("api-addr", "", "Control API address, host:port or unix:///path (empty disables it)")
	viper.BindPFlag("log.level", pflags.Lookup("log-level"))
	viper.BindPFlag("server.address", pflags.Lookup("api-addr"))

	flags := RootCmd.Flags()
	flags.SortFlags = false
	flags.Int("port", config.DefaultPort, "Port of the local service")
	flags.String("host", config.DefaultHost, "Host of the local service")
	flags.Int("metrics-port", 0, "Port of the cloudflared metrics endpoint (default random in 8100-9000)")
	flags.String("tunnel-id", "", "Run a named tunnel")
	flags.String("config-path", "", "Run a tunnel from a cloudflared config file")
	flags.String("path", os.TempDir(), "Directory where cloudflared is stored")
	flags.Bool("keep-alive", false, "Restart the tunnel when the local service is up but the tunnel is down")
	flags.BoolVar(&downloadOnly, "download", false, "Only download cloudflared and exit")

	for key, flag := range map[string]string{
		"tunnel.port":         "port",
		"tunnel.host":         "host",
		"tunnel.metrics_port": "metrics-port",
		"tunnel.tunnel_id":    "tunnel-id",
		"tunnel.config_path":  "config-path",
		"tunnel.path":         "path",
		"tunnel.keep_alive":   "keep-alive",
	} {
		viper.BindPFlag(key, flags.Lookup(flag))
	}

	RootCmd.Example = `  # expose http://127.0.0.1:8096 through a trycloudflare.com URL
  quickflare --port 8096

  # run a named tunnel with keep-alive and the control API
  quickflare --port 8096 --tunnel-id my-tunnel --keep-alive --api-addr 127.0.0.1:8099`
}
