package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lumenhq/lumen/internal/domain"
)

var startServerHostPort string

func init() {
	startServerCmd.Flags().StringVar(&startServerHostPort, "host-port", "", "override the configured listen address (host:port)")
	rootCmd.AddCommand(startServerCmd)
}

var startServerCmd = &cobra.Command{
	Use:   "start-server",
	Short: "Run the lumen daemon in the foreground",
	Long:  `start-server runs the lumen HTTP API until interrupted. It is also what 'lumen run' spawns in the background when the daemon isn't already reachable.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()
		d.UseLogFile(d.Config.Logging.File)

		if startServerHostPort != "" {
			host, port, err := net.SplitHostPort(startServerHostPort)
			if err != nil {
				return fmt.Errorf("%w: --host-port: %v", domain.ErrBadRequest, err)
			}
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("%w: --host-port port: %v", domain.ErrBadRequest, err)
			}
			d.Config.API.Host = host
			d.Config.API.Port = p
		}

		return d.Serve(cmd.Context())
	},
}
