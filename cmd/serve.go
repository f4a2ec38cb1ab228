package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpchat/internal/broker"
	"github.com/BioHazard786/Warpchat/internal/discovery"
	"github.com/BioHazard786/Warpchat/internal/ui"
)

var (
	flagAddr string
	flagMDNS bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a signaling broker",
	Long: `Run the rendezvous broker that peers use to exchange connection offers.
With --mdns the broker is advertised on the local network, so peers can find
it with --lan.

Examples:
  warpchat serve
  warpchat serve --addr :9000 --mdns`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagMDNS {
			port, err := listenPort(flagAddr)
			if err != nil {
				return err
			}
			adv, err := discovery.Advertise(port)
			if err != nil {
				ui.PrintWarning("LAN advertising unavailable: " + err.Error())
			} else {
				defer adv.Stop()
			}
		}

		ui.PrintInfo("Broker listening on " + flagAddr)
		return broker.ListenAndServe(cmd.Context(), flagAddr)
	},
}

func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&flagMDNS, "mdns", false, "Advertise the broker over mDNS")
}
