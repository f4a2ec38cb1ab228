package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpchat/internal/logging"
	"github.com/BioHazard786/Warpchat/internal/ui"
	"github.com/BioHazard786/Warpchat/internal/version"
)

var (
	flagDomain      string
	flagSTUN        string
	flagTURN        string
	flagTURNUser    string
	flagTURNPass    string
	flagRelay       bool
	flagName        string
	flagCipher      string
	flagDownloadDir string
	flagLAN         bool
	flagLogFile     string
)

var logCloser io.Closer

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "warpchat",
	Short:   "End-to-end encrypted peer-to-peer chat and file sharing over WebRTC",
	Long:    `Warpchat connects two people directly over a WebRTC data channel. One side creates a room and shares its ID or link, the other joins it. Messages are encrypted with a key that never leaves the two peers, and files up to 15 MiB can be sent inside the chat. The broker only relays connection setup.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := flagLogFile
		if path == "" {
			path = os.Getenv("WARPCHAT_LOG_FILE")
		}
		if path == "" {
			return nil
		}
		closer, err := logging.InitFile(path)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to this file instead of stderr")
}

// addPeerFlags registers the flags shared by create and join.
func addPeerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&flagDomain, "domain", "d", "", "Custom broker domain")
	f.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	f.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	f.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	f.StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	f.BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	f.StringVarP(&flagName, "name", "n", "", "Display name shown to the other participant")
	f.StringVar(&flagCipher, "cipher", "", "Message cipher: aes-gcm or chacha20-poly1305 (both peers must match, browsers use aes-gcm)")
	f.StringVarP(&flagDownloadDir, "output", "o", "", "Directory for received files")
	f.BoolVar(&flagLAN, "lan", false, "Use a broker discovered on the local network")
}
