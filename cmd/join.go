package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpchat/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a room created by someone else",
	Long: `Join an existing chat room by its ID or link.

Examples:
  warpchat join 3fK9aQ2mZx7LpR4tW8yB1cNd
  warpchat join https://warpchat.qzz.io/r/3fK9aQ2mZx7LpR4tW8yB1cNd
  warpchat join 3fK9aQ2mZx7LpR4tW8yB1cNd --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := LoadConfig(ctx)
		if err != nil {
			return err
		}

		chat, err := NewChatContext(ctx, cfg)
		if err != nil {
			return err
		}
		defer chat.Close()

		stopSpinner := ui.RunConnectionSpinner("Joining room...")
		err = chat.Controller.Join(ctx, args[0], cfg.DisplayName)
		stopSpinner()
		if err != nil {
			return err
		}

		return RunChat(chat)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addPeerFlags(joinCmd)
}
