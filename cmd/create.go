package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpchat/internal/ui"
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a room and wait for someone to join",
	Long: `Create a chat room and print its ID and link. The chat starts as soon as
the other participant joins.

Examples:
  warpchat create
  warpchat create --name alice
  warpchat create --lan`,
	Args: cobra.NoArgs,
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

		id, err := chat.Controller.Create(ctx, cfg.DisplayName)
		if err != nil {
			return err
		}

		fmt.Println()
		ui.RenderRoomInfo(id.String(), cfg.GetRoomLink(id.String()))
		fmt.Println()

		return RunChat(chat)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	addPeerFlags(createCmd)
}
