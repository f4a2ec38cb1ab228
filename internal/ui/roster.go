package ui

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/Warpchat/internal/participant"
	"github.com/BioHazard786/Warpchat/internal/utils"
)

// RosterView renders the participant list shown by /who.
func RosterView(records []participant.Record) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	tw.Style().Options.SeparateRows = false

	tw.AppendHeader(table.Row{"#", "Name", "Role", "Peer ID"})
	for i, rec := range records {
		name := rec.DisplayName
		if rec.IsLocal {
			name += " (you)"
		}
		role := "guest"
		if rec.IsOwner {
			role = "owner"
		}
		tw.AppendRow(table.Row{i + 1, name, role, utils.TruncateMiddle(rec.PeerID, 16)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Colors: text.Colors{text.FgHiBlack}},
	})

	return tw.Render()
}

// RoomInfo is the box printed after a room is created.
type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:    %s\n%s Room Link:  %s\n\n%s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
		MutedStyle.Render("Share the ID or link with the person you want to chat with."),
	)
	return SuccessBoxStyle.Render(content)
}

func RenderRoomInfo(roomID, roomLink string) {
	fmt.Println(NewRoomInfo(roomID, roomLink).View())
}
