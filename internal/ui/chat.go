package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/Warpchat/internal/participant"
	"github.com/BioHazard786/Warpchat/internal/session"
	"github.com/BioHazard786/Warpchat/internal/transfer"
	"github.com/BioHazard786/Warpchat/internal/utils"
)

// Actions is what the chat UI needs from a session.
type Actions interface {
	SendMessage(text string) error
	SendFile(ctx context.Context, path string) error
	Participants() []participant.Record
	Leave() error
}

// Results of commands started by the model.
type (
	sentMsg struct {
		text string
		err  error
	}
	fileSentMsg struct {
		name string
		err  error
	}
	savedMsg struct {
		name string
		from string
		path string
		err  error
	}
	rosterMsg []participant.Record
)

type transferBar struct {
	name     string
	outgoing bool
	received int
	total    int
	bar      progress.Model
}

// ChatOptions configures a ChatModel.
type ChatOptions struct {
	DisplayName string
	DownloadDir string
	RoomID      string
	State       session.State
}

// ChatModel is the interactive chat screen.
type ChatModel struct {
	actions Actions
	events  <-chan tea.Msg
	opts    ChatOptions
	ctx     context.Context
	cancel  context.CancelFunc

	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	state     session.State
	lines     []string
	outbox    []string
	sending   bool
	transfers []*transferBar
	width     int
	height    int
	err       error
	quitting  bool
}

func NewChatModel(actions Actions, events <-chan tea.Msg, opts ChatOptions) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message, /file <path>, /who or /quit"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(context.Background())

	m := &ChatModel{
		actions:  actions,
		events:   events,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  s,
		state:    opts.State,
		width:    80,
		height:   24,
	}
	m.layout()
	return m
}

// Err is the error the session closed with, if any.
func (m *ChatModel) Err() error {
	return m.err
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

func (m *ChatModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return msg
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.leave()
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m, m.submit(line)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sentMsg:
		if msg.err != nil {
			m.errorLine("message not sent: %v", msg.err)
		} else {
			m.addLine(m.formatChat(m.opts.DisplayName, msg.text, "", true))
		}
		m.sending = false
		return m, m.sendNext()

	case fileSentMsg:
		m.dropTransfer(msg.name, true)
		if msg.err != nil {
			m.errorLine("%s not sent: %v", msg.name, msg.err)
		} else {
			m.successLine("%s Sent %s", IconSend, msg.name)
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.errorLine("could not save %s: %v", msg.name, msg.err)
		} else {
			m.successLine("%s Saved %s from %s to %s", IconReceive, msg.name, msg.from, msg.path)
		}
		return m, nil

	case rosterMsg:
		for _, line := range strings.Split(RosterView(msg), "\n") {
			m.addLine(line)
		}
		return m, nil
	}

	cmd, handled := m.handleSession(msg)
	if !handled {
		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		return m, inputCmd
	}
	if m.quitting {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.waitForEvent())
}

// handleSession applies a notification forwarded by Sink.
func (m *ChatModel) handleSession(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = session.State(msg)
		switch m.state {
		case session.StateWaitingForPeer:
			m.systemLine("%s Waiting for someone to join", IconWaiting)
		case session.StateActive:
			m.systemLine("%s End-to-end encrypted chat established", IconLock)
		}

	case roomReadyMsg:
		m.opts.RoomID = string(msg)

	case joinedMsg:
		m.systemLine("%s %s joined", IconPeer, msg.DisplayName)

	case leftMsg:
		m.systemLine("%s %s left", IconPeer, string(msg))

	case chatMsg:
		m.addLine(m.formatChat(msg.From, msg.Text, utils.FormatClock(msg.Sent.UnixMilli()), false))

	case progressMsg:
		m.trackProgress(session.Progress(msg))

	case fileMsg:
		m.dropTransfer(msg.Name, false)
		return m.saveFile(session.ReceivedFile(msg)), true

	case transferFailedMsg:
		m.dropTransfer(msg.name, false)
		m.errorLine("transfer of %s failed: %v", msg.name, msg.err)

	case closedMsg:
		m.err = msg.err
		m.quitting = true
		m.cancel()
		return tea.Quit, true

	default:
		return nil, false
	}
	return nil, true
}

func (m *ChatModel) submit(line string) tea.Cmd {
	if line == "" {
		return nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/leave", "/exit":
		return m.leave()
	case "/who":
		return func() tea.Msg {
			return rosterMsg(m.actions.Participants())
		}
	case "/file":
		path := strings.Trim(arg, `"'`)
		if path == "" {
			m.errorLine("usage: /file <path>")
			return nil
		}
		return m.sendFile(path)
	case "/help":
		m.systemLine("/file <path>  send a file (up to %s)", utils.FormatSize(transfer.MaxFileSize))
		m.systemLine("/who          list participants")
		m.systemLine("/quit         leave the room")
		return nil
	}

	if strings.HasPrefix(cmd, "/") {
		m.errorLine("unknown command %s, try /help", cmd)
		return nil
	}

	m.outbox = append(m.outbox, line)
	return m.sendNext()
}

// sendNext starts the oldest queued line. One send is in flight at a time so
// lines reach the session in the order they were typed.
func (m *ChatModel) sendNext() tea.Cmd {
	if m.sending || len(m.outbox) == 0 {
		return nil
	}
	line := m.outbox[0]
	m.outbox = m.outbox[1:]
	m.sending = true
	return func() tea.Msg {
		return sentMsg{text: line, err: m.actions.SendMessage(line)}
	}
}

func (m *ChatModel) leave() tea.Cmd {
	m.quitting = true
	m.cancel()
	return func() tea.Msg {
		m.actions.Leave()
		return tea.QuitMsg{}
	}
}

func (m *ChatModel) sendFile(path string) tea.Cmd {
	name := filepath.Base(path)
	m.systemLine("%s Sending %s", IconFile, name)
	return func() tea.Msg {
		return fileSentMsg{name: name, err: m.actions.SendFile(m.ctx, path)}
	}
}

func (m *ChatModel) saveFile(f session.ReceivedFile) tea.Cmd {
	dir := m.opts.DownloadDir
	return func() tea.Msg {
		path, err := transfer.SaveFile(dir, f.Name, f.DataURL)
		return savedMsg{name: f.Name, from: f.From, path: path, err: err}
	}
}

func (m *ChatModel) trackProgress(p session.Progress) {
	tb := m.findTransfer(p.Name, p.Outgoing)
	if tb == nil {
		if p.Received >= p.Total {
			return
		}
		tb = &transferBar{
			name:     p.Name,
			outgoing: p.Outgoing,
			bar: progress.New(
				progress.WithGradient(ProgressStart, ProgressEnd),
				progress.WithWidth(m.barWidth()),
				progress.WithoutPercentage(),
			),
		}
		m.transfers = append(m.transfers, tb)
		m.layout()
	}
	tb.received, tb.total = p.Received, p.Total
}

func (m *ChatModel) findTransfer(name string, outgoing bool) *transferBar {
	for _, tb := range m.transfers {
		if tb.name == name && tb.outgoing == outgoing {
			return tb
		}
	}
	return nil
}

func (m *ChatModel) dropTransfer(name string, outgoing bool) {
	for i, tb := range m.transfers {
		if tb.name == name && tb.outgoing == outgoing {
			m.transfers = append(m.transfers[:i], m.transfers[i+1:]...)
			m.layout()
			return
		}
	}
}

func (m *ChatModel) formatChat(from, text, clock string, self bool) string {
	nameStyle := PeerNameStyle
	if self {
		nameStyle = SelfNameStyle
	}
	prefix := ""
	if clock != "" {
		prefix = TimestampStyle.Render("["+clock+"]") + " "
	}
	return prefix + nameStyle.Render(from+":") + " " + text
}

func (m *ChatModel) systemLine(format string, args ...any) {
	m.addLine(SystemStyle.Render(fmt.Sprintf(format, args...)))
}

func (m *ChatModel) successLine(format string, args ...any) {
	m.addLine(SuccessStyle.Render(fmt.Sprintf(format, args...)))
}

func (m *ChatModel) errorLine(format string, args ...any) {
	m.addLine(ErrorStyle.Render(IconError + " " + fmt.Sprintf(format, args...)))
}

func (m *ChatModel) addLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *ChatModel) refresh() {
	wrap := lipgloss.NewStyle().Width(max(m.width, 20))
	rendered := make([]string, len(m.lines))
	for i, line := range m.lines {
		rendered[i] = wrap.Render(line)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func (m *ChatModel) barWidth() int {
	return max(10, min(30, m.width-50))
}

// layout sizes the viewport around the header, transfer bars and input.
func (m *ChatModel) layout() {
	m.viewport.Width = m.width
	m.viewport.Height = max(3, m.height-1-len(m.transfers)-2)
	m.input.Width = max(10, m.width-4)
	for _, tb := range m.transfers {
		tb.bar.Width = m.barWidth()
	}
	m.refresh()
}

func (m *ChatModel) header() string {
	title := HeaderStyle.Render("warpchat")
	room := ""
	if m.opts.RoomID != "" {
		room = " " + MutedStyle.Render("room "+m.opts.RoomID)
	}

	var status string
	if m.state == session.StateActive {
		status = StatusStyle.Render(IconLock + " encrypted")
	} else {
		status = m.spinner.View() + " " + MutedStyle.Render(m.state.String())
	}
	return title + " " + status + room
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	for _, tb := range m.transfers {
		icon := IconReceive
		if tb.outgoing {
			icon = IconSend
		}
		var percent float64
		if tb.total > 0 {
			percent = float64(tb.received) / float64(tb.total)
		}
		name := lipgloss.NewStyle().Width(24).Render(utils.TruncateMiddle(tb.name, 22))
		fmt.Fprintf(&b, "%s %s %s %5.1f%%\n", icon, name, tb.bar.ViewAs(percent), percent*100)
	}

	b.WriteString(InputBorderStyle.Render(m.input.View()))
	return b.String()
}
