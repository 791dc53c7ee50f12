package play

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/auxkit/auxroom/cmd/common"
	"github.com/auxkit/auxroom/cmd/common/api"
	"github.com/auxkit/auxroom/cmd/common/notify"
	"github.com/auxkit/auxroom/cmd/common/player"
	"github.com/auxkit/auxroom/cmd/common/playlist"
	"github.com/auxkit/auxroom/cmd/common/realtime"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	playingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	urgentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("196"))
	confirmStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// Messages sent into the program by the playback, sync and notification
// goroutines.
type (
	nowPlayingMsg struct {
		track api.Track
		index int
	}
	progressMsg struct {
		position time.Duration
		duration time.Duration
	}
	tracksMsg       []api.Track
	bannersMsg      []notify.Banner
	channelStateMsg realtime.State
	roomSwitchedMsg struct{}
	refreshMsg      struct{}
	deleteResultMsg struct {
		trackID  int
		previous []api.Track
		err      error
	}
)

type model struct {
	roomCode string
	ctrl     *player.Controller
	client   *api.Client
	center   *notify.Center

	tracks  []api.Track // server order
	sortKey playlist.SortKey
	cursor  int

	status       player.Status
	banners      []notify.Banner
	channelState realtime.State

	confirmDelete *api.Track

	width  int
	height int

	roomSwitched bool
}

func newModel(roomCode string, tracks []api.Track, ctrl *player.Controller, client *api.Client, center *notify.Center, sortKey playlist.SortKey) model {
	return model{
		roomCode:     roomCode,
		ctrl:         ctrl,
		client:       client,
		center:       center,
		tracks:       tracks,
		sortKey:      sortKey,
		status:       ctrl.Status(),
		channelState: realtime.StateConnecting,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

// visible returns the playlist in display order.
func (m model) visible() []api.Track {
	return playlist.Sort(m.tracks, m.sortKey)
}

func (m model) clampCursor() model {
	if n := len(m.tracks); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case nowPlayingMsg:
		m.status = m.ctrl.Status()

	case progressMsg:
		m.status = m.ctrl.Status()
		m.status.Position = msg.position
		m.status.Duration = msg.duration

	case refreshMsg:
		m.status = m.ctrl.Status()

	case tracksMsg:
		m.tracks = msg
		m.status = m.ctrl.Status()
		m = m.clampCursor()

	case bannersMsg:
		m.banners = msg

	case channelStateMsg:
		m.channelState = realtime.State(msg)

	case roomSwitchedMsg:
		m.roomSwitched = true
		return m, tea.Quit

	case deleteResultMsg:
		if msg.err != nil {
			// Roll the optimistic removal back.
			m.tracks = msg.previous
			m.ctrl.SetTracks(msg.previous)
			m.center.Show(msg.err.Error(), notify.KindError)
			m = m.clampCursor()
		} else {
			m.center.Show("Track deleted", notify.KindSuccess)
		}
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Pending delete confirmation swallows everything but y/n.
	if m.confirmDelete != nil {
		switch msg.String() {
		case "y", "Y":
			track := *m.confirmDelete
			m.confirmDelete = nil
			return m.deleteTrack(track)
		case "n", "N", "esc", "q":
			m.confirmDelete = nil
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.tracks)-1 {
			m.cursor++
		}

	case "enter":
		visible := m.visible()
		if m.cursor < len(visible) {
			// The controller works on server order, so map back by id.
			if idx := playlist.IndexOf(m.tracks, visible[m.cursor].TrackID); idx >= 0 {
				if err := m.ctrl.PlayIndex(idx); err != nil {
					m.center.Show(err.Error(), notify.KindError)
				}
			}
		}

	case " ":
		if err := m.ctrl.TogglePause(); err != nil {
			// Nothing loaded yet: start from the cursor.
			return m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
		}
		m.status = m.ctrl.Status()

	case "n":
		if err := m.ctrl.Next(); err != nil {
			m.center.Show(err.Error(), notify.KindError)
		}
	case "p":
		if err := m.ctrl.Previous(); err != nil {
			m.center.Show(err.Error(), notify.KindError)
		}

	case "s":
		m.ctrl.ToggleShuffle()
		m.status = m.ctrl.Status()
	case "m":
		m.ctrl.ToggleMute()
		m.status = m.ctrl.Status()

	case "+", "=":
		m.ctrl.SetVolume(m.ctrl.Volume() + 0.05)
		m.status = m.ctrl.Status()
	case "-":
		m.ctrl.SetVolume(m.ctrl.Volume() - 0.05)
		m.status = m.ctrl.Status()

	case "t":
		if m.sortKey == playlist.SortByPosition {
			m.sortKey = playlist.SortByTitle
		} else {
			m.sortKey = playlist.SortByPosition
		}
		m = m.clampCursor()

	case "d", "delete", "x":
		visible := m.visible()
		if m.cursor < len(visible) {
			track := visible[m.cursor]
			m.confirmDelete = &track
		}

	default:
		if len(msg.String()) == 1 && msg.String()[0] >= '0' && msg.String()[0] <= '9' {
			fraction := float64(msg.String()[0]-'0') / 10
			if err := m.ctrl.SeekFraction(fraction); err != nil {
				m.center.Show(err.Error(), notify.KindError)
			}
		}
	}

	return m, nil
}

// deleteTrack removes the track optimistically and issues the request in the
// background; deleteResultMsg rolls back on failure.
func (m model) deleteTrack(track api.Track) (tea.Model, tea.Cmd) {
	previous := m.tracks

	remaining := make([]api.Track, 0, len(previous)-1)
	for _, t := range previous {
		if t.TrackID != track.TrackID {
			remaining = append(remaining, t)
		}
	}
	m.tracks = remaining
	m.ctrl.SetTracks(remaining)
	m = m.clampCursor()

	client := m.client
	roomCode := m.roomCode
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := client.DeleteTrack(ctx, track.TrackID, roomCode)
		return deleteResultMsg{trackID: track.TrackID, previous: previous, err: err}
	}
}

func (m model) View() string {
	var b strings.Builder

	// Header
	b.WriteString("\n  ")
	b.WriteString(titleStyle.Render("auxroom"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  room %s · %d tracks", m.roomCode, len(m.tracks))))
	switch m.channelState {
	case realtime.StateOpen, realtime.StateReceiving:
		b.WriteString(successStyle.Render("  ● live"))
	case realtime.StateClosed:
		b.WriteString(errorStyle.Render("  ● offline"))
	default:
		b.WriteString(dimStyle.Render("  ● connecting"))
	}
	b.WriteString("\n\n")

	// Now playing
	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n")

	// Playlist
	visible := m.visible()
	if len(visible) == 0 {
		b.WriteString(dimStyle.Render("  The playlist is empty. Add tracks with 'auxroom tracks add <url>'."))
		b.WriteString("\n")
	}
	currentID := 0
	if m.status.Track != nil {
		currentID = m.status.Track.TrackID
	}
	for i, track := range visible {
		marker := "  "
		if track.TrackID == currentID && currentID != 0 {
			marker = "▶ "
		}
		line := fmt.Sprintf(" %s%s — %s", marker, track.Artist, track.Title)
		line = runewidth.Truncate(line, m.listWidth(), "…")

		switch {
		case i == m.cursor:
			b.WriteString(selectedStyle.Render(line))
		case track.TrackID == currentID && currentID != 0:
			b.WriteString(playingStyle.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	// Notifications
	for _, banner := range m.banners {
		b.WriteString("\n  ")
		switch {
		case banner.Urgent:
			b.WriteString(urgentStyle.Render(" " + banner.Message + " "))
		case banner.Kind == notify.KindError:
			b.WriteString(errorStyle.Render(banner.Message))
		default:
			b.WriteString(successStyle.Render(banner.Message))
		}
	}

	// Footer
	b.WriteString("\n\n")
	if m.confirmDelete != nil {
		b.WriteString(confirmStyle.Render(fmt.Sprintf("  Delete %q? [y/n]", m.confirmDelete.Title)))
	} else {
		b.WriteString(helpLine(m.status))
	}
	b.WriteString("\n")

	return b.String()
}

func (m model) renderNowPlaying() string {
	var b strings.Builder

	if m.status.Track == nil {
		b.WriteString(dimStyle.Render("  Nothing playing. Press ENTER to start a track."))
		b.WriteString("\n")
		return b.String()
	}

	track := m.status.Track
	state := "▶"
	if m.status.State == player.StatePaused {
		state = "⏸"
	}
	b.WriteString(fmt.Sprintf("  %s %s", state, playingStyle.Render(track.Title)))
	if track.Artist != "" {
		b.WriteString(dimStyle.Render(" by " + track.Artist))
	}
	b.WriteString("\n")

	b.WriteString("  ")
	b.WriteString(progressBar(m.status.Position, m.status.Duration, m.listWidth()-16))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" %s/%s",
		common.FormatTime(m.status.Position), common.FormatTime(m.status.Duration))))
	b.WriteString("\n")

	return b.String()
}

func (m model) listWidth() int {
	if m.width > 4 {
		return m.width - 2
	}
	return 78
}

func progressBar(position, duration time.Duration, width int) string {
	if width < 10 {
		width = 10
	}
	filled := 0
	if duration > 0 {
		filled = int(float64(width) * float64(position) / float64(duration))
		if filled > width {
			filled = width
		}
	}
	return dimStyle.Render("[") +
		playingStyle.Render(strings.Repeat("━", filled)) +
		dimStyle.Render(strings.Repeat("─", width-filled)+"]")
}

func helpLine(status player.Status) string {
	extras := make([]string, 0, 2)
	if status.Shuffle {
		extras = append(extras, "shuffle on")
	}
	if status.Muted {
		extras = append(extras, "muted")
	} else {
		extras = append(extras, fmt.Sprintf("vol %d%%", int(status.Volume*100+0.5)))
	}
	return dimStyle.Render("  space play/pause • n/p skip • s shuffle • m mute • +/- volume • d delete • q quit") +
		dimStyle.Render("  ["+strings.Join(extras, ", ")+"]")
}
