// Package play is the interactive room player: playlist view, transport
// controls, live sync with the other listeners.
package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/auxkit/auxroom/cmd/common"
	"github.com/auxkit/auxroom/cmd/common/api"
	"github.com/auxkit/auxroom/cmd/common/config"
	"github.com/auxkit/auxroom/cmd/common/notify"
	"github.com/auxkit/auxroom/cmd/common/player"
	"github.com/auxkit/auxroom/cmd/common/playlist"
	"github.com/auxkit/auxroom/cmd/common/realtime"
	"github.com/auxkit/auxroom/cmd/common/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

type Params struct {
	Sort string `short:"s" optional:"true" help:"Initial sort order" default:"position" alts:"position,title"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:   "play",
		Short: "Open the interactive room player",
		Long: `Open the interactive room player.

Controls:
  ↑/↓ or k/j     - Move cursor
  ENTER          - Play selected track
  SPACE          - Play/pause
  n / p          - Next / previous track
  s              - Toggle shuffle
  m              - Toggle mute
  + / -          - Volume up / down
  0-9            - Seek to 0%..90% of the track
  d              - Delete selected track (asks first)
  t              - Toggle sort order
  q              - Quit`,
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := run(params); err != nil {
				if errors.Is(err, store.ErrNotJoined) {
					fmt.Fprintln(os.Stderr, "play: not joined to a room, use 'auxroom room join <code>' first")
				} else {
					fmt.Fprintf(os.Stderr, "play: %v\n", err)
				}
				os.Exit(1)
			}
		},
	}.ToCobra()
}

// sender forwards messages into the bubbletea program once it exists.
// Everything async (playback events, push commands, the poll) goes through it.
type sender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *sender) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *sender) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func run(params *Params) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(config.ConfigDir())
	if err != nil {
		return err
	}
	defer st.Close()

	roomCode, err := st.RequireRoomCode()
	if err != nil {
		return err
	}

	client := api.New(cfg.ServerURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracks, err := client.Tracks(ctx, roomCode)
	if err != nil {
		return err
	}

	bridge := &sender{}

	center := notify.NewCenter()
	center.Desktop = cfg.DesktopNotifications
	center.OnChange = func(banners []notify.Banner) { bridge.send(bannersMsg(banners)) }
	defer center.Close()

	ctrl := player.New(client, player.Events{
		NowPlaying: func(track api.Track, index int) {
			bridge.send(nowPlayingMsg{track: track, index: index})
		},
		Progress: func(position, duration time.Duration) {
			bridge.send(progressMsg{position: position, duration: duration})
		},
		Error: func(message string) {
			center.Show(message, notify.KindError)
		},
	})
	defer ctrl.Stop()

	ctrl.SetTracks(tracks)
	ctrl.SetVolume(st.Volume(1.0))

	// Push channel: remote commands in, no reconnect on loss.
	wsURL, err := client.WebsocketURL()
	if err != nil {
		return err
	}
	if clientID, err := st.ClientID(); err == nil {
		wsURL += "?client_id=" + clientID
	} else {
		slog.Debug("no client id", "error", err)
	}
	channel := realtime.NewChannel(wsURL, &commandHandler{ctrl: ctrl, center: center, bridge: bridge})
	channel.OnOpen = func() {
		center.Show("Connected to room "+roomCode, notify.KindSuccess)
		bridge.send(channelStateMsg(realtime.StateOpen))
	}
	channel.OnClosed = func(err error) {
		center.ShowUrgent("Connection to room lost. Restart to reconnect.")
		bridge.send(channelStateMsg(realtime.StateClosed))
	}
	go func() {
		if err := channel.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("push channel ended", "error", err)
		}
	}()

	// Poll fallback: runs every 5s whatever happens to the push channel.
	changes := &syncer{client: client, roomCode: roomCode, ctrl: ctrl, center: center, bridge: bridge}
	changes.snapshot.Update(playlist.IDs(tracks))
	poller := &realtime.Poller{Fn: changes.poll}
	go poller.Run(ctx)

	go watchRoomCode(ctx, st, roomCode, bridge)

	m := newModel(roomCode, tracks, ctrl, client, center, playlist.SortKey(params.Sort))
	p := tea.NewProgram(m, tea.WithAltScreen())
	bridge.attach(p)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if err := st.SetVolume(ctrl.Volume()); err != nil {
		slog.Warn("persist volume failed", "error", err)
	}

	if fm, ok := finalModel.(model); ok && fm.roomSwitched {
		fmt.Println("Room changed in another session, player closed.")
	}
	return nil
}

// commandHandler translates push commands into player calls.
type commandHandler struct {
	ctrl   *player.Controller
	center *notify.Center
	bridge *sender
}

func (h *commandHandler) Next() {
	if err := h.ctrl.Next(); err != nil {
		slog.Debug("remote next ignored", "error", err)
	}
}

func (h *commandHandler) Previous() {
	if err := h.ctrl.Previous(); err != nil {
		slog.Debug("remote prev ignored", "error", err)
	}
}

func (h *commandHandler) TogglePause() {
	if err := h.ctrl.TogglePause(); err != nil {
		slog.Debug("remote pause ignored", "error", err)
	}
	h.bridge.send(refreshMsg{})
}

func (h *commandHandler) ToggleShuffle() {
	h.ctrl.ToggleShuffle()
	h.bridge.send(refreshMsg{})
}

func (h *commandHandler) SetVolume(value float64) {
	h.ctrl.SetVolume(value)
	h.bridge.send(refreshMsg{})
}

// ReportNow is reserved for reporting the current track back to the server.
// The backend side doesn't exist yet, so this stays a no-op.
func (h *commandHandler) ReportNow() {}

func (h *commandHandler) Notify(message string) {
	h.center.Show(message, notify.KindSuccess)
}

// syncer is the 5 second eventual-consistency backstop: compare the id
// projection against the last snapshot, refetch on any difference.
type syncer struct {
	client   *api.Client
	roomCode string
	ctrl     *player.Controller
	center   *notify.Center
	bridge   *sender

	mu       sync.Mutex
	snapshot playlist.Snapshot
}

func (s *syncer) poll(ctx context.Context) {
	ids, err := s.client.TrackIDs(ctx, s.roomCode)
	if err != nil {
		slog.Debug("poll failed", "error", err)
		return
	}

	s.mu.Lock()
	changed := s.snapshot.Update(ids)
	s.mu.Unlock()
	if !changed {
		return
	}

	tracks, err := s.client.Tracks(ctx, s.roomCode)
	if err != nil {
		// Keep showing the current list rather than clearing it.
		s.center.Show("Failed to refresh playlist: "+err.Error(), notify.KindError)
		return
	}

	s.ctrl.SetTracks(tracks)
	s.bridge.send(tracksMsg(tracks))
}

// watchRoomCode watches the settings database for the room changing under
// us (a 'room join' or 'room leave' in another terminal).
func watchRoomCode(ctx context.Context, st *store.Store, roomCode string, bridge *sender) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("settings watch unavailable", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(st.Path()); err != nil {
		slog.Debug("settings watch unavailable", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			code, _, err := st.RoomCode()
			if err != nil {
				continue
			}
			if code != roomCode {
				bridge.send(roomSwitchedMsg{})
				return
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
