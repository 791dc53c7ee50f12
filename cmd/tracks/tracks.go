// Package tracks holds the playlist management commands.
package tracks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/auxkit/auxroom/cmd/common"
	"github.com/auxkit/auxroom/cmd/common/api"
	"github.com/auxkit/auxroom/cmd/common/config"
	"github.com/auxkit/auxroom/cmd/common/playlist"
	"github.com/auxkit/auxroom/cmd/common/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func Cmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "tracks",
		Short: "List and manage the room playlist",
		SubCmds: []*cobra.Command{
			listCmd(),
			addCmd(),
			deleteCmd(),
			moveCmd(),
		},
	}.ToCobra()
}

// open loads config, opens the settings store and resolves the room code.
// Room-scoped commands fail here, before any network call, when not joined.
func open() (*api.Client, *store.Store, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(config.ConfigDir())
	if err != nil {
		return nil, nil, "", err
	}
	code, err := st.RequireRoomCode()
	if err != nil {
		st.Close()
		if errors.Is(err, store.ErrNotJoined) {
			return nil, nil, "", fmt.Errorf("%w: use 'auxroom room join <code>' first", err)
		}
		return nil, nil, "", err
	}
	return api.New(cfg.ServerURL), st, code, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "tracks: %v\n", err)
	os.Exit(1)
}

type listParams struct {
	Sort string `short:"s" optional:"true" help:"Sort order" default:"position" alts:"position,title"`
	IDs  bool   `long:"ids" help:"Print track ids only, one per line"`
}

func listCmd() *cobra.Command {
	return boa.CmdT[listParams]{
		Use:         "ls",
		Aliases:     []string{"list"},
		Short:       "List the tracks in the current room",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *listParams, cmd *cobra.Command, args []string) {
			if err := runList(params); err != nil {
				fail(err)
			}
		},
	}.ToCobra()
}

func runList(params *listParams) error {
	client, st, code, err := open()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracks, err := client.Tracks(ctx, code)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Println("The playlist is empty")
		fmt.Println("\nAdd a track with: auxroom tracks add <url>")
		return nil
	}

	sorted := playlist.Sort(tracks, playlist.SortKey(params.Sort))

	if params.IDs {
		for _, id := range playlist.IDs(sorted) {
			fmt.Println(id)
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetAllowedRowLength(getTermWidth())

	t.AppendHeader(table.Row{"#", "ID", "Title", "Artist", "Duration"})
	for i, track := range sorted {
		duration := ""
		if track.DurationMs > 0 {
			duration = common.FormatTime(track.Duration())
		}
		t.AppendRow(table.Row{i + 1, track.TrackID, track.Title, track.Artist, duration})
	}
	t.Render()

	fmt.Printf("\n%s in room %s\n", text.FgGreen.Sprintf("%d tracks", len(sorted)), code)
	return nil
}

type addParams struct {
	URL string `pos:"true" required:"true" help:"Track URL to add to the playlist"`
}

func addCmd() *cobra.Command {
	return boa.CmdT[addParams]{
		Use:         "add",
		Short:       "Add a track to the room playlist",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *addParams, cmd *cobra.Command, args []string) {
			client, st, code, err := open()
			if err != nil {
				fail(err)
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := client.AddTrack(ctx, params.URL, code); err != nil {
				fail(err)
			}
			fmt.Println("Track added")
		},
	}.ToCobra()
}

type deleteParams struct {
	TrackID int  `pos:"true" required:"true" help:"Id of the track to delete"`
	Yes     bool `short:"y" help:"Skip the confirmation prompt"`
}

func deleteCmd() *cobra.Command {
	return boa.CmdT[deleteParams]{
		Use:         "rm",
		Aliases:     []string{"delete"},
		Short:       "Delete a track from the room playlist",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *deleteParams, cmd *cobra.Command, args []string) {
			client, st, code, err := open()
			if err != nil {
				fail(err)
			}
			defer st.Close()

			question := fmt.Sprintf("Delete track %d from room %s?", params.TrackID, code)
			if !params.Yes && !common.Confirm(os.Stdin, os.Stdout, question) {
				fmt.Println("Aborted")
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := client.DeleteTrack(ctx, params.TrackID, code); err != nil {
				fail(err)
			}
			fmt.Println("Track deleted")
		},
	}.ToCobra()
}

type moveParams struct {
	TrackID  int `pos:"true" required:"true" help:"Id of the track to move"`
	Position int `pos:"true" required:"true" help:"New position in the playlist"`
}

func moveCmd() *cobra.Command {
	return boa.CmdT[moveParams]{
		Use:         "mv",
		Aliases:     []string{"move"},
		Short:       "Move a track to a new position",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *moveParams, cmd *cobra.Command, args []string) {
			client, st, code, err := open()
			if err != nil {
				fail(err)
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := client.MoveTrack(ctx, params.TrackID, params.Position, code); err != nil {
				fail(err)
			}
			fmt.Printf("Track %d moved to position %d\n", params.TrackID, params.Position)
		},
	}.ToCobra()
}

func getTermWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 120
}
