// Package room holds the commands for creating, joining and leaving
// listening rooms.
package room

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/auxkit/auxroom/cmd/common"
	"github.com/auxkit/auxroom/cmd/common/api"
	"github.com/auxkit/auxroom/cmd/common/config"
	"github.com/auxkit/auxroom/cmd/common/store"
	"github.com/spf13/cobra"
)

func Cmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "room",
		Short: "Create, join and leave listening rooms",
		SubCmds: []*cobra.Command{
			createCmd(),
			joinCmd(),
			leaveCmd(),
			showCmd(),
		},
	}.ToCobra()
}

// open loads config and opens the settings store, the setup every room
// command needs.
func open() (*api.Client, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(config.ConfigDir())
	if err != nil {
		return nil, nil, err
	}
	return api.New(cfg.ServerURL), st, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "room: %v\n", err)
	os.Exit(1)
}

func createCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "create",
		Short:       "Create a new room and join it",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *boa.NoParams, cmd *cobra.Command, args []string) {
			client, st, err := open()
			if err != nil {
				fail(err)
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			code, err := client.CreateRoom(ctx)
			if err != nil {
				fail(err)
			}
			if err := st.SetRoomCode(code); err != nil {
				fail(err)
			}
			fmt.Printf("Created room %s\n", code)
			fmt.Println("Share this code so others can join.")
		},
	}.ToCobra()
}

type joinParams struct {
	Code string `pos:"true" required:"true" help:"Room code to join"`
}

func joinCmd() *cobra.Command {
	return boa.CmdT[joinParams]{
		Use:         "join",
		Short:       "Join an existing room by code",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *joinParams, cmd *cobra.Command, args []string) {
			client, st, err := open()
			if err != nil {
				fail(err)
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := client.JoinRoom(ctx, params.Code); err != nil {
				fail(err)
			}
			if err := st.SetRoomCode(params.Code); err != nil {
				fail(err)
			}
			fmt.Printf("Joined room %s\n", params.Code)
		},
	}.ToCobra()
}

func leaveCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "leave",
		Short:       "Leave the current room",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *boa.NoParams, cmd *cobra.Command, args []string) {
			_, st, err := open()
			if err != nil {
				fail(err)
			}
			defer st.Close()

			code, ok, err := st.RoomCode()
			if err != nil {
				fail(err)
			}
			if !ok {
				fmt.Println("Not joined to any room.")
				return
			}
			if err := st.ClearRoomCode(); err != nil {
				fail(err)
			}
			fmt.Printf("Left room %s\n", code)
		},
	}.ToCobra()
}

func showCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "show",
		Short:       "Show the currently joined room",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *boa.NoParams, cmd *cobra.Command, args []string) {
			_, st, err := open()
			if err != nil {
				fail(err)
			}
			defer st.Close()

			code, ok, err := st.RoomCode()
			if err != nil {
				fail(err)
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "Not joined to any room. Use 'auxroom room join <code>'.")
				os.Exit(1)
			}
			fmt.Println(code)
		},
	}.ToCobra()
}
