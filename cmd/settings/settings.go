// Package settings holds the config commands.
package settings

import (
	"fmt"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/auxkit/auxroom/cmd/common"
	"github.com/auxkit/auxroom/cmd/common/config"
	"github.com/spf13/cobra"
)

func Cmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "config",
		Short: "Show and change client configuration",
		SubCmds: []*cobra.Command{
			showCmd(),
			setServerCmd(),
			notificationsCmd(),
		},
	}.ToCobra()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "config: %v\n", err)
	os.Exit(1)
}

func showCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "show",
		Short:       "Print the active configuration",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *boa.NoParams, cmd *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				fail(err)
			}
			fmt.Printf("server url:            %s\n", cfg.ServerURL)
			fmt.Printf("desktop notifications: %v\n", cfg.DesktopNotifications)
			fmt.Printf("config file:           %s\n", config.ConfigPath())
		},
	}.ToCobra()
}

type setServerParams struct {
	URL string `pos:"true" required:"true" help:"Base URL of the room backend, e.g. http://localhost:8080"`
}

func setServerCmd() *cobra.Command {
	return boa.CmdT[setServerParams]{
		Use:         "set-server",
		Short:       "Set the room backend URL",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *setServerParams, cmd *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				fail(err)
			}
			cfg.ServerURL = params.URL
			if err := config.Save(cfg); err != nil {
				fail(err)
			}
			fmt.Printf("Server set to %s\n", params.URL)
		},
	}.ToCobra()
}

type notificationsParams struct {
	Enabled string `pos:"true" required:"true" help:"on or off" alts:"on,off"`
}

func notificationsCmd() *cobra.Command {
	return boa.CmdT[notificationsParams]{
		Use:         "notifications",
		Short:       "Enable or disable desktop notifications",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *notificationsParams, cmd *cobra.Command, args []string) {
			if params.Enabled != "on" && params.Enabled != "off" {
				fail(fmt.Errorf("expected 'on' or 'off', got %q", params.Enabled))
			}
			cfg, err := config.Load()
			if err != nil {
				fail(err)
			}
			cfg.DesktopNotifications = params.Enabled == "on"
			if err := config.Save(cfg); err != nil {
				fail(err)
			}
			fmt.Printf("Desktop notifications %s\n", params.Enabled)
		},
	}.ToCobra()
}
