package main

import (
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/auxkit/auxroom/cmd/play"
	"github.com/auxkit/auxroom/cmd/room"
	"github.com/auxkit/auxroom/cmd/settings"
	"github.com/auxkit/auxroom/cmd/tracks"
	"github.com/spf13/cobra"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "auxroom",
		Short:   "Terminal client for shared listening rooms",
		Version: appVersion(),
		SubCmds: []*cobra.Command{
			room.Cmd(),
			tracks.Cmd(),
			play.Cmd(),
			settings.Cmd(),
		},
	}.Run()
}

func appVersion() string {
	bi, hasBuildInfo := debug.ReadBuildInfo()
	if !hasBuildInfo {
		return "unknown-(no build info)"
	}

	versionString := bi.Main.Version
	if versionString == "" {
		versionString = "unknown-(no version)"
	}

	return versionString
}
