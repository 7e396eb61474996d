package main

import (
	"context"
	"fmt"
	"os"

	"github.com/battlewithbytes/lxd-console/internal/ui"
	"github.com/battlewithbytes/lxd-console/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "lxd-console",
	Short:         "LXD Console: web console for LXD instances",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Long = ui.Green.Render("LXD Console") + " " + ui.Cyan.Render(version.Version) + "\n" +
		ui.Dim.Render("A browser console for LXD that tracks every daemon operation until it finishes and reports the outcome.")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red.Render("error:")+" "+err.Error())
		os.Exit(1)
	}
}
