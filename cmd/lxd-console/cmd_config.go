package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/battlewithbytes/lxd-console/internal/config"
	"github.com/battlewithbytes/lxd-console/internal/installer"
	"github.com/battlewithbytes/lxd-console/internal/ui"
)

var configPath string

func init() {
	configCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and create the LXD Console configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		printConfig(cmd.OutOrStdout(), cfg, configPath)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return installer.Run(cmd.Context(), configPath)
	},
}

func printConfig(w io.Writer, cfg *config.Config, path string) {
	const width = 14
	set := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return s
	}

	fmt.Fprintln(w, ui.Cyan.Render("Daemon:"))
	fmt.Fprintln(w, ui.Field("URL", cfg.LXD.URL, width))
	fmt.Fprintln(w, ui.Field("Project", cfg.LXD.Project, width))
	if cfg.LXD.ClientCert != "" {
		fmt.Fprintln(w, ui.Field("Client cert", cfg.LXD.ClientCert, width))
		fmt.Fprintln(w, ui.Field("Client key", cfg.LXD.ClientKey, width))
		fmt.Fprintln(w, ui.Field("CA cert", set(cfg.LXD.TLSCACertPath), width))
		fmt.Fprintln(w, ui.Field("Skip verify", fmt.Sprintf("%v", cfg.LXD.TLSSkipVerify), width))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Cyan.Render("Service:"))
	fmt.Fprintln(w, ui.Field("Bind", fmt.Sprintf("%s:%d", cfg.Service.BindAddress, cfg.Service.Port), width))
	fmt.Fprintln(w, ui.Field("Web dir", set(cfg.Service.WebDir), width))
	fmt.Fprintln(w, ui.Field("Auth", cfg.Auth.Mode, width))
	fmt.Fprintln(w, ui.Field("Data dir", cfg.DataDir, width))
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Cyan.Render("Operations:"))
	fmt.Fprintln(w, ui.Field("Events", cfg.Events.Mode, width))
	fmt.Fprintln(w, ui.Field("Poll interval", cfg.Events.PollInterval.String(), width))
	fmt.Fprintln(w, ui.Field("Cache TTL", cfg.Cache.TTL.String(), width))
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Dim.Render("Config file: "+path))
}
