// Package installer is the interactive `config init` wizard.
package installer

import (
	"context"
	"fmt"
	"net"
	"os"
)

// Run discovers local daemons, asks for the settings and writes configPath.
func Run(ctx context.Context, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first to start over", configPath)
	}

	fmt.Println("Looking for local daemons...")
	res := Discover(ctx)

	answers := DefaultAnswers(res)
	form := BuildForm(res, answers, configPath)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	if !answers.Confirmed {
		fmt.Println("Setup cancelled.")
		return nil
	}

	cfg, err := answers.ToConfig()
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := checkPortAvailable(cfg.Service.BindAddress, cfg.Service.Port); err != nil {
		fmt.Printf("  warning: port %d is in use right now: %v\n", cfg.Service.Port, err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	displayAddr := cfg.Service.BindAddress
	if displayAddr == "0.0.0.0" || displayAddr == "" {
		if ip := getPrimaryIP(); ip != "" {
			displayAddr = ip
		}
	}

	fmt.Println()
	fmt.Println("Configuration written!")
	fmt.Println()
	fmt.Printf("  Web UI:    http://%s:%d\n", displayAddr, cfg.Service.Port)
	fmt.Printf("  Health:    http://%s:%d/api/health\n", displayAddr, cfg.Service.Port)
	fmt.Printf("  Config:    %s\n", configPath)
	fmt.Printf("  History:   %s\n", cfg.HistoryPath())
	fmt.Println()

	return nil
}

// checkPortAvailable tries to listen on the port to verify it's free.
func checkPortAvailable(addr string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

// getPrimaryIP returns the first non-loopback IPv4 address of the host.
func getPrimaryIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}
