package installer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/battlewithbytes/lxd-console/internal/config"
)

// BuildForm constructs the full TUI form from discovered resources.
func BuildForm(res *DiscoveredResources, answers *InstallerAnswers, configPath string) *huh.Form {
	groups := []*huh.Group{
		welcomeGroup(res),
		endpointGroup(res, answers),
		customEndpointGroup(answers),
		tlsGroup(answers),
		projectGroup(answers),
		serviceGroup(answers),
		authModeGroup(answers),
		passwordGroup(answers),
		eventsGroup(answers),
		confirmGroup(answers, configPath),
	}

	return huh.NewForm(groups...).WithTheme(huh.ThemeCatppuccin())
}

func welcomeGroup(res *DiscoveredResources) *huh.Group {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Host:      %s\n", res.Hostname))
	sb.WriteString(fmt.Sprintf("Daemons:   %d reachable", len(res.Daemons)))
	for _, d := range res.Daemons {
		sb.WriteString(fmt.Sprintf("\n  - %s %s (%s)", d.ServerName, d.Version, d.URL))
		if d.Clustered {
			sb.WriteString(fmt.Sprintf("\n    cluster: %s", strings.Join(d.Members, ", ")))
		}
	}
	for _, path := range res.Unreachable {
		sb.WriteString(fmt.Sprintf("\n  - %s (not accessible, is this user in the lxd group?)", path))
	}

	return huh.NewGroup(
		huh.NewNote().
			Title("LXD Console Setup").
			Description("Here's what we detected on this host:\n\n"+sb.String()+"\n\nLet's configure the console."),
	)
}

func endpointGroup(res *DiscoveredResources, answers *InstallerAnswers) *huh.Group {
	opts := make([]huh.Option[string], 0, len(res.Daemons)+1)
	for _, d := range res.Daemons {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%s)", d.ServerName, d.URL), d.URL))
	}
	opts = append(opts, huh.NewOption("Enter an address", customEndpoint))

	return huh.NewGroup(
		huh.NewSelect[string]().
			Title("Daemon Endpoint").
			Description("The console talks to this daemon for every request.").
			Options(opts...).
			Value(&answers.EndpointChoice),
	)
}

func customEndpointGroup(answers *InstallerAnswers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Daemon URL").
			Description("unix:///var/snap/lxd/common/lxd/unix.socket or https://host:8443").
			Value(&answers.CustomURL).
			Validate(ValidateDaemonURL),
	).WithHideFunc(func() bool { return answers.EndpointChoice != customEndpoint })
}

func tlsGroup(answers *InstallerAnswers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Client Certificate").
			Description("Path to the PEM certificate trusted by the daemon.").
			Value(&answers.ClientCert),
		huh.NewInput().
			Title("Client Key").
			Value(&answers.ClientKey),
		huh.NewInput().
			Title("CA Certificate").
			Description("Optional. Leave empty to use the system roots.").
			Value(&answers.TLSCACert),
		huh.NewConfirm().
			Title("Skip TLS verification?").
			Description("Only for lab setups with self-signed daemon certificates.").
			Value(&answers.TLSSkipVerify),
	).WithHideFunc(func() bool { return !answers.IsRemote() })
}

func projectGroup(answers *InstallerAnswers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Default Project").
			Description("Used when a request does not name a project.").
			Value(&answers.Project).
			Validate(ValidateNotEmpty("project")),
	)
}

func serviceGroup(answers *InstallerAnswers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Bind Address").
			Description("IP address to listen on. Use 0.0.0.0 for all interfaces.").
			Value(&answers.BindAddress).
			Validate(ValidateNotEmpty("bind address")),
		huh.NewInput().
			Title("Port").
			Value(&answers.PortStr).
			Validate(ValidatePort),
		huh.NewInput().
			Title("Front End Directory").
			Description("Built UI to serve. Leave empty for API only.").
			Value(&answers.WebDir),
		huh.NewInput().
			Title("Data Directory").
			Description("Holds the operation history database.").
			Value(&answers.DataDir).
			Validate(ValidateNotEmpty("data directory")),
	)
}

func authModeGroup(answers *InstallerAnswers) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().
			Title("Authentication Mode").
			Options(
				huh.NewOption("Password (recommended)", config.AuthModePassword),
				huh.NewOption("None", config.AuthModeNone),
			).
			Value(&answers.AuthMode),
	)
}

func passwordGroup(answers *InstallerAnswers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.Password).
			Validate(func(s string) error {
				if len(s) < 8 {
					return fmt.Errorf("password must be at least 8 characters")
				}
				return nil
			}),
		huh.NewInput().
			Title("Confirm Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.PasswordConfirm).
			Validate(func(s string) error {
				if s != answers.Password {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
	).WithHideFunc(func() bool { return answers.AuthMode != config.AuthModePassword })
}

func eventsGroup(answers *InstallerAnswers) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().
			Title("Operation Tracking").
			Description("How the console learns that a daemon operation finished.").
			Options(
				huh.NewOption("Event stream (recommended)", config.EventsModeEvents),
				huh.NewOption("Polling", config.EventsModePoll),
			).
			Value(&answers.EventsMode),
		huh.NewInput().
			Title("Poll Interval").
			Description("Also used to catch up after the event stream reconnects.").
			Value(&answers.PollIntervalStr).
			Validate(ValidateDuration),
		huh.NewInput().
			Title("Cache TTL").
			Description("How long daemon reads are reused.").
			Value(&answers.CacheTTLStr).
			Validate(ValidateDuration),
	)
}

func confirmGroup(answers *InstallerAnswers, configPath string) *huh.Group {
	return huh.NewGroup(
		huh.NewNote().
			Title("Ready to Write Configuration").
			Description("The configuration will be written to "+configPath+".\n"+
				"Start the console with: lxd-console serve --config "+configPath+"\n"),
		huh.NewConfirm().
			Title("Write configuration?").
			Value(&answers.Confirmed),
	)
}
