package installer

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/battlewithbytes/lxd-console/internal/config"
)

func TestDefaultAnswersPrefersDiscoveredDaemon(t *testing.T) {
	a := DefaultAnswers(nil)
	if a.EndpointChoice != customEndpoint || a.EffectiveURL() != config.DefaultLXDURL {
		t.Fatalf("without discovery: choice %q url %q", a.EndpointChoice, a.EffectiveURL())
	}

	res := &DiscoveredResources{Daemons: []DaemonInfo{{URL: "unix:///var/lib/lxd/unix.socket"}}}
	a = DefaultAnswers(res)
	if a.EffectiveURL() != "unix:///var/lib/lxd/unix.socket" {
		t.Fatalf("url = %q", a.EffectiveURL())
	}
}

func TestToConfigHashesPassword(t *testing.T) {
	a := DefaultAnswers(nil)
	a.DataDir = "/tmp/lxd-console"
	a.Password = "correct horse"
	a.PasswordConfirm = "correct horse"

	cfg, err := a.ToConfig()
	if err != nil {
		t.Fatalf("ToConfig: %v", err)
	}
	if cfg.Auth.Mode != config.AuthModePassword {
		t.Errorf("auth mode = %q", cfg.Auth.Mode)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.Auth.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}
	if cfg.Service.Port != config.DefaultPort {
		t.Errorf("port = %d", cfg.Service.Port)
	}
	if time.Duration(cfg.Events.PollInterval) != config.DefaultPollInterval {
		t.Errorf("poll interval = %v", cfg.Events.PollInterval)
	}
}

func TestToConfigPasswordMismatch(t *testing.T) {
	a := DefaultAnswers(nil)
	a.Password = "correct horse"
	a.PasswordConfirm = "battery staple"
	if _, err := a.ToConfig(); err == nil {
		t.Fatal("expected error for mismatched passwords")
	}
}

func TestToConfigNoAuth(t *testing.T) {
	a := DefaultAnswers(nil)
	a.AuthMode = config.AuthModeNone
	a.EventsMode = config.EventsModePoll
	a.PollIntervalStr = "5s"

	cfg, err := a.ToConfig()
	if err != nil {
		t.Fatalf("ToConfig: %v", err)
	}
	if cfg.Auth.PasswordHash != "" {
		t.Error("no hash expected without password auth")
	}
	if cfg.Events.Mode != config.EventsModePoll || time.Duration(cfg.Events.PollInterval) != 5*time.Second {
		t.Errorf("events = %+v", cfg.Events)
	}
}

func TestToConfigRemoteTLS(t *testing.T) {
	a := DefaultAnswers(nil)
	a.AuthMode = config.AuthModeNone
	a.CustomURL = "https://10.0.0.5:8443"
	a.ClientCert = "/etc/lxd-console/client.crt"
	a.ClientKey = "/etc/lxd-console/client.key"
	a.TLSSkipVerify = true

	if !a.IsRemote() {
		t.Fatal("https endpoint should be remote")
	}
	cfg, err := a.ToConfig()
	if err != nil {
		t.Fatalf("ToConfig: %v", err)
	}
	if cfg.LXD.ClientCert != a.ClientCert || !cfg.LXD.TLSSkipVerify {
		t.Errorf("lxd = %+v", cfg.LXD)
	}
}

func TestToConfigIgnoresTLSForUnix(t *testing.T) {
	a := DefaultAnswers(nil)
	a.AuthMode = config.AuthModeNone
	a.ClientCert = "/leftover.crt"

	cfg, err := a.ToConfig()
	if err != nil {
		t.Fatalf("ToConfig: %v", err)
	}
	if cfg.LXD.ClientCert != "" {
		t.Errorf("client cert = %q, want empty for unix socket", cfg.LXD.ClientCert)
	}
}

func TestToConfigBadPort(t *testing.T) {
	a := DefaultAnswers(nil)
	a.AuthMode = config.AuthModeNone
	a.PortStr = "99999"
	if _, err := a.ToConfig(); err == nil {
		t.Fatal("expected error for bad port")
	}
}

func TestValidators(t *testing.T) {
	if ValidatePort("8099") != nil || ValidatePort("0") == nil || ValidatePort("abc") == nil {
		t.Error("ValidatePort")
	}
	if ValidateDuration("2s") != nil || ValidateDuration("soon") == nil || ValidateDuration("-1s") == nil {
		t.Error("ValidateDuration")
	}
	urls := map[string]bool{
		"unix:///var/lib/lxd/unix.socket": true,
		"https://10.0.0.5:8443":           true,
		"https://":                        false,
		"unix://":                         false,
		"http://10.0.0.5:8443":            false,
	}
	for u, ok := range urls {
		if got := ValidateDaemonURL(u) == nil; got != ok {
			t.Errorf("ValidateDaemonURL(%q) ok = %v, want %v", u, got, ok)
		}
	}
	if ValidateNotEmpty("project")("  ") == nil {
		t.Error("ValidateNotEmpty accepted blank input")
	}
}
