package lxd

import (
	"testing"
)

func TestNetworkEditValues(t *testing.T) {
	n := &Network{
		Name: "lxdbr0",
		Type: "bridge",
		NetworkPut: NetworkPut{
			Description: "default bridge",
			Config: map[string]string{
				"ipv4.address": "10.0.0.1/24",
				"ipv4.nat":     "true",
				"ipv6.dhcp":    "false",
				"dns.domain":   "lxd",
			},
		},
	}

	v := NetworkEditValues(n)
	if !v.ReadOnly {
		t.Error("edit values should start read-only")
	}
	if v.IPv4Address != "10.0.0.1/24" {
		t.Errorf("IPv4Address = %q", v.IPv4Address)
	}
	if v.IPv4NAT == nil || !*v.IPv4NAT {
		t.Errorf("IPv4NAT = %v, want true", v.IPv4NAT)
	}
	if v.IPv6DHCP == nil || *v.IPv6DHCP {
		t.Errorf("IPv6DHCP = %v, want false", v.IPv6DHCP)
	}
	if v.IPv4DHCP != nil {
		t.Errorf("IPv4DHCP = %v, want unset", *v.IPv4DHCP)
	}
	if v.DNSDomain != "lxd" {
		t.Errorf("DNSDomain = %q", v.DNSDomain)
	}
}

func TestNetworkPayloadPreservesUnhandledKeys(t *testing.T) {
	existing := map[string]string{
		"ipv4.address":  "10.0.0.1/24",
		"ipv4.nat":      "true",
		"raw.dnsmasq":   "dhcp-option=6,1.1.1.1",
		"user.owner":    "ops",
		"ipv4.firewall": "false",
		"ipv6.address":  "none",
	}
	n := &Network{Name: "lxdbr0", Type: "bridge", NetworkPut: NetworkPut{Config: existing}}

	v := NetworkEditValues(n)
	v.IPv4Address = "10.1.0.1/24"
	v.IPv6Address = ""
	off := false
	v.IPv4NAT = &off

	put := NetworkPayload(v, existing)

	want := map[string]string{
		"ipv4.address":  "10.1.0.1/24",
		"ipv4.nat":      "false",
		"raw.dnsmasq":   "dhcp-option=6,1.1.1.1",
		"user.owner":    "ops",
		"ipv4.firewall": "false",
	}
	if len(put.Config) != len(want) {
		t.Errorf("config = %v, want %v", put.Config, want)
	}
	for k, val := range want {
		if put.Config[k] != val {
			t.Errorf("config[%q] = %q, want %q", k, put.Config[k], val)
		}
	}
}

func TestHandledNetworkKeys(t *testing.T) {
	keys := HandledNetworkKeys()
	seen := make(map[string]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
	for _, k := range []string{"bridge.mtu", "ipv6.dhcp.stateful", "network"} {
		if !seen[k] {
			t.Errorf("missing key %q", k)
		}
	}
}
