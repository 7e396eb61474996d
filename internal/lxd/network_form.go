package lxd

import "strconv"

// NetworkFormValues is the flat form representation of a network used by the console.
// Booleans are pointers so "unset" (inherit the daemon default) survives a round trip.
type NetworkFormValues struct {
	ReadOnly    bool   `json:"readOnly"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`

	BridgeDriver string `json:"bridge_driver,omitempty"`
	BridgeHWAddr string `json:"bridge_hwaddr,omitempty"`
	BridgeMode   string `json:"bridge_mode,omitempty"`
	BridgeMTU    string `json:"bridge_mtu,omitempty"`

	DNSDomain string `json:"dns_domain,omitempty"`
	DNSMode   string `json:"dns_mode,omitempty"`
	DNSSearch string `json:"dns_search,omitempty"`

	FanType           string `json:"fan_type,omitempty"`
	FanOverlaySubnet  string `json:"fan_overlay_subnet,omitempty"`
	FanUnderlaySubnet string `json:"fan_underlay_subnet,omitempty"`

	IPv4Address    string `json:"ipv4_address,omitempty"`
	IPv4DHCP       *bool  `json:"ipv4_dhcp,omitempty"`
	IPv4DHCPExpiry string `json:"ipv4_dhcp_expiry,omitempty"`
	IPv4DHCPRanges string `json:"ipv4_dhcp_ranges,omitempty"`
	IPv4L3Only     *bool  `json:"ipv4_l3only,omitempty"`
	IPv4NAT        *bool  `json:"ipv4_nat,omitempty"`
	IPv4NATAddress string `json:"ipv4_nat_address,omitempty"`
	IPv4OVNRanges  string `json:"ipv4_ovn_ranges,omitempty"`

	IPv6Address      string `json:"ipv6_address,omitempty"`
	IPv6DHCP         *bool  `json:"ipv6_dhcp,omitempty"`
	IPv6DHCPExpiry   string `json:"ipv6_dhcp_expiry,omitempty"`
	IPv6DHCPRanges   string `json:"ipv6_dhcp_ranges,omitempty"`
	IPv6DHCPStateful *bool  `json:"ipv6_dhcp_stateful,omitempty"`
	IPv6L3Only       *bool  `json:"ipv6_l3only,omitempty"`
	IPv6NAT          *bool  `json:"ipv6_nat,omitempty"`
	IPv6NATAddress   string `json:"ipv6_nat_address,omitempty"`
	IPv6OVNRanges    string `json:"ipv6_ovn_ranges,omitempty"`

	Network string `json:"network,omitempty"`
}

// networkField binds one config key to its form field.
type networkField struct {
	key  string
	str  func(v *NetworkFormValues) *string
	flag func(v *NetworkFormValues) **bool
}

var networkFields = []networkField{
	{key: "bridge.driver", str: func(v *NetworkFormValues) *string { return &v.BridgeDriver }},
	{key: "bridge.hwaddr", str: func(v *NetworkFormValues) *string { return &v.BridgeHWAddr }},
	{key: "bridge.mode", str: func(v *NetworkFormValues) *string { return &v.BridgeMode }},
	{key: "bridge.mtu", str: func(v *NetworkFormValues) *string { return &v.BridgeMTU }},
	{key: "dns.domain", str: func(v *NetworkFormValues) *string { return &v.DNSDomain }},
	{key: "dns.mode", str: func(v *NetworkFormValues) *string { return &v.DNSMode }},
	{key: "dns.search", str: func(v *NetworkFormValues) *string { return &v.DNSSearch }},
	{key: "fan.type", str: func(v *NetworkFormValues) *string { return &v.FanType }},
	{key: "fan.overlay_subnet", str: func(v *NetworkFormValues) *string { return &v.FanOverlaySubnet }},
	{key: "fan.underlay_subnet", str: func(v *NetworkFormValues) *string { return &v.FanUnderlaySubnet }},
	{key: "ipv4.address", str: func(v *NetworkFormValues) *string { return &v.IPv4Address }},
	{key: "ipv4.dhcp", flag: func(v *NetworkFormValues) **bool { return &v.IPv4DHCP }},
	{key: "ipv4.dhcp.expiry", str: func(v *NetworkFormValues) *string { return &v.IPv4DHCPExpiry }},
	{key: "ipv4.dhcp.ranges", str: func(v *NetworkFormValues) *string { return &v.IPv4DHCPRanges }},
	{key: "ipv4.l3only", flag: func(v *NetworkFormValues) **bool { return &v.IPv4L3Only }},
	{key: "ipv4.nat", flag: func(v *NetworkFormValues) **bool { return &v.IPv4NAT }},
	{key: "ipv4.nat.address", str: func(v *NetworkFormValues) *string { return &v.IPv4NATAddress }},
	{key: "ipv4.ovn.ranges", str: func(v *NetworkFormValues) *string { return &v.IPv4OVNRanges }},
	{key: "ipv6.address", str: func(v *NetworkFormValues) *string { return &v.IPv6Address }},
	{key: "ipv6.dhcp", flag: func(v *NetworkFormValues) **bool { return &v.IPv6DHCP }},
	{key: "ipv6.dhcp.expiry", str: func(v *NetworkFormValues) *string { return &v.IPv6DHCPExpiry }},
	{key: "ipv6.dhcp.ranges", str: func(v *NetworkFormValues) *string { return &v.IPv6DHCPRanges }},
	{key: "ipv6.dhcp.stateful", flag: func(v *NetworkFormValues) **bool { return &v.IPv6DHCPStateful }},
	{key: "ipv6.l3only", flag: func(v *NetworkFormValues) **bool { return &v.IPv6L3Only }},
	{key: "ipv6.nat", flag: func(v *NetworkFormValues) **bool { return &v.IPv6NAT }},
	{key: "ipv6.nat.address", str: func(v *NetworkFormValues) *string { return &v.IPv6NATAddress }},
	{key: "ipv6.ovn.ranges", str: func(v *NetworkFormValues) *string { return &v.IPv6OVNRanges }},
	{key: "network", str: func(v *NetworkFormValues) *string { return &v.Network }},
}

// HandledNetworkKeys lists the config keys the network form edits.
func HandledNetworkKeys() []string {
	keys := make([]string, len(networkFields))
	for i, f := range networkFields {
		keys[i] = f.key
	}
	return keys
}

// NetworkEditValues converts a network into read-only form values.
func NetworkEditValues(n *Network) NetworkFormValues {
	v := NetworkFormValues{
		ReadOnly:    true,
		Name:        n.Name,
		Description: n.Description,
		Type:        n.Type,
	}
	for _, f := range networkFields {
		raw, ok := n.Config[f.key]
		if !ok {
			continue
		}
		if f.flag != nil {
			b := raw == "true"
			*f.flag(&v) = &b
			continue
		}
		*f.str(&v) = raw
	}
	return v
}

// NetworkPayload builds the PUT body for the form values. Config keys the form
// does not handle are copied from existing unchanged.
func NetworkPayload(v NetworkFormValues, existing map[string]string) NetworkPut {
	handled := make(map[string]bool, len(networkFields))
	for _, f := range networkFields {
		handled[f.key] = true
	}

	config := make(map[string]string)
	for k, val := range existing {
		if !handled[k] {
			config[k] = val
		}
	}
	for _, f := range networkFields {
		if f.flag != nil {
			if b := *f.flag(&v); b != nil {
				config[f.key] = strconv.FormatBool(*b)
			}
			continue
		}
		if s := *f.str(&v); s != "" {
			config[f.key] = s
		}
	}

	return NetworkPut{Config: config, Description: v.Description}
}
