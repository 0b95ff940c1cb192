package wallet

// Descriptor is a normalized, serializable summary of a discoverable
// wallet. It carries everything a chooser surface needs without holding a
// reference to the live handle.
type Descriptor struct {
	// Name uniquely identifies the wallet within the registry
	Name string `json:"name"`
	// Icon is a data-URI or URL reference to the wallet icon
	Icon string `json:"icon"`
	// Chains lists the chain identifiers the wallet advertises
	Chains []string `json:"chains"`
	// Features lists the capability names the wallet advertises
	Features []string `json:"features"`
	// Installed reports whether a live handle backs this descriptor
	Installed bool `json:"installed"`
	// Connectable reports whether the wallet can be connected: it must
	// advertise both connect and disconnect capabilities and support the
	// target chain family
	Connectable bool `json:"connectable"`
}

// Account is a normalized account within a wallet session.
type Account struct {
	// Address uniquely identifies the account within a session
	Address string `json:"address"`
	// Icon is an optional account icon reference
	Icon string `json:"icon,omitempty"`
	// Raw is the underlying account object, opaque to the client
	Raw interface{} `json:"-"`
}

// MapDescriptor computes the normalized descriptor for a live handle.
// The derivation is deterministic and side-effect free: Connectable is
// true iff the handle exposes both connect and disconnect features and at
// least one advertised chain matches the target family substring.
func MapDescriptor(h Handle, chainFamily string) Descriptor {
	features := h.Features()
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}

	_, hasConnect := ConnectFeatureOf(h)
	_, hasDisconnect := DisconnectFeatureOf(h)

	return Descriptor{
		Name:        h.Name(),
		Icon:        h.Icon(),
		Chains:      append([]string(nil), h.Chains()...),
		Features:    names,
		Installed:   true,
		Connectable: hasConnect && hasDisconnect && SupportsChainFamily(h, chainFamily),
	}
}

// MapAccounts converts raw wallet accounts to normalized accounts,
// preserving order and deduplicating by address (first occurrence wins).
func MapAccounts(raw []RawAccount) []Account {
	seen := make(map[string]bool, len(raw))
	out := make([]Account, 0, len(raw))
	for _, r := range raw {
		if r.Address == "" || seen[r.Address] {
			continue
		}
		seen[r.Address] = true
		out = append(out, Account{Address: r.Address, Icon: r.Icon, Raw: r.Raw})
	}
	return out
}
