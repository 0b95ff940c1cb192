package wallet

import (
	"context"

	"github.com/solwire/solwire/pkg/errors"
)

// LegacyProvider is a directly-injected wallet object predating the
// discovery standard. Its connect result is loosely shaped; address
// extraction goes through the strategy list below instead of inline
// conditionals at the call site.
type LegacyProvider interface {
	Connect(ctx context.Context, silent bool) (interface{}, error)
	Disconnect(ctx context.Context) error
}

// AddressExtractor attempts to pull an address out of one legacy connect
// response shape. Extractors are tried in order; the first hit wins.
type AddressExtractor func(result interface{}) (string, bool)

// DefaultExtractors covers the known legacy response formats:
// a bare address string, {publicKey: "..."}, {publicKey: {address: "..."}}
// and {accounts: [{address: "..."}, ...]}.
func DefaultExtractors() []AddressExtractor {
	return []AddressExtractor{
		extractString,
		extractPublicKeyString,
		extractPublicKeyObject,
		extractFirstAccount,
	}
}

func extractString(result interface{}) (string, bool) {
	s, ok := result.(string)
	return s, ok && s != ""
}

func extractPublicKeyString(result interface{}) (string, bool) {
	m, ok := result.(map[string]interface{})
	if !ok {
		return "", false
	}
	s, ok := m["publicKey"].(string)
	return s, ok && s != ""
}

func extractPublicKeyObject(result interface{}) (string, bool) {
	m, ok := result.(map[string]interface{})
	if !ok {
		return "", false
	}
	pk, ok := m["publicKey"].(map[string]interface{})
	if !ok {
		return "", false
	}
	s, ok := pk["address"].(string)
	return s, ok && s != ""
}

func extractFirstAccount(result interface{}) (string, bool) {
	m, ok := result.(map[string]interface{})
	if !ok {
		return "", false
	}
	accounts, ok := m["accounts"].([]interface{})
	if !ok || len(accounts) == 0 {
		return "", false
	}
	entry, ok := accounts[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	s, ok := entry["address"].(string)
	return s, ok && s != ""
}

// legacyHandle wraps a LegacyProvider as a standard Handle with connect
// and disconnect capabilities. It is the minimal capability wrapper the
// instant reconnect path synthesizes around direct injection points.
type legacyHandle struct {
	name       string
	icon       string
	chains     []string
	provider   LegacyProvider
	extractors []AddressExtractor

	lastAddress string
}

// NewLegacyHandle wraps a directly-injected provider as a Handle. A nil
// extractor list selects DefaultExtractors.
func NewLegacyHandle(name, icon string, chains []string, provider LegacyProvider, extractors []AddressExtractor) Handle {
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	return &legacyHandle{
		name:       name,
		icon:       icon,
		chains:     chains,
		provider:   provider,
		extractors: extractors,
	}
}

func (h *legacyHandle) Name() string     { return h.name }
func (h *legacyHandle) Icon() string     { return h.icon }
func (h *legacyHandle) Chains() []string { return h.chains }

func (h *legacyHandle) Features() map[string]interface{} {
	return map[string]interface{}{
		FeatureConnect:    ConnectFeature(h),
		FeatureDisconnect: DisconnectFeature(h),
	}
}

func (h *legacyHandle) Accounts() []RawAccount {
	if h.lastAddress == "" {
		return nil
	}
	return []RawAccount{{Address: h.lastAddress}}
}

// Connect invokes the provider and runs the extraction strategies over
// its loosely-shaped result.
func (h *legacyHandle) Connect(ctx context.Context, silent bool) ([]RawAccount, error) {
	result, err := h.provider.Connect(ctx, silent)
	if err != nil {
		return nil, err
	}
	for _, extract := range h.extractors {
		if address, ok := extract(result); ok {
			h.lastAddress = address
			return []RawAccount{{Address: address, Raw: result}}, nil
		}
	}
	return nil, errors.New(errors.ErrorTypeConnection, "unrecognized legacy connect response").
		WithDetail("wallet", h.name)
}

func (h *legacyHandle) Disconnect(ctx context.Context) error {
	h.lastAddress = ""
	return h.provider.Disconnect(ctx)
}
