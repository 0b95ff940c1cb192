package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwire/solwire/pkg/errors"
)

// stubHandle is a configurable Handle for descriptor derivation tests.
type stubHandle struct {
	name     string
	icon     string
	chains   []string
	features map[string]interface{}
	accounts []RawAccount
}

func (s *stubHandle) Name() string                     { return s.name }
func (s *stubHandle) Icon() string                     { return s.icon }
func (s *stubHandle) Chains() []string                 { return s.chains }
func (s *stubHandle) Features() map[string]interface{} { return s.features }
func (s *stubHandle) Accounts() []RawAccount           { return s.accounts }

type stubConnect struct{}

func (stubConnect) Connect(ctx context.Context, silent bool) ([]RawAccount, error) { return nil, nil }

type stubDisconnect struct{}

func (stubDisconnect) Disconnect(ctx context.Context) error { return nil }

func features(names ...string) map[string]interface{} {
	m := make(map[string]interface{}, len(names))
	for _, n := range names {
		switch n {
		case FeatureConnect:
			m[n] = ConnectFeature(stubConnect{})
		case FeatureDisconnect:
			m[n] = DisconnectFeature(stubDisconnect{})
		default:
			m[n] = struct{}{}
		}
	}
	return m
}

func TestMapDescriptorConnectable(t *testing.T) {
	tests := []struct {
		name        string
		chains      []string
		features    map[string]interface{}
		connectable bool
	}{
		{
			name:        "connect and disconnect on solana chain",
			chains:      []string{"solana:mainnet"},
			features:    features(FeatureConnect, FeatureDisconnect),
			connectable: true,
		},
		{
			name:        "missing disconnect",
			chains:      []string{"solana:mainnet"},
			features:    features(FeatureConnect),
			connectable: false,
		},
		{
			name:        "missing connect",
			chains:      []string{"solana:mainnet"},
			features:    features(FeatureDisconnect),
			connectable: false,
		},
		{
			name:        "wrong chain family",
			chains:      []string{"ethereum:mainnet"},
			features:    features(FeatureConnect, FeatureDisconnect),
			connectable: false,
		},
		{
			name:        "mixed chains",
			chains:      []string{"ethereum:mainnet", "solana:devnet"},
			features:    features(FeatureConnect, FeatureDisconnect),
			connectable: true,
		},
		{
			name:        "no chains",
			chains:      nil,
			features:    features(FeatureConnect, FeatureDisconnect),
			connectable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &stubHandle{name: "Phantom", icon: "data:img", chains: tt.chains, features: tt.features}
			d := MapDescriptor(h, "solana")

			assert.Equal(t, "Phantom", d.Name)
			assert.Equal(t, "data:img", d.Icon)
			assert.True(t, d.Installed)
			assert.Equal(t, tt.connectable, d.Connectable)
			assert.Len(t, d.Features, len(tt.features))
		})
	}
}

func TestMapAccountsDedup(t *testing.T) {
	raw := []RawAccount{
		{Address: "addr1", Icon: "a"},
		{Address: "addr2"},
		{Address: "addr1", Icon: "dup"}, // duplicate, first wins
		{Address: ""},                   // dropped
		{Address: "addr3"},
	}

	out := MapAccounts(raw)
	require.Len(t, out, 3)
	assert.Equal(t, "addr1", out[0].Address)
	assert.Equal(t, "a", out[0].Icon)
	assert.Equal(t, "addr2", out[1].Address)
	assert.Equal(t, "addr3", out[2].Address)
}

func TestSupportsChainFamily(t *testing.T) {
	h := &stubHandle{chains: []string{"solana:devnet"}}
	assert.True(t, SupportsChainFamily(h, "solana"))
	assert.False(t, SupportsChainFamily(h, "ethereum"))
}

// fakeLegacyProvider returns a canned result shape.
type fakeLegacyProvider struct {
	result        interface{}
	err           error
	disconnected  bool
	lastSilent    bool
	connectCalled bool
}

func (p *fakeLegacyProvider) Connect(ctx context.Context, silent bool) (interface{}, error) {
	p.connectCalled = true
	p.lastSilent = silent
	return p.result, p.err
}

func (p *fakeLegacyProvider) Disconnect(ctx context.Context) error {
	p.disconnected = true
	return nil
}

func TestLegacyHandleExtraction(t *testing.T) {
	tests := []struct {
		name    string
		result  interface{}
		want    string
		wantErr bool
	}{
		{name: "bare string", result: "addr1", want: "addr1"},
		{name: "publicKey string", result: map[string]interface{}{"publicKey": "addr2"}, want: "addr2"},
		{
			name:   "publicKey object",
			result: map[string]interface{}{"publicKey": map[string]interface{}{"address": "addr3"}},
			want:   "addr3",
		},
		{
			name: "accounts list",
			result: map[string]interface{}{"accounts": []interface{}{
				map[string]interface{}{"address": "addr4"},
			}},
			want: "addr4",
		},
		{name: "unrecognized shape", result: map[string]interface{}{"weird": true}, wantErr: true},
		{name: "empty string", result: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeLegacyProvider{result: tt.result}
			h := NewLegacyHandle("Legacy", "", []string{"solana:mainnet"}, provider, nil)

			connect, ok := ConnectFeatureOf(h)
			require.True(t, ok)

			accounts, err := connect.Connect(context.Background(), true)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
				return
			}
			require.NoError(t, err)
			require.Len(t, accounts, 1)
			assert.Equal(t, tt.want, accounts[0].Address)
			assert.True(t, provider.lastSilent)

			// The handle mirrors the last connect result.
			require.Len(t, h.Accounts(), 1)
			assert.Equal(t, tt.want, h.Accounts()[0].Address)
		})
	}
}

func TestLegacyHandleDisconnectClearsAccounts(t *testing.T) {
	provider := &fakeLegacyProvider{result: "addr1"}
	h := NewLegacyHandle("Legacy", "", []string{"solana:mainnet"}, provider, nil)

	connect, _ := ConnectFeatureOf(h)
	_, err := connect.Connect(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, h.Accounts())

	disconnect, ok := DisconnectFeatureOf(h)
	require.True(t, ok)
	require.NoError(t, disconnect.Disconnect(context.Background()))
	assert.Empty(t, h.Accounts())
	assert.True(t, provider.disconnected)
}

func TestLegacyHandleIsConnectable(t *testing.T) {
	h := NewLegacyHandle("Legacy", "", []string{"solana:mainnet"}, &fakeLegacyProvider{}, nil)
	d := MapDescriptor(h, "solana")
	assert.True(t, d.Connectable, fmt.Sprintf("descriptor: %+v", d))
}
