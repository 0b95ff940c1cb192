// Package cluster defines the fixed set of selectable Solana networks.
// A cluster is a named network endpoint configuration; the set is
// established once at client construction and never mutated at runtime.
package cluster

import (
	"github.com/solwire/solwire/pkg/errors"
)

// Well-known cluster ids. The "solana:" prefix is the chain family
// identifier shared with wallet chain advertisements.
const (
	MainnetID  = "solana:mainnet"
	DevnetID   = "solana:devnet"
	TestnetID  = "solana:testnet"
	LocalnetID = "solana:localnet"
)

// ChainFamily is the substring a wallet chain identifier must contain to
// be considered compatible with this client.
const ChainFamily = "solana"

// Cluster is a named network endpoint configuration.
type Cluster struct {
	// ID uniquely identifies the cluster (e.g., "solana:devnet")
	ID string `yaml:"id" json:"id"`
	// Label is a human-readable name for UI surfaces
	Label string `yaml:"label" json:"label"`
	// Endpoint is the RPC URL external chain clients should consume
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// Set is an immutable, ordered collection of selectable clusters.
// Construct it once and share it; lookups are pure reads.
type Set struct {
	clusters []Cluster
	byID     map[string]Cluster
}

// NewSet builds a Set from the given clusters. Order is preserved.
// Duplicate ids are rejected.
func NewSet(clusters []Cluster) (*Set, error) {
	byID := make(map[string]Cluster, len(clusters))
	ordered := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		if c.ID == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "cluster id is required")
		}
		if c.Endpoint == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "cluster endpoint is required").
				WithDetail("cluster", c.ID)
		}
		if _, exists := byID[c.ID]; exists {
			return nil, errors.New(errors.ErrorTypeValidation, "duplicate cluster id").
				WithDetail("cluster", c.ID)
		}
		byID[c.ID] = c
		ordered = append(ordered, c)
	}
	return &Set{clusters: ordered, byID: byID}, nil
}

// Lookup returns the cluster for the given id.
func (s *Set) Lookup(id string) (Cluster, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Contains reports whether the id belongs to the set.
func (s *Set) Contains(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// All returns the clusters in configuration order. The returned slice is
// a copy; callers may not mutate the set through it.
func (s *Set) All() []Cluster {
	out := make([]Cluster, len(s.clusters))
	copy(out, s.clusters)
	return out
}

// Len returns the number of clusters in the set.
func (s *Set) Len() int {
	return len(s.clusters)
}

// Defaults returns the canonical public cluster configurations.
func Defaults() []Cluster {
	return []Cluster{
		{ID: MainnetID, Label: "Mainnet Beta", Endpoint: "https://api.mainnet-beta.solana.com"},
		{ID: DevnetID, Label: "Devnet", Endpoint: "https://api.devnet.solana.com"},
		{ID: TestnetID, Label: "Testnet", Endpoint: "https://api.testnet.solana.com"},
	}
}
