// Package solwire provides a headless wallet-connection client for the
// Solana ecosystem. It tracks wallet discovery, connection lifecycle,
// account and cluster selection, persistence of the last-used wallet and
// network, and emits typed lifecycle events for observability consumers.
//
// # Architecture
//
// Solwire is organized around a small set of collaborating components:
//
//  1. Wallet registry (pkg/wallet, pkg/wallet/registry): normalizes any
//     number of wallet-discovery sources into a deduplicated, ordered list
//     of wallet descriptors with capability-derived connectable flags.
//
//  2. State store (pkg/state): the single owner of the connector state
//     aggregate. Partial updates are structurally diffed, no-op updates are
//     suppressed, and subscriber notifications are coalesced on a short
//     debounce window unless the update is flagged immediate.
//
//  3. Lifecycle client (pkg/client): orchestrates connect, disconnect,
//     account selection and cluster switching, including silent
//     auto-reconnect on startup and account-change tracking.
//
//  4. Event bus (pkg/events): fire-and-forget lifecycle events, decoupled
//     from state snapshot subscribers.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/solwire/solwire/pkg/client"
//	    "github.com/solwire/solwire/pkg/config"
//	)
//
//	cfg := config.NewDefaultConfig()
//	c, err := client.New(cfg, client.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Connect(context.Background(), "Phantom"); err != nil {
//	    log.Fatal(err)
//	}
//
// Wallet cryptography, transaction construction and RPC mutation are out of
// scope and delegated to the wallet itself and external chain clients.
package solwire
