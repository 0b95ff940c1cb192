package client

import (
	"context"

	"github.com/solwire/solwire/pkg/errors"
	"github.com/solwire/solwire/pkg/events"
	"github.com/solwire/solwire/pkg/rpc"
	"github.com/solwire/solwire/pkg/state"
	"go.uber.org/zap"
)

// Transaction status values reported through transaction:updated events.
// They follow the cluster's confirmation levels, with "failed" and
// "timeout" added for terminal non-success outcomes.
const (
	TxStatusProcessed = "processed"
	TxStatusConfirmed = "confirmed"
	TxStatusFinalized = "finalized"
	TxStatusFailed    = "failed"
	TxStatusTimeout   = "timeout"
)

// maxTrackPolls bounds how long a signature is watched before the tracker
// gives up with a timeout status.
const maxTrackPolls = 30

// TrackTransaction starts watching a signature on the active cluster and
// reports its confirmation progress through transaction:tracked and
// transaction:updated events. Tracking is pure instrumentation: it is
// independent of the wallet session and never mutates connection state.
func (c *Client) TrackTransaction(ctx context.Context, signature string) error {
	if signature == "" {
		return errors.New(errors.ErrorTypeValidation, "transaction signature is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "client is closed")
	}
	c.mu.Unlock()

	endpoint := c.ClusterEndpoint()
	if endpoint == "" {
		return errors.New(errors.ErrorTypeCluster, "no active cluster")
	}

	rc, err := c.rpcFor(endpoint)
	if err != nil {
		return err
	}

	c.emit(events.Event{Type: events.TypeTransactionTracked, Signature: signature})
	c.scheduleTxPoll(rc, signature, 0, "")
	return nil
}

// rpcFor returns a cached RPC client for the endpoint, creating one on
// first use. Cached clients are closed with the connector client.
func (c *Client) rpcFor(endpoint string) (*rpc.Client, error) {
	c.rpcMu.Lock()
	defer c.rpcMu.Unlock()

	if rc, ok := c.rpcClients[endpoint]; ok {
		return rc, nil
	}
	rc, err := rpc.NewClient(rpc.DefaultConfig(endpoint), c.logger)
	if err != nil {
		return nil, err
	}
	if c.rpcClients == nil {
		c.rpcClients = make(map[string]*rpc.Client)
	}
	c.rpcClients[endpoint] = rc
	return rc, nil
}

func (c *Client) closeRPCClients() {
	c.rpcMu.Lock()
	clients := c.rpcClients
	c.rpcClients = nil
	c.rpcMu.Unlock()

	for _, rc := range clients {
		rc.Close()
	}
}

// scheduleTxPoll arms one poll timer and retains it so Close can cancel
// outstanding trackers.
func (c *Client) scheduleTxPoll(rc *rpc.Client, signature string, attempt int, lastStatus string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.txTimers == nil {
		c.txTimers = make(map[uint64]state.Timer)
	}
	id := c.txNextID
	c.txNextID++
	c.txTimers[id] = c.clock.AfterFunc(c.cfg.Polling.Interval, func() {
		c.mu.Lock()
		delete(c.txTimers, id)
		c.mu.Unlock()
		c.pollTransaction(rc, signature, attempt, lastStatus)
	})
}

// pollTransaction reads the signature status once and emits an update on
// every transition. Finalized and failed are terminal; an unknown or
// unconfirmed signature is retried until the poll budget runs out.
func (c *Client) pollTransaction(rc *rpc.Client, signature string, attempt int, lastStatus string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	status, err := c.fetchTxStatus(rc, signature)
	if err != nil && !errors.IsRetryable(err) {
		c.logger.Warn("transaction tracking aborted",
			zap.String("signature", signature), zap.Error(err))
		return
	}
	if status != "" && status != lastStatus {
		c.emit(events.Event{Type: events.TypeTransactionUpdated, Signature: signature, Status: status})
		lastStatus = status
	}

	if status == TxStatusFinalized || status == TxStatusFailed {
		return
	}

	attempt++
	if attempt >= maxTrackPolls {
		c.logger.Warn("transaction tracking timed out", zap.String("signature", signature))
		c.emit(events.Event{Type: events.TypeTransactionUpdated, Signature: signature, Status: TxStatusTimeout})
		return
	}
	c.scheduleTxPoll(rc, signature, attempt, lastStatus)
}

// fetchTxStatus maps one status fetch to a reportable status string.
// Retryable fetch failures and unknown signatures report nothing; the
// next poll tries again.
func (c *Client) fetchTxStatus(rc *rpc.Client, signature string) (string, error) {
	statuses, err := rc.GetSignatureStatuses(context.Background(), []string{signature})
	if err != nil {
		c.logger.Debug("signature status fetch failed",
			zap.String("signature", signature), zap.Error(err))
		return "", err
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return "", nil
	}
	if statuses[0].Err != nil {
		return TxStatusFailed, nil
	}
	return statuses[0].ConfirmationStatus, nil
}
