package beaconclient

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/gattaca-com/preconf-rpc/common"
)

// MultiBeaconClient fans out over several BeaconClient instances: it tries
// the "best" (last-successful) one first for request/response calls and
// subscribes to every one of them for SSE events, since any single beacon
// node's stream can stall or disconnect (spec §4.2).
type MultiBeaconClient struct {
	log     *logrus.Entry
	clients []*BeaconClient

	// bestIndex is the index, into clients, of the instance that most
	// recently answered a get_proposer_duties call successfully.
	bestIndex atomic.Int64
}

// NewMultiBeaconClient wraps clients. The first beacon node supplied is
// "best" until a different one succeeds.
func NewMultiBeaconClient(log *logrus.Entry, clients []*BeaconClient) *MultiBeaconClient {
	return &MultiBeaconClient{
		log:     log.WithField("component", "multiBeaconClient"),
		clients: clients,
	}
}

// clientsByLastResponse clones the client list with the current best
// instance swapped into position 0; the client previously at position 0
// takes the best instance's old index and every other client keeps its
// place (spec §4.2).
func (m *MultiBeaconClient) clientsByLastResponse() []*BeaconClient {
	out := make([]*BeaconClient, len(m.clients))
	copy(out, m.clients)

	idx := int(m.bestIndex.Load())
	if idx != 0 && idx < len(out) {
		out[0], out[idx] = out[idx], out[0]
	}
	return out
}

// SubscribeToHeadEvents spawns one long-lived SSE subscription per beacon
// client; every decoded HeadEvent is forwarded to publish. Because each
// beacon node delivers its own copy of every real event, callers receive
// head events at-least-once with duplicates and MUST be idempotent with
// respect to slot.
func (m *MultiBeaconClient) SubscribeToHeadEvents(ctx context.Context, publish func(common.HeadEvent)) {
	for _, c := range m.clients {
		c := c
		go c.SubscribeHeadEvents(ctx, publish)
	}
}

// SubscribeToPayloadAttributesEvents is the payload_attributes analogue of
// SubscribeToHeadEvents.
func (m *MultiBeaconClient) SubscribeToPayloadAttributesEvents(ctx context.Context, publish func(common.PayloadAttributesEvent)) {
	for _, c := range m.clients {
		c := c
		go c.SubscribePayloadAttributesEvents(ctx, publish)
	}
}

// BestSyncStatus fans sync_status() out to every client in parallel and
// returns the result with the largest head_slot. Ties are broken by
// first-success order (spec testable property 6).
func (m *MultiBeaconClient) BestSyncStatus(ctx context.Context) (*common.SyncStatus, error) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		best *common.SyncStatus
	)

	for _, c := range m.clients {
		wg.Add(1)
		go func(c *BeaconClient) {
			defer wg.Done()

			status, err := c.SyncStatus(ctx)
			if err != nil {
				m.log.WithError(err).WithField("url", c.URL()).Warn("failed to get sync status")
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if best == nil || status.HeadSlot > best.HeadSlot {
				best = status
			}
		}(c)
	}
	wg.Wait()

	if best == nil {
		return nil, common.ErrBeaconNodeUnavailable
	}
	return best, nil
}

// GetProposerDuties tries beacon clients in best-first order, returning the
// first success and promoting that client to "best" for next time. If every
// client fails, the last error observed is returned (or
// ErrBeaconNodeUnavailable if there were no clients to try).
func (m *MultiBeaconClient) GetProposerDuties(ctx context.Context, epoch uint64) (dependentRoot [32]byte, duties []common.ProposerDuty, err error) {
	clients := m.clientsByLastResponse()

	var lastErr error
	for _, c := range clients {
		root, d, e := c.GetProposerDuties(ctx, epoch)
		if e != nil {
			lastErr = e
			m.log.WithError(e).WithField("url", c.URL()).Warn("failed to get proposer duties")
			continue
		}

		m.promote(c)
		return root, d, nil
	}

	if lastErr == nil {
		lastErr = common.ErrBeaconNodeUnavailable
	}
	return dependentRoot, nil, lastErr
}

// promote sets client as the best instance for subsequent calls.
func (m *MultiBeaconClient) promote(client *BeaconClient) {
	for i, c := range m.clients {
		if c == client {
			m.bestIndex.Store(int64(i))
			return
		}
	}
}
