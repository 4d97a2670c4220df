// Package beaconclient talks to one or more beacon nodes: REST calls for
// sync status and proposer duties, and a reconnecting SSE subscription for
// head / payload-attributes events.
package beaconclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/r3labs/sse/v2"
	"github.com/sirupsen/logrus"

	"github.com/gattaca-com/preconf-rpc/common"
)

const (
	requestTimeout   = 5 * time.Second
	sseReconnectWait = 500 * time.Millisecond
)

// BeaconClient talks to a single beacon node.
type BeaconClient struct {
	log     *logrus.Entry
	baseURL string
	http    *http.Client
}

// New creates a BeaconClient for baseURL with the spec-mandated 5s REST
// timeout.
func New(log *logrus.Entry, baseURL string) *BeaconClient {
	return &BeaconClient{
		log:     log.WithField("component", "beaconClient").WithField("url", baseURL),
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// URL returns the beacon node's base URL.
func (c *BeaconClient) URL() string {
	return c.baseURL
}

func (c *BeaconClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &common.APIError{Message: fmt.Sprintf("%s: status %d: %s", path, resp.StatusCode, string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// SyncStatus returns the beacon node's current sync status.
func (c *BeaconClient) SyncStatus(ctx context.Context) (*common.SyncStatus, error) {
	var resp common.BeaconResponse[common.SyncStatus]
	if err := c.get(ctx, "/eth/v1/node/syncing", &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetProposerDuties returns the dependent root and proposer duties for
// epoch.
func (c *BeaconClient) GetProposerDuties(ctx context.Context, epoch uint64) (dependentRoot [32]byte, duties []common.ProposerDuty, err error) {
	var resp common.BeaconResponse[[]common.ProposerDuty]
	path := fmt.Sprintf("/eth/v1/validator/duties/proposer/%d", epoch)
	if err = c.get(ctx, path, &resp); err != nil {
		return dependentRoot, nil, err
	}

	rootRaw, ok := resp.Meta["dependent_root"]
	if !ok {
		return dependentRoot, nil, common.ErrMissingExpectedData
	}
	var rootHex string
	if err = json.Unmarshal(rootRaw, &rootHex); err != nil {
		return dependentRoot, nil, fmt.Errorf("%w: dependent_root: %v", common.ErrMissingExpectedData, err)
	}
	b, err := hexutil.Decode(rootHex)
	if err != nil || len(b) != 32 {
		return dependentRoot, nil, fmt.Errorf("%w: dependent_root is not a 32-byte hex blob", common.ErrMissingExpectedData)
	}
	copy(dependentRoot[:], b)

	return dependentRoot, resp.Data, nil
}

// SubscribeHeadEvents subscribes to the "head" SSE topic and invokes publish
// for every decoded event, reconnecting with a 500ms backoff until ctx is
// canceled. It never returns until ctx is done.
func (c *BeaconClient) SubscribeHeadEvents(ctx context.Context, publish func(common.HeadEvent)) {
	subscribeSSE(ctx, c, "head", publish)
}

// SubscribePayloadAttributesEvents subscribes to the optional
// "payload_attributes" SSE topic.
func (c *BeaconClient) SubscribePayloadAttributesEvents(ctx context.Context, publish func(common.PayloadAttributesEvent)) {
	subscribeSSE(ctx, c, "payload_attributes", publish)
}

// subscribeSSE implements the infinite reconnect loop described in spec
// §4.1: open `<base>/eth/v1/events?topics=<topic>`, decode every received
// event's data as T, whatever its event name, and hand it to publish; on stream error or clean end,
// close and retry after 500ms. Parse errors are logged and skipped, never
// closing the stream.
func subscribeSSE[T any](ctx context.Context, c *BeaconClient, topic string, publish func(T)) {
	url := fmt.Sprintf("%s/eth/v1/events?topics=%s", c.baseURL, topic)
	log := c.log.WithField("topic", topic)

	for {
		if ctx.Err() != nil {
			return
		}

		client := sse.NewClient(url)
		events := make(chan *sse.Event)

		subCtx, cancelSub := context.WithCancel(ctx)
		go func() {
			if err := client.SubscribeChanRawWithContext(subCtx, events); err != nil {
				log.WithError(err).Warn("sse subscription ended")
			}
		}()

	readLoop:
		for {
			select {
			case <-ctx.Done():
				cancelSub()
				return
			case msg, ok := <-events:
				if !ok {
					break readLoop
				}
				var data T
				if err := json.Unmarshal(msg.Data, &data); err != nil {
					log.WithError(err).Error("could not parse sse event, skipping")
					continue
				}
				publish(data)
			}
		}

		cancelSub()
		log.Debug("sse stream ended, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(sseReconnectWait):
		}
	}
}
