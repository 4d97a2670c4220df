// Package relayclient talks to a single preconf-aware relay: its
// per-slot and per-epoch election endpoints.
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gattaca-com/preconf-rpc/common"
	"github.com/gattaca-com/preconf-rpc/preconf"
)

const (
	requestTimeout = 5 * time.Second

	getPreconferPathPrefix = "/constraints/v1/preconfer/"
	getPreconfersPath      = "/constraints/v1/preconfers"
)

// Config configures a single RelayClient.
type Config struct {
	URL string
	// GetLookaheadEnabled is true if the relay supports fetching the
	// entire epoch's elections in a single call via getPreconfersPath.
	GetLookaheadEnabled bool
}

// Client handles communication with one relay.
type Client struct {
	log    *logrus.Entry
	config Config
	http   *http.Client
}

// New creates a relay Client with the spec-mandated 5s REST timeout.
func New(log *logrus.Entry, config Config) *Client {
	return &Client{
		log:    log.WithField("component", "relayClient").WithField("url", config.URL),
		config: config,
		http:   &http.Client{Timeout: requestTimeout},
	}
}

// URL returns the relay's base URL.
func (c *Client) URL() string {
	return c.config.URL
}

// GetElectedPreconferForSlot fetches the election for a single slot. A 204
// response is reported as (nil, nil).
func (c *Client) GetElectedPreconferForSlot(ctx context.Context, slot uint64) (*preconf.SignedPreconferElection, error) {
	url := fmt.Sprintf("%s%s%d", c.config.URL, getPreconferPathPrefix, slot)
	return c.fetchOne(ctx, url)
}

func (c *Client) fetchOne(ctx context.Context, url string) (*preconf.SignedPreconferElection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error calling relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &common.APIError{Message: fmt.Sprintf("relay responded with status %d", resp.StatusCode)}
	}

	var election preconf.SignedPreconferElection
	if err := json.NewDecoder(resp.Body).Decode(&election); err != nil {
		return nil, fmt.Errorf("decoding election: %w", err)
	}
	return &election, nil
}

// GetElectedPreconferLookahead fetches every currently-known election from
// the relay in one call. A 204 response is reported as (nil, nil).
func (c *Client) GetElectedPreconferLookahead(ctx context.Context) ([]preconf.SignedPreconferElection, error) {
	url := c.config.URL + getPreconfersPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error calling relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &common.APIError{Message: fmt.Sprintf("relay responded with status %d", resp.StatusCode)}
	}

	var elections []preconf.SignedPreconferElection
	if err := json.NewDecoder(resp.Body).Decode(&elections); err != nil {
		return nil, fmt.Errorf("decoding elections: %w", err)
	}
	return elections, nil
}

// GetElectedPreconfersForEpoch returns the known elections for epoch. If
// the relay supports the bulk lookahead endpoint it is used directly and
// its whole response is returned as is, without filtering by epoch;
// otherwise the 32 slots of the epoch are queried individually in parallel
// and the successes are collected (spec §4.3).
func (c *Client) GetElectedPreconfersForEpoch(ctx context.Context, epoch uint64) ([]preconf.SignedPreconferElection, error) {
	if c.config.GetLookaheadEnabled {
		return c.GetElectedPreconferLookahead(ctx)
	}

	epochStartSlot := epoch * common.EpochSlots

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		elections []preconf.SignedPreconferElection
	)

	for i := uint64(0); i < common.EpochSlots; i++ {
		slot := epochStartSlot + i
		wg.Add(1)
		go func(slot uint64) {
			defer wg.Done()

			election, err := c.GetElectedPreconferForSlot(ctx, slot)
			if err != nil {
				c.log.WithError(err).WithField("slot", slot).Debug("failed to fetch preconfer for slot")
				return
			}
			if election == nil {
				return
			}

			mu.Lock()
			elections = append(elections, *election)
			mu.Unlock()
		}(slot)
	}
	wg.Wait()

	if len(elections) == 0 {
		return nil, nil
	}
	return elections, nil
}
