package lookahead

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gattaca-com/preconf-rpc/broadcast"
	"github.com/gattaca-com/preconf-rpc/common"
	"github.com/gattaca-com/preconf-rpc/preconf"
	"github.com/gattaca-com/preconf-rpc/relayclient"
)

// DefaultFetchCadence is the default interval, in slots, at which the
// provider refetches the next epoch's lookahead. The source this gateway is modeled on hardcodes
// `head_slot % 6 == 0`, giving five to six fetches per 32-slot epoch; that
// behavior is preserved here as the default but is configurable per the
// open question in spec §9.
const DefaultFetchCadence = 6

// Provider is the interface both operating modes (relay-backed, and the
// no-op "None" mode) satisfy (spec §4.5.2).
type Provider interface {
	// Run blocks, processing head events from sub until ctx is canceled.
	Run(ctx context.Context, sub *broadcast.Subscription[common.HeadEvent])
}

// NoneProvider is a no-op provider used in tests and for chains that have
// no lookahead source configured yet. It never writes to any table.
type NoneProvider struct{}

func (NoneProvider) Run(ctx context.Context, sub *broadcast.Subscription[common.HeadEvent]) {
	<-ctx.Done()
}

// RelayProvider ingests head events and relay elections for one chain,
// writing results into its Table (spec §4.5).
type RelayProvider struct {
	log    *logrus.Entry
	table  *Table
	relays []*relayclient.Client

	// preconferRegistry annotates entry.URL from a known pubkey -> URL
	// map; absent keys default to "". This is independent of, and may
	// differ from, the chain's configured URLResolver.
	preconferRegistry map[common.BLSPubKey]string

	fetchCadence uint64

	mu                 sync.Mutex
	headSlot           uint64
	currLookaheadEpoch uint64
}

// NewRelayProvider builds a RelayProvider for relays, annotating entries
// via preconferRegistry (which may be nil/empty). fetchCadence of 0
// defaults to DefaultFetchCadence.
func NewRelayProvider(log *logrus.Entry, table *Table, relays []*relayclient.Client, preconferRegistry map[common.BLSPubKey]string, fetchCadence uint64) *RelayProvider {
	if fetchCadence == 0 {
		fetchCadence = DefaultFetchCadence
	}
	return &RelayProvider{
		log:               log.WithField("component", "lookaheadProvider"),
		table:             table,
		relays:            relays,
		preconferRegistry: preconferRegistry,
		fetchCadence:      fetchCadence,
	}
}

// Run processes head events from sub in receive order until ctx is done
// (spec §4.5 main loop).
func (p *RelayProvider) Run(ctx context.Context, sub *broadcast.Subscription[common.HeadEvent]) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			p.onNewHeadEvent(ctx, event)
		}
	}
}

func (p *RelayProvider) onNewHeadEvent(ctx context.Context, event common.HeadEvent) {
	currEpoch := common.SlotToEpoch(event.Slot)

	p.mu.Lock()
	if event.Slot <= p.headSlot {
		p.mu.Unlock()
		return
	}
	p.headSlot = event.Slot
	headSlot := p.headSlot
	p.mu.Unlock()

	p.log.WithField("head_slot", headSlot).WithField("curr_epoch", currEpoch).Info("received new head event")

	p.table.ClearSlots(headSlot)

	if headSlot%p.fetchCadence == 0 {
		target := currEpoch + 1
		p.log.WithField("head_slot", headSlot).WithField("target_epoch", target).Info("fetching preconfer lookahead")
		p.fetchPreconferLookahead(ctx, target)
	}
}

// fetchPreconferLookahead issues get_elected_preconfers_for_epoch to every
// relay in parallel and upserts every returned election (spec §4.5.1).
func (p *RelayProvider) fetchPreconferLookahead(ctx context.Context, epoch uint64) {
	var wg sync.WaitGroup
	for _, relay := range p.relays {
		wg.Add(1)
		go func(relay *relayclient.Client) {
			defer wg.Done()

			elections, err := relay.GetElectedPreconfersForEpoch(ctx, epoch)
			if err != nil {
				p.log.WithError(err).WithField("relay", relay.URL()).WithField("epoch", epoch).Debug("failed to fetch elected preconfer lookahead")
				return
			}
			for _, election := range elections {
				p.addElectedPreconferToLookahead(election)
			}
		}(relay)
	}
	wg.Wait()

	p.mu.Lock()
	p.currLookaheadEpoch = epoch
	p.mu.Unlock()
}

// addElectedPreconferToLookahead upserts entry for election.Slot(), with
// url taken from the provider's preconfer registry (defaulting to "" if
// unknown). Existing entries for the slot are overwritten; the last writer
// across concurrently-fetching relays wins (spec §4.5.1).
func (p *RelayProvider) addElectedPreconferToLookahead(election preconf.SignedPreconferElection) {
	url := p.preconferRegistry[election.PreconferPubkey()]

	p.log.WithField("slot", election.Slot()).
		WithField("preconfer_pubkey", election.PreconferPubkey()).
		WithField("url", url).
		Debug("preconfer election added to lookahead")

	p.table.Insert(election.Slot(), Entry{URL: url, Election: election})
}
