package lookahead

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/gattaca-com/preconf-rpc/broadcast"
	"github.com/gattaca-com/preconf-rpc/common"
	"github.com/gattaca-com/preconf-rpc/relayclient"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

const samplePubkeyHex = "0xab7f3ed5f4f9d6136b90c22eeae38faa892036971e1a0245a5472da57ae7fcf6ba29d55dd4d162301fb256822e46261c"
const sampleSigHex = "0xb0e5de25d69dd5670fd62be0404cb6d5eb34926a10f10f36f1d6a3d7d37e32887b2ae2f82dd2bb6e9b22319c04e55a6e1766f9c7dd17fcdcc9c08eadb2d0c18d89edac91f6ba3d4b1a42a29c7320365a03162ce931c426f7e02ccd2292fac92c"

func relayServerForEpoch(t *testing.T, epoch uint64) (*httptest.Server, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		epochStart := epoch * common.EpochSlots
		fmt.Fprintf(w, `[{"message":{"preconfer_pubkey":%q,"slot_number":"%d","chain_id":"1","gas_limit":"1"},"signature":%q}]`,
			samplePubkeyHex, epochStart, sampleSigHex)
	}))
	return srv, &hits
}

func TestRelayProviderFetchesOnCadence(t *testing.T) {
	srv, hits := relayServerForEpoch(t, 1)
	defer srv.Close()

	relay := relayclient.New(testLogger(), relayclient.Config{URL: srv.URL, GetLookaheadEnabled: true})
	table := NewTable()
	provider := NewRelayProvider(testLogger(), table, []*relayclient.Client{relay}, nil, 6)

	bc := broadcast.New[common.HeadEvent](16)
	sub := bc.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go provider.Run(ctx, sub)

	// slot 5 is not a multiple of 6: no fetch.
	bc.Publish(common.HeadEvent{Slot: 5})
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(hits))

	// slot 6 triggers a fetch for epoch 1 (curr_epoch=0 -> +1).
	bc.Publish(common.HeadEvent{Slot: 6})
	require.Eventually(t, func() bool { return atomic.LoadInt32(hits) == 1 }, time.Second, 10*time.Millisecond)

	entry, ok := table.GetNextElectedPreconfer()
	require.True(t, ok)
	require.Equal(t, uint64(32), entry.Slot())
}

func TestRelayProviderPrunesOnHeadAdvance(t *testing.T) {
	table := NewTable()
	table.Insert(10, entryForSlot(10))
	table.Insert(20, entryForSlot(20))
	table.Insert(30, entryForSlot(30))

	provider := NewRelayProvider(testLogger(), table, nil, nil, 6)
	bc := broadcast.New[common.HeadEvent](16)
	sub := bc.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go provider.Run(ctx, sub)

	bc.Publish(common.HeadEvent{Slot: 25})

	require.Eventually(t, func() bool {
		entry, ok := table.GetNextElectedPreconfer()
		return ok && entry.Slot() == 30
	}, time.Second, 10*time.Millisecond)
}

func TestRelayProviderIgnoresDuplicateAndStaleHeadEvents(t *testing.T) {
	srv, hits := relayServerForEpoch(t, 1)
	defer srv.Close()

	relay := relayclient.New(testLogger(), relayclient.Config{URL: srv.URL, GetLookaheadEnabled: true})
	table := NewTable()
	provider := NewRelayProvider(testLogger(), table, []*relayclient.Client{relay}, nil, 6)

	bc := broadcast.New[common.HeadEvent](16)
	sub := bc.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go provider.Run(ctx, sub)

	// Duplicate delivery of slot 6 from two "beacon nodes" must only
	// trigger one fetch.
	bc.Publish(common.HeadEvent{Slot: 6})
	bc.Publish(common.HeadEvent{Slot: 6})
	bc.Publish(common.HeadEvent{Slot: 3}) // stale, must be ignored

	require.Eventually(t, func() bool { return atomic.LoadInt32(hits) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestNoneProviderNeverWritesAndExitsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bc := broadcast.New[common.HeadEvent](16)
	sub := bc.Subscribe()

	done := make(chan struct{})
	go func() {
		NoneProvider{}.Run(ctx, sub)
		close(done)
	}()

	bc.Publish(common.HeadEvent{Slot: 100})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NoneProvider did not exit on context cancellation")
	}
}
