package beaconclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gattaca-com/preconf-rpc/common"
)

// sseServer writes a handful of "head" SSE messages and then blocks until
// the client disconnects, to exercise the subscribe-and-decode path of the
// SSE loop (the stream never ends on its own, so no reconnect happens).
func sseServer(slots []uint64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "no flush support", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		for _, slot := range slots {
			fmt.Fprintf(w, "event: message\ndata: {\"slot\":\"%d\",\"block\":\"0xab\",\"state\":\"0xcd\"}\n\n", slot)
			flusher.Flush()
		}

		<-r.Context().Done()
	}))
}

func TestSubscribeHeadEventsDeliversDecodedEvents(t *testing.T) {
	srv := sseServer([]uint64{100, 101, 102})
	defer srv.Close()

	c := New(testLogger(), srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan common.HeadEvent, 8)
	go c.SubscribeHeadEvents(ctx, func(e common.HeadEvent) {
		received <- e
	})

	var slots []uint64
	timeout := time.After(1500 * time.Millisecond)
	for len(slots) < 3 {
		select {
		case e := <-received:
			slots = append(slots, e.Slot)
		case <-timeout:
			t.Fatalf("timed out waiting for head events, got %v", slots)
		}
	}

	require.Equal(t, []uint64{100, 101, 102}, slots)
}
