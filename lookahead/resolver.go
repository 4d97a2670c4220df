package lookahead

import (
	"fmt"
	"net/url"

	"github.com/gattaca-com/preconf-rpc/common"
)

// URLResolver turns a lookahead Entry into the URL its election should be
// forwarded to, via one of two policies selected once at config load
// (spec §4.6).
type URLResolver interface {
	Resolve(entry Entry) (string, error)
}

// LookaheadURLResolver resolves directly from entry.URL, the one the
// provider set from its preconfer registry (if any) when it wrote the
// entry.
type LookaheadURLResolver struct{}

func (LookaheadURLResolver) Resolve(entry Entry) (string, error) {
	if entry.URL == "" {
		return "", fmt.Errorf("lookahead entry for slot %d has no url", entry.Slot())
	}
	if _, err := url.Parse(entry.URL); err != nil {
		return "", fmt.Errorf("lookahead entry for slot %d has an invalid url: %w", entry.Slot(), err)
	}
	return entry.URL, nil
}

// RegistryURLResolver resolves the election's preconfer pubkey through a
// static map loaded from config.
type RegistryURLResolver struct {
	Registry map[common.BLSPubKey]string
}

func (r RegistryURLResolver) Resolve(entry Entry) (string, error) {
	u, ok := r.Registry[entry.PreconferPubkey()]
	if !ok {
		return "", &common.NoURLForPubkeyError{Pubkey: entry.PreconferPubkey()}
	}
	return u, nil
}
