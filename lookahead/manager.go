package lookahead

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gattaca-com/preconf-rpc/broadcast"
	"github.com/gattaca-com/preconf-rpc/common"
)

// managerState models the Initialized -> Running lifecycle of a Manager's
// provider task (spec §4.7, design note: explicit two-state machine,
// re-starts disallowed).
type managerState int

const (
	stateInitialized managerState = iota
	stateRunning
)

// Manager owns one chain's Table, its (pre-built) Provider, and the
// URLResolver policy used to turn elections into forwarding URLs.
type Manager struct {
	log      *logrus.Entry
	table    *Table
	provider Provider
	resolver URLResolver

	mu    sync.Mutex
	state managerState
}

// NewManager builds a Manager in the Initialized state; call RunProvider to
// start serving lookups.
func NewManager(log *logrus.Entry, table *Table, provider Provider, resolver URLResolver) *Manager {
	return &Manager{
		log:      log,
		table:    table,
		provider: provider,
		resolver: resolver,
		state:    stateInitialized,
	}
}

// RunProvider spawns the provider as an independent goroutine, consuming
// sub until ctx is canceled. It fails with common.ErrAlreadyRunning if
// called more than once (spec §4.7).
func (m *Manager) RunProvider(ctx context.Context, sub *broadcast.Subscription[common.HeadEvent]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateInitialized {
		return common.ErrAlreadyRunning
	}
	m.state = stateRunning

	go m.provider.Run(ctx, sub)
	return nil
}

// GetURL resolves the forwarding URL for the next elected preconfer,
// failing with common.ErrNoLookahead if the table has no entry (spec
// §4.7).
func (m *Manager) GetURL() (string, error) {
	entry, ok := m.table.GetNextElectedPreconfer()
	if !ok {
		return "", common.ErrNoLookahead
	}
	return m.resolver.Resolve(entry)
}

// Table exposes the underlying Table, primarily for tests and seeding.
func (m *Manager) Table() *Table {
	return m.table
}
