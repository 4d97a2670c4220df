package common

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the gateway's error taxonomy (spec §7).
var (
	// ErrBeaconNodeUnavailable is returned when every beacon client in a
	// MultiBeaconClient failed to answer a request.
	ErrBeaconNodeUnavailable = errors.New("no beacon node available")

	// ErrMissingExpectedData is returned when a beacon API response is
	// missing a field the gateway requires (e.g. dependent_root).
	ErrMissingExpectedData = errors.New("missing expected data in response")

	// ErrNoLookahead is returned when the lookahead table has no entry
	// for any current or future slot.
	ErrNoLookahead = errors.New("no lookahead provider found")

	// ErrAlreadyRunning is returned by lookahead.Manager.RunProvider when
	// called more than once.
	ErrAlreadyRunning = errors.New("lookahead provider is already running")

	// ErrConfig wraps fatal configuration load/validation errors.
	ErrConfig = errors.New("config error")
)

// APIError wraps an error envelope returned by an upstream beacon or relay
// node (spec's `Api(msg)` taxonomy member).
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s", e.Message)
}

// NoURLForPubkeyError is returned by the registry URL resolver when a
// pubkey has no known forwarding URL.
type NoURLForPubkeyError struct {
	Pubkey BLSPubKey
}

func (e *NoURLForPubkeyError) Error() string {
	return fmt.Sprintf("could not find key for pubkey %s", e.Pubkey)
}
