// Package preconf holds the wire types for a preconfer election: the
// message a relay publishes naming the validator pre-elected to accept
// preconfirmations for a slot, and its BLS-signed envelope.
package preconf

import "github.com/gattaca-com/preconf-rpc/common"

// PreconferElection is the signed message body (spec §3).
type PreconferElection struct {
	PreconferPubkey common.BLSPubKey `json:"preconfer_pubkey"`
	SlotNumber      uint64           `json:"slot_number,string"`
	ChainID         uint64           `json:"chain_id,string"`
	GasLimit        uint64           `json:"gas_limit,string"`
}

// SignedPreconferElection wraps a PreconferElection with the BLS signature
// over it. The gateway treats the signature as opaque bytes; it is never
// verified here.
type SignedPreconferElection struct {
	Message   PreconferElection  `json:"message"`
	Signature common.BLSSignature `json:"signature"`
}

// Slot returns the slot this election is valid for.
func (e SignedPreconferElection) Slot() uint64 {
	return e.Message.SlotNumber
}

// PreconferPubkey returns the validator pre-elected to preconfirm.
func (e SignedPreconferElection) PreconferPubkey() common.BLSPubKey {
	return e.Message.PreconferPubkey
}

// ChainID returns the chain this election is valid for.
func (e SignedPreconferElection) ChainID() uint64 {
	return e.Message.ChainID
}

// GasLimit returns the maximum gas used by all preconfirmations under this
// election.
func (e SignedPreconferElection) GasLimit() uint64 {
	return e.Message.GasLimit
}
