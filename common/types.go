// Package common holds the BLS key/signature wire types, the slot/epoch
// constants, and the generic beacon-API response envelope shared by the
// beaconclient, relayclient, preconf, and lookahead packages.
package common

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EpochSlots is the number of slots in one epoch.
const EpochSlots = 32

// SlotToEpoch returns the epoch containing slot.
func SlotToEpoch(slot uint64) uint64 {
	return slot / EpochSlots
}

const (
	blsPubKeyLen    = 48
	blsSignatureLen = 96
)

// BLSPubKey is a 48-byte BLS public key, hex-encoded on the wire with a
// leading 0x, the same convention go-ethereum's hexutil types use.
type BLSPubKey [blsPubKeyLen]byte

func (p BLSPubKey) String() string {
	return hexutil.Encode(p[:])
}

func (p BLSPubKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *BLSPubKey) UnmarshalText(input []byte) error {
	b, err := decodeFixed(input, blsPubKeyLen)
	if err != nil {
		return fmt.Errorf("invalid BLS public key: %w", err)
	}
	copy(p[:], b)
	return nil
}

// BLSSignature is a 96-byte BLS signature. The gateway never verifies it; it
// is carried as opaque bytes.
type BLSSignature [blsSignatureLen]byte

func (s BLSSignature) String() string {
	return hexutil.Encode(s[:])
}

func (s BLSSignature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *BLSSignature) UnmarshalText(input []byte) error {
	b, err := decodeFixed(input, blsSignatureLen)
	if err != nil {
		return fmt.Errorf("invalid BLS signature: %w", err)
	}
	copy(s[:], b)
	return nil
}

func decodeFixed(input []byte, length int) ([]byte, error) {
	b, err := hexutil.Decode(string(input))
	if err != nil {
		return nil, err
	}
	if len(b) != length {
		return nil, fmt.Errorf("expected %d bytes, got %d", length, len(b))
	}
	return b, nil
}

// BeaconResponse is the generic `{"data": ..., <metadata fields>}` envelope
// the beacon API wraps every response in. Metadata fields that sit alongside
// `data` (e.g. `dependent_root`, `execution_optimistic`) are captured in Meta
// rather than dropped.
type BeaconResponse[T any] struct {
	Data T
	Meta map[string]json.RawMessage
}

func (r *BeaconResponse[T]) UnmarshalJSON(data []byte) error {
	// First pass: everything, so we can keep metadata fields around `data`.
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dataRaw, ok := raw["data"]
	if !ok {
		return fmt.Errorf("beacon response missing \"data\" field")
	}
	if err := json.Unmarshal(dataRaw, &r.Data); err != nil {
		return err
	}
	delete(raw, "data")
	r.Meta = raw
	return nil
}

// SyncStatus is the decoded body of GET /eth/v1/node/syncing.
type SyncStatus struct {
	HeadSlot     uint64 `json:"head_slot,string"`
	SyncDistance uint64 `json:"sync_distance,string"`
	IsSyncing    bool   `json:"is_syncing"`
}

// ProposerDuty is one entry of GET /eth/v1/validator/duties/proposer/{epoch}.
type ProposerDuty struct {
	PublicKey      BLSPubKey `json:"pubkey"`
	ValidatorIndex uint64    `json:"validator_index,string"`
	Slot           uint64    `json:"slot,string"`
}

// HeadEvent is the payload of the SSE `head` topic.
type HeadEvent struct {
	Slot            uint64 `json:"slot,string"`
	Block           string `json:"block"`
	State           string `json:"state"`
	EpochTransition bool   `json:"epoch_transition"`
}

// PayloadAttributesEvent is the payload of the SSE `payload_attributes` topic.
type PayloadAttributesEvent struct {
	ProposalSlot uint64 `json:"proposal_slot,string"`
}
