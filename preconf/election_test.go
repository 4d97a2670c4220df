package preconf

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignedPreconferElectionUnmarshal(t *testing.T) {
	raw := `{
		"message": {
			"preconfer_pubkey": "0xab7f3ed5f4f9d6136b90c22eeae38faa892036971e1a0245a5472da57ae7fcf6ba29d55dd4d162301fb256822e46261c",
			"slot_number": "100",
			"chain_id": "1",
			"gas_limit": "30000000"
		},
		"signature": "0xb0e5de25d69dd5670fd62be0404cb6d5eb34926a10f10f36f1d6a3d7d37e32887b2ae2f82dd2bb6e9b22319c04e55a6e1766f9c7dd17fcdcc9c08eadb2d0c18d89edac91f6ba3d4b1a42a29c7320365a03162ce931c426f7e02ccd2292fac92c"
	}`

	var e SignedPreconferElection
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	require.Equal(t, uint64(100), e.Slot())
	require.Equal(t, uint64(1), e.ChainID())
	require.Equal(t, uint64(30000000), e.GasLimit())
	require.Equal(t,
		"0xab7f3ed5f4f9d6136b90c22eeae38faa892036971e1a0245a5472da57ae7fcf6ba29d55dd4d162301fb256822e46261c",
		e.PreconferPubkey().String())
}
