// Package config loads and validates the gateway's static TOML
// configuration (spec §6), yielding the immutable, config-derived objects
// the rest of the gateway is built from.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/gattaca-com/preconf-rpc/common"
)

// URLProviderKind selects one of the two URL-resolution policies for a
// chain (spec §4.6).
type URLProviderKind string

const (
	URLProviderLookahead URLProviderKind = "lookahead"
	URLProviderRegistry  URLProviderKind = "registry"
)

// Config is the top-level gateway configuration.
type Config struct {
	BeaconNodes []string         `toml:"beacon-nodes"`
	Lookahead   []ChainLookahead `toml:"lookahead"`
}

// ChainLookahead configures one chain's relays and URL resolution policy.
type ChainLookahead struct {
	ChainID     uint16            `toml:"chain-id"`
	URLProvider URLProviderKind   `toml:"url-provider"`
	Relays      []string          `toml:"relays"`
	Registry    map[string]string `toml:"registry"`

	FetchCadence uint64 `toml:"fetch-cadence"`

	// GetLookaheadEnabled controls whether each of this chain's relay
	// clients uses the bulk /constraints/v1/preconfers endpoint rather
	// than fanning out 32 per-slot calls (spec §4.3). Every relay in the
	// ground-truth system supports the bulk endpoint
	// (original_source/src/lookahead/provider.rs's
	// `RelayClientConfig::new(url, true)`), so it defaults to true when
	// left unset in TOML; an operator can still opt a chain out with
	// `get-lookahead-enabled = false`.
	GetLookaheadEnabled *bool `toml:"get-lookahead-enabled"`

	ParsedRegistry map[common.BLSPubKey]string `toml:"-"`
}

// ResolvedGetLookaheadEnabled returns the effective GetLookaheadEnabled
// value, defaulting to true when the TOML config left it unset.
func (lc *ChainLookahead) ResolvedGetLookaheadEnabled() bool {
	if lc.GetLookaheadEnabled == nil {
		return true
	}
	return *lc.GetLookaheadEnabled
}

// Load reads and validates the TOML config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrConfig, path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(raw), &cfg); err != nil {
		return nil, fmt.Errorf("%w: could not parse configuration file: %v", common.ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field invariants the TOML decoder alone can't
// enforce: registry mode requires a non-empty registry (spec §6), and
// parses the registry's hex pubkeys into common.BLSPubKey.
func (c *Config) Validate() error {
	for i := range c.Lookahead {
		lc := &c.Lookahead[i]

		switch lc.URLProvider {
		case URLProviderLookahead:
			// nothing further to validate
		case URLProviderRegistry:
			if len(lc.Registry) == 0 {
				return fmt.Errorf("%w: chain-id %d: url-provider = \"registry\" requires a non-empty registry", common.ErrConfig, lc.ChainID)
			}
			parsed := make(map[common.BLSPubKey]string, len(lc.Registry))
			for hexKey, url := range lc.Registry {
				var pubkey common.BLSPubKey
				if err := pubkey.UnmarshalText([]byte(hexKey)); err != nil {
					return fmt.Errorf("%w: chain-id %d: invalid registry pubkey %q: %v", common.ErrConfig, lc.ChainID, hexKey, err)
				}
				parsed[pubkey] = url
			}
			lc.ParsedRegistry = parsed
		default:
			return fmt.Errorf("%w: chain-id %d: unknown url-provider %q", common.ErrConfig, lc.ChainID, lc.URLProvider)
		}
	}
	return nil
}
