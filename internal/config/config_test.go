// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Chains: []ChainConfig{
			{ChainID: 31, Name: "testnet", NodeURL: "wss://node"},
		},
		Storage: StorageConfig{Type: "memory"},
		Sampler: SamplerConfig{
			Interval:        30 * time.Second,
			OwnerSampleSize: 50,
		},
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cfg := validConfig()
	cfg.Chains = nil
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Chains[0].NodeURL = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Chains = append(cfg.Chains, cfg.Chains[0])
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage = StorageConfig{Type: "sqlite", ConnectionString: ""}
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Sampler.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Sampler.OwnerSampleSize = 0
	assert.Error(t, cfg.Validate())
}
