package models

import (
	"math/big"
	"time"
)

// ContractState is the latest sampled on-chain state for a monitored
// contract. All probed fields are optional; a probe that fails leaves its
// field unset and does not abort the sample.
type ContractState struct {
	Address     string     `json:"address" db:"address"`
	ChainID     uint64     `json:"chain_id" db:"chain_id"`
	Balance     string     `json:"balance" db:"balance"`
	Owner       *string    `json:"owner,omitempty" db:"owner"`
	Paused      *bool      `json:"paused,omitempty" db:"paused"`
	TotalSupply *string    `json:"total_supply,omitempty" db:"total_supply"`
	TotalMinted *uint64    `json:"total_minted,omitempty" db:"total_minted"`
	// UniqueOwners is a statistical estimate extrapolated from a bounded
	// ownerOf sample, not an exact holder count.
	UniqueOwners *uint64   `json:"unique_owners,omitempty" db:"unique_owners"`
	SampleSize   *uint64   `json:"sample_size,omitempty" db:"sample_size"`
	LastUpdated  time.Time `json:"last_updated" db:"last_updated"`
}

// BalanceWei returns the native balance as a wei integer
func (s *ContractState) BalanceWei() *big.Int {
	if s.Balance == "" {
		return new(big.Int)
	}
	b, ok := new(big.Int).SetString(s.Balance, 10)
	if !ok {
		return new(big.Int)
	}
	return b
}
