package models

import (
	"time"
)

// MonitoredContract represents a (contract address, chain) pair registered
// for monitoring by a user
type MonitoredContract struct {
	Address      string     `json:"address" db:"address"`
	ChainID      uint64     `json:"chain_id" db:"chain_id"`
	UserID       string     `json:"user_id" db:"user_id"`
	ABI          string     `json:"abi" db:"abi"`
	TemplateType *string    `json:"template_type,omitempty" db:"template_type"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty" db:"stopped_at"`
	LastCheck    time.Time  `json:"last_check" db:"last_check"`
}

// Key returns the identity of the monitored pair
func (c *MonitoredContract) Key() string {
	return PairKey(c.Address, c.ChainID)
}
