package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// EventType is a coarse classification of a contract event
type EventType string

const (
	EventTypeMint     EventType = "mint"
	EventTypeTransfer EventType = "transfer"
	EventTypeApproval EventType = "approval"
	EventTypeBurn     EventType = "burn"
	EventTypeError    EventType = "error"
	EventTypeCustom   EventType = "custom"
)

// ContractEvent is one emitted log, normalized and enriched with its
// transaction receipt. Events are immutable once created.
type ContractEvent struct {
	Address     string                 `json:"address" db:"address"`
	ChainID     uint64                 `json:"chain_id" db:"chain_id"`
	EventName   string                 `json:"event_name" db:"event_name"`
	EventType   EventType              `json:"event_type" db:"event_type"`
	From        string                 `json:"from,omitempty" db:"from_address"`
	To          string                 `json:"to,omitempty" db:"to_address"`
	Value       string                 `json:"value,omitempty" db:"value"`
	TokenID     string                 `json:"token_id,omitempty" db:"token_id"`
	Args        map[string]interface{} `json:"args" db:"args"`
	GasUsed     uint64                 `json:"gas_used" db:"gas_used"`
	GasPrice    string                 `json:"gas_price" db:"gas_price"`
	BlockNumber uint64                 `json:"block_number" db:"block_number"`
	TxHash      string                 `json:"tx_hash" db:"tx_hash"`
	LogIndex    uint                   `json:"log_index" db:"log_index"`
	Timestamp   time.Time              `json:"timestamp" db:"timestamp"`
	Success     bool                   `json:"success" db:"success"`
}

// classifications are checked in order; the first match wins
var classifications = []struct {
	substr    string
	eventType EventType
}{
	{"mint", EventTypeMint},
	{"transfer", EventTypeTransfer},
	{"approval", EventTypeApproval},
	{"burn", EventTypeBurn},
	{"error", EventTypeError},
	{"failed", EventTypeError},
}

// ClassifyEvent maps an event name to its coarse type by case-insensitive
// substring match
func ClassifyEvent(eventName string) EventType {
	name := strings.ToLower(eventName)
	for _, c := range classifications {
		if strings.Contains(name, c.substr) {
			return c.eventType
		}
	}
	return EventTypeCustom
}

// ValueWei returns the event value as a wei integer, or zero if unset
func (e *ContractEvent) ValueWei() *big.Int {
	if e.Value == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(e.Value, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// GasPriceWei returns the effective gas price as a wei integer
func (e *ContractEvent) GasPriceWei() *big.Int {
	if e.GasPrice == "" {
		return new(big.Int)
	}
	p, ok := new(big.Int).SetString(e.GasPrice, 10)
	if !ok {
		return new(big.Int)
	}
	return p
}

// FeeWei returns gasUsed * gasPrice in wei
func (e *ContractEvent) FeeWei() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(e.GasUsed), e.GasPriceWei())
}

// NaturalKey identifies a logical event across re-deliveries
func (e *ContractEvent) NaturalKey() string {
	return fmt.Sprintf("%s|%d|%s|%s|%d", strings.ToLower(e.Address), e.ChainID, strings.ToLower(e.TxHash), e.EventName, e.LogIndex)
}

// PairKey returns the canonical map key for a (contract, chain) pair
func PairKey(address string, chainID uint64) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(address), chainID)
}
