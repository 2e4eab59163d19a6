package models

import (
	"time"
)

// AlertSeverity grades how urgent an alert is
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertTrigger captures the transaction that fired a rule
type AlertTrigger struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}

// ContractAlert is one firing of an alert rule. Alerts are append-only;
// the only mutation is flipping Acknowledged through AcknowledgeAlert.
type ContractAlert struct {
	ID           string        `json:"id" db:"id"`
	Address      string        `json:"address" db:"address"`
	ChainID      uint64        `json:"chain_id" db:"chain_id"`
	Type         string        `json:"type" db:"type"`
	Severity     AlertSeverity `json:"severity" db:"severity"`
	Title        string        `json:"title" db:"title"`
	Message      string        `json:"message" db:"message"`
	Timestamp    time.Time     `json:"timestamp" db:"timestamp"`
	Acknowledged bool          `json:"acknowledged" db:"acknowledged"`
	UserID       string        `json:"user_id" db:"user_id"`
	Trigger      *AlertTrigger `json:"trigger_data,omitempty" db:"trigger_data"`
}
