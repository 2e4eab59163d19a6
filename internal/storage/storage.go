// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/contract-observer/internal/models"
)

// Storage is the persistence contract the engine depends on. All writes are
// single-row upserts or inserts scoped to one contract, so implementations
// only need per-statement atomicity to be safe for concurrent use.
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Monitored contract operations
	UpsertMonitoredContract(ctx context.Context, contract *models.MonitoredContract) error
	DeactivateMonitoredContract(ctx context.Context, address string, chainID uint64, stoppedAt time.Time) error
	GetMonitoredContract(ctx context.Context, address string, chainID uint64) (*models.MonitoredContract, error)
	// ListMonitoredContracts returns active contracts; an empty userID
	// returns all of them
	ListMonitoredContracts(ctx context.Context, userID string) ([]*models.MonitoredContract, error)

	// Event operations. InsertEvent is idempotent on the event's natural
	// key (address, chain, tx hash, event name, log index); re-delivered
	// logs never create a second logical record.
	InsertEvent(ctx context.Context, event *models.ContractEvent) error
	ListEvents(ctx context.Context, address string, chainID uint64, since time.Time, limit int) ([]*models.ContractEvent, error)

	// State operations; one current row per contract+chain
	UpsertState(ctx context.Context, state *models.ContractState) error
	GetState(ctx context.Context, address string, chainID uint64) (*models.ContractState, error)

	// Alert operations. AcknowledgeAlert returns false both for unknown
	// ids and foreign-owned alerts.
	InsertAlert(ctx context.Context, alert *models.ContractAlert) error
	AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error)
	ListAlerts(ctx context.Context, userID, address string, limit int) ([]*models.ContractAlert, error)
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	EventQueryCap    int           `json:"event_query_cap"`
}

// DefaultEventQueryCap bounds ListEvents result size when no cap is
// configured
const DefaultEventQueryCap = 1000

func (c *StorageConfig) eventCap() int {
	if c.EventQueryCap > 0 {
		return c.EventQueryCap
	}
	return DefaultEventQueryCap
}
