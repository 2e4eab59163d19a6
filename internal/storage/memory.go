// File: internal/storage/memory.go
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartdevs17/contract-observer/internal/models"
)

// MemoryStorage implements Storage with in-process maps. It backs tests and
// local development; nothing survives a restart.
type MemoryStorage struct {
	mu        sync.RWMutex
	contracts map[string]*models.MonitoredContract
	events    map[string]*models.ContractEvent
	eventSeq  []string
	states    map[string]*models.ContractState
	alerts    map[string]*models.ContractAlert
	alertSeq  []string
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		contracts: make(map[string]*models.MonitoredContract),
		events:    make(map[string]*models.ContractEvent),
		states:    make(map[string]*models.ContractState),
		alerts:    make(map[string]*models.ContractAlert),
	}
}

func (m *MemoryStorage) Connect() error { return nil }
func (m *MemoryStorage) Close() error   { return nil }
func (m *MemoryStorage) Ping() error    { return nil }
func (m *MemoryStorage) Migrate() error { return nil }

// UpsertMonitoredContract inserts or replaces a monitored contract row
func (m *MemoryStorage) UpsertMonitoredContract(ctx context.Context, contract *models.MonitoredContract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *contract
	m.contracts[contract.Key()] = &clone
	return nil
}

// DeactivateMonitoredContract flips is_active off and records stopped_at
func (m *MemoryStorage) DeactivateMonitoredContract(ctx context.Context, address string, chainID uint64, stoppedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if contract, ok := m.contracts[models.PairKey(address, chainID)]; ok {
		contract.IsActive = false
		st := stoppedAt
		contract.StoppedAt = &st
	}
	return nil
}

// GetMonitoredContract returns one monitored contract, or nil when absent
func (m *MemoryStorage) GetMonitoredContract(ctx context.Context, address string, chainID uint64) (*models.MonitoredContract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contract, ok := m.contracts[models.PairKey(address, chainID)]
	if !ok {
		return nil, nil
	}
	clone := *contract
	return &clone, nil
}

// ListMonitoredContracts returns the active contracts owned by a user; an
// empty userID returns every active contract
func (m *MemoryStorage) ListMonitoredContracts(ctx context.Context, userID string) ([]*models.MonitoredContract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.MonitoredContract
	for _, contract := range m.contracts {
		if (userID == "" || contract.UserID == userID) && contract.IsActive {
			clone := *contract
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// InsertEvent persists one event; duplicates on the natural key are ignored
func (m *MemoryStorage) InsertEvent(ctx context.Context, event *models.ContractEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := event.NaturalKey()
	if _, exists := m.events[key]; exists {
		return nil
	}
	clone := *event
	m.events[key] = &clone
	m.eventSeq = append(m.eventSeq, key)
	return nil
}

// ListEvents returns events newest-first since the given time, capped
func (m *MemoryStorage) ListEvents(ctx context.Context, address string, chainID uint64, since time.Time, limit int) ([]*models.ContractEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > DefaultEventQueryCap {
		limit = DefaultEventQueryCap
	}
	addr := strings.ToLower(address)
	var out []*models.ContractEvent
	for _, key := range m.eventSeq {
		event := m.events[key]
		if strings.ToLower(event.Address) != addr || event.ChainID != chainID {
			continue
		}
		if event.Timestamp.Before(since) {
			continue
		}
		clone := *event
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertState replaces the current state row for a contract
func (m *MemoryStorage) UpsertState(ctx context.Context, state *models.ContractState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *state
	m.states[models.PairKey(state.Address, state.ChainID)] = &clone
	return nil
}

// GetState returns the latest state snapshot, or nil when none was sampled
func (m *MemoryStorage) GetState(ctx context.Context, address string, chainID uint64) (*models.ContractState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[models.PairKey(address, chainID)]
	if !ok {
		return nil, nil
	}
	clone := *state
	return &clone, nil
}

// InsertAlert persists one alert firing
func (m *MemoryStorage) InsertAlert(ctx context.Context, alert *models.ContractAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *alert
	m.alerts[alert.ID] = &clone
	m.alertSeq = append(m.alertSeq, alert.ID)
	return nil
}

// AcknowledgeAlert flips acknowledged for an alert owned by userID
func (m *MemoryStorage) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok || alert.UserID != userID {
		return false, nil
	}
	alert.Acknowledged = true
	return true, nil
}

// ListAlerts returns a user's alerts newest-first, optionally scoped to one
// contract address
func (m *MemoryStorage) ListAlerts(ctx context.Context, userID, address string, limit int) ([]*models.ContractAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	addr := strings.ToLower(address)
	var out []*models.ContractAlert
	for _, id := range m.alertSeq {
		alert := m.alerts[id]
		if alert.UserID != userID {
			continue
		}
		if address != "" && strings.ToLower(alert.Address) != addr {
			continue
		}
		clone := *alert
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
