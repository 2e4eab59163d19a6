// File: internal/registry/registry.go
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/internal/alerts"
	"github.com/smartdevs17/contract-observer/internal/analytics"
	"github.com/smartdevs17/contract-observer/internal/config"
	"github.com/smartdevs17/contract-observer/internal/ingest"
	"github.com/smartdevs17/contract-observer/internal/metrics"
	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/internal/provider"
	"github.com/smartdevs17/contract-observer/internal/sampler"
	"github.com/smartdevs17/contract-observer/internal/storage"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// StartRequest describes a contract to begin watching
type StartRequest struct {
	Address      string
	ChainID      uint64
	UserID       string
	ABI          string
	TemplateType *string
}

// watch is one running contract monitor: an ingestor goroutine and a
// sampler goroutine sharing a cancelable context
type watch struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Manager owns the set of actively watched contracts. Starting a watch
// persists the registration, attaches an event ingestor and a state
// sampler, and runs them until the watch is stopped or the manager shuts
// down. One watch exists per (address, chain) pair; restarting a pair
// replaces its previous watch.
type Manager struct {
	providers *provider.Registry
	storage   storage.Storage
	engine    *alerts.Engine
	telemetry *metrics.Manager
	logger    *logrus.Entry

	ingestConfig  ingest.Config
	samplerConfig sampler.Config

	mu      sync.Mutex
	watches map[string]*watch
}

// NewManager creates a contract registry manager
func NewManager(
	providers *provider.Registry,
	store storage.Storage,
	engine *alerts.Engine,
	telemetry *metrics.Manager,
	cfg *config.Config,
) *Manager {
	return &Manager{
		providers: providers,
		storage:   store,
		engine:    engine,
		telemetry: telemetry,
		logger:    utils.ComponentLogger("registry"),
		ingestConfig: ingest.Config{
			ReceiptTimeout:   cfg.Ingest.ReceiptTimeout,
			ResubscribeDelay: cfg.Ingest.ResubscribeDelay,
		},
		samplerConfig: sampler.Config{
			Interval:         cfg.Sampler.Interval,
			OwnerSampleSize:  cfg.Sampler.OwnerSampleSize,
			HeavySampleEvery: cfg.Sampler.HeavySampleEvery,
			ProbeTimeout:     cfg.Sampler.ProbeTimeout,
		},
		watches: make(map[string]*watch),
	}
}

// StartMonitoring validates the request, persists the registration and
// attaches the ingest and sampling goroutines. An already-watched pair is
// torn down and replaced.
func (m *Manager) StartMonitoring(ctx context.Context, req *StartRequest) error {
	if !utils.IsValidAddress(req.Address) {
		return utils.NewAppError(utils.ErrCodeValidation, "Invalid contract address", req.Address)
	}
	if !m.providers.Supported(req.ChainID) {
		return utils.NewAppError(utils.ErrCodeUnsupportedChain, "Chain is not configured",
			fmt.Sprintf("chain id %d", req.ChainID))
	}
	if strings.TrimSpace(req.UserID) == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "User id is required")
	}

	contractABI, err := abi.JSON(strings.NewReader(req.ABI))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Invalid contract ABI", err.Error())
	}

	client, err := m.providers.Client(ctx, req.ChainID)
	if err != nil {
		return err
	}

	now := time.Now()
	contract := &models.MonitoredContract{
		Address:      utils.NormalizeAddress(req.Address),
		ChainID:      req.ChainID,
		UserID:       req.UserID,
		ABI:          req.ABI,
		TemplateType: req.TemplateType,
		IsActive:     true,
		StartedAt:    now,
		LastCheck:    now,
	}
	if err := m.storage.UpsertMonitoredContract(ctx, contract); err != nil {
		return err
	}

	m.mu.Lock()
	key := contract.Key()
	if existing, ok := m.watches[key]; ok {
		existing.cancel()
		existing.wg.Wait()
		delete(m.watches, key)
		m.decMonitored()
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	w := &watch{cancel: cancel}

	ing := ingest.NewIngestor(contract, &contractABI, client, m.storage, m.engine, m.telemetry, m.ingestConfig)
	smp := sampler.NewSampler(contract, &contractABI, client, m.storage, m.telemetry, m.samplerConfig)

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		ing.Run(watchCtx)
	}()
	go func() {
		defer w.wg.Done()
		smp.Run(watchCtx)
	}()

	m.watches[key] = w
	m.mu.Unlock()

	if m.telemetry != nil {
		m.telemetry.GetPrometheusMetrics().ContractsMonitored.Inc()
	}

	m.logger.WithFields(logrus.Fields{
		"address":  contract.Address,
		"chain_id": contract.ChainID,
		"user_id":  contract.UserID,
	}).Info("Started monitoring contract")
	return nil
}

// StopMonitoring tears down the watch for a pair and marks its
// registration inactive. Stopping a pair that is not watched is a no-op.
func (m *Manager) StopMonitoring(ctx context.Context, address string, chainID uint64) error {
	key := models.PairKey(address, chainID)

	m.mu.Lock()
	w, ok := m.watches[key]
	if ok {
		delete(m.watches, key)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	w.cancel()
	w.wg.Wait()
	m.decMonitored()

	if err := m.storage.DeactivateMonitoredContract(ctx, address, chainID, time.Now()); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"address":  utils.NormalizeAddress(address),
		"chain_id": chainID,
	}).Info("Stopped monitoring contract")
	return nil
}

// Shutdown stops every running watch without touching stored registrations,
// so a restart can resume them
func (m *Manager) Shutdown() {
	m.mu.Lock()
	watches := m.watches
	m.watches = make(map[string]*watch)
	m.mu.Unlock()

	for _, w := range watches {
		w.cancel()
		w.wg.Wait()
		m.decMonitored()
	}
	m.logger.Info("All contract watches stopped")
}

// ResumeActive restarts watches for every active registration in storage
func (m *Manager) ResumeActive(ctx context.Context) error {
	contracts, err := m.storage.ListMonitoredContracts(ctx, "")
	if err != nil {
		return err
	}
	for _, c := range contracts {
		req := &StartRequest{
			Address:      c.Address,
			ChainID:      c.ChainID,
			UserID:       c.UserID,
			ABI:          c.ABI,
			TemplateType: c.TemplateType,
		}
		if err := m.StartMonitoring(ctx, req); err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"address":  c.Address,
				"chain_id": c.ChainID,
			}).Error("Failed to resume contract watch")
		}
	}
	return nil
}

// GetMetrics computes rolling activity metrics from the stored event
// history of one contract
func (m *Manager) GetMetrics(ctx context.Context, address string, chainID uint64) (*analytics.ContractMetrics, error) {
	now := time.Now()
	events, err := m.storage.ListEvents(ctx, address, chainID, now.Add(-analytics.Window), 0)
	if err != nil {
		return nil, err
	}
	return analytics.Compute(events, now)
}

// GetState returns the latest sampled state, or nil when none was taken yet
func (m *Manager) GetState(ctx context.Context, address string, chainID uint64) (*models.ContractState, error) {
	return m.storage.GetState(ctx, address, chainID)
}

// ListMonitored returns the active registrations, optionally filtered by user
func (m *Manager) ListMonitored(ctx context.Context, userID string) ([]*models.MonitoredContract, error) {
	return m.storage.ListMonitoredContracts(ctx, userID)
}

// ListAlerts returns recent alerts for a user, optionally scoped to one contract
func (m *Manager) ListAlerts(ctx context.Context, userID, address string, limit int) ([]*models.ContractAlert, error) {
	return m.storage.ListAlerts(ctx, userID, address, limit)
}

// AcknowledgeAlert marks an alert acknowledged when it belongs to the user.
// The boolean result reports whether a matching alert existed.
func (m *Manager) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	return m.storage.AcknowledgeAlert(ctx, alertID, userID)
}

// WatchCount reports how many watches are currently running
func (m *Manager) WatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

func (m *Manager) decMonitored() {
	if m.telemetry != nil {
		m.telemetry.GetPrometheusMetrics().ContractsMonitored.Dec()
	}
}
