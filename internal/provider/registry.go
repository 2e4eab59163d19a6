// File: internal/provider/registry.go
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/internal/config"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// Dialer establishes an RPC client connection to a node URL
type Dialer func(ctx context.Context, url string) (Client, error)

// Registry holds one RPC client per configured chain. The chain table is
// fixed at construction; clients are dialed lazily and reused by every
// monitoring task on that chain.
type Registry struct {
	chains map[uint64]*chainEntry
	dialer Dialer
	logger *logrus.Logger
}

type chainEntry struct {
	cfg    config.ChainConfig
	mu     sync.Mutex
	client Client
}

// NewRegistry creates a provider registry from the static chain table
func NewRegistry(chains []config.ChainConfig) *Registry {
	return NewRegistryWithDialer(chains, defaultDialer)
}

// NewRegistryWithDialer creates a registry with a custom dialer, used by
// tests to inject fake clients
func NewRegistryWithDialer(chains []config.ChainConfig, dialer Dialer) *Registry {
	r := &Registry{
		chains: make(map[uint64]*chainEntry, len(chains)),
		dialer: dialer,
		logger: utils.GetLogger(),
	}
	for _, cfg := range chains {
		r.chains[cfg.ChainID] = &chainEntry{cfg: cfg}
	}
	return r
}

// Supported reports whether a chain is in the configured table
func (r *Registry) Supported(chainID uint64) bool {
	_, ok := r.chains[chainID]
	return ok
}

// Chain returns the static configuration for a chain
func (r *Registry) Chain(chainID uint64) (*config.ChainConfig, error) {
	entry, ok := r.chains[chainID]
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeUnsupportedChain,
			"Chain not supported", fmt.Sprintf("chain id %d", chainID))
	}
	return &entry.cfg, nil
}

// Client returns the RPC client for a chain, dialing it on first use.
// Fails with UNSUPPORTED_CHAIN for chains outside the configured table.
func (r *Registry) Client(ctx context.Context, chainID uint64) (Client, error) {
	entry, ok := r.chains[chainID]
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeUnsupportedChain,
			"Chain not supported", fmt.Sprintf("chain id %d", chainID))
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.client != nil {
		return entry.client, nil
	}

	client, err := r.connect(ctx, entry)
	if err != nil {
		return nil, err
	}
	entry.client = client
	return client, nil
}

// connect tries the primary node then each backup node in order
func (r *Registry) connect(ctx context.Context, entry *chainEntry) (Client, error) {
	urls := append([]string{entry.cfg.NodeURL}, entry.cfg.BackupNodes...)
	timeout := entry.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	for _, url := range urls {
		r.logger.WithFields(logrus.Fields{
			"chain_id": entry.cfg.ChainID,
			"url":      url,
		}).Info("Dialing chain node")

		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		client, err := r.dialer(dialCtx, url)
		cancel()
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"chain_id": entry.cfg.ChainID,
				"url":      url,
				"error":    err,
			}).Warn("Chain node dial failed")
			continue
		}

		// Verify the node serves the chain we expect
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		gotID, err := client.ChainID(checkCtx)
		cancel()
		if err != nil {
			client.Close()
			continue
		}
		if gotID.Uint64() != entry.cfg.ChainID {
			client.Close()
			r.logger.WithFields(logrus.Fields{
				"expected": entry.cfg.ChainID,
				"got":      gotID.Uint64(),
				"url":      url,
			}).Warn("Chain ID mismatch, skipping node")
			continue
		}

		r.logger.WithFields(logrus.Fields{
			"chain_id": entry.cfg.ChainID,
			"url":      url,
		}).Info("Connected to chain node")
		return client, nil
	}

	return nil, utils.NewAppError(utils.ErrCodeConnection,
		"Failed to connect to any node",
		fmt.Sprintf("chain id %d", entry.cfg.ChainID))
}

// Close closes every dialed client
func (r *Registry) Close() {
	for _, entry := range r.chains {
		entry.mu.Lock()
		if entry.client != nil {
			entry.client.Close()
			entry.client = nil
		}
		entry.mu.Unlock()
	}
}

func defaultDialer(ctx context.Context, url string) (Client, error) {
	return ethclient.DialContext(ctx, url)
}
