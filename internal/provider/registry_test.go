// File: internal/provider/registry_test.go
package provider

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/contract-observer/internal/config"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

type stubClient struct {
	chainID uint64
	closed  bool
}

func (c *stubClient) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(c.chainID), nil
}

func (c *stubClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}

func (c *stubClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, errors.New("not implemented")
}

func (c *stubClient) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	return nil, false, errors.New("not implemented")
}

func (c *stubClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (c *stubClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (c *stubClient) Close() { c.closed = true }

func chains() []config.ChainConfig {
	return []config.ChainConfig{
		{ChainID: 1, Name: "mainnet", NodeURL: "wss://primary", BackupNodes: []string{"wss://backup"}},
		{ChainID: 31, Name: "testnet", NodeURL: "wss://testnet"},
	}
}

func TestSupportedAndChainLookup(t *testing.T) {
	registry := NewRegistryWithDialer(chains(), nil)

	assert.True(t, registry.Supported(1))
	assert.True(t, registry.Supported(31))
	assert.False(t, registry.Supported(137))

	cfg, err := registry.Chain(1)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Name)

	_, err = registry.Chain(137)
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeUnsupportedChain))
}

func TestClientUnsupportedChain(t *testing.T) {
	registry := NewRegistryWithDialer(chains(), nil)
	_, err := registry.Client(context.Background(), 137)
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeUnsupportedChain))
}

func TestClientDialsLazilyAndReuses(t *testing.T) {
	dials := 0
	registry := NewRegistryWithDialer(chains(), func(ctx context.Context, url string) (Client, error) {
		dials++
		return &stubClient{chainID: 31}, nil
	})

	first, err := registry.Client(context.Background(), 31)
	require.NoError(t, err)
	second, err := registry.Client(context.Background(), 31)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dials)
}

func TestClientFallsBackToBackupNode(t *testing.T) {
	var urls []string
	registry := NewRegistryWithDialer(chains(), func(ctx context.Context, url string) (Client, error) {
		urls = append(urls, url)
		if url == "wss://primary" {
			return nil, errors.New("connection refused")
		}
		return &stubClient{chainID: 1}, nil
	})

	client, err := registry.Client(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, []string{"wss://primary", "wss://backup"}, urls)
}

func TestClientRejectsChainIDMismatch(t *testing.T) {
	// Every node answers with the wrong chain id; the dial must fail rather
	// than accept a misconfigured endpoint
	var handed []*stubClient
	registry := NewRegistryWithDialer(chains(), func(ctx context.Context, url string) (Client, error) {
		c := &stubClient{chainID: 999}
		handed = append(handed, c)
		return c, nil
	})

	_, err := registry.Client(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeConnection))
	for _, c := range handed {
		assert.True(t, c.closed)
	}
}

func TestCloseResetsClients(t *testing.T) {
	stub := &stubClient{chainID: 31}
	dials := 0
	registry := NewRegistryWithDialer(chains(), func(ctx context.Context, url string) (Client, error) {
		dials++
		return stub, nil
	})

	_, err := registry.Client(context.Background(), 31)
	require.NoError(t, err)

	registry.Close()
	assert.True(t, stub.closed)

	// A later request dials again
	_, err = registry.Client(context.Background(), 31)
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
}
