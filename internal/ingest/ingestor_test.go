package ingest

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/contract-observer/internal/alerts"
	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/internal/notification"
	"github.com/smartdevs17/contract-observer/internal/storage"
)

const erc20ABI = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]}
]`

const contractAddr = "0x3333333333333333333333333333333333333333"

type fakeProvider struct {
	receipt    *types.Receipt
	receiptErr error
	tx         *types.Transaction
}

func (f *fakeProvider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipt, nil
}

func (f *fakeProvider) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	return f.tx, false, nil
}

func (f *fakeProvider) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not implemented")
}

func monitoredContract() *models.MonitoredContract {
	return &models.MonitoredContract{
		Address:  contractAddr,
		ChainID:  31,
		UserID:   "user-1",
		IsActive: true,
	}
}

func transferLog(t *testing.T, parsed *abi.ABI, txHash string, block uint64, index uint, value *big.Int) types.Log {
	t.Helper()
	return types.Log{
		Address: common.HexToAddress(contractAddr),
		Topics: []common.Hash{
			parsed.Events["Transfer"].ID,
			common.HexToHash("0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
			common.HexToHash("0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
		Index:       index,
	}
}

func newTestIngestor(t *testing.T, client *fakeProvider, store storage.Storage) *Ingestor {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)

	engine := alerts.NewEngine(store, notification.NewLogNotifier(), nil, 0)
	return NewIngestor(monitoredContract(), &parsed, client, store, engine, nil, DefaultConfig())
}

func TestHandleLogPersistsEvent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	client := &fakeProvider{
		receipt: &types.Receipt{
			Status:            types.ReceiptStatusSuccessful,
			GasUsed:           51000,
			EffectiveGasPrice: big.NewInt(2000000000),
		},
		tx: types.NewTx(&types.LegacyTx{Gas: 60000, GasPrice: big.NewInt(1000000000)}),
	}

	ingestor := newTestIngestor(t, client, store)
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)

	vLog := transferLog(t, &parsed, "0xabc1", 4100, 7, big.NewInt(5e17))
	ingestor.HandleLog(ctx, vLog)

	events, err := store.ListEvents(ctx, contractAddr, 31, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "Transfer", event.EventName)
	assert.Equal(t, models.EventTypeTransfer, event.EventType)
	assert.True(t, event.Success)
	assert.Equal(t, uint64(51000), event.GasUsed)
	assert.Equal(t, "2000000000", event.GasPrice)
	assert.Equal(t, big.NewInt(5e17).String(), event.Value)
	assert.Equal(t, uint64(4100), event.BlockNumber)
	assert.Equal(t, uint(7), event.LogIndex)
	assert.NotEmpty(t, event.From)
	assert.NotEmpty(t, event.To)

	assert.Equal(t, uint64(4100), ingestor.LastConfirmedBlock())
}

func TestHandleLogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	client := &fakeProvider{
		receipt: &types.Receipt{
			Status:            types.ReceiptStatusSuccessful,
			GasUsed:           30000,
			EffectiveGasPrice: big.NewInt(1000000000),
		},
		tx: types.NewTx(&types.LegacyTx{Gas: 60000, GasPrice: big.NewInt(1000000000)}),
	}

	ingestor := newTestIngestor(t, client, store)
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)

	vLog := transferLog(t, &parsed, "0xabc2", 4200, 3, big.NewInt(1e18))
	ingestor.HandleLog(ctx, vLog)
	ingestor.HandleLog(ctx, vLog)

	events, err := store.ListEvents(ctx, contractAddr, 31, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHandleLogDropsOnReceiptFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	client := &fakeProvider{receiptErr: errors.New("receipt not found")}

	ingestor := newTestIngestor(t, client, store)
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)

	ingestor.HandleLog(ctx, transferLog(t, &parsed, "0xabc3", 4300, 0, big.NewInt(1)))

	events, err := store.ListEvents(ctx, contractAddr, 31, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, ingestor.LastConfirmedBlock())
}

func TestHandleLogFailedTransaction(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	client := &fakeProvider{
		// Pre-EIP1559 receipt: no effective gas price, fall back to the tx
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 21000},
		tx:      types.NewTx(&types.LegacyTx{Gas: 21000, GasPrice: big.NewInt(1000000000)}),
	}

	ingestor := newTestIngestor(t, client, store)
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)

	ingestor.HandleLog(ctx, transferLog(t, &parsed, "0xabc4", 4400, 0, big.NewInt(1)))

	events, err := store.ListEvents(ctx, contractAddr, 31, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, "1000000000", events[0].GasPrice)
}

func TestHandleLogUnknownTopic(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	client := &fakeProvider{
		receipt: &types.Receipt{
			Status:            types.ReceiptStatusSuccessful,
			GasUsed:           40000,
			EffectiveGasPrice: big.NewInt(1000000000),
		},
		tx: types.NewTx(&types.LegacyTx{Gas: 60000, GasPrice: big.NewInt(1000000000)}),
	}

	ingestor := newTestIngestor(t, client, store)

	vLog := types.Log{
		Address:     common.HexToAddress(contractAddr),
		Topics:      []common.Hash{common.HexToHash("0x1234")},
		Data:        []byte{0x01, 0x02},
		BlockNumber: 4500,
		TxHash:      common.HexToHash("0xabc5"),
	}
	ingestor.HandleLog(ctx, vLog)

	events, err := store.ListEvents(ctx, contractAddr, 31, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Unknown", events[0].EventName)
	assert.Equal(t, models.EventTypeCustom, events[0].EventType)
	assert.Equal(t, true, events[0].Args["raw"])
}
