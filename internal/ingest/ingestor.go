// File: internal/ingest/ingestor.go
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/internal/alerts"
	"github.com/smartdevs17/contract-observer/internal/metrics"
	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/internal/storage"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// Config holds event ingestion tunables
type Config struct {
	ReceiptTimeout   time.Duration
	ResubscribeDelay time.Duration
}

// DefaultConfig returns ingestion defaults
func DefaultConfig() Config {
	return Config{
		ReceiptTimeout:   15 * time.Second,
		ResubscribeDelay: 5 * time.Second,
	}
}

// Ingestor subscribes to one contract's event stream and turns delivered
// logs into persisted ContractEvent records. The subscription is wildcard:
// every event the ABI declares is observed. Logs whose receipt or
// transaction cannot be fetched are dropped with a warning and never
// retried; the gap is observable through LastConfirmedBlock and the
// dropped-events counter.
type Ingestor struct {
	contract  *models.MonitoredContract
	client    provider
	parser    *Parser
	storage   storage.Storage
	engine    *alerts.Engine
	telemetry *metrics.Manager
	logger    *logrus.Entry
	config    Config

	lastConfirmed atomic.Uint64
}

// provider is the client subset the ingestor uses
type provider interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// NewIngestor creates an ingestor for one monitored contract
func NewIngestor(
	contract *models.MonitoredContract,
	contractABI *abi.ABI,
	client provider,
	store storage.Storage,
	engine *alerts.Engine,
	telemetry *metrics.Manager,
	config Config,
) *Ingestor {
	return &Ingestor{
		contract:  contract,
		client:    client,
		parser:    NewParser(contractABI),
		storage:   store,
		engine:    engine,
		telemetry: telemetry,
		config:    config,
		logger: utils.ComponentLogger("ingest").WithFields(logrus.Fields{
			"address":  contract.Address,
			"chain_id": contract.ChainID,
		}),
	}
}

// Run subscribes and processes logs until the context is cancelled. A
// failed subscription is retried after a delay rather than terminating the
// watch.
func (i *Ingestor) Run(ctx context.Context) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(i.contract.Address)},
	}

	for {
		if ctx.Err() != nil {
			return
		}

		logs := make(chan types.Log, 64)
		sub, err := i.client.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			i.logger.WithError(err).Warn("Event subscription failed, retrying")
			if !sleepCtx(ctx, i.config.ResubscribeDelay) {
				return
			}
			continue
		}

		i.logger.Info("Event subscription established")

		if !i.consume(ctx, sub, logs) {
			return
		}
		if !sleepCtx(ctx, i.config.ResubscribeDelay) {
			return
		}
	}
}

// consume drains the subscription. It reports false when the context was
// cancelled and true when the subscription broke and should be re-opened.
func (i *Ingestor) consume(ctx context.Context, sub ethereum.Subscription, logs <-chan types.Log) bool {
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-sub.Err():
			if err != nil {
				i.logger.WithError(err).Warn("Event subscription dropped, resubscribing")
			}
			return true
		case vLog := <-logs:
			i.HandleLog(ctx, vLog)
		}
	}
}

// HandleLog processes one delivered log end to end: enrich with receipt and
// transaction, classify, persist, evaluate alert rules, update telemetry.
// Events for one contract are handled in delivery order.
func (i *Ingestor) HandleLog(ctx context.Context, vLog types.Log) {
	start := time.Now()
	chainLabel := strconv.FormatUint(i.contract.ChainID, 10)

	event, err := i.buildEvent(ctx, vLog)
	if err != nil {
		i.logger.WithError(err).WithFields(logrus.Fields{
			"tx_hash": vLog.TxHash.Hex(),
			"block":   vLog.BlockNumber,
		}).Warn("Dropping event, receipt lookup failed")
		if i.telemetry != nil {
			i.telemetry.GetPrometheusMetrics().RecordEventDropped(chainLabel, "receipt_fetch")
		}
		return
	}

	if err := i.storage.InsertEvent(ctx, event); err != nil {
		// Metrics and alerts still run; durability and computation are
		// separate concerns.
		i.logger.WithError(err).WithField("tx_hash", event.TxHash).Error("Failed to persist event")
	}

	i.engine.EvaluateEvent(ctx, i.contract, event)

	i.lastConfirmed.Store(event.BlockNumber)
	if i.telemetry != nil {
		pm := i.telemetry.GetPrometheusMetrics()
		pm.RecordEventIngested(chainLabel, string(event.EventType))
		pm.RecordEventHandling(chainLabel, time.Since(start))
		pm.LastConfirmedBlock.WithLabelValues(i.contract.Address, chainLabel).Set(float64(event.BlockNumber))
	}

	i.logger.WithFields(logrus.Fields{
		"event":   event.EventName,
		"type":    event.EventType,
		"tx_hash": event.TxHash,
		"block":   event.BlockNumber,
	}).Debug("Event ingested")
}

// buildEvent assembles the canonical event record for one log
func (i *Ingestor) buildEvent(ctx context.Context, vLog types.Log) (*models.ContractEvent, error) {
	receiptCtx, cancel := context.WithTimeout(ctx, i.config.ReceiptTimeout)
	defer cancel()

	receipt, err := i.client.TransactionReceipt(receiptCtx, vLog.TxHash)
	if err != nil {
		return nil, fmt.Errorf("transaction receipt: %w", err)
	}

	tx, _, err := i.client.TransactionByHash(receiptCtx, vLog.TxHash)
	if err != nil {
		return nil, fmt.Errorf("transaction: %w", err)
	}

	gasPrice := receipt.EffectiveGasPrice
	if gasPrice == nil {
		gasPrice = tx.GasPrice()
	}

	eventName, args := i.parser.Parse(vLog)

	event := &models.ContractEvent{
		Address:     utils.NormalizeAddress(i.contract.Address),
		ChainID:     i.contract.ChainID,
		EventName:   eventName,
		EventType:   models.ClassifyEvent(eventName),
		Args:        args,
		GasUsed:     receipt.GasUsed,
		GasPrice:    gasPrice.String(),
		BlockNumber: vLog.BlockNumber,
		TxHash:      vLog.TxHash.Hex(),
		LogIndex:    vLog.Index,
		Timestamp:   time.Now(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
	}

	event.From = stringArg(args, "from")
	event.To = stringArg(args, "to")
	event.TokenID = stringArg(args, "tokenId")
	for _, key := range []string{"value", "amount", "wad"} {
		if v := stringArg(args, key); v != "" {
			event.Value = v
			break
		}
	}

	return event, nil
}

// LastConfirmedBlock returns the highest block whose events this ingestor
// fully processed
func (i *Ingestor) LastConfirmedBlock() uint64 {
	return i.lastConfirmed.Load()
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// sleepCtx waits for the delay unless the context ends first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
