// File: internal/sampler/sampler.go
package sampler

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/smartdevs17/contract-observer/internal/metrics"
	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/internal/storage"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// Config holds state sampling tunables
type Config struct {
	Interval         time.Duration
	OwnerSampleSize  int
	HeavySampleEvery time.Duration
	ProbeTimeout     time.Duration
}

// DefaultConfig returns sampling defaults
func DefaultConfig() Config {
	return Config{
		Interval:         30 * time.Second,
		OwnerSampleSize:  50,
		HeavySampleEvery: 5 * time.Minute,
		ProbeTimeout:     10 * time.Second,
	}
}

// caller is the client subset the sampler uses
type caller interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Sampler polls one contract's on-chain state on a fixed interval. Each
// probe is attempted independently; a failed probe leaves its field unset
// and never aborts the tick. The expensive NFT owner sampling is gated by a
// rate limiter so its RPC cost stays bounded no matter the tick interval.
type Sampler struct {
	contract  *models.MonitoredContract
	abi       *abi.ABI
	address   common.Address
	client    caller
	storage   storage.Storage
	telemetry *metrics.Manager
	logger    *logrus.Entry
	config    Config

	heavyLimiter *rate.Limiter
}

// NewSampler creates a sampler for one monitored contract
func NewSampler(
	contract *models.MonitoredContract,
	contractABI *abi.ABI,
	client caller,
	store storage.Storage,
	telemetry *metrics.Manager,
	config Config,
) *Sampler {
	return &Sampler{
		contract:  contract,
		abi:       contractABI,
		address:   common.HexToAddress(contract.Address),
		client:    client,
		storage:   store,
		telemetry: telemetry,
		config:    config,
		logger: utils.ComponentLogger("sampler").WithFields(logrus.Fields{
			"address":  contract.Address,
			"chain_id": contract.ChainID,
		}),
		heavyLimiter: rate.NewLimiter(rate.Every(config.HeavySampleEvery), 1),
	}
}

// Run samples immediately, then on every tick until the context ends
func (s *Sampler) Run(ctx context.Context) {
	s.SampleOnce(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SampleOnce(ctx)
		}
	}
}

// SampleOnce performs one sampling pass and persists the snapshot
func (s *Sampler) SampleOnce(ctx context.Context) *models.ContractState {
	start := time.Now()
	chainLabel := strconv.FormatUint(s.contract.ChainID, 10)

	state := &models.ContractState{
		Address:     utils.NormalizeAddress(s.contract.Address),
		ChainID:     s.contract.ChainID,
		Balance:     "0",
		LastUpdated: start,
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	balance, err := s.client.BalanceAt(probeCtx, s.address, nil)
	cancel()
	if err != nil {
		s.logger.WithError(err).Warn("Balance probe failed")
		s.recordRPCError(chainLabel, "balance")
	} else {
		state.Balance = balance.String()
	}

	if s.hasMethod("totalSupply") {
		if supply, err := s.callBigInt(ctx, "totalSupply"); err == nil {
			v := supply.String()
			state.TotalSupply = &v
		} else {
			s.logger.WithError(err).Debug("totalSupply probe failed")
		}
	}
	if s.hasMethod("owner") {
		if owner, err := s.callAddress(ctx, "owner"); err == nil {
			v := owner.Hex()
			state.Owner = &v
		} else {
			s.logger.WithError(err).Debug("owner probe failed")
		}
	}
	if s.hasMethod("paused") {
		if paused, err := s.callBool(ctx, "paused"); err == nil {
			state.Paused = &paused
		} else {
			s.logger.WithError(err).Debug("paused probe failed")
		}
	}

	// NFT-shaped contracts get the expensive derived metrics, rate-limited
	if s.hasMethod("ownerOf") && s.heavyLimiter.Allow() {
		s.sampleOwners(ctx, state, chainLabel)
	}

	if err := s.storage.UpsertState(ctx, state); err != nil {
		s.logger.WithError(err).Error("Failed to persist state snapshot")
	}

	if s.telemetry != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.telemetry.GetPrometheusMetrics().RecordSample(chainLabel, status, time.Since(start))
	}

	return state
}

// sampleOwners estimates total minted supply and unique owner count by
// probing a bounded run of token ids. The result is a statistical
// extrapolation from the sample, not an exact holder count.
func (s *Sampler) sampleOwners(ctx context.Context, state *models.ContractState, chainLabel string) {
	var supply uint64
	if s.hasMethod("totalSupply") {
		if v, err := s.callBigInt(ctx, "totalSupply"); err == nil {
			supply = v.Uint64()
		}
	}
	state.TotalMinted = &supply

	sampleSize := uint64(s.config.OwnerSampleSize)
	if supply > 0 && supply < sampleSize {
		sampleSize = supply
	}

	owners := make(map[string]struct{})
	for id := uint64(1); id <= sampleSize; id++ {
		owner, err := s.callAddressArg(ctx, "ownerOf", new(big.Int).SetUint64(id))
		if err != nil {
			// Token id does not exist; skip it
			continue
		}
		owners[owner.Hex()] = struct{}{}
	}

	estimate := EstimateUniqueOwners(uint64(len(owners)), supply, sampleSize)
	state.UniqueOwners = &estimate
	state.SampleSize = &sampleSize

	if s.telemetry != nil {
		s.telemetry.GetPrometheusMetrics().HeavySamplesTotal.WithLabelValues(chainLabel).Inc()
	}

	s.logger.WithFields(logrus.Fields{
		"total_minted":    supply,
		"sample_size":     sampleSize,
		"distinct_owners": len(owners),
		"unique_owners":   estimate,
	}).Debug("Owner sample completed")
}

// EstimateUniqueOwners extrapolates the distinct-owner count observed in a
// sample to the full supply: ceil(distinct * supply / sampleSize)
func EstimateUniqueOwners(distinct, supply, sampleSize uint64) uint64 {
	if sampleSize == 0 {
		return 0
	}
	return (distinct*supply + sampleSize - 1) / sampleSize
}

func (s *Sampler) hasMethod(name string) bool {
	_, ok := s.abi.Methods[name]
	return ok
}

// call invokes a read-only contract method and unpacks the single result
func (s *Sampler) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := s.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	out, err := s.client.CallContract(callCtx, ethereum.CallMsg{To: &s.address, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return s.abi.Unpack(method, out)
}

func (s *Sampler) callBigInt(ctx context.Context, method string) (*big.Int, error) {
	out, err := s.call(ctx, method)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "Empty call result", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "Unexpected call result type", method)
	}
	return v, nil
}

func (s *Sampler) callAddress(ctx context.Context, method string) (common.Address, error) {
	return s.callAddressArg(ctx, method)
}

func (s *Sampler) callAddressArg(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	out, err := s.call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, utils.NewAppError(utils.ErrCodeBlockchain, "Empty call result", method)
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, utils.NewAppError(utils.ErrCodeBlockchain, "Unexpected call result type", method)
	}
	return v, nil
}

func (s *Sampler) callBool(ctx context.Context, method string) (bool, error) {
	out, err := s.call(ctx, method)
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, utils.NewAppError(utils.ErrCodeBlockchain, "Empty call result", method)
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, utils.NewAppError(utils.ErrCodeBlockchain, "Unexpected call result type", method)
	}
	return v, nil
}

func (s *Sampler) recordRPCError(chainLabel, operation string) {
	if s.telemetry != nil {
		s.telemetry.GetPrometheusMetrics().RecordRPCError(chainLabel, operation)
	}
}
