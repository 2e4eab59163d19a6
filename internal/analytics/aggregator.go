// File: internal/analytics/aggregator.go
package analytics

import (
	"math/big"
	"time"

	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// Window is the lookback over which contract metrics are derived
const Window = 30 * 24 * time.Hour

// ErrNoData reports an empty event window. Callers use it to distinguish an
// idle contract from an unmonitored one.
var ErrNoData = utils.NewAppError(utils.ErrCodeNotFound, "No events in window")

// FunctionCallStats summarizes one event name's activity within the window
type FunctionCallStats struct {
	Count       int     `json:"count"`
	AverageGas  float64 `json:"average_gas"`
	SuccessRate float64 `json:"success_rate"` // percentage
}

// ContractMetrics is the derived operating profile of a contract. Monetary
// fields are native-unit decimal strings converted from wei.
type ContractMetrics struct {
	TotalTransactions       int                          `json:"total_transactions"`
	DailyTransactions       int                          `json:"daily_transactions"`
	WeeklyTransactions      int                          `json:"weekly_transactions"`
	MonthlyTransactions     int                          `json:"monthly_transactions"`
	AverageGasUsed          float64                      `json:"average_gas_used"`
	FailedTransactions      int                          `json:"failed_transactions"`
	TotalValue              string                       `json:"total_value"`
	AverageTransactionValue string                       `json:"average_transaction_value"`
	TotalFeesPaid           string                       `json:"total_fees_paid"`
	AverageFeePerTx         string                       `json:"average_fee_per_tx"`
	FunctionCalls           map[string]FunctionCallStats `json:"function_calls"`
	LastActivity            time.Time                    `json:"last_activity"`
}

// Compute derives metrics from an event window. It is pure: the same events
// and the same now always produce the same result. Metrics are recomputed
// from history on demand instead of being maintained incrementally, so live
// and recomputed values cannot drift apart.
func Compute(events []*models.ContractEvent, now time.Time) (*ContractMetrics, error) {
	if len(events) == 0 {
		return nil, ErrNoData
	}

	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	metrics := &ContractMetrics{
		TotalTransactions: len(events),
		FunctionCalls:     make(map[string]FunctionCallStats),
	}

	var totalGas uint64
	totalValue := new(big.Int)
	valueCount := 0
	totalFees := new(big.Int)

	type callAccum struct {
		count     int
		gas       uint64
		successes int
	}
	calls := make(map[string]*callAccum)

	for _, event := range events {
		if !event.Timestamp.Before(dayAgo) {
			metrics.DailyTransactions++
		}
		if !event.Timestamp.Before(weekAgo) {
			metrics.WeeklyTransactions++
		}
		if !event.Timestamp.Before(monthAgo) {
			metrics.MonthlyTransactions++
		}
		if event.Timestamp.After(metrics.LastActivity) {
			metrics.LastActivity = event.Timestamp
		}

		totalGas += event.GasUsed
		if !event.Success {
			metrics.FailedTransactions++
		}

		if value := event.ValueWei(); value.Sign() > 0 {
			totalValue.Add(totalValue, value)
			valueCount++
		}
		totalFees.Add(totalFees, event.FeeWei())

		accum, ok := calls[event.EventName]
		if !ok {
			accum = &callAccum{}
			calls[event.EventName] = accum
		}
		accum.count++
		accum.gas += event.GasUsed
		if event.Success {
			accum.successes++
		}
	}

	metrics.AverageGasUsed = float64(totalGas) / float64(len(events))

	metrics.TotalValue = WeiToNative(totalValue)
	if valueCount > 0 {
		avgValue := new(big.Int).Div(totalValue, big.NewInt(int64(valueCount)))
		metrics.AverageTransactionValue = WeiToNative(avgValue)
	} else {
		metrics.AverageTransactionValue = "0"
	}

	metrics.TotalFeesPaid = WeiToNative(totalFees)
	avgFee := new(big.Int).Div(totalFees, big.NewInt(int64(len(events))))
	metrics.AverageFeePerTx = WeiToNative(avgFee)

	for name, accum := range calls {
		metrics.FunctionCalls[name] = FunctionCallStats{
			Count:       accum.count,
			AverageGas:  float64(accum.gas) / float64(accum.count),
			SuccessRate: float64(accum.successes) / float64(accum.count) * 100,
		}
	}

	return metrics, nil
}

var weiPerNative = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// WeiToNative converts a wei amount to a native-unit decimal string
func WeiToNative(wei *big.Int) string {
	if wei.Sign() == 0 {
		return "0"
	}
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, weiPerNative)
	return f.Text('f', -1)
}

// NativeValue converts a wei amount to a float64 of native units. Precision
// loss is acceptable for threshold comparisons.
func NativeValue(wei *big.Int) float64 {
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, weiPerNative)
	v, _ := f.Float64()
	return v
}
