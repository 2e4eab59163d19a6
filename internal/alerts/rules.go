// File: internal/alerts/rules.go
package alerts

import (
	"fmt"
	"time"

	"github.com/smartdevs17/contract-observer/internal/analytics"
	"github.com/smartdevs17/contract-observer/internal/models"
)

// Rule thresholds. These reproduce the fixed rule catalog; they are not
// user-configurable.
const (
	highGasWindow     = time.Hour
	highGasMinEvents  = 5
	highGasMultiplier = 2.5

	failedSpikeWindow    = 30 * time.Minute
	failedSpikeThreshold = 5

	unusualValueWindow     = 24 * time.Hour
	unusualValueMinSample  = 3
	unusualValueAbsolute   = 100.0 // native units
	unusualValueMultiplier = 10.0

	lowBalanceThreshold = 0.01 // native units
)

// RuleInput is everything a rule may consult. History is newest-first and
// excludes the triggering event; State may be nil when no sample exists yet.
type RuleInput struct {
	Event   *models.ContractEvent
	History []*models.ContractEvent
	State   *models.ContractState
	Now     time.Time
}

// Rule is a stateless predicate over a triggering event, its recent history
// window, and the latest sampled state
type Rule struct {
	ID       string
	Severity models.AlertSeverity
	Title    string
	Evaluate func(in RuleInput) (bool, string)
}

// Catalog returns the fixed rule set. Rules run unordered; several may fire
// for the same event.
func Catalog() []Rule {
	return []Rule{
		{
			ID:       "high_gas_usage",
			Severity: models.SeverityMedium,
			Title:    "High gas usage",
			Evaluate: evaluateHighGasUsage,
		},
		{
			ID:       "failed_transactions_spike",
			Severity: models.SeverityHigh,
			Title:    "Failed transaction spike",
			Evaluate: evaluateFailedSpike,
		},
		{
			ID:       "unusual_value_transfer",
			Severity: models.SeverityCritical,
			Title:    "Unusual value transfer",
			Evaluate: evaluateUnusualValue,
		},
		{
			ID:       "low_contract_balance",
			Severity: models.SeverityLow,
			Title:    "Low contract balance",
			Evaluate: evaluateLowBalance,
		},
	}
}

// evaluateHighGasUsage fires when the triggering event burns more than
// 2.5x the mean gas of the successful events in the trailing hour. At least
// five such events are required before the baseline is trusted.
func evaluateHighGasUsage(in RuleInput) (bool, string) {
	cutoff := in.Now.Add(-highGasWindow)
	var count int
	var totalGas uint64
	for _, event := range in.History {
		if event.Timestamp.Before(cutoff) || !event.Success {
			continue
		}
		count++
		totalGas += event.GasUsed
	}
	if count < highGasMinEvents {
		return false, ""
	}
	mean := float64(totalGas) / float64(count)
	if float64(in.Event.GasUsed) <= highGasMultiplier*mean {
		return false, ""
	}
	return true, fmt.Sprintf("Event %s used %d gas, %.1fx the recent average of %.0f",
		in.Event.EventName, in.Event.GasUsed, float64(in.Event.GasUsed)/mean, mean)
}

// evaluateFailedSpike fires when more than five transactions failed inside
// the trailing 30 minutes, the triggering event included.
func evaluateFailedSpike(in RuleInput) (bool, string) {
	cutoff := in.Now.Add(-failedSpikeWindow)
	failed := 0
	if !in.Event.Success {
		failed++
	}
	for _, event := range in.History {
		if event.Timestamp.Before(cutoff) {
			continue
		}
		if !event.Success {
			failed++
		}
	}
	if failed <= failedSpikeThreshold {
		return false, ""
	}
	return true, fmt.Sprintf("%d failed transactions in the last %s", failed, failedSpikeWindow)
}

// evaluateUnusualValue fires on a value transfer that dwarfs recent
// activity: 10x the 24h mean, or above an absolute floor when there is too
// little history to form a baseline.
func evaluateUnusualValue(in RuleInput) (bool, string) {
	value := analytics.NativeValue(in.Event.ValueWei())
	if value <= 0 {
		return false, ""
	}

	cutoff := in.Now.Add(-unusualValueWindow)
	var count int
	var total float64
	for _, event := range in.History {
		if event.Timestamp.Before(cutoff) {
			continue
		}
		prior := analytics.NativeValue(event.ValueWei())
		if prior <= 0 {
			continue
		}
		count++
		total += prior
	}

	if count < unusualValueMinSample {
		if value > unusualValueAbsolute {
			return true, fmt.Sprintf("Transfer of %g exceeds the %g absolute threshold", value, unusualValueAbsolute)
		}
		return false, ""
	}

	mean := total / float64(count)
	if value > unusualValueMultiplier*mean {
		return true, fmt.Sprintf("Transfer of %g is %.1fx the 24h average of %g", value, value/mean, mean)
	}
	return false, ""
}

// evaluateLowBalance fires when the latest sampled native balance sits
// between zero and the low-water mark.
func evaluateLowBalance(in RuleInput) (bool, string) {
	if in.State == nil {
		return false, ""
	}
	balance := analytics.NativeValue(in.State.BalanceWei())
	if balance <= 0 || balance >= lowBalanceThreshold {
		return false, ""
	}
	return true, fmt.Sprintf("Contract balance %g is below %g", balance, lowBalanceThreshold)
}
