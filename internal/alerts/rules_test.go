package alerts

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/contract-observer/internal/models"
)

func ruleByID(t *testing.T, id string) Rule {
	t.Helper()
	for _, rule := range Catalog() {
		if rule.ID == id {
			return rule
		}
	}
	t.Fatalf("rule %s not in catalog", id)
	return Rule{}
}

func eth(n int64) string {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18)).String()
}

// history builds n events with the given shape, spread one minute apart
// starting just before now
func history(now time.Time, n int, success bool, gasUsed uint64, value string) []*models.ContractEvent {
	out := make([]*models.ContractEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &models.ContractEvent{
			EventName: "Transfer",
			Timestamp: now.Add(-time.Duration(i+1) * time.Minute),
			Success:   success,
			GasUsed:   gasUsed,
			Value:     value,
			TxHash:    fmt.Sprintf("0x%03d", i),
		})
	}
	return out
}

func TestCatalogIsFixed(t *testing.T) {
	rules := Catalog()
	require.Len(t, rules, 4)

	severities := map[string]models.AlertSeverity{
		"high_gas_usage":            models.SeverityMedium,
		"failed_transactions_spike": models.SeverityHigh,
		"unusual_value_transfer":    models.SeverityCritical,
		"low_contract_balance":      models.SeverityLow,
	}
	for _, rule := range rules {
		want, ok := severities[rule.ID]
		require.True(t, ok, "unexpected rule %s", rule.ID)
		assert.Equal(t, want, rule.Severity)
		assert.NotNil(t, rule.Evaluate)
	}
}

func TestHighGasUsage(t *testing.T) {
	rule := ruleByID(t, "high_gas_usage")
	now := time.Now()

	baseline := history(now, 5, true, 100000, "")

	// 260k > 2.5 * 100k fires
	fired, msg := rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{GasUsed: 260000, Success: true, Timestamp: now},
		History: baseline,
		Now:     now,
	})
	assert.True(t, fired)
	assert.NotEmpty(t, msg)

	// exactly 2.5x does not fire
	fired, _ = rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{GasUsed: 250000, Success: true, Timestamp: now},
		History: baseline,
		Now:     now,
	})
	assert.False(t, fired)
}

func TestHighGasUsageNeedsBaseline(t *testing.T) {
	rule := ruleByID(t, "high_gas_usage")
	now := time.Now()

	// Four prior events are too few to trust the mean
	fired, _ := rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{GasUsed: 1000000, Success: true, Timestamp: now},
		History: history(now, 4, true, 100000, ""),
		Now:     now,
	})
	assert.False(t, fired)

	// Failed events do not contribute to the baseline
	fired, _ = rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{GasUsed: 1000000, Success: true, Timestamp: now},
		History: history(now, 5, false, 100000, ""),
		Now:     now,
	})
	assert.False(t, fired)
}

func TestFailedTransactionsSpike(t *testing.T) {
	rule := ruleByID(t, "failed_transactions_spike")
	now := time.Now()

	// Five prior failures plus a failed trigger crosses the threshold
	fired, msg := rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Success: false, Timestamp: now},
		History: history(now, 5, false, 21000, ""),
		Now:     now,
	})
	assert.True(t, fired)
	assert.Contains(t, msg, "6 failed")

	// Five failures total is not a spike yet
	fired, _ = rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Success: false, Timestamp: now},
		History: history(now, 4, false, 21000, ""),
		Now:     now,
	})
	assert.False(t, fired)

	// A successful trigger does not count toward the spike
	fired, _ = rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Success: true, Timestamp: now},
		History: history(now, 5, false, 21000, ""),
		Now:     now,
	})
	assert.False(t, fired)
}

func TestFailedSpikeIgnoresOldFailures(t *testing.T) {
	rule := ruleByID(t, "failed_transactions_spike")
	now := time.Now()

	old := history(now.Add(-2*time.Hour), 10, false, 21000, "")
	fired, _ := rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Success: false, Timestamp: now},
		History: old,
		Now:     now,
	})
	assert.False(t, fired)
}

func TestUnusualValueSparseHistory(t *testing.T) {
	rule := ruleByID(t, "unusual_value_transfer")
	now := time.Now()

	// Fewer than three prior value transfers: the absolute floor applies
	sparse := history(now, 2, true, 21000, eth(1))

	fired, _ := rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Value: eth(101), Success: true, Timestamp: now},
		History: sparse,
		Now:     now,
	})
	assert.True(t, fired)

	fired, _ = rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Value: eth(99), Success: true, Timestamp: now},
		History: sparse,
		Now:     now,
	})
	assert.False(t, fired)
}

func TestUnusualValueAgainstBaseline(t *testing.T) {
	rule := ruleByID(t, "unusual_value_transfer")
	now := time.Now()

	baseline := history(now, 3, true, 21000, eth(1))

	fired, _ := rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Value: eth(11), Success: true, Timestamp: now},
		History: baseline,
		Now:     now,
	})
	assert.True(t, fired)

	fired, _ = rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Value: eth(9), Success: true, Timestamp: now},
		History: baseline,
		Now:     now,
	})
	assert.False(t, fired)
}

func TestUnusualValueIgnoresZeroValueEvents(t *testing.T) {
	rule := ruleByID(t, "unusual_value_transfer")
	now := time.Now()

	fired, _ := rule.Evaluate(RuleInput{
		Event:   &models.ContractEvent{Value: "", Success: true, Timestamp: now},
		History: history(now, 5, true, 21000, eth(1)),
		Now:     now,
	})
	assert.False(t, fired)
}

func TestLowContractBalance(t *testing.T) {
	rule := ruleByID(t, "low_contract_balance")
	now := time.Now()
	event := &models.ContractEvent{Success: true, Timestamp: now}

	// No state sampled yet
	fired, _ := rule.Evaluate(RuleInput{Event: event, Now: now})
	assert.False(t, fired)

	// Zero balance is treated as drained, not low
	fired, _ = rule.Evaluate(RuleInput{
		Event: event,
		State: &models.ContractState{Balance: "0"},
		Now:   now,
	})
	assert.False(t, fired)

	// 0.005 native sits inside the low band
	fired, msg := rule.Evaluate(RuleInput{
		Event: event,
		State: &models.ContractState{Balance: big.NewInt(5e15).String()},
		Now:   now,
	})
	assert.True(t, fired)
	assert.NotEmpty(t, msg)

	// Exactly the threshold is healthy
	fired, _ = rule.Evaluate(RuleInput{
		Event: event,
		State: &models.ContractState{Balance: big.NewInt(1e16).String()},
		Now:   now,
	})
	assert.False(t, fired)
}
