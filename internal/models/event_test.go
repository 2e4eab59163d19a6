package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyEvent(t *testing.T) {
	cases := map[string]EventType{
		"Mint":          EventTypeMint,
		"BatchMint":     EventTypeMint,
		"Transfer":      EventTypeTransfer,
		"TransferFrom":  EventTypeTransfer,
		"Approval":      EventTypeApproval,
		"ApprovalForAll": EventTypeApproval,
		"Burn":          EventTypeBurn,
		"ExecutionError": EventTypeError,
		"TxFailed":      EventTypeError,
		"Paused":        EventTypeCustom,
		"Unknown":       EventTypeCustom,
	}
	for name, want := range cases {
		assert.Equal(t, want, ClassifyEvent(name), "event %s", name)
	}
}

func TestNaturalKeyIsCaseInsensitive(t *testing.T) {
	a := &ContractEvent{Address: "0xABCD", ChainID: 31, TxHash: "0xDEAD", EventName: "Transfer", LogIndex: 2}
	b := &ContractEvent{Address: "0xabcd", ChainID: 31, TxHash: "0xdead", EventName: "Transfer", LogIndex: 2}
	assert.Equal(t, a.NaturalKey(), b.NaturalKey())

	c := &ContractEvent{Address: "0xabcd", ChainID: 31, TxHash: "0xdead", EventName: "Transfer", LogIndex: 3}
	assert.NotEqual(t, a.NaturalKey(), c.NaturalKey())
}

func TestValueAndFeeParsing(t *testing.T) {
	event := &ContractEvent{Value: "1500000000000000000", GasUsed: 21000, GasPrice: "1000000000"}
	assert.Equal(t, "1500000000000000000", event.ValueWei().String())
	assert.Equal(t, "21000000000000", event.FeeWei().String())

	// Unset and malformed values come back as zero
	empty := &ContractEvent{}
	assert.Zero(t, empty.ValueWei().Sign())
	bad := &ContractEvent{Value: "not-a-number", GasPrice: "xyz"}
	assert.Zero(t, bad.ValueWei().Sign())
	assert.Zero(t, bad.FeeWei().Sign())
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("0xAbCd", 31), PairKey("0xabcd", 31))
	assert.NotEqual(t, PairKey("0xabcd", 31), PairKey("0xabcd", 1))
}
