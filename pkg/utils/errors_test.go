package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	err := NewAppError(ErrCodeValidation, "Invalid contract address", "0x123")
	assert.Equal(t, "VALIDATION_ERROR: Invalid contract address (0x123)", err.Error())

	err = NewAppError(ErrCodeNotFound, "No events in window")
	assert.Equal(t, "NOT_FOUND: No events in window", err.Error())
}

func TestHasCode(t *testing.T) {
	err := NewAppError(ErrCodeUnsupportedChain, "Chain not supported")
	assert.True(t, HasCode(err, ErrCodeUnsupportedChain))
	assert.False(t, HasCode(err, ErrCodeDatabase))

	// Works through wrapping
	wrapped := fmt.Errorf("start monitoring: %w", err)
	assert.True(t, HasCode(wrapped, ErrCodeUnsupportedChain))

	assert.False(t, HasCode(nil, ErrCodeDatabase))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrCodeDatabase))
}

func TestAddressHelpers(t *testing.T) {
	assert.True(t, IsValidAddress("0x1111111111111111111111111111111111111111"))
	assert.False(t, IsValidAddress("not-an-address"))
	assert.False(t, IsValidAddress("0x123"))
	assert.False(t, IsValidAddress(""))

	assert.Equal(t, "0xabcdef1234567890abcdef1234567890abcdef12",
		NormalizeAddress("0xABCDEF1234567890ABCDEF1234567890ABCDEF12"))
}
