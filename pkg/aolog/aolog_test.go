package aolog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerbosityKnownBits(t *testing.T) {
	bits, unknown := ParseVerbosity("shop, WHY,pa")
	assert.Empty(t, unknown)
	assert.Equal(t, SHOP|WHY|PA, bits)
}

func TestParseVerbosityReportsUnknownWithoutFailing(t *testing.T) {
	bits, unknown := ParseVerbosity("STD,BOGUS")
	assert.Equal(t, STD, bits)
	assert.Equal(t, []string{"BOGUS"}, unknown)
}

func TestSetupLoggerGatesDebugfByBit(t *testing.T) {
	require := assert.New(t)
	err := SetupLogger(SHOP, true)
	require.NoError(err)
	require.True(Enabled(SHOP))
	require.False(Enabled(PA))
	// Debugf with an ungated bit must not panic even though it's a no-op.
	Debugf(PA, "should not print")
	Debugf(SHOP, "should print")
}
