package brokercfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinimal(t *testing.T) {
	cfg, err := Parse([]string{"2"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ExpectedMembers)
	assert.Zero(t, cfg.RealtimeInterval)
	assert.Equal(t, "tcp://*:5570", cfg.Endpoint)
}

func TestParseWithRealtime(t *testing.T) {
	cfg, err := Parse([]string{"3", "100ms"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ExpectedMembers)
	assert.Equal(t, 100*time.Millisecond, cfg.RealtimeInterval)
}

func TestParseRejectsZeroOrNegative(t *testing.T) {
	_, err := Parse([]string{"0"})
	assert.Error(t, err)
	_, err = Parse([]string{"-1"})
	assert.Error(t, err)
}

func TestParseRejectsMissingOrExtraArgs(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)

	_, err = Parse([]string{"2", "1s", "extra"})
	assert.Error(t, err)
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"Y", "y", "Yes", "T", "t", "true"} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"", "N", "no", "0"} {
		assert.False(t, isTruthy(v), v)
	}
}
