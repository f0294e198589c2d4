package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWaitUntilReturnsAfterTicksCatchUp(t *testing.T) {
	p := New(5*time.Millisecond, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	err := p.WaitUntil(ctx, uint64(20*time.Millisecond))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Now(), uint64(20*time.Millisecond))

	cancel()
	<-done
}

func TestWaitUntilZeroReturnsImmediately(t *testing.T) {
	p := New(time.Hour, time.Now())
	ctx := context.Background()
	require.NoError(t, p.WaitUntil(ctx, 0))
}

func TestWaitUntilRespectsCancel(t *testing.T) {
	p := New(time.Hour, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.WaitUntil(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
