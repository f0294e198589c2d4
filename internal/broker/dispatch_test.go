package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(n int) (*Dispatcher, *fakeSocket) {
	sock := newFakeSocket()
	d := New(Options{Socket: sock, ExpectedMembers: n})
	return d, sock
}

func hello(delta string, topics ...string) [][]byte {
	blob := "time_delta = " + delta + "\n"
	if len(topics) > 0 {
		blob += "values\n"
		for i, t := range topics {
			blob += "    " + string('0'+byte(i)) + "\n        topic = " + t + "\n"
		}
	}
	return [][]byte{[]byte(blob)}
}

// Scenario 1: barrier release.
func TestScenarioBarrier(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()

	done, err := d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, sock.sentFrames(), "no ACK until both HELLOs arrive")

	done, err = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))
	require.NoError(t, err)
	assert.False(t, done)

	sent := sock.sentFrames()
	require.Len(t, sent, 2)
	assert.Equal(t, msgFrames("A", "ACK", "0", "2"), sent[0])
	assert.Equal(t, msgFrames("B", "ACK", "1", "2"), sent[1])
}

// Scenario 2: simple grant.
func TestScenarioSimpleGrant(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()

	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))
	sock.sent = nil // discard ACKs

	_, err := d.handle(ctx, msgFrames("A", "TIME_REQUEST", "3000000000"))
	require.NoError(t, err)
	assert.Empty(t, sock.sentFrames(), "no grant until both members check in")

	_, err = d.handle(ctx, msgFrames("B", "TIME_REQUEST", "5000000000"))
	require.NoError(t, err)

	sent := sock.sentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, msgFrames("A", "TIME_REQUEST", "3000000000"), sent[0])
	assert.Equal(t, uint64(3000000000), d.fed.TimeGranted())
}

// Scenario 3: publish wakes subscriber.
func TestScenarioPublishWakesSubscriber(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()

	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s", "topic/x")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))
	sock.sent = nil

	_, err := d.handle(ctx, msgFrames("B", "PUBLISH", "topic/x", "value1"))
	require.NoError(t, err)

	sent := sock.sentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, msgFrames("A", "PUBLISH", "topic/x", "value1"), sent[0])
	sock.sent = nil

	_, err = d.handle(ctx, msgFrames("B", "TIME_REQUEST", "10000000000"))
	require.NoError(t, err)
	assert.Empty(t, sock.sentFrames())

	_, err = d.handle(ctx, msgFrames("A", "TIME_REQUEST", "10000000000"))
	require.NoError(t, err)

	sent = sock.sentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, msgFrames("A", "TIME_REQUEST", "1000000000"), sent[0],
		"A must be woken at one granularity past its last step, not at its requested 10s")
}

// Scenario 4: tie.
func TestScenarioTie(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()

	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))
	sock.sent = nil

	_, _ = d.handle(ctx, msgFrames("A", "TIME_REQUEST", "5000000000"))
	_, err := d.handle(ctx, msgFrames("B", "TIME_REQUEST", "5000000000"))
	require.NoError(t, err)

	sent := sock.sentFrames()
	require.Len(t, sent, 2)
	assert.Equal(t, msgFrames("A", "TIME_REQUEST", "5000000000"), sent[0])
	assert.Equal(t, msgFrames("B", "TIME_REQUEST", "5000000000"), sent[1])
}

// Scenario 5: graceful shutdown.
func TestScenarioGracefulShutdown(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()

	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))
	sock.sent = nil

	done, err := d.handle(ctx, msgFrames("A", "BYE"))
	require.NoError(t, err)
	assert.False(t, done)

	done, err = d.handle(ctx, msgFrames("B", "BYE"))
	require.NoError(t, err)
	assert.True(t, done)

	sent := sock.sentFrames()
	require.Len(t, sent, 2)
	assert.Equal(t, msgFrames("A", "BYE"), sent[0])
	assert.Equal(t, msgFrames("B", "BYE"), sent[1])
}

// Scenario 6: fatal from unknown sender.
func TestScenarioFatalFromUnknownSender(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()

	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	sock.sent = nil

	_, err := d.handle(ctx, msgFrames("C", "PUBLISH", "topic/x", "v"))
	require.Error(t, err)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)

	// die() is invoked by Run, not handle; verify the DIE broadcast
	// independently via the dispatcher's die path.
	_ = d.die(fe)
	sent := sock.sentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, msgFrames("A", "DIE"), sent[0])
}

func TestDuplicateHelloIsFatal(t *testing.T) {
	d, _ := newTestDispatcher(2)
	ctx := context.Background()

	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, err := d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	require.Error(t, err)
}

func TestUnknownVerbIsFatal(t *testing.T) {
	d, _ := newTestDispatcher(2)
	ctx := context.Background()
	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))

	_, err := d.handle(ctx, msgFrames("A", "FROBNICATE"))
	require.Error(t, err)
}

func TestVerbBeforeBarrierIsFatal(t *testing.T) {
	d, _ := newTestDispatcher(2)
	ctx := context.Background()
	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))

	_, err := d.handle(ctx, msgFrames("A", "TIME_REQUEST", "0"))
	require.Error(t, err)
}

func TestDuplicateByeWarnsNotFatal(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()
	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))
	sock.sent = nil

	_, err := d.handle(ctx, msgFrames("A", "BYE"))
	require.NoError(t, err)
	assert.Equal(t, 1, d.fed.nProcessing, "A's BYE must decrement n_processing exactly once")

	_, err = d.handle(ctx, msgFrames("A", "BYE"))
	require.NoError(t, err, "duplicate BYE must not be fatal")
	assert.Equal(t, 1, len(d.fed.byes))
	assert.Equal(t, 1, d.fed.nProcessing, "duplicate BYE must not double-decrement n_processing")
	assert.True(t, d.fed.reg.Members()[1].Processing, "B must still be mid-step, unaffected by A's duplicate BYE")
	assert.Empty(t, sock.sentFrames(), "a duplicate BYE must not trigger a spurious grant to B")
}

func TestDieFromRegisteredSenderIsFatal(t *testing.T) {
	d, _ := newTestDispatcher(2)
	ctx := context.Background()
	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))

	_, err := d.handle(ctx, msgFrames("A", "DIE"))
	require.Error(t, err)
}

// TestRunDrivesPacerAndShutsDownGracefully exercises the Dispatcher's Run
// loop directly rather than handle(), so the pacer goroutine armed by
// armPacer actually runs under the errgroup and Run's eg.Wait() actually
// joins it on shutdown. Requesting time 0 throughout keeps WaitUntil
// non-blocking so the test has no reliance on wall-clock timing.
func TestRunDrivesPacerAndShutsDownGracefully(t *testing.T) {
	sock := newFakeSocket(
		append(msgFrames("A", "HELLO"), hello("1s")...),
		append(msgFrames("B", "HELLO"), hello("1s")...),
		msgFrames("A", "TIME_REQUEST", "0"),
		msgFrames("B", "TIME_REQUEST", "0"),
		msgFrames("A", "BYE"),
		msgFrames("B", "BYE"),
	)
	d := New(Options{Socket: sock, ExpectedMembers: 2, RealtimeInterval: time.Millisecond})

	err := d.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, d.Pacer(), "armPacer must have created a pacer once the barrier released")

	sent := sock.sentFrames()
	require.Len(t, sent, 6)
	assert.Equal(t, msgFrames("A", "ACK", "0", "2"), sent[0])
	assert.Equal(t, msgFrames("B", "ACK", "1", "2"), sent[1])
	assert.Equal(t, msgFrames("A", "TIME_REQUEST", "0"), sent[2])
	assert.Equal(t, msgFrames("B", "TIME_REQUEST", "0"), sent[3])
	assert.Equal(t, msgFrames("A", "BYE"), sent[4])
	assert.Equal(t, msgFrames("B", "BYE"), sent[5])
}

func TestPublishWithNoSubscriberIsDropped(t *testing.T) {
	d, sock := newTestDispatcher(2)
	ctx := context.Background()
	_, _ = d.handle(ctx, append(msgFrames("A", "HELLO"), hello("1s")...))
	_, _ = d.handle(ctx, append(msgFrames("B", "HELLO"), hello("1s")...))
	sock.sent = nil

	_, err := d.handle(ctx, msgFrames("B", "PUBLISH", "topic/nobody", "v"))
	require.NoError(t, err)
	assert.Empty(t, sock.sentFrames())
}
