package timeengine

import (
	"testing"

	"github.com/beroset/fncs/internal/registry"
	"github.com/stretchr/testify/assert"
)

func newMember(name string, delta, requested uint64) *registry.State {
	return &registry.State{
		Name:             name,
		TimeDelta:        delta,
		TimeRequested:    requested,
		SubscribedTopics: map[string]struct{}{},
	}
}

func TestSimpleGrant(t *testing.T) {
	a := newMember("A", 1e9, 3e9)
	b := newMember("B", 1e9, 5e9)

	granted, actionable := ComputeGrant([]*registry.State{a, b})
	assert.Equal(t, uint64(3e9), granted)

	woken := Wake([]*registry.State{a, b}, granted, actionable)
	assert.Len(t, woken, 1)
	assert.Equal(t, "A", woken[0].Name)
	assert.True(t, a.Processing)
	assert.False(t, b.Processing)
}

func TestPendingMailOverridesRequest(t *testing.T) {
	// A has pending mail and last processed at t=0 with delta=1s, so its
	// actionable time is 1s even though it asked for 10s.
	a := newMember("A", 1e9, 10e9)
	a.MessagesPending = true
	a.TimeLastProcessed = 0
	b := newMember("B", 1e9, 10e9)

	granted, actionable := ComputeGrant([]*registry.State{a, b})
	assert.Equal(t, uint64(1e9), granted)

	woken := Wake([]*registry.State{a, b}, granted, actionable)
	assert.Len(t, woken, 1)
	assert.Equal(t, "A", woken[0].Name)
	assert.False(t, a.MessagesPending, "pending flag must clear on grant")
}

func TestTie(t *testing.T) {
	a := newMember("A", 1e9, 5e9)
	b := newMember("B", 1e9, 5e9)

	granted, actionable := ComputeGrant([]*registry.State{a, b})
	assert.Equal(t, uint64(5e9), granted)

	woken := Wake([]*registry.State{a, b}, granted, actionable)
	assert.Len(t, woken, 2)
}

func TestFastForwardAlignsToGrid(t *testing.T) {
	a := newMember("A", 3e9, 9e9) // delta=3s
	b := newMember("B", 1e9, 2e9) // delta=1s, will be granted first

	granted, actionable := ComputeGrant([]*registry.State{a, b})
	assert.Equal(t, uint64(2e9), granted)

	Wake([]*registry.State{a, b}, granted, actionable)
	// A's last processed was 0; floor(2e9/3e9)*3e9 = 0
	assert.Equal(t, uint64(0), a.TimeLastProcessed)
}

func TestDepartedMemberDoesNotLowerMinimumWithoutPendingMail(t *testing.T) {
	departed := newMember("A", 1e9, registry.MaxTime)
	b := newMember("B", 1e9, 5e9)

	granted, _ := ComputeGrant([]*registry.State{departed, b})
	assert.Equal(t, uint64(5e9), granted)
}

func TestDepartedMemberWithPendingMailCanLowerMinimum(t *testing.T) {
	departed := newMember("A", 1e9, registry.MaxTime)
	departed.MessagesPending = true
	departed.TimeLastProcessed = 0
	b := newMember("B", 1e9, 5e9)

	granted, _ := ComputeGrant([]*registry.State{departed, b})
	assert.Equal(t, uint64(1e9), granted, "departed member's stale mail still contributes")
}

func TestFinishStepTimeRequest(t *testing.T) {
	a := newMember("A", 1e9, 0)
	a.Processing = true
	FinishStep(a, 3e9, 7e9, false)
	assert.Equal(t, uint64(3e9), a.TimeLastProcessed)
	assert.False(t, a.Processing)
	assert.Equal(t, uint64(7e9), a.TimeRequested)
}

func TestFinishStepBye(t *testing.T) {
	a := newMember("A", 1e9, 0)
	a.Processing = true
	FinishStep(a, 3e9, 0, true)
	assert.Equal(t, registry.MaxTime, a.TimeRequested)
}
