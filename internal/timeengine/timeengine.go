// Package timeengine computes the broker's next globally granted
// simulated time from each member's requested time, granularity, and
// pending-mail flag.
package timeengine

import "github.com/beroset/fncs/internal/registry"

// Actionable returns the nanosecond at which member i has real work: one
// granularity past its last grant if it has pending mail (it must be woken
// to drain its inbox), otherwise whatever time it last requested.
func Actionable(s *registry.State) uint64 {
	if s.MessagesPending {
		return s.TimeLastProcessed + s.TimeDelta
	}
	return s.TimeRequested
}

// ComputeGrant returns the next global time_granted — the minimum
// actionable time over every member, departed or not — and the actionable
// vector used to compute it (callers need the vector again in ApplyGrant,
// and recomputing it there would risk it disagreeing with the minimum if a
// member's state changed in between, so it is threaded through explicitly).
//
// A departed member (TimeRequested == registry.MaxTime) can only pull the
// minimum down if it still has pending mail from before it left. This is
// intentional: the minimum is taken over the whole vector, unconditionally,
// departed members included.
func ComputeGrant(members []*registry.State) (granted uint64, actionable []uint64) {
	actionable = make([]uint64, len(members))
	if len(members) == 0 {
		return 0, actionable
	}
	granted = ^uint64(0)
	for i, m := range members {
		a := Actionable(m)
		actionable[i] = a
		if a < granted {
			granted = a
		}
	}
	return granted, actionable
}

// Wake applies a computed grant to every member: members whose actionable
// time equals granted are marked processing and returned for the caller to
// send a TIME_REQUEST grant to; every other member has its
// TimeLastProcessed fast-forwarded to the largest multiple of its
// TimeDelta that is <= granted, keeping the pending-mail arithmetic
// aligned to that member's native grid.
func Wake(members []*registry.State, granted uint64, actionable []uint64) (woken []*registry.State) {
	for i, m := range members {
		if actionable[i] == granted {
			m.Processing = true
			m.MessagesPending = false
			woken = append(woken, m)
			continue
		}
		if m.TimeDelta == 0 {
			continue
		}
		jump := (granted - m.TimeLastProcessed) / m.TimeDelta
		m.TimeLastProcessed += m.TimeDelta * jump
	}
	return woken
}

// FinishStep records that a member has stopped processing after a
// TIME_REQUEST (requested, bye=false) or BYE (bye=true). timeGranted is
// the most recent global grant.
func FinishStep(s *registry.State, timeGranted uint64, requested uint64, bye bool) {
	s.TimeLastProcessed = timeGranted
	s.Processing = false
	if bye {
		s.TimeRequested = registry.MaxTime
	} else {
		s.TimeRequested = requested
	}
}
