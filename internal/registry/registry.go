// Package registry tracks the federation's members: one SimulatorState per
// simulator, in the insertion order that assigns each member its wire index.
package registry

import "fmt"

// MaxTime is the sentinel meaning "this member has said goodbye and should
// never be granted another time."
const MaxTime = ^uint64(0)

// State is the per-simulator record described by the data model: a
// federation member's granularity, outstanding request, and mailbox status.
type State struct {
	Name string

	// TimeDelta is this member's minimum grant granularity in nanoseconds.
	TimeDelta uint64

	// TimeRequested is the nanosecond this member next wants to be woken,
	// or MaxTime once it has left the federation.
	TimeRequested uint64

	// TimeLastProcessed is the nanosecond of the most recent grant this
	// member acted on. Always a multiple of TimeDelta.
	TimeLastProcessed uint64

	// Processing is true between grant-sent and the member's next
	// TIME_REQUEST/BYE.
	Processing bool

	// MessagesPending is true if a PUBLISH has been routed to this member
	// since its last grant.
	MessagesPending bool

	SubscribedTopics map[string]struct{}
}

// Subscribes reports whether topic has a subscriber in this member.
func (s *State) Subscribes(topic string) bool {
	_, ok := s.SubscribedTopics[topic]
	return ok
}

// Registry is the federation-wide ordered member list plus its name index.
// A member's position in members is fixed forever once assigned; it is never
// removed, only marked departed via TimeRequested = MaxTime.
type Registry struct {
	expected int
	members  []*State
	byName   map[string]int
}

// New creates a Registry expecting exactly expected members before the
// startup barrier can release.
func New(expected int) *Registry {
	return &Registry{
		expected: expected,
		byName:   make(map[string]int, expected),
	}
}

// Expected returns the configured federation size N.
func (r *Registry) Expected() int { return r.expected }

// Len returns how many members have registered so far.
func (r *Registry) Len() int { return len(r.members) }

// Full reports whether every expected member has registered.
func (r *Registry) Full() bool { return len(r.members) == r.expected }

// Has reports whether name has already registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Index returns the wire index assigned to name.
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.byName[name]
	return i, ok
}

// Get returns the member state for name.
func (r *Registry) Get(name string) (*State, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.members[i], true
}

// Members returns the ordered member slice. Callers must not mutate the
// slice itself (appending or reordering); mutating field values of the
// *State elements is the normal way the time engine and dispatcher operate.
func (r *Registry) Members() []*State {
	return r.members
}

// Register appends a new member for name and returns its assigned index.
// It is an error to register a name twice; callers must check Has first —
// this mirrors the broker's dispatcher, which treats a duplicate HELLO as
// fatal before ever calling Register.
func (r *Registry) Register(name string, timeDelta uint64, topics map[string]struct{}) (*State, int, error) {
	if r.Has(name) {
		return nil, 0, fmt.Errorf("registry: %q already registered", name)
	}
	if len(r.members) >= r.expected {
		return nil, 0, fmt.Errorf("registry: federation already has %d members", r.expected)
	}
	state := &State{
		Name:              name,
		TimeDelta:         timeDelta,
		TimeRequested:     0,
		TimeLastProcessed: 0,
		Processing:        false,
		MessagesPending:   false,
		SubscribedTopics:  topics,
	}
	idx := len(r.members)
	r.members = append(r.members, state)
	r.byName[name] = idx
	return state, idx, nil
}
