package broker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beroset/fncs/internal/fcfg"
	"github.com/beroset/fncs/internal/pubrouter"
	"github.com/beroset/fncs/internal/registry"
	"github.com/beroset/fncs/internal/timeengine"
	"github.com/beroset/fncs/internal/trace"
	"github.com/beroset/fncs/internal/wire"
)

// Msg is one fully-formed outbound frame set: destination identity first,
// then verb, then payload.
type Msg = [][]byte

// Federation holds all broker-wide state and implements the pure state
// transitions of registration, the time engine, and publish routing —
// with no socket I/O. The dispatcher (dispatch.go) owns the socket and
// calls into Federation for every verb.
type Federation struct {
	reg         *registry.Registry
	timeGranted uint64
	nProcessing int
	byes        map[string]struct{}
	barrierOpen bool

	traceSink *trace.Sink
}

// NewFederation creates a Federation expecting expected members.
func NewFederation(expected int, traceSink *trace.Sink) *Federation {
	return &Federation{
		reg:       registry.New(expected),
		byes:      make(map[string]struct{}),
		traceSink: traceSink,
	}
}

func (f *Federation) lookup(name string) (*registry.State, error) {
	s, ok := f.reg.Get(name)
	if !ok {
		return nil, fatalf("simulator %q not connected", name)
	}
	return s, nil
}

// BarrierOpen reports whether every expected member has registered and the
// federation has been released into simulation.
func (f *Federation) BarrierOpen() bool { return f.barrierOpen }

// Members returns every registered member, for building DIE/BYE broadcasts.
func (f *Federation) Members() []*registry.State { return f.reg.Members() }

// TimeGranted returns the most recently granted global simulated time.
func (f *Federation) TimeGranted() uint64 { return f.timeGranted }

// Hello registers name with the config carried in blob. It returns the ACK
// messages for every member if this registration released the startup
// barrier, or nil if the federation is still waiting on more HELLOs.
func (f *Federation) Hello(name string, blob []byte, warn func(format string, args ...interface{})) ([]Msg, error) {
	if f.reg.Has(name) {
		return nil, fatalf("simulator %q already connected", name)
	}

	root, err := fcfg.Parse(blob)
	if err != nil {
		return nil, fatalf("simulator %q sent malformed HELLO config: %v", name, err)
	}

	delta := defaultTimeDelta
	if raw, ok := root.Resolve("/time_delta"); ok {
		d, err := parseDuration(raw)
		if err != nil {
			return nil, fatalf("simulator %q has invalid time_delta %q: %v", name, raw, err)
		}
		delta = d
	} else {
		warn("%s config does not contain 'time_delta', defaulting to 1s", name)
	}

	topics := make(map[string]struct{})
	for _, t := range fcfg.Subscriptions(root) {
		topics[t] = struct{}{}
	}

	if _, _, err := f.reg.Register(name, delta, topics); err != nil {
		return nil, fatalf("registering %q: %v", name, err)
	}

	if !f.reg.Full() {
		return nil, nil
	}

	return f.releaseBarrier(), nil
}

func (f *Federation) releaseBarrier() []Msg {
	f.barrierOpen = true
	members := f.reg.Members()
	f.nProcessing = len(members)

	acks := make([]Msg, 0, len(members))
	for i, m := range members {
		m.Processing = true
		acks = append(acks, wire.Encode(m.Name, wire.ACK,
			[]byte(strconv.Itoa(i)),
			[]byte(strconv.Itoa(len(members))),
		))
	}
	return acks
}

// StepResult reports what TimeRequest/Bye produced: an optional federation
// shutdown, and an optional new grant ready for dispatch to send (after
// real-time pacing, if any).
type StepResult struct {
	// Shutdown is non-nil with the BYE-to-all frames when every member
	// has said goodbye.
	Shutdown []Msg

	// HasGrant is true if n_processing reached zero and a new
	// time_granted was computed.
	HasGrant    bool
	TimeGranted uint64
	Woken       []*registry.State
}

// TimeRequest handles an inbound TIME_REQUEST from name.
func (f *Federation) TimeRequest(name string, payload [][]byte) (StepResult, error) {
	if len(payload) < 1 {
		return StepResult{}, fatalf("TIME_REQUEST from %q missing time frame", name)
	}
	requested, err := strconv.ParseUint(string(payload[0]), 10, 64)
	if err != nil {
		return StepResult{}, fatalf("TIME_REQUEST from %q has malformed time %q: %v", name, payload[0], err)
	}

	member, err := f.lookup(name)
	if err != nil {
		return StepResult{}, err
	}

	timeengine.FinishStep(member, f.timeGranted, requested, false)
	return f.afterStep(), nil
}

// Bye handles an inbound BYE from name. dup reports whether this is a
// duplicate BYE (a warning condition, not fatal).
func (f *Federation) Bye(name string) (result StepResult, dup bool, err error) {
	member, err := f.lookup(name)
	if err != nil {
		return StepResult{}, false, err
	}

	if _, already := f.byes[name]; already {
		return StepResult{}, true, nil
	}
	f.byes[name] = struct{}{}

	if len(f.byes) == f.reg.Expected() {
		byeAll := make([]Msg, 0, len(f.reg.Members()))
		for _, m := range f.reg.Members() {
			byeAll = append(byeAll, wire.Encode(m.Name, wire.BYE))
		}
		return StepResult{Shutdown: byeAll}, dup, nil
	}

	timeengine.FinishStep(member, f.timeGranted, 0, true)
	return f.afterStep(), dup, nil
}

// afterStep decrements n_processing and, once every processing member has
// checked in, computes and applies the next grant.
func (f *Federation) afterStep() StepResult {
	f.nProcessing--
	if f.nProcessing > 0 {
		return StepResult{}
	}

	granted, actionable := timeengine.ComputeGrant(f.reg.Members())
	f.timeGranted = granted
	woken := timeengine.Wake(f.reg.Members(), granted, actionable)
	f.nProcessing = len(woken)

	return StepResult{HasGrant: true, TimeGranted: granted, Woken: woken}
}

// TimeDelta handles an inbound TIME_DELTA from name.
func (f *Federation) TimeDelta(name string, payload [][]byte) error {
	if len(payload) < 1 {
		return fatalf("TIME_DELTA from %q missing delta frame", name)
	}
	delta, err := strconv.ParseUint(string(payload[0]), 10, 64)
	if err != nil {
		return fatalf("TIME_DELTA from %q has malformed delta %q: %v", name, payload[0], err)
	}
	if delta == 0 {
		return fatalf("TIME_DELTA from %q must be > 0", name)
	}

	member, err := f.lookup(name)
	if err != nil {
		return err
	}
	member.TimeDelta = delta
	return nil
}

// Publish handles an inbound PUBLISH from name. frames is the full raw
// inbound frame set (sender, "PUBLISH", topic, value) used to build each
// subscriber's retargeted copy.
func (f *Federation) Publish(name string, payload [][]byte, frames [][]byte) ([]Msg, error) {
	if len(payload) < 2 {
		return nil, fatalf("PUBLISH from %q missing topic or value frame", name)
	}
	if _, err := f.lookup(name); err != nil {
		return nil, err
	}

	topic := string(payload[0])
	value := payload[1]

	if f.traceSink != nil {
		if err := f.traceSink.Record(f.timeGranted, topic, value); err != nil {
			return nil, fatalf("writing trace record: %v", err)
		}
	}

	deliveries := pubrouter.Route(f.reg.Members(), topic, frames)
	out := make([]Msg, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, d.Frames)
	}
	return out, nil
}

const defaultTimeDelta = uint64(1_000_000_000) // 1 second

func parseDuration(s string) (uint64, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("time_delta must be > 0")
	}
	return uint64(d), nil
}
