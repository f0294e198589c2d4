// Package broker implements the broker's message dispatcher:
// it polls the router socket, demultiplexes by verb, and drives the
// federation's registration, time-advance, and publish-routing logic.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/beroset/fncs/internal/brokerlog"
	"github.com/beroset/fncs/internal/pacer"
	"github.com/beroset/fncs/internal/trace"
	"github.com/beroset/fncs/internal/wire"
	"github.com/destiny/zmq4/v25"
	"golang.org/x/sync/errgroup"
)

// socket is the narrow slice of zmq4.Socket the dispatcher needs: receive
// one message, send one multi-frame message, close. Depending on this
// instead of the full zmq4.Socket interface keeps the dispatcher testable
// against a fake without needing to mirror every method the transport
// library happens to expose.
type socket interface {
	Recv() (zmq4.Msg, error)
	Send(zmq4.Msg) error
	Close() error
}

// Dispatcher is the broker's event loop: one socket, one Federation, and
// the optional pacer and trace sink that handle real-time mode and
// publish logging.
type Dispatcher struct {
	sock socket
	fed  *Federation
	log  *brokerlog.Logger
	tr   *trace.Sink

	realtimeInterval time.Duration
	pace             *pacer.Pacer
	paceCancel       context.CancelFunc

	eg *errgroup.Group
}

// Options configures a new Dispatcher.
type Options struct {
	Socket           socket
	ExpectedMembers  int
	RealtimeInterval time.Duration // 0 disables wall-clock pacing
	Log              *brokerlog.Logger
	Trace            *trace.Sink
}

// New creates a Dispatcher. The pacer itself is created only once the
// startup barrier releases, since time_real is anchored at
// that moment.
func New(opts Options) *Dispatcher {
	log := opts.Log
	if log == nil {
		log = brokerlog.Default()
	}
	return &Dispatcher{
		sock:             opts.Socket,
		fed:              NewFederation(opts.ExpectedMembers, opts.Trace),
		log:              log,
		tr:               opts.Trace,
		realtimeInterval: opts.RealtimeInterval,
	}
}

// Pacer returns the dispatcher's wall-clock pacer, or nil before the
// startup barrier has released or if real-time pacing is disabled.
func (d *Dispatcher) Pacer() *pacer.Pacer { return d.pace }

// armPacer anchors time_real_start at now, creates the pacer, and runs its
// tick loop as one arm of the dispatcher's errgroup alongside the event
// loop (the pacer is the one concurrent actor this otherwise
// single-threaded broker allows).
func (d *Dispatcher) armPacer(ctx context.Context) {
	if d.realtimeInterval <= 0 || d.eg == nil {
		return
	}
	pctx, cancel := context.WithCancel(ctx)
	d.pace = pacer.New(d.realtimeInterval, time.Now())
	d.paceCancel = cancel
	d.eg.Go(func() error { return d.pace.Run(pctx) })
}

func (d *Dispatcher) stopPacer() {
	if d.paceCancel != nil {
		d.paceCancel()
	}
}

// Run polls the socket with no timeout, dispatching every message until
// the federation shuts down gracefully (every member said BYE) or a fatal
// condition forces a DIE broadcast. ctx is used only to bound the pacer's
// WaitUntil calls; the socket Recv loop itself has no timeout
func (d *Dispatcher) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	d.eg = eg

	runErr := d.recvLoop(egCtx)

	d.stopPacer()
	if err := d.eg.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (d *Dispatcher) recvLoop(ctx context.Context) error {
	for {
		msg, err := d.sock.Recv()
		if err != nil {
			return d.die(fatalf("socket receive error: %v", err))
		}

		done, err := d.handle(ctx, msg.Frames)
		if err != nil {
			var fe *FatalError
			if asFatal(err, &fe) {
				return d.die(fe)
			}
			return err
		}
		if done {
			return nil
		}
	}
}

func asFatal(err error, target **FatalError) bool {
	fe, ok := err.(*FatalError)
	if ok {
		*target = fe
	}
	return ok
}

// die broadcasts DIE to every registered member, closes the trace sink,
// and returns the triggering error (response to any fatal
// condition).
func (d *Dispatcher) die(cause *FatalError) error {
	d.log.Fatal("%v", cause)
	d.stopPacer()
	for _, m := range d.fed.Members() {
		d.send(wire.Encode(m.Name, wire.DIE))
	}
	if d.tr != nil {
		_ = d.tr.Close()
	}
	return cause
}

func (d *Dispatcher) send(frames Msg) {
	if err := d.sock.Send(zmq4.NewMsgFrom(frames...)); err != nil {
		d.log.Warn("send to %q failed: %v", string(frames[0]), err)
	}
}

func (d *Dispatcher) sendAll(msgs []Msg) {
	for _, m := range msgs {
		d.send(m)
	}
}

// handle demultiplexes one inbound message by verb and drives
// the federation accordingly. done is true once the federation has shut
// down gracefully.
func (d *Dispatcher) handle(ctx context.Context, frames [][]byte) (done bool, err error) {
	in, err := wire.Decode(frames)
	if err != nil {
		return false, fatalf("malformed message: %v", err)
	}

	if in.Verb != wire.HELLO && !d.fed.BarrierOpen() {
		return false, fatalf("message %q from %q arrived before the startup barrier released", in.Verb, in.Sender)
	}

	switch in.Verb {
	case wire.HELLO:
		d.log.Trace("HELLO received from %q", in.Sender)
		if len(in.Payload) < 1 {
			return false, fatalf("HELLO from %q missing config frame", in.Sender)
		}
		acks, err := d.fed.Hello(in.Sender, in.Payload[0], d.log.Warn)
		if err != nil {
			return false, err
		}
		if acks != nil {
			d.log.Trace("startup barrier released, %d members", len(acks))
			d.armPacer(ctx)
			d.sendAll(acks)
		}

	case wire.TimeRequest:
		d.log.Trace("TIME_REQUEST received from %q", in.Sender)
		result, err := d.fed.TimeRequest(in.Sender, in.Payload)
		if err != nil {
			return false, err
		}
		d.applyStep(ctx, result)

	case wire.BYE:
		d.log.Trace("BYE received from %q", in.Sender)
		result, dup, err := d.fed.Bye(in.Sender)
		if err != nil {
			return false, err
		}
		if dup {
			d.log.Warn("duplicate BYE from %q", in.Sender)
		}
		if result.Shutdown != nil {
			d.sendAll(result.Shutdown)
			d.stopPacer()
			if d.tr != nil {
				_ = d.tr.Close()
			}
			return true, nil
		}
		d.applyStep(ctx, result)

	case wire.TimeDelta:
		d.log.Trace("TIME_DELTA received from %q", in.Sender)
		if err := d.fed.TimeDelta(in.Sender, in.Payload); err != nil {
			return false, err
		}

	case wire.Publish:
		d.log.Trace("PUBLISH received from %q", in.Sender)
		deliveries, err := d.fed.Publish(in.Sender, in.Payload, frames)
		if err != nil {
			return false, err
		}
		d.sendAll(deliveries)

	case wire.DIE:
		if _, err := d.fed.lookup(in.Sender); err != nil {
			return false, err
		}
		return false, fatalf("DIE received from %q", in.Sender)

	default:
		return false, fatalf("unknown verb %q from %q", in.Verb, in.Sender)
	}

	return false, nil
}

// applyStep sends the grants produced by a TimeRequest/Bye step, pacing
// against wall-clock time first if real-time mode is enabled.
func (d *Dispatcher) applyStep(ctx context.Context, result StepResult) {
	if !result.HasGrant {
		return
	}
	if d.pace != nil {
		if err := d.pace.WaitUntil(ctx, result.TimeGranted); err != nil {
			d.log.Warn("pacing wait interrupted: %v", err)
		}
	}
	for _, m := range result.Woken {
		d.send(wire.Encode(m.Name, wire.TimeRequest, []byte(fmt.Sprintf("%d", result.TimeGranted))))
	}
}
