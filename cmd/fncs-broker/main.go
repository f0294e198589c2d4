// Command fncs-broker runs the federation's coordination broker: it binds a
// router socket, admits exactly N simulators, and drives their shared
// simulated clock until every member says goodbye or a fatal error forces
// an abort.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/beroset/fncs/internal/broker"
	"github.com/beroset/fncs/internal/brokercfg"
	"github.com/beroset/fncs/internal/brokerlog"
	"github.com/beroset/fncs/internal/trace"
	"github.com/destiny/zmq4/v25"
)

func main() {
	cfg, err := brokercfg.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fncs-broker: %v\n", err)
		fmt.Fprintln(os.Stderr, "usage: fncs-broker N [realtime_interval]")
		os.Exit(1)
	}

	log := brokerlog.New(os.Stderr, cfg.TraceEnabled)

	var traceSink *trace.Sink
	if cfg.TraceEnabled {
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			log.Fatal("could not open trace file %q: %v", cfg.TraceFile, err)
			os.Exit(1)
		}
		traceSink, err = trace.Open(f)
		if err != nil {
			log.Fatal("could not open trace sink: %v", err)
			os.Exit(1)
		}
		log.Trace("tracing of all published messages enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sock := zmq4.NewRouter(ctx)
	if err := sock.Listen(cfg.Endpoint); err != nil {
		log.Fatal("socket bind failed: %v", err)
		os.Exit(1)
	}
	defer sock.Close()
	log.Trace("broker socket bound to %s", cfg.Endpoint)

	d := broker.New(broker.Options{
		Socket:           sock,
		ExpectedMembers:  cfg.ExpectedMembers,
		RealtimeInterval: cfg.RealtimeInterval,
		Log:              log,
		Trace:            traceSink,
	})

	if err := d.Run(ctx); err != nil {
		os.Exit(1)
	}
}
