// Package ambrosia is the public entry point for an application process
// (the immortal) that wants durable, ordered RPC exchange with a local
// reliability coordinator over two TCP sockets.
package ambrosia

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ocx/ambrosia-client/internal/attach"
	"github.com/ocx/ambrosia-client/internal/circuitbreaker"
	"github.com/ocx/ambrosia-client/internal/collab"
	"github.com/ocx/ambrosia-client/internal/handshake"
	"github.com/ocx/ambrosia-client/internal/ingress"
	"github.com/ocx/ambrosia-client/internal/metrics"
	"github.com/ocx/ambrosia-client/internal/progress"
	"github.com/ocx/ambrosia-client/internal/ring"
	"github.com/ocx/ambrosia-client/internal/transport"
	"github.com/ocx/ambrosia-client/internal/wire"
)

// MethodDispatcher is invoked by the ingress loop for each incoming RPC.
// Re-exported from internal/collab so application code never needs to
// import an internal package.
type MethodDispatcher = collab.MethodDispatcher

// CheckpointWriter writes a checkpoint envelope in the coordinator's
// expected shape, during startup and on every TakeCheckpoint request.
type CheckpointWriter = collab.CheckpointWriter

// StartupSpec carries the application's startup method ID and argument
// bytes, sent once via the handshake's InitialMessage.
type StartupSpec = collab.StartupSpec

// Config configures a Runtime.
type Config struct {
	UpPort            uint16
	DownPort          uint16
	RingCapacityBytes int // 0 -> 20 MiB default
	Family            transport.Family
	Debug             bool
}

// Runtime owns everything the source kept as global state: the two
// sockets, the egress ring, the attach-once table, and the terminating
// flag.
type Runtime struct {
	cfg        Config
	dispatcher MethodDispatcher
	ckpt       CheckpointWriter

	conns    transport.Conns
	ring     *ring.Ring
	attach   *attach.Manager
	metrics  *metrics.Metrics
	breakers *circuitbreaker.Manager

	terminating atomic.Bool
	progressErr chan error
	shutdown    sync.Once
}

// sharedMetrics holds the one set of Prometheus instruments every Runtime in
// the process updates: metrics.New registers against the default registry,
// which accepts each metric name only once.
var (
	sharedMetricsOnce sync.Once
	sharedMetrics     *metrics.Metrics
)

// New constructs a Runtime. Initialize must be called before any RPCs can
// flow.
func New(cfg Config, dispatcher MethodDispatcher, ckpt CheckpointWriter) (*Runtime, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("ambrosia: dispatcher must not be nil")
	}
	if ckpt == nil {
		return nil, fmt.Errorf("ambrosia: checkpoint writer must not be nil")
	}
	sharedMetricsOnce.Do(func() { sharedMetrics = metrics.New() })
	return &Runtime{
		cfg:        cfg,
		dispatcher: dispatcher,
		ckpt:       ckpt,
		attach:     attach.NewManager(),
		metrics:    sharedMetrics,
		breakers:   circuitbreaker.NewManager(nil),
	}, nil
}

// Initialize brings up both sockets (C4), runs the startup handshake (C5),
// installs the egress ring (C3), and launches the network-progress
// goroutine (C6). It returns once the connection is ready for
// RunNormalProcessing.
func (rt *Runtime) Initialize(ctx context.Context, startup StartupSpec) error {
	conns, err := transport.Bringup(ctx, rt.cfg.Family, rt.cfg.UpPort, rt.cfg.DownPort)
	if err != nil {
		return fmt.Errorf("ambrosia: bringup failed: %w", err)
	}
	rt.conns = conns

	if err := handshake.Run(conns.Down, conns.Up, startup, rt.ckpt); err != nil {
		conns.Close()
		return fmt.Errorf("ambrosia: handshake failed: %w", err)
	}
	rt.metrics.CheckpointsSentTotal.Inc()

	rt.ring = ring.New(rt.cfg.RingCapacityBytes)
	rt.metrics.RingCapacityBytes.Set(float64(rt.ring.Cap()))

	loop := progress.New(rt.ring, conns.Up)
	rt.progressErr = make(chan error, 1)
	go func() {
		rt.progressErr <- loop.Run(ctx)
	}()

	slog.Info("ambrosia: runtime initialized", "upPort", rt.cfg.UpPort, "downPort", rt.cfg.DownPort)
	return nil
}

// Metrics returns the runtime's Prometheus instruments (shared by every
// Runtime in the process), for registration against an HTTP handler by the
// hosting process.
func (rt *Runtime) Metrics() *metrics.Metrics { return rt.metrics }

// Breakers returns the per-destination circuit breaker pool guarding
// SendOutgoingRPC, for diagnostics reporting by the hosting process.
func (rt *Runtime) Breakers() *circuitbreaker.Manager { return rt.breakers }

// RunNormalProcessing runs the ingress loop (C8) until ctx is cancelled or
// Shutdown is called. It blocks until the loop exits.
func (rt *Runtime) RunNormalProcessing(ctx context.Context) error {
	return ingress.Loop(ctx, rt.conns.Down, rt.dispatcher, rt.ckpt, rt.ring, &rt.terminating)
}

// Shutdown signals the ingress loop to stop at the next record boundary,
// closes the egress ring (waking the progress goroutine once it drains),
// and closes both sockets. Safe to call more than once (e.g. once from a
// ctx-cancellation watcher and once from the caller's own cleanup path) and
// safe to call concurrently; only the first call does any work.
func (rt *Runtime) Shutdown() {
	rt.shutdown.Do(func() {
		rt.terminating.Store(true)
		if rt.ring != nil {
			rt.ring.Close()
		}
		if rt.progressErr != nil {
			<-rt.progressErr
		}
		if rt.conns.Up != nil {
			rt.conns.Close()
		}
	})
}

// SendOutgoingRPC frames an RPC to dest and pushes it onto the egress
// ring, sending an AttachTo envelope first if this is the first message to
// dest (C7).
func (rt *Runtime) SendOutgoingRPC(ctx context.Context, dest string, rpcOrRetVal byte, methodID int32, fireForget bool, args []byte) error {
	breaker := rt.breakers.Get(dest)
	if err := breaker.Allow(); err != nil {
		return fmt.Errorf("ambrosia: destination %q unavailable: %w", dest, err)
	}

	if rt.attach.EnsureAttached(dest) {
		if err := rt.sendAttachTo(ctx, dest); err != nil {
			return err
		}
		rt.metrics.AttachedDestinations.Inc()
	}

	headerLen := wire.OutgoingRPCHeaderSize(dest, methodID)
	bodyLen := headerLen + len(args)
	envLen := wire.EnvelopeSize(bodyLen)
	buf := make([]byte, envLen)
	b := wire.NewBuilder(buf)

	if err := wire.WriteOutgoingRPCHeader(b, dest, rpcOrRetVal, methodID, fireForget, len(args)); err != nil {
		return fmt.Errorf("ambrosia: framing outgoing RPC: %w", err)
	}
	if err := b.WriteBytes(args); err != nil {
		return fmt.Errorf("ambrosia: framing outgoing RPC args: %w", err)
	}

	_, pushErr := breaker.Execute(func() (interface{}, error) {
		return nil, rt.ring.Push(ctx, b.Bytes())
	})
	if pushErr != nil {
		return fmt.Errorf("ambrosia: pushing outgoing RPC onto ring: %w", pushErr)
	}
	rt.metrics.RPCsSentTotal.WithLabelValues(dest).Inc()
	rt.metrics.RingOccupancyBytes.Set(float64(rt.ring.Len()))
	return nil
}

func (rt *Runtime) sendAttachTo(ctx context.Context, dest string) error {
	destBytes := []byte(dest)
	envLen := wire.EnvelopeSize(len(destBytes))
	buf := make([]byte, envLen)
	b := wire.NewBuilder(buf)
	if err := wire.WriteEnvelope(b, wire.AttachTo, destBytes); err != nil {
		return fmt.Errorf("ambrosia: framing AttachTo: %w", err)
	}
	return rt.ring.Push(ctx, b.Bytes())
}
