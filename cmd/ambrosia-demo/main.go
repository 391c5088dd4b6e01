// Command ambrosia-demo wires up a minimal immortal process: it brings up
// the two coordinator sockets, answers one startup RPC and any number of
// steady-state RPCs by logging them, and serves Prometheus metrics plus the
// debug event feed when AMBROSIA_DEBUG is set.
package main

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocx/ambrosia-client/internal/config"
	"github.com/ocx/ambrosia-client/internal/diagnostics"
	"github.com/ocx/ambrosia-client/pkg/ambrosia"
)

// echoDispatcher is the demo application's MethodDispatcher: it logs every
// incoming RPC and returns success.
type echoDispatcher struct {
	hub *diagnostics.Hub
}

func (d *echoDispatcher) Dispatch(methodID int32, args []byte) error {
	slog.Info("ambrosia-demo: dispatch", "methodID", methodID, "argsLen", len(args))
	if d.hub != nil {
		d.hub.Publish("rpc_dispatched", map[string]interface{}{"methodID": methodID})
	}
	return nil
}

// demoCheckpointWriter writes the fixed dummy checkpoint envelope this demo
// always reports: there is no real application state to snapshot.
type demoCheckpointWriter struct{}

func (demoCheckpointWriter) WriteDummyCheckpoint(w io.Writer) error {
	_, err := w.Write([]byte{0x04, 0x03, 0x00}) // size=2 (zig-zag 0x04), Checkpoint, reserved byte
	return err
}

func main() {
	cfg := config.Get()

	var hub *diagnostics.Hub
	if cfg.Debug {
		hub = diagnostics.NewHub()
		stop := make(chan struct{})
		go hub.Run(stop)

		mux := hub.Router()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			slog.Info("ambrosia-demo: diagnostics listening", "addr", cfg.Diagnostics.ListenAddr)
			if err := http.ListenAndServe(cfg.Diagnostics.ListenAddr, mux); err != nil {
				slog.Error("ambrosia-demo: diagnostics server exited", "err", err)
			}
		}()
	}

	startupArgs, err := hex.DecodeString(cfg.Startup.ArgsHex)
	if err != nil {
		slog.Warn("ambrosia-demo: invalid startup args hex, using empty args", "err", err)
		startupArgs = nil
	}

	rt, err := ambrosia.New(ambrosia.Config{
		UpPort:            cfg.Coordinator.UpPort,
		DownPort:          cfg.Coordinator.DownPort,
		RingCapacityBytes: cfg.Ring.CapacityBytes,
		Family:            cfg.TransportFamily(),
		Debug:             cfg.Debug,
	}, &echoDispatcher{hub: hub}, demoCheckpointWriter{})
	if err != nil {
		slog.Error("ambrosia-demo: construction failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rt.Initialize(ctx, ambrosia.StartupSpec{
		MethodID: cfg.Startup.MethodID,
		Args:     startupArgs,
	}); err != nil {
		slog.Error("ambrosia-demo: initialize failed", "err", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		slog.Info("ambrosia-demo: shutdown signal received, closing sockets")
		rt.Shutdown()
	}()

	slog.Info("ambrosia-demo: entering steady-state processing")
	if err := rt.RunNormalProcessing(ctx); err != nil {
		slog.Warn("ambrosia-demo: processing loop exited", "err", err)
	}

	rt.Shutdown()
	slog.Info("ambrosia-demo: shut down cleanly")
}
