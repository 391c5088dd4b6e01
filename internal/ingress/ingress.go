// Package ingress implements the ingress loop (spec.md §4.8, C8): the
// steady-state reader that walks log records off the down socket, dispatches
// RPCs to the application, and feeds checkpoint requests back out through
// the egress ring.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ocx/ambrosia-client/internal/collab"
	"github.com/ocx/ambrosia-client/internal/ring"
	"github.com/ocx/ambrosia-client/internal/wire"
)

// ErrProtocolViolation covers any top-level envelope type this loop does not
// know how to handle.
var ErrProtocolViolation = wire.ErrProtocolViolation

// Down is the subset of io.Reader the loop needs, named for clarity at call
// sites; satisfied by net.Conn.
type Down interface {
	Read(p []byte) (int, error)
}

// Loop reads log records from down until ctx is cancelled or terminating is
// observed true at a record boundary, dispatching each record's envelopes.
func Loop(ctx context.Context, down Down, dispatcher collab.MethodDispatcher, ckpt collab.CheckpointWriter, egress *ring.Ring, terminating *atomic.Bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := wire.ReadLogHeader(down)
		if err != nil {
			return fmt.Errorf("ingress: reading log header: %w", err)
		}
		payload, err := wire.ReadPayload(down, header)
		if err != nil {
			return fmt.Errorf("ingress: reading payload: %w", err)
		}

		if err := dispatchRecord(payload, dispatcher, ckpt, egress); err != nil {
			return err
		}

		if terminating != nil && terminating.Load() {
			slog.Debug("ingress: terminating flag observed, exiting")
			return nil
		}
	}
}

// dispatchRecord walks every envelope in a record's payload, in order.
func dispatchRecord(payload []byte, dispatcher collab.MethodDispatcher, ckpt collab.CheckpointWriter, egress *ring.Ring) error {
	rest := payload
	for len(rest) > 0 {
		msgType, body, consumed, err := wire.ReadEnvelope(rest)
		if err != nil {
			return fmt.Errorf("ingress: parsing envelope: %w", err)
		}
		if err := dispatchEnvelope(msgType, body, dispatcher, ckpt, egress); err != nil {
			return err
		}
		rest = rest[consumed:]
	}
	return nil
}

func dispatchEnvelope(msgType wire.MessageType, body []byte, dispatcher collab.MethodDispatcher, ckpt collab.CheckpointWriter, egress *ring.Ring) error {
	switch msgType {
	case wire.RPC:
		return dispatchRPC(body, dispatcher)

	case wire.InitialMessage:
		// The coordinator echoes our own InitialMessage back; spec.md §9 open
		// question 3 notes this is a documented convention, not an invariant
		// this loop enforces. Nothing to do.
		return nil

	case wire.RPCBatch:
		entries, err := wire.ParseRPCBatch(body)
		if err != nil {
			return fmt.Errorf("ingress: parsing RPCBatch: %w", err)
		}
		for _, e := range entries {
			// spec.md §4.8/§9 open question 4: every batch entry is treated
			// as an RPC regardless of its declared type tag.
			if err := dispatchRPC(e.Body, dispatcher); err != nil {
				return err
			}
		}
		return nil

	case wire.TakeCheckpoint:
		return sendCheckpointThroughRing(ckpt, egress)

	default:
		return fmt.Errorf("ingress: unexpected message type %v: %w", msgType, ErrProtocolViolation)
	}
}

func dispatchRPC(body []byte, dispatcher collab.MethodDispatcher) error {
	rpc, err := wire.ParseIncomingRPC(body)
	if err != nil {
		return fmt.Errorf("ingress: parsing RPC body: %w", err)
	}
	if err := dispatcher.Dispatch(rpc.MethodID, rpc.Args); err != nil {
		if rpc.FireForget {
			slog.Error("ingress: fire-and-forget dispatch failed", "methodID", rpc.MethodID, "err", err)
			return nil
		}
		return fmt.Errorf("ingress: dispatch failed for method %d: %w", rpc.MethodID, err)
	}
	return nil
}

// ringWriter adapts *ring.Ring to io.Writer so CheckpointWriter
// implementations can be written without depending on the ring package.
type ringWriter struct {
	r   *ring.Ring
	ctx context.Context
}

func (w ringWriter) Write(p []byte) (int, error) {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.r.Push(ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// sendCheckpointThroughRing resolves spec.md §9 open question 3: checkpoint
// responses are written into the egress ring rather than directly onto the
// up socket, so the ingress loop never shares a lock with the progress
// goroutine's hot path.
func sendCheckpointThroughRing(ckpt collab.CheckpointWriter, egress *ring.Ring) error {
	if egress == nil {
		return errors.New("ingress: no egress ring configured for checkpoint response")
	}
	return ckpt.WriteDummyCheckpoint(ringWriter{r: egress})
}
