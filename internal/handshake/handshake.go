// Package handshake implements the AMBROSIA startup protocol (spec.md §4.5,
// C5): the first exchange that happens on the freshly-established sockets,
// before the egress ring or progress goroutine exist.
package handshake

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ocx/ambrosia-client/internal/collab"
	"github.com/ocx/ambrosia-client/internal/wire"
)

// ErrRecoveryNotImplemented is returned when the coordinator's initial
// record announces a recovery boot (Checkpoint). spec.md §9 open question 1
// leaves the coordinator's replay contract to be specified separately;
// until then this is a fatal, clearly-named failure rather than undefined
// behavior.
var ErrRecoveryNotImplemented = errors.New("handshake: recovery boot (Checkpoint) not implemented")

// ErrProtocolViolation covers any leading message type other than
// TakeBecomingPrimaryCheckpoint or Checkpoint.
var ErrProtocolViolation = wire.ErrProtocolViolation

// Run drives spec.md §4.5 steps 1-5 on the freshly-accepted/dialed sockets.
func Run(down io.Reader, up io.Writer, startup collab.StartupSpec, ckpt collab.CheckpointWriter) error {
	header, err := wire.ReadLogHeader(down)
	if err != nil {
		return fmt.Errorf("handshake: reading initial log header: %w", err)
	}
	payload, err := wire.ReadPayload(down, header)
	if err != nil {
		return fmt.Errorf("handshake: reading initial payload: %w", err)
	}

	msgType, _, _, err := wire.ReadEnvelope(payload)
	if err != nil {
		return fmt.Errorf("handshake: parsing initial envelope: %w", err)
	}

	switch msgType {
	case wire.TakeBecomingPrimaryCheckpoint:
		// first boot — proceed.
	case wire.Checkpoint:
		return ErrRecoveryNotImplemented
	default:
		return fmt.Errorf("handshake: unexpected initial message type %v: %w", msgType, ErrProtocolViolation)
	}

	// Computed for observability only; not yet verified against
	// header.Checksum (spec.md §9 open question 2).
	checksum := wire.AdditiveChecksum(payload)
	slog.Debug("handshake: initial record checksum", "computed", checksum, "header", header.Checksum)

	if err := sendInitialMessage(up, startup); err != nil {
		return fmt.Errorf("handshake: sending InitialMessage: %w", err)
	}
	if err := ckpt.WriteDummyCheckpoint(up); err != nil {
		return fmt.Errorf("handshake: sending dummy checkpoint: %w", err)
	}
	return nil
}

// sendInitialMessage builds and sends the InitialMessage envelope wrapping
// a single incoming RPC to the application's startup method (spec.md §4.5
// step 4).
func sendInitialMessage(up io.Writer, startup collab.StartupSpec) error {
	innerLen := wire.IncomingRPCSize(startup.MethodID, len(startup.Args))
	innerBuf := make([]byte, innerLen)
	innerBuilder := wire.NewBuilder(innerBuf)
	if err := wire.WriteIncomingRPC(innerBuilder, startup.MethodID, true, startup.Args); err != nil {
		return err
	}

	outerLen := wire.EnvelopeSize(innerBuilder.Len())
	outerBuf := make([]byte, outerLen)
	outerBuilder := wire.NewBuilder(outerBuf)
	if err := wire.WriteEnvelope(outerBuilder, wire.InitialMessage, innerBuilder.Bytes()); err != nil {
		return err
	}

	_, err := up.Write(outerBuilder.Bytes())
	return err
}
