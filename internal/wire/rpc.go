package wire

import (
	"errors"

	"github.com/ocx/ambrosia-client/internal/varint"
)

// ErrMalformedRPC is returned when an RPC body does not contain enough
// bytes for its fixed fields.
var ErrMalformedRPC = errors.New("wire: malformed RPC body")

// IncomingRPC is the "to self" RPC shape: produced by the application for
// the coordinator to log and echo back (spec.md §3).
type IncomingRPC struct {
	MethodID   int32
	FireForget bool
	Args       []byte
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// WriteIncomingRPC emits the full MessageEnvelope (⟨size⟩⟨RPC⟩⟨body⟩) for an
// incoming RPC: reserved zero byte, methodID, fireForget, args.
func WriteIncomingRPC(b *Builder, methodID int32, fireForget bool, args []byte) error {
	bodyLen := 1 + varint.Size(methodID) + 1 + len(args)
	size := int32(1 + bodyLen)
	if err := b.WriteVarint(size); err != nil {
		return err
	}
	if err := b.WriteByte(byte(RPC)); err != nil {
		return err
	}
	if err := b.WriteByte(0); err != nil { // reserved
		return err
	}
	if err := b.WriteVarint(methodID); err != nil {
		return err
	}
	if err := b.WriteByte(boolByte(fireForget)); err != nil {
		return err
	}
	return b.WriteBytes(args)
}

// IncomingRPCSize returns the number of bytes WriteIncomingRPC would emit.
func IncomingRPCSize(methodID int32, argsLen int) int {
	bodyLen := 1 + varint.Size(methodID) + 1 + argsLen
	return varint.Size(int32(1+bodyLen)) + 1 + bodyLen
}

// ParseIncomingRPC decodes an incoming RPC body (the bytes following the
// RPC type tag inside a MessageEnvelope).
func ParseIncomingRPC(body []byte) (IncomingRPC, error) {
	if len(body) < 1 {
		return IncomingRPC{}, ErrMalformedRPC
	}
	// body[0] is the reserved byte.
	rest := body[1:]
	methodID, n, err := varint.Decode(rest)
	if err != nil {
		return IncomingRPC{}, err
	}
	rest = rest[n:]
	if len(rest) < 1 {
		return IncomingRPC{}, ErrMalformedRPC
	}
	fireForget := rest[0] != 0
	args := rest[1:]
	return IncomingRPC{MethodID: methodID, FireForget: fireForget, Args: args}, nil
}

// OutgoingRPC is the "to a remote destination" RPC shape (spec.md §3).
type OutgoingRPC struct {
	Dest        string
	RPCOrRetVal byte
	MethodID    int32
	FireForget  bool
	Args        []byte
}

// WriteOutgoingRPCHeader emits the outer envelope length prefix, the RPC
// type byte, and everything up to (but not including) the args payload:
// destLen, dest, rpcOrRetVal, methodID, fireForget. The caller appends args
// to b separately afterward, enabling scatter-gather (spec.md §4.2). argsLen
// must be the length of the args the caller intends to append, since it
// contributes to the outer size field.
func WriteOutgoingRPCHeader(b *Builder, dest string, rpcOrRetVal byte, methodID int32, fireForget bool, argsLen int) error {
	destBytes := []byte(dest)
	bodyLen := varint.Size(int32(len(destBytes))) + len(destBytes) + 1 + varint.Size(methodID) + 1 + argsLen
	size := int32(1 + bodyLen)
	if err := b.WriteVarint(size); err != nil {
		return err
	}
	if err := b.WriteByte(byte(RPC)); err != nil {
		return err
	}
	if err := b.WriteVarint(int32(len(destBytes))); err != nil {
		return err
	}
	if err := b.WriteBytes(destBytes); err != nil {
		return err
	}
	if err := b.WriteByte(rpcOrRetVal); err != nil {
		return err
	}
	if err := b.WriteVarint(methodID); err != nil {
		return err
	}
	return b.WriteByte(boolByte(fireForget))
}

// OutgoingRPCHeaderSize returns the length of the RPC body fields
// WriteOutgoingRPCHeader writes after the outer size varint and RPC type
// byte (destLen, dest, rpcOrRetVal, methodID, fireForget), not counting the
// args the caller appends afterward. The whole frame is
// EnvelopeSize(OutgoingRPCHeaderSize(dest, methodID) + argsLen) bytes.
func OutgoingRPCHeaderSize(dest string, methodID int32) int {
	destBytes := []byte(dest)
	return varint.Size(int32(len(destBytes))) + len(destBytes) + 1 + varint.Size(methodID) + 1
}

// ParseOutgoingRPC decodes an outgoing RPC body (the bytes following the RPC
// type tag inside a MessageEnvelope, for envelopes produced by
// WriteOutgoingRPCHeader+args).
func ParseOutgoingRPC(body []byte) (OutgoingRPC, error) {
	destLen, n, err := varint.Decode(body)
	if err != nil {
		return OutgoingRPC{}, err
	}
	rest := body[n:]
	if int(destLen) > len(rest) {
		return OutgoingRPC{}, ErrMalformedRPC
	}
	dest := string(rest[:destLen])
	rest = rest[destLen:]
	if len(rest) < 1 {
		return OutgoingRPC{}, ErrMalformedRPC
	}
	rpcOrRetVal := rest[0]
	rest = rest[1:]
	methodID, n, err := varint.Decode(rest)
	if err != nil {
		return OutgoingRPC{}, err
	}
	rest = rest[n:]
	if len(rest) < 1 {
		return OutgoingRPC{}, ErrMalformedRPC
	}
	fireForget := rest[0] != 0
	args := rest[1:]
	return OutgoingRPC{
		Dest:        dest,
		RPCOrRetVal: rpcOrRetVal,
		MethodID:    methodID,
		FireForget:  fireForget,
		Args:        args,
	}, nil
}
