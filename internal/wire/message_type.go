package wire

import "fmt"

// MessageType is the single tag byte at the head of a MessageEnvelope. The
// numeric values are fixed by the coordinator and must match bit-for-bit
// (spec.md §3); the retrieved original_source excerpt does not enumerate
// them, so the ordering follows the closed set spec.md §3 lists, in the
// order listed there.
type MessageType uint8

const (
	RPC MessageType = iota
	AttachTo
	TakeBecomingPrimaryCheckpoint
	Checkpoint
	InitialMessage
	RPCBatch
	TakeCheckpoint
)

func (t MessageType) String() string {
	switch t {
	case RPC:
		return "RPC"
	case AttachTo:
		return "AttachTo"
	case TakeBecomingPrimaryCheckpoint:
		return "TakeBecomingPrimaryCheckpoint"
	case Checkpoint:
		return "Checkpoint"
	case InitialMessage:
		return "InitialMessage"
	case RPCBatch:
		return "RPCBatch"
	case TakeCheckpoint:
		return "TakeCheckpoint"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}
