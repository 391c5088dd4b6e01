package wire

import (
	"errors"

	"github.com/ocx/ambrosia-client/internal/varint"
)

// ErrProtocolViolation covers unexpected message types and size mismatches
// encountered while walking envelopes (spec.md §7).
var ErrProtocolViolation = errors.New("wire: protocol violation")

// WriteEnvelope appends a MessageEnvelope — ⟨size⟩⟨type⟩⟨body⟩ — to b. size
// counts the type byte plus body but not the size varint itself (spec.md
// §3).
func WriteEnvelope(b *Builder, t MessageType, body []byte) error {
	size := int32(1 + len(body))
	if err := b.WriteVarint(size); err != nil {
		return err
	}
	if err := b.WriteByte(byte(t)); err != nil {
		return err
	}
	return b.WriteBytes(body)
}

// EnvelopeSize returns the number of bytes WriteEnvelope would write for a
// body of length bodyLen, without writing anything — used by callers that
// need to size a Builder's backing buffer up front.
func EnvelopeSize(bodyLen int) int {
	return varint.Size(int32(1+bodyLen)) + 1 + bodyLen
}

// ReadEnvelope decodes one MessageEnvelope from the front of data, returning
// its type, body slice (aliasing data), and the number of bytes consumed.
func ReadEnvelope(data []byte) (t MessageType, body []byte, consumed int, err error) {
	size, n, err := varint.Decode(data)
	if err != nil {
		return 0, nil, 0, err
	}
	if size < 1 {
		return 0, nil, 0, ErrProtocolViolation
	}
	bodyLen := int(size) - 1
	need := n + 1 + bodyLen
	if need > len(data) {
		return 0, nil, 0, ErrProtocolViolation
	}
	t = MessageType(data[n])
	body = data[n+1 : need]
	return t, body, need, nil
}
