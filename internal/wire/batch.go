package wire

import (
	"errors"

	"github.com/ocx/ambrosia-client/internal/varint"
)

// BatchEntry is one inner MessageEnvelope of an RPCBatch, as delivered to the
// ingress loop. Ingress treats every entry as an RPC regardless of its
// declared Type — spec.md §4.8 preserves this source behavior, noting in §9
// open question 4 that it is unclear whether non-RPC inner types are
// possible on the wire.
type BatchEntry struct {
	Type MessageType
	Body []byte
}

// BuildRPCBatchBody concatenates entries into an RPCBatch body: ⟨numMsgs⟩
// followed by each entry's MessageEnvelope.
func BuildRPCBatchBody(entries []BatchEntry) ([]byte, error) {
	total := varint.Size(int32(len(entries)))
	for _, e := range entries {
		total += EnvelopeSize(len(e.Body))
	}
	buf := make([]byte, total)
	b := NewBuilder(buf)
	if err := b.WriteVarint(int32(len(entries))); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := WriteEnvelope(b, e.Type, e.Body); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// ParseRPCBatch decodes an RPCBatch body, verifying that walking the
// declared numMsgs envelopes consumes exactly the remaining bytes (spec.md
// §8 invariant 8 / scenario S4). Any residual or shortfall is
// ErrProtocolViolation.
func ParseRPCBatch(body []byte) ([]BatchEntry, error) {
	numMsgs, n, err := varint.Decode(body)
	if err != nil {
		return nil, err
	}
	if numMsgs < 0 {
		return nil, ErrProtocolViolation
	}
	rest := body[n:]
	entries := make([]BatchEntry, 0, numMsgs)
	for i := int32(0); i < numMsgs; i++ {
		t, innerBody, consumed, err := ReadEnvelope(rest)
		if err != nil {
			if errors.Is(err, varint.ErrMalformedVarint) {
				return nil, err
			}
			return nil, ErrProtocolViolation
		}
		entries = append(entries, BatchEntry{Type: t, Body: innerBody})
		rest = rest[consumed:]
	}
	if len(rest) != 0 {
		return nil, ErrProtocolViolation
	}
	return entries, nil
}
