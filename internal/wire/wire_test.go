package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIncomingRPCEmptyArgsVector(t *testing.T) {
	// spec.md §8 scenario S2.
	buf := make([]byte, IncomingRPCSize(7, 0))
	b := NewBuilder(buf)
	require.NoError(t, WriteIncomingRPC(b, 7, true, nil))
	assert.Equal(t, []byte{0x08, byte(RPC), 0x00, 0x0E, 0x01}, b.Bytes())
}

func TestIncomingRPCRoundTrip(t *testing.T) {
	args := []byte{1, 2, 3, 4}
	buf := make([]byte, IncomingRPCSize(1234, len(args)))
	b := NewBuilder(buf)
	require.NoError(t, WriteIncomingRPC(b, 1234, false, args))

	typ, body, consumed, err := ReadEnvelope(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, RPC, typ)
	assert.Equal(t, len(b.Bytes()), consumed)

	rpc, err := ParseIncomingRPC(body)
	require.NoError(t, err)
	assert.Equal(t, int32(1234), rpc.MethodID)
	assert.False(t, rpc.FireForget)
	assert.Equal(t, args, rpc.Args)
}

func TestOutgoingRPCHeaderShapeAndRoundTrip(t *testing.T) {
	dest := "X"
	headerLen := OutgoingRPCHeaderSize(dest, 1)
	buf := make([]byte, EnvelopeSize(headerLen))
	b := NewBuilder(buf)
	require.NoError(t, WriteOutgoingRPCHeader(b, dest, 9, 1, true, 0))

	// Outer size = type byte + body (destLen+dest+rpcOrRet+methodID+fireForget).
	typ, body, consumed, err := ReadEnvelope(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, RPC, typ)
	assert.Equal(t, len(b.Bytes()), consumed)

	rpc, err := ParseOutgoingRPC(body)
	require.NoError(t, err)
	assert.Equal(t, "X", rpc.Dest)
	assert.Equal(t, byte(9), rpc.RPCOrRetVal)
	assert.Equal(t, int32(1), rpc.MethodID)
	assert.True(t, rpc.FireForget)
	assert.Empty(t, rpc.Args)
}

func TestLogHeaderRoundTrip(t *testing.T) {
	h := LogHeader{CommitID: 42, TotalSize: HeaderSize + 3, Checksum: -17, SeqID: 99999}
	r := bytes.NewReader(h.Marshal())
	got, err := ReadLogHeader(r)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestReadLogHeaderShortReadIsFatal(t *testing.T) {
	_, err := ReadLogHeader(bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestRPCBatchAccountingExactAndResidual(t *testing.T) {
	entries := []BatchEntry{
		{Type: RPC, Body: []byte{0, 1, 1, 'a'}},
		{Type: RPC, Body: []byte{0, 2, 0, 'b', 'c'}},
	}
	body, err := BuildRPCBatchBody(entries)
	require.NoError(t, err)

	got, err := ParseRPCBatch(body)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entries[0].Body, got[0].Body)
	assert.Equal(t, entries[1].Body, got[1].Body)

	// Residual bytes must be rejected (§8 invariant 8).
	_, err = ParseRPCBatch(append(body, 0xFF))
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestBuilderOverflow(t *testing.T) {
	buf := make([]byte, 2)
	b := NewBuilder(buf)
	require.NoError(t, b.WriteByte(1))
	require.NoError(t, b.WriteByte(2))
	assert.ErrorIs(t, b.WriteByte(3), ErrBufferOverflow)
}
