package ingress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocx/ambrosia-client/internal/ring"
	"github.com/ocx/ambrosia-client/internal/wire"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	calls   []int32
	failFor map[int32]error
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{failFor: map[int32]error{}}
}

func (d *recordingDispatcher) Dispatch(methodID int32, args []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, methodID)
	return d.failFor[methodID]
}

func (d *recordingDispatcher) Calls() []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int32(nil), d.calls...)
}

type stubCheckpointWriter struct{}

func (stubCheckpointWriter) WriteDummyCheckpoint(w io.Writer) error {
	_, err := w.Write([]byte{0x02, byte(wire.Checkpoint), 0x00})
	return err
}

func recordBytes(body []byte) []byte {
	h := wire.LogHeader{TotalSize: int32(wire.HeaderSize + len(body))}
	out := append([]byte{}, h.Marshal()...)
	return append(out, body...)
}

func incomingRPCBytes(methodID int32, fireForget bool, args []byte) []byte {
	n := wire.IncomingRPCSize(methodID, len(args))
	buf := make([]byte, n)
	b := wire.NewBuilder(buf)
	_ = wire.WriteIncomingRPC(b, methodID, fireForget, args)
	return b.Bytes()
}

func TestLoopDispatchesSingleRPC(t *testing.T) {
	rpc := incomingRPCBytes(5, false, []byte("hi"))
	down := bytes.NewReader(recordBytes(rpc))
	dispatcher := newRecordingDispatcher()
	terminating := &atomic.Bool{}
	terminating.Store(true) // exit after the one record this test supplies

	err := Loop(context.Background(), down, dispatcher, stubCheckpointWriter{}, nil, terminating)
	require.NoError(t, err)
	require.Equal(t, []int32{5}, dispatcher.Calls())
}

func TestLoopExpandsRPCBatch(t *testing.T) {
	entries := []wire.BatchEntry{
		{Type: wire.RPC, Body: incomingRPCBytesBody(1, true, nil)},
		{Type: wire.RPC, Body: incomingRPCBytesBody(2, true, nil)},
	}
	batchBody, err := wire.BuildRPCBatchBody(entries)
	require.NoError(t, err)

	outerLen := wire.EnvelopeSize(len(batchBody))
	outerBuf := make([]byte, outerLen)
	outerBuilder := wire.NewBuilder(outerBuf)
	require.NoError(t, wire.WriteEnvelope(outerBuilder, wire.RPCBatch, batchBody))

	down := bytes.NewReader(recordBytes(outerBuilder.Bytes()))
	dispatcher := newRecordingDispatcher()
	terminating := &atomic.Bool{}
	terminating.Store(true) // loop exits after this one record

	ctx := context.Background()
	err = Loop(ctx, down, dispatcher, stubCheckpointWriter{}, nil, terminating)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2}, dispatcher.Calls())
}

func TestLoopRoutesTakeCheckpointThroughRing(t *testing.T) {
	body := []byte{0x02, byte(wire.TakeCheckpoint)} // size=1 (zig-zag 0x02)
	down := bytes.NewReader(recordBytes(body))
	r := ring.New(1024)
	terminating := &atomic.Bool{}
	terminating.Store(true)

	err := Loop(context.Background(), down, newRecordingDispatcher(), stubCheckpointWriter{}, r, terminating)
	require.NoError(t, err)

	chunk, err := r.Peek(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, chunk)
	msgType, _, _, err := wire.ReadEnvelope(chunk)
	require.NoError(t, err)
	require.Equal(t, wire.Checkpoint, msgType)
}

func TestLoopUnknownTypeIsProtocolViolation(t *testing.T) {
	body := []byte{0x02, byte(wire.AttachTo)} // size=1 (zig-zag 0x02)
	down := bytes.NewReader(recordBytes(body))
	terminating := &atomic.Bool{}

	err := Loop(context.Background(), down, newRecordingDispatcher(), stubCheckpointWriter{}, nil, terminating)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProtocolViolation))
}

// incomingRPCBytesBody returns just the RPC body (no outer envelope size
// prefix), for embedding as a BatchEntry.Body.
func incomingRPCBytesBody(methodID int32, fireForget bool, args []byte) []byte {
	full := incomingRPCBytes(methodID, fireForget, args)
	_, body, _, err := wire.ReadEnvelope(full)
	if err != nil {
		panic(err)
	}
	return body
}
