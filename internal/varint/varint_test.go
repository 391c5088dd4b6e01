package varint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKnownVectors(t *testing.T) {
	cases := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x01}},
		{1, []byte{0x02}},
		{63, []byte{0x7E}},
		{64, []byte{0x80, 0x01}},
	}
	for _, c := range cases {
		buf := make([]byte, 5)
		n, err := Encode(c.v, buf)
		require.NoError(t, err)
		assert.Equal(t, c.want, buf[:n])
		assert.Equal(t, len(c.want), Size(c.v))
	}
}

func TestRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 63, 64, -64, -65, 1 << 20, -(1 << 20), 1<<31 - 1, -(1 << 31)}
	for _, v := range values {
		buf := make([]byte, 5)
		n, err := Encode(v, buf)
		require.NoError(t, err)
		got, consumed, err := Decode(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, n, consumed)
		assert.Equal(t, Size(v), n)
	}
}

func TestDecodeRejectsSixthContinuationByte(t *testing.T) {
	malformed := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	_, _, err := Decode(malformed)
	assert.ErrorIs(t, err, ErrMalformedVarint)
}

func TestEncodeBufferOverflow(t *testing.T) {
	buf := make([]byte, 1)
	_, err := Encode(64, buf)
	assert.ErrorIs(t, err, ErrBufferOverflow)
}
