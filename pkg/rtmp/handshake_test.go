package rtmp

import (
	"bytes"
	"testing"

	"github.com/sigurn/crc8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback is an io.ReadWriter backed by two independent buffers, letting
// Handshake's writes be inspected while also supplying canned reads.
type loopback struct {
	in  *bytes.Reader
	out *bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }

func TestHandshakeWritesS0S1S2AndReturnsChecksums(t *testing.T) {
	c1 := bytes.Repeat([]byte{0x42}, handshakePayloadSize)
	c2 := bytes.Repeat([]byte{0x24}, handshakePayloadSize)

	var in bytes.Buffer
	in.WriteByte(handshakeVersion)
	in.Write(c1)
	in.Write(c2)

	rw := &loopback{in: bytes.NewReader(in.Bytes()), out: &bytes.Buffer{}}

	c1Checksum, s1Checksum, err := Handshake(rw)
	require.NoError(t, err)
	assert.Equal(t, crc8.Checksum(c1, crc8Table), c1Checksum)
	assert.NotZero(t, s1Checksum)

	out := rw.out.Bytes()
	require.Len(t, out, 1+handshakePayloadSize+handshakePayloadSize)
	assert.Equal(t, byte(handshakeVersion), out[0])
	s2 := out[1+handshakePayloadSize:]
	assert.Equal(t, c1, s2) // S2 echoes C1
}

func TestHandshakeRejectsUnsupportedVersion(t *testing.T) {
	rw := &loopback{in: bytes.NewReader([]byte{9}), out: &bytes.Buffer{}}
	_, _, err := Handshake(rw)
	assert.Error(t, err)
}
