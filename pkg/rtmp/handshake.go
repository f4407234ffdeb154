package rtmp

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
)

// RTMP protocol version, Adobe RTMP 1.0 §5.2 (C0/S0).
const handshakeVersion = 3

const handshakePayloadSize = 1536

var (
	crc8Table  = crc8.MakeTable(crc8.CRC8)
	crc16Table = crc16.MakeTable(crc16.CRC16_XMODEM)
)

// Handshake performs the server side of the plain RTMP handshake (C0/C1/C2
// <-> S0/S1/S2). This package implements the plain handshake only: the
// original_source reference carried no digest/complex-handshake scheme, so
// neither is reproduced here (see DESIGN.md). crc8/crc16 checksums of the
// exchanged random payloads are computed and returned purely as a
// connection-diagnostic value for DebugRTMP-level logging; they are not
// part of the wire protocol and are never checked against a peer value.
func Handshake(rw io.ReadWriter) (c1Checksum uint8, s1Checksum uint16, err error) {
	c0, err := readN(rw, 1)
	if err != nil {
		return 0, 0, fmt.Errorf("rtmp: read C0: %w", err)
	}
	if c0[0] != handshakeVersion {
		return 0, 0, fmt.Errorf("rtmp: unsupported handshake version %d", c0[0])
	}

	c1, err := readN(rw, handshakePayloadSize)
	if err != nil {
		return 0, 0, fmt.Errorf("rtmp: read C1: %w", err)
	}
	c1Checksum = crc8.Checksum(c1, crc8Table)

	s1 := make([]byte, handshakePayloadSize)
	copy(s1[0:4], []byte{0, 0, 0, 0}) // time = 0
	copy(s1[4:8], []byte{0, 0, 0, 0}) // zero
	if _, err := rand.Read(s1[8:]); err != nil {
		return 0, 0, fmt.Errorf("rtmp: generate S1 random: %w", err)
	}
	s1Checksum = crc16.Checksum(s1, crc16Table)

	if _, err := rw.Write([]byte{handshakeVersion}); err != nil { // S0
		return 0, 0, fmt.Errorf("rtmp: write S0: %w", err)
	}
	if _, err := rw.Write(s1); err != nil { // S1
		return 0, 0, fmt.Errorf("rtmp: write S1: %w", err)
	}
	if _, err := rw.Write(c1); err != nil { // S2 echoes C1
		return 0, 0, fmt.Errorf("rtmp: write S2: %w", err)
	}

	c2, err := readN(rw, handshakePayloadSize)
	if err != nil {
		return 0, 0, fmt.Errorf("rtmp: read C2: %w", err)
	}
	_ = c2 // the plain handshake does not validate C2 against S1

	return c1Checksum, s1Checksum, nil
}

func readN(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
