package jitterbuffer

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/clock"
)

func newTestBuffer(mode Mode) *Buffer {
	sp := clock.NewSyncPoint()
	ts := clock.NewTimestampSync(sp, 90000, 0)
	return New(Options{Mode: mode, Sync: sp, Timestamp: ts})
}

func pkt(seq uint16, ts uint32) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{SequenceNumber: seq, Timestamp: ts}}
}

func TestDisabledModePassesThroughInOrder(t *testing.T) {
	b := newTestBuffer(ModeDisabled)

	b.WritePacket(pkt(1, 0))
	b.WritePacket(pkt(2, 3000))

	p1, ok := b.PopPacket()
	require.True(t, ok)
	p2, ok := b.PopPacket()
	require.True(t, ok)

	assert.Less(t, p1.Timestamp, p2.Timestamp)
}

func TestDropsOldPackets(t *testing.T) {
	b := newTestBuffer(ModeDisabled)

	b.WritePacket(pkt(5, 0))
	_, ok := b.PopPacket()
	require.True(t, ok)

	// Sequence 3 is older than the last delivered (5); must be dropped.
	b.WritePacket(pkt(3, 1000))
	_, ok = b.PopPacket()
	assert.False(t, ok)
}

func TestDropsDuplicateSeqNum(t *testing.T) {
	b := newTestBuffer(ModeDisabled)

	b.WritePacket(pkt(5, 0))
	_, ok := b.PopPacket()
	require.True(t, ok)

	// A repeat of the last delivered sequence number must also be dropped,
	// not accepted and re-released.
	b.WritePacket(pkt(5, 1000))
	_, ok = b.PopPacket()
	assert.False(t, ok)
}

func TestFixedModeWaitsForDelay(t *testing.T) {
	b := newTestBuffer(ModeFixed)
	b.fixedDelay = 50 * time.Millisecond

	b.WritePacket(pkt(1, 0))
	_, ok := b.PopPacket() // first packet always releases
	require.True(t, ok)

	b.WritePacket(pkt(3, 6000)) // out of order relative to expected seq 2
	_, ok = b.PopPacket()
	assert.False(t, ok, "should wait out the fixed delay")

	time.Sleep(60 * time.Millisecond)
	_, ok = b.PopPacket()
	assert.True(t, ok)
}

func TestRolloverAcrossSequenceWrap(t *testing.T) {
	r := &rollover{}
	first := r.rolled(65530)
	wrapped := r.rolled(5)
	assert.Greater(t, wrapped, first)
}
