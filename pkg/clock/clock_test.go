package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampSyncFirstPacketIsZero(t *testing.T) {
	sp := NewSyncPoint()
	ts := NewTimestampSync(sp, 90000, 0)

	pts := ts.Resolve(12345)
	assert.Equal(t, time.Duration(0), pts)
	assert.True(t, ts.HasOffset())
}

func TestTimestampSyncIsMonotone(t *testing.T) {
	sp := NewSyncPoint()
	ts := NewTimestampSync(sp, 90000, 0)

	first := ts.Resolve(1000)
	second := ts.Resolve(1000 + 90000) // +1s at 90kHz
	require.Equal(t, ts.syncOffset, first)
	assert.InDelta(t, float64(time.Second), float64(second), float64(2*time.Millisecond))
}

func TestTimestampSyncHandlesRollover(t *testing.T) {
	sp := NewSyncPoint()
	ts := NewTimestampSync(sp, 90000, 0)

	ts.Resolve(0xFFFFFF00)
	after := ts.Resolve(0x00000100) // wrapped forward past 2^32

	assert.Greater(t, after, time.Duration(0))
}

func TestNtpSyncPointPublishesOnceBothObservationsArrive(t *testing.T) {
	n := NewNtpSyncPoint(90000)

	_, ok := n.NtpAtSyncPoint()
	assert.False(t, ok)

	n.ObserveReference(1000, 0)
	_, ok = n.NtpAtSyncPoint()
	assert.False(t, ok, "sender report not observed yet")

	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.ObserveSenderReport(ref, 1000+90000) // 1s later at 90kHz

	got, ok := n.NtpAtSyncPoint()
	require.True(t, ok)
	assert.WithinDuration(t, ref.Add(-time.Second), got, time.Millisecond)
}
