// Package clock implements the process-wide queue sync point: the single
// wall-clock anchor every input/output timestamp is expressed relative to,
// plus the RTP timestamp rollover/offset arithmetic the jitter buffer and
// the RTP/NTP sync point need.
package clock

import (
	"sync"
	"time"
)

// SyncPoint is the process-wide wall-clock anchor (`queue_sync_point`)
// established once at startup. All PTS values in the pipeline are monotone
// durations measured from this instant.
type SyncPoint struct {
	established time.Time
}

// NewSyncPoint establishes a sync point at the current instant.
func NewSyncPoint() *SyncPoint {
	return &SyncPoint{established: time.Now()}
}

// Elapsed returns the monotone duration since the sync point.
func (s *SyncPoint) Elapsed() time.Duration {
	return time.Since(s.established)
}

// At returns the wall-clock instant t after the sync point.
func (s *SyncPoint) At(t time.Duration) time.Time {
	return s.established.Add(t)
}

// rtpRollover tracks 32-bit RTP timestamp wraparound for one track, turning
// a raw RTP timestamp stream into a monotonically-extended 64-bit count.
// A timestamp step that exceeds half the 32-bit range backward is treated
// as a forward wrap; an out-of-order step back below the same threshold
// reverses (decrements) a previously-counted wrap.
type rtpRollover struct {
	mu       sync.Mutex
	hasPrev  bool
	prevRaw  uint32
	rollover int64
}

const halfUint32Range = uint32(1) << 31

// Extend folds ts into the running rollover count and returns the
// unwrapped 64-bit timestamp.
func (r *rtpRollover) Extend(ts uint32) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasPrev {
		r.hasPrev = true
		r.prevRaw = ts
		return int64(ts)
	}

	delta := int64(ts) - int64(r.prevRaw)
	switch {
	case delta < -int64(halfUint32Range):
		// ts wrapped forward past 2^32.
		r.rollover++
	case delta > int64(halfUint32Range):
		// an earlier wrap is being walked back by an out-of-order packet.
		r.rollover--
	}
	r.prevRaw = ts

	return r.rollover*int64(uint64(1)<<32) + int64(ts)
}

// TimestampSync converts a per-track RTP timestamp stream into process-clock
// durations, per spec §4.1: `pts := (rolled - rtp_ts_offset)/clock_rate +
// sync_offset + buffer_duration`.
type TimestampSync struct {
	sync       *SyncPoint
	clockRate  uint32
	bufferDur  time.Duration
	rollover   rtpRollover

	mu         sync.Mutex
	haveOffset bool
	rtpOffset  int64
	syncOffset time.Duration
}

// NewTimestampSync constructs a sync tracker for one track.
func NewTimestampSync(sp *SyncPoint, clockRate uint32, bufferDuration time.Duration) *TimestampSync {
	return &TimestampSync{
		sync:      sp,
		clockRate: clockRate,
		bufferDur: bufferDuration,
	}
}

// Resolve maps a raw 32-bit RTP timestamp to a process-clock PTS. The first
// call establishes rtp_timestamp_offset and sync_offset; all later calls are
// relative to that anchor.
func (t *TimestampSync) Resolve(rawTS uint32) time.Duration {
	rolled := t.rollover.Extend(rawTS)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.haveOffset {
		t.haveOffset = true
		t.rtpOffset = rolled
		t.syncOffset = t.sync.Elapsed()
	}

	ticks := rolled - t.rtpOffset
	rel := time.Duration(ticks) * time.Second / time.Duration(t.clockRate)
	return rel + t.syncOffset + t.bufferDur
}

// HasOffset reports whether the first packet has been observed yet.
func (t *TimestampSync) HasOffset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.haveOffset
}

// NtpSyncPoint accumulates cross-track evidence (a reference RTP/PTS pair,
// and a Sender Report's NTP/RTP pair) to publish the NTP time of the shared
// SyncPoint, letting later tracks re-align their sync_offset precisely.
type NtpSyncPoint struct {
	mu sync.Mutex

	haveRef    bool
	refRTPTS   uint32
	refPTS     time.Duration
	haveSR     bool
	srNTP      time.Time
	srRTPTS    uint32
	clockRate  uint32

	published  bool
	ntpAtSync  time.Time
}

// NewNtpSyncPoint creates an empty accumulator for one connection.
func NewNtpSyncPoint(clockRate uint32) *NtpSyncPoint {
	return &NtpSyncPoint{clockRate: clockRate}
}

// ObserveReference records a reference (rtp timestamp, pts) pair, typically
// from the first packet of the first track to arrive.
func (n *NtpSyncPoint) ObserveReference(rtpTS uint32, pts time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.haveRef {
		return
	}
	n.haveRef = true
	n.refRTPTS = rtpTS
	n.refPTS = pts
	n.tryPublish()
}

// ObserveSenderReport records an RTCP Sender Report's NTP/RTP correlation.
func (n *NtpSyncPoint) ObserveSenderReport(ntpTime time.Time, rtpTS uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.haveSR = true
	n.srNTP = ntpTime
	n.srRTPTS = rtpTS
	n.tryPublish()
}

// tryPublish computes the NTP time of the sync point once both a reference
// sample and a Sender Report are available. Caller must hold n.mu.
func (n *NtpSyncPoint) tryPublish() {
	if n.published || !n.haveRef || !n.haveSR {
		return
	}
	tickDelta := int64(n.srRTPTS) - int64(n.refRTPTS)
	tickDur := time.Duration(tickDelta) * time.Second / time.Duration(n.clockRate)
	// srNTP corresponds to srRTPTS; walk back by tickDur to the instant
	// refRTPTS (i.e. refPTS, i.e. the sync point plus refPTS) occurred.
	ntpAtRef := n.srNTP.Add(-tickDur)
	n.ntpAtSync = ntpAtRef.Add(-n.refPTS)
	n.published = true
}

// NtpAtSyncPoint returns the published NTP time of the sync point and
// whether it has been established yet.
func (n *NtpSyncPoint) NtpAtSyncPoint() (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ntpAtSync, n.published
}
