// Package jitterbuffer turns a best-effort, possibly reordered RTP packet
// stream into a monotone sequence of packets whose PTS is aligned to the
// process clock, per §4.1.
package jitterbuffer

import (
	"sort"
	"sync"
	"time"

	"github.com/pion/rtp"

	"github.com/ethan/compositor-pipeline/pkg/clock"
	"github.com/ethan/compositor-pipeline/pkg/logger"
)

// Mode selects the buffer's release policy.
type Mode int

const (
	// ModeFixed releases a reordered packet once it has sat in the buffer
	// for at least FixedDelay.
	ModeFixed Mode = iota
	// ModeQueueBased releases a packet once the queue-based headroom
	// condition is met (30ms decode headroom per §4.1).
	ModeQueueBased
	// ModeDisabled passes packets through in arrival order, unbuffered.
	ModeDisabled
)

// decodeHeadroom is the fixed 30ms decode headroom QueueBased mode reserves
// (spec §4.1: "30ms headroom for decode").
const decodeHeadroom = 30 * time.Millisecond

// Packet is one jitter-buffer-released RTP packet with its resolved PTS.
type Packet struct {
	Packet    *rtp.Packet
	Timestamp time.Duration
}

// rollover tracks 16-bit RTP sequence number wraparound, producing a
// monotonically-extended 64-bit sequence number.
type rollover struct {
	count    uint64
	haveLast bool
	last     uint16
}

func abs16(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}

func (r *rollover) rolled(seq uint16) uint64 {
	if !r.haveLast {
		r.haveLast = true
		r.last = seq
	}
	diff := abs16(r.last, seq)
	if diff >= 0x7FFF {
		if r.last > seq {
			r.count++
		} else if r.count > 0 {
			r.count--
		}
	}
	r.last = seq
	return r.count*(1<<16) + uint64(seq)
}

type bufferedPacket struct {
	packet     *rtp.Packet
	pts        time.Duration
	receivedAt time.Time
}

// Buffer is one input track's jitter buffer.
type Buffer struct {
	mode           Mode
	fixedDelay     time.Duration
	inputBufferDur func() time.Duration // current input buffer size, may vary (InputBuffer.Size)
	sync           *clock.SyncPoint
	ts             *clock.TimestampSync
	log            *logger.Logger

	mu              sync.Mutex
	rollover        rollover
	packets         map[uint64]bufferedPacket
	previousSeqNum  *uint64
	malformedDrops  uint64
}

// Options configures a new Buffer.
type Options struct {
	Mode           Mode
	FixedDelay     time.Duration
	InputBufferDur func() time.Duration
	Sync           *clock.SyncPoint
	Timestamp      *clock.TimestampSync
	Log            *logger.Logger
}

// New constructs an empty jitter buffer for one track.
func New(opts Options) *Buffer {
	if opts.InputBufferDur == nil {
		opts.InputBufferDur = func() time.Duration { return 0 }
	}
	return &Buffer{
		mode:           opts.Mode,
		fixedDelay:     opts.FixedDelay,
		inputBufferDur: opts.InputBufferDur,
		sync:           opts.Sync,
		ts:             opts.Timestamp,
		log:            opts.Log,
		packets:        make(map[uint64]bufferedPacket),
	}
}

// WritePacket enqueues one arriving RTP packet. Packets whose rolled
// sequence number is <= previous_seq_num are dropped per the drop policy.
func (b *Buffer) WritePacket(pkt *rtp.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.rollover.rolled(pkt.SequenceNumber)

	if b.previousSeqNum != nil && *b.previousSeqNum >= seq {
		if b.log != nil {
			b.log.DebugRTP("jitter buffer: packet too old, dropping", "sequence", seq)
		}
		return
	}

	pts := b.ts.Resolve(pkt.Timestamp)
	b.packets[seq] = bufferedPacket{packet: pkt, pts: pts, receivedAt: time.Now()}
}

// sortedSeqNums returns the buffer's keys in ascending order. The Rust
// original keeps a BTreeMap; Go has no ordered map, so pop sorts the (small,
// bounded-by-jitter) key set on demand.
func (b *Buffer) sortedSeqNums() []uint64 {
	keys := make([]uint64, 0, len(b.packets))
	for k := range b.packets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// PopPacket releases the next packet if the buffer's mode permits it now.
// Returns ok=false if nothing is ready yet.
func (b *Buffer) PopPacket() (Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.packets) == 0 {
		return Packet{}, false
	}

	keys := b.sortedSeqNums()
	firstSeq := keys[0]
	first := b.packets[firstSeq]

	ready := b.previousSeqNum == nil || *b.previousSeqNum+1 == firstSeq
	if !ready {
		switch b.mode {
		case ModeFixed:
			if time.Since(first.receivedAt) < b.fixedDelay {
				return Packet{}, false
			}
		case ModeQueueBased:
			lowestPts := first.pts
			for _, k := range keys {
				if b.packets[k].pts < lowestPts {
					lowestPts = b.packets[k].pts
				}
			}
			bufSize := b.inputBufferDur()
			shouldPop := lowestPts+bufSize < b.sync.Elapsed()+decodeHeadroom
			if !shouldPop {
				return Packet{}, false
			}
		case ModeDisabled:
			// pass through in arrival order unconditionally
		}
	}

	delete(b.packets, firstSeq)
	b.previousSeqNum = &firstSeq

	bufSize := b.inputBufferDur()
	return Packet{Packet: first.packet, Timestamp: first.pts + bufSize}, true
}

// OnSenderReport forwards a Sender Report's NTP/RTP correlation directly
// into the shared NtpSyncPoint; a nil ntpSync makes it a no-op.
func (b *Buffer) OnSenderReport(ntpSync *clock.NtpSyncPoint, ntpTime time.Time, rtpTimestamp uint32) {
	if ntpSync == nil {
		return
	}
	ntpSync.ObserveSenderReport(ntpTime, rtpTimestamp)
}

// MalformedDropCount reports how many malformed packets were dropped
// without propagating an error upward, per §4.1 failure semantics.
func (b *Buffer) MalformedDropCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.malformedDrops
}

// DropMalformed records a malformed packet drop (parse failure upstream of
// the buffer, e.g. truncated RTP header).
func (b *Buffer) DropMalformed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.malformedDrops++
}
