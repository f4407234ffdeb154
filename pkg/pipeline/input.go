package pipeline

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ethan/compositor-pipeline/pkg/decoder"
	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
	"github.com/ethan/compositor-pipeline/pkg/resampler"
)

// keyframeRequestInterval bounds how often a stalled decode stream may
// trigger onKeyframeNeeded. Without it a sender stuck on a corrupt frame
// drives the decode loop's every-chunk keyframe check into a PLI storm.
const keyframeRequestInterval = 2 * time.Second

// Bounded channel capacities for the internal ingress-to-decode and
// decode-to-consumer stages. A full encoded-chunk/decoded-frame/
// decoded-samples channel backpressures its producer; the WHIP/RTMP
// ingress-to-pipeline handoff (reg.FrameSender/SamplesSender) is the one
// exception, since pkg/whip and pkg/rtmp already send onto it
// non-blockingly themselves.
const (
	encodedChunkCapacity   = 10
	decodedFrameCapacity   = 5
	decodedSamplesCapacity = 5
)

// inputState is one registered input's live pipeline state: the decode
// stages every ingress variant feeds the same way, plus whatever
// source-specific goroutines/connections Kind wired up (recorded in
// closeFns for teardown).
type inputState struct {
	id  ids.InputId
	ctx *PipelineCtx

	frameChunks  chan media.EncodedChunk
	sampleChunks chan media.EncodedChunk

	decodedFrames   chan media.DecodedFrame
	decodedSamples  chan decoder.DecodedSamples

	videoDecoder *decoder.DynamicVideoDecoderStream
	audioDecoder decoder.AudioDecoder
	resamp       *resampler.DynamicResampler

	frameMu     sync.Mutex
	latestFrame media.DecodedFrame
	haveFrame   bool

	audio *inputAudioQueue

	volumeMu sync.Mutex
	volume   float64

	// onKeyframeNeeded is called whenever the decode stream asks for a
	// fresh keyframe (repeated empty decode output); the source wiring
	// (e.g. a WHIP OnTrack's RTCP writer) installs this to forward a PLI.
	// keyframeLimiter paces calls to it so a stalled stream can't spam the
	// callback faster than keyframeRequestInterval.
	onKeyframeNeeded func()
	keyframeLimiter  *rate.Limiter

	done     chan struct{}
	closeOnce sync.Once
	wg       sync.WaitGroup
	closeFns []func()
}

func newInputState(ctx *PipelineCtx, id ids.InputId, mixingSampleRate int) *inputState {
	in := &inputState{
		id:             id,
		ctx:            ctx,
		frameChunks:    make(chan media.EncodedChunk, encodedChunkCapacity),
		sampleChunks:   make(chan media.EncodedChunk, encodedChunkCapacity),
		decodedFrames:  make(chan media.DecodedFrame, decodedFrameCapacity),
		decodedSamples: make(chan decoder.DecodedSamples, decodedSamplesCapacity),
		videoDecoder: decoder.NewDynamicVideoDecoderStream(map[media.VideoCodec]decoder.VideoDecoderFactory{
			media.VideoH264: func() (decoder.VideoDecoder, error) {
				return newPassthroughVideoDecoder(media.Resolution{Width: 1280, Height: 720}), nil
			},
		}),
		audioDecoder: decoder.NewOpusDecoder(newPassthroughOpusDecoder(), mixingSampleRate),
		resamp:       resampler.NewDynamicResampler(mixingSampleRate, nil),
		audio:           newInputAudioQueue(),
		volume:          1.0,
		keyframeLimiter: rate.NewLimiter(rate.Every(keyframeRequestInterval), 1),
		done:            make(chan struct{}),
	}
	in.wg.Add(3)
	go in.runVideoDecode()
	go in.runAudioDecode()
	go in.drainFrames()
	return in
}

// pushFrameChunk is the blocking-send entry point used by source wiring
// that does not already own a non-blocking handoff channel (raw RTP, MP4
// playback, RawData). It backpressures the caller when frameChunks is
// full, per the bounded-channel policy.
func (in *inputState) pushFrameChunk(chunk media.EncodedChunk) {
	select {
	case in.frameChunks <- chunk:
	case <-in.done:
	}
}

func (in *inputState) pushSampleChunk(chunk media.EncodedChunk) {
	select {
	case in.sampleChunks <- chunk:
	case <-in.done:
	}
}

// setVolume updates the linear gain applied to this input's samples at the
// next mix tick (spec §4.4 set_input_volume).
func (in *inputState) setVolume(v float64) {
	in.volumeMu.Lock()
	in.volume = v
	in.volumeMu.Unlock()
}

func (in *inputState) getVolume() float64 {
	in.volumeMu.Lock()
	defer in.volumeMu.Unlock()
	return in.volume
}

func (in *inputState) pushRawAudio(batch media.InputAudioSamples) {
	for _, b := range in.resamp.Resample(batch) {
		in.audio.push(b)
	}
}

func (in *inputState) runVideoDecode() {
	defer in.wg.Done()
	for {
		select {
		case chunk, ok := <-in.frameChunks:
			if !ok {
				return
			}
			frames, err := in.videoDecoder.Decode(chunk)
			if err != nil {
				in.ctx.Log.DebugNAL("video decode error", "input", in.id, "error", err)
			}
			for _, f := range frames {
				select {
				case in.decodedFrames <- f:
				case <-in.done:
					return
				}
			}
			in.drainKeyframeRequest()
		case <-in.done:
			return
		}
	}
}

func (in *inputState) drainKeyframeRequest() {
	select {
	case <-in.videoDecoder.KeyframeRequests:
		if in.onKeyframeNeeded != nil && in.keyframeLimiter.Allow() {
			in.onKeyframeNeeded()
		}
	default:
	}
}

func (in *inputState) runAudioDecode() {
	defer in.wg.Done()
	for {
		select {
		case chunk, ok := <-in.sampleChunks:
			if !ok {
				return
			}
			batches, err := in.audioDecoder.Decode(chunk)
			if err != nil {
				in.ctx.Log.DebugMixer("audio decode error", "input", in.id, "error", err)
				continue
			}
			for _, b := range batches {
				select {
				case in.decodedSamples <- b:
				case <-in.done:
					return
				}
			}
		case <-in.done:
			return
		}
	}
}

// drainFrames owns decodedFrames' receive side, keeping only the most
// recently decoded frame available for the render tick to pull, and
// resampling audio as it arrives on decodedSamples.
func (in *inputState) drainFrames() {
	defer in.wg.Done()
	for {
		select {
		case f, ok := <-in.decodedFrames:
			if !ok {
				return
			}
			in.setLatestFrame(f)
		case s, ok := <-in.decodedSamples:
			if !ok {
				return
			}
			for _, b := range in.resamp.Resample(media.InputAudioSamples{
				Samples:    s.Samples,
				StartPts:   s.StartPts,
				SampleRate: s.SampleRate,
			}) {
				in.audio.push(b)
			}
		case <-in.done:
			return
		}
	}
}

func (in *inputState) setLatestFrame(f media.DecodedFrame) {
	in.frameMu.Lock()
	in.latestFrame = f
	in.haveFrame = true
	in.frameMu.Unlock()
}

// currentFrame returns the most recently decoded frame, if any.
func (in *inputState) currentFrame() (media.DecodedFrame, bool) {
	in.frameMu.Lock()
	defer in.frameMu.Unlock()
	return in.latestFrame, in.haveFrame
}

// shutdown runs the cancellation sequence: stop accepting new media,
// close the internal channels, best-effort tear down the source
// connection, then wait for the decode goroutines to exit.
func (in *inputState) shutdown() {
	in.closeOnce.Do(func() {
		close(in.done)
		for _, fn := range in.closeFns {
			go fn()
		}
	})
	in.wg.Wait()
}

// inputAudioQueue is a small bounded FIFO of resampled audio batches
// waiting to be pulled by an output's mix tick. Unlike the decode-stage
// channels, it drops its oldest entry on overflow rather than
// backpressuring: a slow/absent output must never stall an input's decode
// loop, and the mixer only ever wants the most recent ~1s of audio.
type inputAudioQueue struct {
	mu    sync.Mutex
	items []resampler.Batch
}

const inputAudioQueueMax = 50 // ~1s at the 20ms batch duration

func newInputAudioQueue() *inputAudioQueue { return &inputAudioQueue{} }

func (q *inputAudioQueue) push(b resampler.Batch) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, b)
	if len(q.items) > inputAudioQueueMax {
		q.items = q.items[len(q.items)-inputAudioQueueMax:]
	}
}

func (q *inputAudioQueue) pop() (resampler.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return resampler.Batch{}, false
	}
	b := q.items[0]
	q.items = q.items[1:]
	return b, true
}
