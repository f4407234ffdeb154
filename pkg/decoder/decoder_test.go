package decoder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

type fakeVideoDecoder struct {
	decodeFn func(chunk media.EncodedChunk) ([]media.DecodedFrame, error)
	flushed  bool
}

func (f *fakeVideoDecoder) Decode(c media.EncodedChunk) ([]media.DecodedFrame, error) {
	return f.decodeFn(c)
}
func (f *fakeVideoDecoder) Flush() []media.DecodedFrame {
	f.flushed = true
	return []media.DecodedFrame{{Pts: 999}}
}

func oneFrameDecoder() *fakeVideoDecoder {
	return &fakeVideoDecoder{decodeFn: func(c media.EncodedChunk) ([]media.DecodedFrame, error) {
		return []media.DecodedFrame{{Pts: c.Pts}}, nil
	}}
}

func TestDynamicDecoderDispatchesByCodec(t *testing.T) {
	h264dec := oneFrameDecoder()
	stream := NewDynamicVideoDecoderStream(map[media.VideoCodec]VideoDecoderFactory{
		media.VideoH264: func() (VideoDecoder, error) { return h264dec, nil },
	})

	frames, err := stream.Decode(media.EncodedChunk{Kind: media.VideoKind(media.VideoH264), Pts: 10 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, frames, 1)
}

func TestDynamicDecoderFlushesOnCodecSwitch(t *testing.T) {
	h264dec := oneFrameDecoder()
	vp8dec := oneFrameDecoder()
	stream := NewDynamicVideoDecoderStream(map[media.VideoCodec]VideoDecoderFactory{
		media.VideoH264: func() (VideoDecoder, error) { return h264dec, nil },
		media.VideoVP8:  func() (VideoDecoder, error) { return vp8dec, nil },
	})

	_, err := stream.Decode(media.EncodedChunk{Kind: media.VideoKind(media.VideoH264)})
	require.NoError(t, err)

	frames, err := stream.Decode(media.EncodedChunk{Kind: media.VideoKind(media.VideoVP8)})
	require.NoError(t, err)
	assert.True(t, h264dec.flushed)
	// flushed frame (pts=999) plus the new decoder's frame.
	assert.Len(t, frames, 2)
}

func TestDynamicDecoderRequestsKeyframeAfterRepeatedEmptyOutput(t *testing.T) {
	emptyDec := &fakeVideoDecoder{decodeFn: func(c media.EncodedChunk) ([]media.DecodedFrame, error) {
		return nil, nil
	}}
	stream := NewDynamicVideoDecoderStream(map[media.VideoCodec]VideoDecoderFactory{
		media.VideoH264: func() (VideoDecoder, error) { return emptyDec, nil },
	})

	for i := 0; i < emptyOutputThreshold; i++ {
		_, err := stream.Decode(media.EncodedChunk{Kind: media.VideoKind(media.VideoH264)})
		require.NoError(t, err)
	}

	select {
	case <-stream.KeyframeRequests:
	default:
		t.Fatal("expected a pending keyframe request")
	}
}

func TestDynamicDecoderFlushSendsEOSOnce(t *testing.T) {
	stream := NewDynamicVideoDecoderStream(nil)
	_, ok := stream.Flush()
	assert.True(t, ok)
	_, ok = stream.Flush()
	assert.False(t, ok, "EOS must propagate exactly once")
}

type fakeRawOpus struct {
	fecCalled bool
}

func (f *fakeRawOpus) DecodeOpus(packet []byte, sampleRate int) (media.AudioSamples, error) {
	return media.AudioSamples{Mono: make(media.MonoSamples, 960)}, nil
}

func (f *fakeRawOpus) DecodeOpusFEC(packet []byte, numSamples int, sampleRate int) (media.AudioSamples, error) {
	f.fecCalled = true
	return media.AudioSamples{Mono: make(media.MonoSamples, numSamples)}, nil
}

func TestOpusDecoderTriggersFECOnGap(t *testing.T) {
	raw := &fakeRawOpus{}
	dec := NewOpusDecoder(raw, 48000)

	// 960 samples at 48kHz cover [80ms, 100ms); the packet for [100ms, 120ms)
	// is lost, so the next chunk at 120ms leaves a 20ms gap.
	_, err := dec.Decode(media.EncodedChunk{Data: []byte{1}, Pts: 80 * time.Millisecond})
	require.NoError(t, err)

	out, err := dec.Decode(media.EncodedChunk{Data: []byte{2}, Pts: 120 * time.Millisecond})
	require.NoError(t, err)

	require.True(t, raw.fecCalled)
	require.Len(t, out, 2)
	assert.Equal(t, 100*time.Millisecond, out[0].StartPts)
}

func TestOpusDecoderSkipsFECWhenNoGap(t *testing.T) {
	raw := &fakeRawOpus{}
	dec := NewOpusDecoder(raw, 48000)

	_, err := dec.Decode(media.EncodedChunk{Data: []byte{1}, Pts: 0})
	require.NoError(t, err)
	out, err := dec.Decode(media.EncodedChunk{Data: []byte{2}, Pts: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.False(t, raw.fecCalled)
	assert.Len(t, out, 1)
}

func TestDynamicDecoderPropagatesDecodeErrorWithoutTerminating(t *testing.T) {
	flaky := &fakeVideoDecoder{decodeFn: func(c media.EncodedChunk) ([]media.DecodedFrame, error) {
		return nil, errors.New("bad bitstream")
	}}
	stream := NewDynamicVideoDecoderStream(map[media.VideoCodec]VideoDecoderFactory{
		media.VideoH264: func() (VideoDecoder, error) { return flaky, nil },
	})

	_, err := stream.Decode(media.EncodedChunk{Kind: media.VideoKind(media.VideoH264)})
	assert.Error(t, err)

	// Stream remains usable.
	_, err = stream.Decode(media.EncodedChunk{Kind: media.VideoKind(media.VideoH264)})
	assert.Error(t, err)
}
