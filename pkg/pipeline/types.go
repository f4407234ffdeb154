package pipeline

import (
	"time"

	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
	"github.com/ethan/compositor-pipeline/pkg/scene"
)

// InputKind tags which variant of InputOptions is populated.
type InputKind int

const (
	InputRtp InputKind = iota
	InputWhip
	InputWhep
	InputRtmp
	InputMp4
	InputRawData
)

// InputOptions is the tagged-union register_input request body: exactly
// one of the kind-specific fields is meaningful, selected by Kind.
type InputOptions struct {
	Kind InputKind

	// Volume is the linear gain applied to this input's samples before
	// mixing (spec §4.4 per-input volume scaling). Zero defaults to 1.0
	// (unity gain) rather than silencing the input, so callers that never
	// set it get the previous unconditional-passthrough behavior.
	Volume float64

	// Rtp: raw RTP ingress, pipeline owns the jitter buffer and
	// depayloader directly (no WHIP/WHEP/RTMP signaling involved).
	Rtp RtpOptions

	// Whip: hosted WHIP ingress. The endpoint is served by whatever
	// whip.Server an embedder mounted over Engine.Ctx.WhipRegistry.
	Whip WhipInputOptions

	// Whep: pipeline pulls media from a remote WHEP server.
	Whep WhepInputOptions

	// Rtmp: hosted RTMP ingress, keyed by stream key, served by whatever
	// rtmp.Server an embedder mounted over Engine.Ctx.RtmpRegistry.
	Rtmp RtmpInputOptions

	// Mp4: file-based ingress, played back paced to its own sample
	// timestamps against the process clock.
	Mp4 Mp4InputOptions

	// RawData: no network side at all; the caller pushes media directly
	// via the returned RawDataInputPort.
	RawData RawDataInputOptions
}

// RtpOptions configures a raw-RTP input: one jitter buffer + depayloader
// per track that was negotiated out of band (there is no RTP-level
// signaling in scope here, per spec's ingress surface).
type RtpOptions struct {
	VideoListenAddr string // "" disables the video track
	AudioListenAddr string // "" disables the audio track
	VideoCodec      media.VideoCodec
	AudioCodec      media.AudioCodec
	VideoClockRate  uint32
	AudioClockRate  uint32
}

// WhipInputOptions registers a hosted WHIP ingress endpoint.
type WhipInputOptions struct {
	EndpointId       string
	BearerToken      string
	VideoPreferences []media.VideoCodec
}

// WhepInputOptions pulls media from a remote WHEP server (pipeline is the
// WHEP client).
type WhepInputOptions struct {
	EndpointURL string
	BearerToken string
	StunServers []string
	VideoCodecs []media.VideoCodec
}

// RtmpInputOptions registers a hosted RTMP ingress stream key.
type RtmpInputOptions struct {
	StreamKey string
}

// Mp4InputOptions plays an MP4 file back into the pipeline.
type Mp4InputOptions struct {
	Path string
	Loop bool
}

// RawDataInputOptions marks an input fed directly by the embedding
// program rather than any network/file source.
type RawDataInputOptions struct{}

// InitInfo is register_input's synchronous result: whatever the caller
// needs to complete out-of-band signaling (e.g. the WHIP endpoint's public
// URL) plus a handle for RawData inputs.
type InitInfo struct {
	WhipEndpointPath string // e.g. "/whip/<endpoint_id>", set only for Kind==InputWhip
	RawData          *RawDataInputPort
}

// RawDataInputPort lets an embedding program push media straight into a
// RawData input.
type RawDataInputPort struct {
	in *inputState
}

// PushVideo feeds one encoded video chunk into the input's decode stage.
func (p *RawDataInputPort) PushVideo(chunk media.EncodedChunk) {
	chunk.Kind.IsVideo = true
	p.in.pushFrameChunk(chunk)
}

// PushAudio feeds one encoded audio chunk into the input's decode stage.
func (p *RawDataInputPort) PushAudio(chunk media.EncodedChunk) {
	chunk.Kind.IsVideo = false
	p.in.pushSampleChunk(chunk)
}

// PushDecodedVideo bypasses decode entirely, handing an already-decoded
// frame straight to the render tick.
func (p *RawDataInputPort) PushDecodedVideo(frame media.DecodedFrame) {
	p.in.setLatestFrame(frame)
}

// PushDecodedAudio bypasses decode entirely, resampling already-decoded
// audio to the mixing sample rate and enqueuing it for the mixer.
func (p *RawDataInputPort) PushDecodedAudio(batch media.InputAudioSamples) {
	p.in.pushRawAudio(batch)
}

// OutputKind tags which variant of OutputOptions is populated.
type OutputKind int

const (
	OutputRtp OutputKind = iota
	OutputWhip
	OutputWhep
	OutputRtmp
	OutputMp4
	OutputRawData
	OutputEncodedData
)

// OutputOptions is the tagged-union register_output request body.
type OutputOptions struct {
	Kind OutputKind

	Resolution  media.Resolution
	Framerate   int // 0 defaults to Config.OutputFramerate
	Stereo      bool
	VideoCodec  media.VideoCodec
	AudioCodec  media.AudioCodec

	Rtp     RtpOutputOptions
	Whip    WhipOutputOptions
	Whep    WhepOutputOptions
	Rtmp    RtmpOutputOptions
	Mp4     Mp4OutputOptions
}

// RtpOutputOptions configures a raw-RTP egress target (out of band
// negotiated, same as RtpOptions on ingress).
type RtpOutputOptions struct {
	VideoAddr string
	AudioAddr string
}

// WhipOutputOptions pushes media to a remote WHIP server (pipeline is the
// WHIP client).
type WhipOutputOptions struct {
	EndpointURL string
	BearerToken string
	StunServers []string
}

// WhepOutputOptions registers a hosted WHEP egress endpoint (pipeline
// serves the pull).
type WhepOutputOptions struct {
	EndpointId  string
	BearerToken string
}

// RtmpOutputOptions pushes media to a remote RTMP server (pipeline is the
// publishing client).
type RtmpOutputOptions struct {
	Addr      string
	App       string
	StreamKey string
}

// Mp4OutputOptions writes media to a local MP4 file.
type Mp4OutputOptions struct {
	Path string
}

// Port is register_output's synchronous result for the data-sink variants
// (RawData/EncodedData): the channel the caller reads produced media from.
// Every other variant returns a nil Port since their sink is the network,
// not the caller.
type Port struct {
	Video <-chan media.EncodedChunk
	Audio <-chan media.EncodedChunk
}

// RendererSpec is the tagged-union register_renderer request body.
type RendererSpec struct {
	Kind  RendererKind
	Image ImageRendererSpec
}

type RendererKind int

const (
	RendererImage RendererKind = iota
)

// ImageRendererSpec registers an image asset (PNG/JPEG, or an animated
// GIF), decoded once at registration; each render tick rasterizes the
// current frame again, with no render.TextureCache lookup.
type ImageRendererSpec struct {
	Path string // local file path; DownloadRoot-relative fetch is cmd/compositor's concern
}

// sceneUpdate pairs an update_scene payload with its arrival time. Nothing
// queues it: UpdateScene swaps the output's root directly under sceneMu,
// and the next render tick reads that root.
type sceneUpdate struct {
	root scene.Component
	at   time.Time
}

// ComponentId re-exported for callers building scene trees against this
// package without importing pkg/ids directly.
type ComponentId = ids.ComponentId
