package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	pionwebrtc "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/ethan/compositor-pipeline/pkg/encoder"
	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
	"github.com/ethan/compositor-pipeline/pkg/mixer"
	"github.com/ethan/compositor-pipeline/pkg/mp4"
	"github.com/ethan/compositor-pipeline/pkg/render"
	"github.com/ethan/compositor-pipeline/pkg/rtmp"
	"github.com/ethan/compositor-pipeline/pkg/scene"
	"github.com/ethan/compositor-pipeline/pkg/whip"
)

// encodedOutputCapacity bounds the encoded-chunk channel every egress sink
// (or RawData/EncodedData caller) reads from.
const encodedOutputCapacity = 1000

// outputState is one registered output's live pipeline state: its scene
// graph, texture cache, mix/render ticks, and whatever egress sink Kind
// wired up.
type outputState struct {
	id  ids.OutputId
	ctx *PipelineCtx

	resolution media.Resolution
	framerate  int
	stereo     bool

	graph   *scene.Graph
	cache   *render.TextureCache
	sceneMu sync.Mutex
	root    scene.Component

	mixer        *mixer.Mixer
	videoEncoder *encoder.VideoStreamAdapter
	audioEncoder *encoder.AudioStreamAdapter

	shaderRenderer  render.ShaderRenderer
	webViewRenderer render.WebViewRenderer
	textRenderer    render.TextRenderer

	videoOut chan media.EncodedChunk
	audioOut chan media.EncodedChunk

	inputs   map[ids.InputId]*inputState
	inputsMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	closeFns  []func()
}

func newOutputState(ctx *PipelineCtx, id ids.OutputId, opts OutputOptions) *outputState {
	framerate := opts.Framerate
	if framerate == 0 {
		framerate = ctx.Config.OutputFramerate
	}
	strategy := mixer.SumClip
	out := &outputState{
		id:           id,
		ctx:          ctx,
		resolution:   opts.Resolution,
		framerate:    framerate,
		stereo:       opts.Stereo,
		graph:        scene.New(),
		cache:        render.NewTextureCache(),
		mixer:        mixer.New(strategy, opts.Stereo),
		videoEncoder: encoder.NewVideoStreamAdapter(newPassthroughVideoEncoder()),
		audioEncoder: encoder.NewAudioStreamAdapter(newPassthroughAudioEncoder()),

		shaderRenderer:  render.PassthroughShaderRenderer{},
		webViewRenderer: render.PassthroughWebViewRenderer{},
		textRenderer:    render.PassthroughTextRenderer{},
		videoOut:     make(chan media.EncodedChunk, encodedOutputCapacity),
		audioOut:     make(chan media.EncodedChunk, encodedOutputCapacity),
		inputs:       map[ids.InputId]*inputState{},
		done:         make(chan struct{}),
	}
	return out
}

// attachInput makes in's decoded frames/audio eligible for this output's
// composition and mix ticks. An input feeds every output it is attached
// to; the control API attaches an input to every currently-registered
// output on register_input (spec's scene graph references inputs by id
// across whichever outputs place an InputStream node for them).
func (out *outputState) attachInput(id ids.InputId, in *inputState) {
	out.inputsMu.Lock()
	defer out.inputsMu.Unlock()
	out.inputs[id] = in
}

func (out *outputState) detachInput(id ids.InputId) {
	out.inputsMu.Lock()
	defer out.inputsMu.Unlock()
	delete(out.inputs, id)
}

func (out *outputState) inputByID(id ids.InputId) (*inputState, bool) {
	out.inputsMu.Lock()
	defer out.inputsMu.Unlock()
	in, ok := out.inputs[id]
	return in, ok
}

// updateScene replaces the output's scene root (spec §6 update_scene).
func (out *outputState) updateScene(root scene.Component) {
	out.sceneMu.Lock()
	out.root = root
	out.sceneMu.Unlock()
}

func (out *outputState) currentScene() scene.Component {
	out.sceneMu.Lock()
	defer out.sceneMu.Unlock()
	return out.root
}

// startTicking launches the render and audio-mix goroutines. Safe to call
// exactly once per output (Engine.Start / RegisterOutput-after-Start each
// call it for outputs they own).
func (out *outputState) startTicking(ctx *PipelineCtx) {
	out.wg.Add(2)
	go out.runRenderTick()
	go out.runMixTick()
}

func (out *outputState) runRenderTick() {
	defer out.wg.Done()
	if out.framerate <= 0 {
		return
	}
	interval := time.Second / time.Duration(out.framerate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			out.renderOnce(now)
		case <-out.done:
			return
		}
	}
}

func (out *outputState) renderOnce(now time.Time) {
	root := out.currentScene()
	if root == nil {
		return
	}
	out.graph.Update(root, now)

	viewport := render.Rect{Width: float64(out.resolution.Width), Height: float64(out.resolution.Height)}
	layout := render.ComputeLayout(root, viewport, out.graph, now)

	pixels := make([]render.RGBA8, out.resolution.Width*out.resolution.Height)
	for _, layer := range layout.Layers {
		out.compositeLayer(layer, pixels, out.resolution)
	}

	pts := out.ctx.Sync.Elapsed()
	frame := media.DecodedFrame{
		Data:       render.FromRGBA(pixels, out.resolution.Width, out.resolution.Height),
		Resolution: out.resolution,
		Pts:        pts,
	}

	chunks, err := out.videoEncoder.Encode(frame, false)
	if err != nil {
		out.ctx.Log.DebugRender("video encode error", "output", out.id, "error", err)
		return
	}
	for _, c := range chunks {
		select {
		case out.videoOut <- c:
		case <-out.done:
			return
		}
	}
}

// compositeLayer draws one resolved layer's source frame into pixels,
// nearest-neighbor scaled to its layout rect. Shader/WebView/Text leaves
// resolve through the external-collaborator renderers an embedding program
// installs on outputState (pkg/render's ShaderRenderer/WebViewRenderer/
// TextRenderer); this package ships only the passthrough defaults. Shader
// and WebView additionally render their own children into offscreen
// buffers first, since the renderer interface consumes already-rendered
// TextureHandles rather than scene nodes. InputStream and Image are the
// two leaf kinds this package resolves directly, with no external
// collaborator boundary. outRes is the resolution pixels is sized for,
// passed explicitly (rather than always out.resolution) since Shader/
// WebView recurse into their children's own offscreen buffers, which are
// sized to the parent's layout rect rather than the output's resolution.
func (out *outputState) compositeLayer(layer render.Layer, pixels []render.RGBA8, outRes media.Resolution) {
	switch node := layer.Node.(type) {
	case scene.InputStream:
		in, ok := out.inputByID(node.InputId)
		if !ok {
			return
		}
		frame, ok := in.currentFrame()
		if !ok {
			return
		}
		src := render.ToRGBA(frame)
		if len(src) == 0 {
			return
		}
		blitNearest(src, frame.Resolution, layer.Rect, pixels, outRes)

	case scene.Image:
		asset, ok := out.ctx.assets.get(node.ImageId)
		if !ok {
			return
		}
		img := asset.currentFrame(time.Now())
		if img == nil {
			return
		}
		src, res := imageToRGBA(img)
		if len(src) == 0 {
			return
		}
		blitNearest(src, res, layer.Rect, pixels, outRes)

	case scene.Shader:
		children := out.renderChildTextures(node.ChildrenList, layer.Rect)
		handle, err := out.shaderRenderer.RenderShader(node.ShaderId, node.Param, children)
		if err != nil {
			out.ctx.Log.DebugRender("shader render error", "output", out.id, "error", err)
			return
		}
		out.blitHandle(handle, layer.Rect, pixels, outRes)

	case scene.WebView:
		children := out.renderChildTextures(node.ChildrenList, layer.Rect)
		handle, err := out.webViewRenderer.RenderWebView(node.InstanceId, children)
		if err != nil {
			out.ctx.Log.DebugRender("webview render error", "output", out.id, "error", err)
			return
		}
		out.blitHandle(handle, layer.Rect, pixels, outRes)

	case scene.Text:
		handle, err := out.textRenderer.RenderText(node, layer.Rect)
		if err != nil {
			out.ctx.Log.DebugRender("text render error", "output", out.id, "error", err)
			return
		}
		out.blitHandle(handle, layer.Rect, pixels, outRes)
	}
}

// renderChildTextures renders each of a Shader/WebView node's children
// into its own offscreen buffer sized to rect, the texture list the
// ShaderRenderer/WebViewRenderer interfaces expect. Each child is laid out
// and composited independently of the parent's own flattened Layer list,
// since Shader/WebView are opaque to layoutNode.
func (out *outputState) renderChildTextures(children []scene.Component, rect render.Rect) []render.TextureHandle {
	w, h := int(rect.Width), int(rect.Height)
	if w <= 0 || h <= 0 {
		return nil
	}
	childRes := media.Resolution{Width: w, Height: h}

	handles := make([]render.TextureHandle, 0, len(children))
	for _, child := range children {
		buf := make([]render.RGBA8, w*h)
		sub := render.ComputeLayout(child, render.Rect{Width: rect.Width, Height: rect.Height}, nil, time.Now())
		for _, l := range sub.Layers {
			out.compositeLayer(l, buf, childRes)
		}
		handles = append(handles, render.TextureHandle{Ref: render.TextureBuffer{Pixels: buf, Width: w, Height: h}})
	}
	return handles
}

// blitHandle draws a renderer's resulting TextureBuffer into pixels at
// rect, nearest-neighbor scaled the same as a directly-resolved leaf.
func (out *outputState) blitHandle(h render.TextureHandle, rect render.Rect, pixels []render.RGBA8, outRes media.Resolution) {
	tb, ok := h.Ref.(render.TextureBuffer)
	if !ok || tb.Width == 0 || tb.Height == 0 {
		return
	}
	blitNearest(tb.Pixels, media.Resolution{Width: tb.Width, Height: tb.Height}, rect, pixels, outRes)
}

func blitNearest(src []render.RGBA8, srcRes media.Resolution, dst render.Rect, out []render.RGBA8, outRes media.Resolution) {
	if srcRes.Width == 0 || srcRes.Height == 0 {
		return
	}
	x0, y0 := int(dst.X), int(dst.Y)
	x1, y1 := int(dst.X+dst.Width), int(dst.Y+dst.Height)
	if x1 > outRes.Width {
		x1 = outRes.Width
	}
	if y1 > outRes.Height {
		y1 = outRes.Height
	}
	for y := y0; y < y1; y++ {
		if y < 0 || y >= outRes.Height {
			continue
		}
		sy := (y - y0) * srcRes.Height / max1(y1-y0)
		for x := x0; x < x1; x++ {
			if x < 0 || x >= outRes.Width {
				continue
			}
			sx := (x - x0) * srcRes.Width / max1(x1-x0)
			si := sy*srcRes.Width + sx
			if si < 0 || si >= len(src) {
				continue
			}
			out[y*outRes.Width+x] = src[si]
		}
	}
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func (out *outputState) runMixTick() {
	defer out.wg.Done()
	ticker := time.NewTicker(media.SampleBatchDuration)
	defer ticker.Stop()

	batchLen := int(media.SampleBatchDuration.Seconds() * float64(out.ctx.Config.MixingSampleRate))

	for {
		select {
		case <-ticker.C:
			out.mixOnce(batchLen)
		case <-out.done:
			return
		}
	}
}

func (out *outputState) mixOnce(batchLen int) {
	out.inputsMu.Lock()
	ins := make([]*inputState, 0, len(out.inputs))
	for _, in := range out.inputs {
		ins = append(ins, in)
	}
	out.inputsMu.Unlock()

	var contributions []mixer.InputContribution
	for _, in := range ins {
		if b, ok := in.audio.pop(); ok {
			contributions = append(contributions, mixer.InputContribution{Samples: b.Samples, Volume: in.getVolume()})
		}
	}

	pts := out.ctx.Sync.Elapsed()
	batch := out.mixer.Mix(contributions, batchLen, pts)

	chunks, err := out.audioEncoder.Encode(batch)
	if err != nil {
		out.ctx.Log.DebugMixer("audio encode error", "output", out.id, "error", err)
		return
	}
	for _, c := range chunks {
		select {
		case out.audioOut <- c:
		case <-out.done:
			return
		}
	}
}

func (out *outputState) shutdown() {
	out.closeOnce.Do(func() {
		close(out.done)
		for _, fn := range out.closeFns {
			go fn()
		}
	})
	out.wg.Wait()
}

// RegisterInput adds a new input per opts.Kind and attaches it to every
// currently registered output (spec's scene graph can reference any input
// by id from any output's tree).
func (e *Engine) RegisterInput(id ids.InputId, opts InputOptions) (InitInfo, error) {
	e.mu.Lock()
	if _, exists := e.inputs[id]; exists {
		e.mu.Unlock()
		return InitInfo{}, duplicateInputErr(id)
	}
	in := newInputState(e.Ctx, id, e.Ctx.Config.MixingSampleRate)
	if opts.Volume != 0 {
		in.setVolume(opts.Volume)
	}
	e.inputs[id] = in
	outputs := make([]*outputState, 0, len(e.outputs))
	for _, out := range e.outputs {
		outputs = append(outputs, out)
	}
	e.mu.Unlock()

	for _, out := range outputs {
		out.attachInput(id, in)
	}

	info, err := wireInputSource(e.Ctx, id, in, opts)
	if err != nil {
		e.mu.Lock()
		delete(e.inputs, id)
		e.mu.Unlock()
		for _, out := range outputs {
			out.detachInput(id)
		}
		in.shutdown()
		return InitInfo{}, err
	}
	return info, nil
}

// UnregisterInput tears down an input and detaches it from every output.
func (e *Engine) UnregisterInput(id ids.InputId) error {
	e.mu.Lock()
	in, ok := e.inputs[id]
	if !ok {
		e.mu.Unlock()
		return unknownInputErr(id)
	}
	delete(e.inputs, id)
	outputs := make([]*outputState, 0, len(e.outputs))
	for _, out := range e.outputs {
		outputs = append(outputs, out)
	}
	e.mu.Unlock()

	for _, out := range outputs {
		out.detachInput(id)
	}
	in.shutdown()
	return nil
}

// UpdateInputVolume changes an already-registered input's linear mix gain
// (spec §4.4 set_input_volume). Takes effect on the next mix tick of every
// output the input is attached to.
func (e *Engine) UpdateInputVolume(id ids.InputId, volume float64) error {
	e.mu.Lock()
	in, ok := e.inputs[id]
	e.mu.Unlock()
	if !ok {
		return unknownInputErr(id)
	}
	in.setVolume(volume)
	return nil
}

// RegisterOutput constructs a new output, wires its egress sink per
// opts.Kind, attaches every currently-registered input, and (if the engine
// has already been started) begins its render/mix ticks immediately.
func (e *Engine) RegisterOutput(id ids.OutputId, opts OutputOptions) (*Port, error) {
	e.mu.Lock()
	if _, exists := e.outputs[id]; exists {
		e.mu.Unlock()
		return nil, duplicateOutputErr(id)
	}
	out := newOutputState(e.Ctx, id, opts)
	e.outputs[id] = out
	inputs := make([]*inputState, 0, len(e.inputs))
	ids_ := make([]ids.InputId, 0, len(e.inputs))
	for inputId, in := range e.inputs {
		inputs = append(inputs, in)
		ids_ = append(ids_, inputId)
	}
	started := e.started
	e.mu.Unlock()

	for i, in := range inputs {
		out.attachInput(ids_[i], in)
	}

	port, err := wireOutputSink(e.Ctx, id, out, opts)
	if err != nil {
		e.mu.Lock()
		delete(e.outputs, id)
		e.mu.Unlock()
		out.shutdown()
		return nil, err
	}

	if started {
		out.startTicking(e.Ctx)
	}
	return port, nil
}

// UnregisterOutput tears down an output and its egress sink.
func (e *Engine) UnregisterOutput(id ids.OutputId) error {
	e.mu.Lock()
	out, ok := e.outputs[id]
	if !ok {
		e.mu.Unlock()
		return unknownOutputErr(id)
	}
	delete(e.outputs, id)
	e.mu.Unlock()

	out.shutdown()
	return nil
}

// UpdateScene replaces an output's scene root (spec §6 update_scene).
func (e *Engine) UpdateScene(id ids.OutputId, root scene.Component) error {
	e.mu.RLock()
	out, ok := e.outputs[id]
	e.mu.RUnlock()
	if !ok {
		return unknownOutputErr(id)
	}
	out.updateScene(root)
	return nil
}

// wireOutputSink dispatches opts.Kind to the concrete egress sink,
// returning the RawData/EncodedData caller-facing Port (nil for every
// network/file sink, whose consumer is the sink goroutine itself).
func wireOutputSink(ctx *PipelineCtx, id ids.OutputId, out *outputState, opts OutputOptions) (*Port, error) {
	switch opts.Kind {
	case OutputRawData, OutputEncodedData:
		return &Port{Video: out.videoOut, Audio: out.audioOut}, nil

	case OutputMp4:
		return nil, wireMp4Output(out, opts.Mp4)

	case OutputRtmp:
		return nil, wireRtmpOutput(out, opts.Rtmp)

	case OutputWhip:
		return nil, wireWhipOutput(ctx, out, opts)

	case OutputWhep:
		return nil, wireWhepOutput(ctx, out, opts)

	case OutputRtp:
		// Raw RTP egress is out of scope for this baseline: no RTP-level
		// signaling exists to negotiate payload types/SSRCs against a
		// remote without WHIP/WHEP/RTMP framing around it.
		return nil, fmt.Errorf("pipeline: raw rtp egress not implemented")

	default:
		return nil, fmt.Errorf("pipeline: unknown output kind %d", opts.Kind)
	}
}

func wireMp4Output(out *outputState, opts Mp4OutputOptions) error {
	f, err := os.Create(opts.Path)
	if err != nil {
		return fmt.Errorf("pipeline: create mp4 output: %w", err)
	}
	w, err := mp4.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("pipeline: mp4 writer: %w", err)
	}
	w.ConfigureVideo(mp4.H264DecoderConfig{NALULengthSize: 4}, uint32(out.framerate*1000))
	// No real AAC encoder is wired (out.audioEncoder is the passthrough
	// adapter, shaped for Opus egress); ConfigureAudio would mux an esds box
	// advertising an AAC track with an empty AudioSpecificConfig, which no
	// player could decode. Skip the audio track rather than mux a broken
	// one; audioOut is drained below without being written to the file.

	out.closeFns = append(out.closeFns, func() {
		w.Close()
		f.Close()
	})

	out.wg.Add(1)
	go func() {
		defer out.wg.Done()
		for {
			select {
			case c, ok := <-out.videoOut:
				if !ok {
					return
				}
				dts := c.Pts
				if c.Dts != nil {
					dts = *c.Dts
				}
				if err := w.WriteVideoSample(c.Data, c.Pts, dts); err != nil {
					out.ctx.Log.DebugRender("mp4 write video sample error", "output", out.id, "error", err)
				}
			case _, ok := <-out.audioOut:
				// Drained, not muxed: no AAC track is configured (see
				// wireMp4Output), so these Opus-shaped passthrough samples
				// have nowhere valid to go.
				if !ok {
					return
				}
			case <-out.done:
				return
			}
		}
	}()
	return nil
}

func wireRtmpOutput(out *outputState, opts RtmpOutputOptions) error {
	ctxBg, cancel := context.WithCancel(context.Background())
	client, err := rtmp.Dial(ctxBg, rtmp.PublishConfig{Addr: opts.Addr, App: opts.App, StreamKey: opts.StreamKey})
	if err != nil {
		cancel()
		return fmt.Errorf("pipeline: rtmp dial: %w", err)
	}
	out.closeFns = append(out.closeFns, func() {
		client.Close()
		cancel()
	})

	out.wg.Add(1)
	go func() {
		defer out.wg.Done()
		for {
			select {
			case c, ok := <-out.videoOut:
				if !ok {
					return
				}
				if err := client.WriteVideoSample(c.Data, c.Pts, c.Dts == nil || *c.Dts == c.Pts); err != nil {
					out.ctx.Log.DebugRTMP("rtmp write video sample error", "output", out.id, "error", err)
				}
			case c, ok := <-out.audioOut:
				if !ok {
					return
				}
				if err := client.WriteAudioSample(c.Data, c.Pts); err != nil {
					out.ctx.Log.DebugRTMP("rtmp write audio sample error", "output", out.id, "error", err)
				}
			case <-out.done:
				return
			}
		}
	}()
	return nil
}

func wireWhipOutput(ctx *PipelineCtx, out *outputState, opts OutputOptions) error {
	videoCodecs := []media.VideoCodec{opts.VideoCodec}
	client, videoTrack, audioTrack, err := whip.NewWhipClient(whip.ClientConfig{
		EndpointURL: opts.Whip.EndpointURL,
		BearerToken: opts.Whip.BearerToken,
		StunServers: opts.Whip.StunServers,
	}, videoCodecs)
	if err != nil {
		return fmt.Errorf("pipeline: whip client: %w", err)
	}

	connCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.WhepInitTimeout)
	if err := client.Connect(connCtx, true); err != nil {
		cancel()
		return fmt.Errorf("pipeline: whip connect: %w", err)
	}
	cancel()

	vSample, vOK := videoTrack.(*pionwebrtc.TrackLocalStaticSample)
	aSample, aOK := audioTrack.(*pionwebrtc.TrackLocalStaticSample)

	out.closeFns = append(out.closeFns, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	})

	out.wg.Add(1)
	go func() {
		defer out.wg.Done()
		var lastVideoPts, lastAudioPts time.Duration
		for {
			select {
			case c, ok := <-out.videoOut:
				if !ok {
					return
				}
				if vOK {
					dur := c.Pts - lastVideoPts
					lastVideoPts = c.Pts
					_ = vSample.WriteSample(pionmedia.Sample{Data: c.Data, Duration: dur})
				}
			case c, ok := <-out.audioOut:
				if !ok {
					return
				}
				if aOK {
					dur := c.Pts - lastAudioPts
					lastAudioPts = c.Pts
					_ = aSample.WriteSample(pionmedia.Sample{Data: c.Data, Duration: dur})
				}
			case <-out.done:
				return
			}
		}
	}()
	return nil
}

func wireWhepOutput(ctx *PipelineCtx, out *outputState, opts OutputOptions) error {
	reg := &whip.OutputRegistration{
		OutputId:           out.id,
		BearerToken:        opts.Whep.BearerToken,
		EndpointId:         opts.Whep.EndpointId,
		EncoderPreferences: []media.VideoCodec{opts.VideoCodec},
	}
	if err := ctx.WhipRegistry.RegisterOutput(reg); err != nil {
		return fmt.Errorf("pipeline: whep register: %w", err)
	}
	out.closeFns = append(out.closeFns, func() {
		ctx.WhipRegistry.UnregisterOutput(opts.Whep.EndpointId)
	})

	// The served PeerConnection's sender tracks are populated once a
	// viewer negotiates; this drain only forwards chunks while a session
	// with writable tracks exists, mirroring whip.Server's own
	// best-effort delivery policy for egress.
	out.wg.Add(1)
	go func() {
		defer out.wg.Done()
		for {
			select {
			case c, ok := <-out.videoOut:
				if !ok {
					return
				}
				writeToWhepSenders(reg, c, true)
			case c, ok := <-out.audioOut:
				if !ok {
					return
				}
				writeToWhepSenders(reg, c, false)
			case <-out.done:
				return
			}
		}
	}()
	return nil
}

func writeToWhepSenders(reg *whip.OutputRegistration, c media.EncodedChunk, video bool) {
	sess := reg.CurrentSession()
	if sess == nil || sess.PC == nil {
		return
	}
	for _, sender := range sess.PC.GetSenders() {
		track := sender.Track()
		if track == nil {
			continue
		}
		isVideoTrack := track.Kind() == pionwebrtc.RTPCodecTypeVideo
		if isVideoTrack != video {
			continue
		}
		if s, ok := track.(*pionwebrtc.TrackLocalStaticSample); ok {
			_ = s.WriteSample(pionmedia.Sample{Data: c.Data, Duration: media.SampleBatchDuration})
		}
	}
}
