package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/compositor-pipeline/pkg/config"
	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/logger"
	"github.com/ethan/compositor-pipeline/pkg/media"
	"github.com/ethan/compositor-pipeline/pkg/render"
	"github.com/ethan/compositor-pipeline/pkg/scene"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(config.Default(), logger.Default())
}

func TestRegisterInputRejectsDuplicateId(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterInput(ids.InputId("cam"), InputOptions{Kind: InputRawData})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.RegisterInput(ids.InputId("cam"), InputOptions{Kind: InputRawData})
	assert.ErrorContains(t, err, "already registered")
}

func TestRegisterOutputRejectsDuplicateId(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterOutput(ids.OutputId("main"), OutputOptions{Kind: OutputRawData, Resolution: media.Resolution{Width: 640, Height: 360}})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.RegisterOutput(ids.OutputId("main"), OutputOptions{Kind: OutputRawData, Resolution: media.Resolution{Width: 640, Height: 360}})
	assert.ErrorContains(t, err, "already registered")
}

func TestUnregisterUnknownIdsReturnError(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorContains(t, e.UnregisterInput(ids.InputId("missing")), "unknown input")
	assert.ErrorContains(t, e.UnregisterOutput(ids.OutputId("missing")), "unknown output")
}

func TestUpdateSceneRejectsUnknownOutput(t *testing.T) {
	e := newTestEngine(t)
	err := e.UpdateScene(ids.OutputId("missing"), scene.View{Id: "root"})
	assert.ErrorContains(t, err, "unknown output")
}

func TestRawDataOutputPortCarriesEncodedChunks(t *testing.T) {
	e := newTestEngine(t)
	port, err := e.RegisterOutput(ids.OutputId("main"), OutputOptions{
		Kind:       OutputRawData,
		Resolution: media.Resolution{Width: 320, Height: 180},
		Framerate:  25,
	})
	require.NoError(t, err)
	require.NotNil(t, port)
	defer e.Close()

	require.NoError(t, e.Start())
	require.NoError(t, e.UpdateScene(ids.OutputId("main"), scene.View{Id: "root"}))

	select {
	case chunk := <-port.Video:
		assert.Equal(t, media.VideoKind(media.VideoH264), chunk.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an encoded video chunk from the render/encode tick")
	}
}

func TestRawDataInputPortPushDecodedVideoSetsCurrentFrame(t *testing.T) {
	e := newTestEngine(t)
	info, err := e.RegisterInput(ids.InputId("cam"), InputOptions{Kind: InputRawData})
	require.NoError(t, err)
	require.NotNil(t, info.RawData)
	defer e.Close()

	frame := media.DecodedFrame{
		Resolution: media.Resolution{Width: 4, Height: 4},
		Data: media.FrameData{
			Format: media.FormatRGBA8Texture,
			TextureRef: []byte{
				255, 0, 0, 255,
				255, 0, 0, 255,
				255, 0, 0, 255,
				255, 0, 0, 255,
			},
		},
	}
	info.RawData.PushDecodedVideo(frame)

	in, ok := e.inputs[ids.InputId("cam")]
	require.True(t, ok)
	got, ok := in.currentFrame()
	require.True(t, ok)
	assert.Equal(t, frame.Resolution, got.Resolution)
}

func TestCloseTearsDownRegisteredInputsAndOutputs(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterInput(ids.InputId("cam"), InputOptions{Kind: InputRawData})
	require.NoError(t, err)
	_, err = e.RegisterOutput(ids.OutputId("main"), OutputOptions{Kind: OutputRawData, Resolution: media.Resolution{Width: 320, Height: 180}})
	require.NoError(t, err)
	require.NoError(t, e.Start())

	require.NoError(t, e.Close())
	assert.False(t, e.inputExists(ids.InputId("cam")))
	assert.False(t, e.outputExists(ids.OutputId("main")))
}

func TestRegisterInputAppliesConfiguredVolume(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterInput(ids.InputId("cam"), InputOptions{Kind: InputRawData, Volume: 0.5})
	require.NoError(t, err)
	defer e.Close()

	in, ok := e.inputs[ids.InputId("cam")]
	require.True(t, ok)
	assert.Equal(t, 0.5, in.getVolume())
}

func TestRegisterInputDefaultsVolumeToUnityGain(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterInput(ids.InputId("cam"), InputOptions{Kind: InputRawData})
	require.NoError(t, err)
	defer e.Close()

	in, ok := e.inputs[ids.InputId("cam")]
	require.True(t, ok)
	assert.Equal(t, 1.0, in.getVolume())
}

func TestUpdateInputVolumeChangesGain(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterInput(ids.InputId("cam"), InputOptions{Kind: InputRawData})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.UpdateInputVolume(ids.InputId("cam"), 0.25))

	in, ok := e.inputs[ids.InputId("cam")]
	require.True(t, ok)
	assert.Equal(t, 0.25, in.getVolume())
}

func TestUpdateInputVolumeRejectsUnknownInput(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorContains(t, e.UpdateInputVolume(ids.InputId("missing"), 0.5), "unknown input")
}

func TestCompositeLayerRendersTextViaPassthroughRenderer(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterOutput(ids.OutputId("main"), OutputOptions{Kind: OutputRawData, Resolution: media.Resolution{Width: 4, Height: 4}})
	require.NoError(t, err)
	defer e.Close()

	out := e.outputs[ids.OutputId("main")]
	require.NotNil(t, out)

	node := scene.Text{Id: "t", BackgroundColor: scene.RGBAColor{R: 9, G: 8, B: 7, A: 255}}
	layer := render.Layer{NodeId: "t", Node: node, Rect: render.Rect{X: 0, Y: 0, Width: 4, Height: 4}}
	pixels := make([]render.RGBA8, 16)

	out.compositeLayer(layer, pixels, out.resolution)

	for _, px := range pixels {
		assert.Equal(t, render.RGBA8{R: 9, G: 8, B: 7, A: 255}, px)
	}
}

func TestCompositeLayerRendersShaderViaPassthroughChild(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterOutput(ids.OutputId("main"), OutputOptions{Kind: OutputRawData, Resolution: media.Resolution{Width: 2, Height: 2}})
	require.NoError(t, err)
	defer e.Close()

	out := e.outputs[ids.OutputId("main")]
	require.NotNil(t, out)

	child := scene.Text{Id: "child", BackgroundColor: scene.RGBAColor{R: 1, G: 2, B: 3, A: 255}}
	node := scene.Shader{Id: "shader", ChildrenList: []scene.Component{child}}
	layer := render.Layer{NodeId: "shader", Node: node, Rect: render.Rect{X: 0, Y: 0, Width: 2, Height: 2}}
	pixels := make([]render.RGBA8, 4)

	out.compositeLayer(layer, pixels, out.resolution)

	for _, px := range pixels {
		assert.Equal(t, render.RGBA8{R: 1, G: 2, B: 3, A: 255}, px)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start())
	require.NoError(t, e.Start())
	assert.True(t, e.isStarted())
	e.Close()
}
