// Package pipeline wires ingress, decode, scene composition, mixing,
// encode, and egress into the single running compositor engine: the
// control API (register_input/register_output/update_scene/start/
// register_renderer and their unregister counterparts) plus the
// goroutines that carry media between those stages.
//
// The registry/lifecycle shape is grounded on the teacher's
// MultiCameraRelay (pkg/relay/multi_relay.go): a mutex-guarded map keyed
// by id, a context/cancel/WaitGroup lifecycle, and per-entry teardown
// driven from Unregister rather than a reconciliation ticker, since here
// membership changes only through the control API instead of external
// stream-manager state.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/ethan/compositor-pipeline/pkg/clock"
	"github.com/ethan/compositor-pipeline/pkg/config"
	"github.com/ethan/compositor-pipeline/pkg/decoder"
	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/logger"
	"github.com/ethan/compositor-pipeline/pkg/rtmp"
	"github.com/ethan/compositor-pipeline/pkg/whip"
)

// PipelineCtx is the process-wide state every input/output goroutine reads
// from. It is built once by New and never mutated after construction;
// the mutable per-entry state lives in Engine's registries instead.
type PipelineCtx struct {
	Config *config.Config
	Log    *logger.Logger
	Sync   *clock.SyncPoint

	// WhipRegistry/RtmpRegistry back the WHIP/WHEP and RTMP ingress
	// servers. An embedding program (cmd/compositor) mounts a
	// whip.Server/rtmp.Server over these same registries; register_input
	// and register_output only add/remove entries, they don't own the
	// listeners.
	WhipRegistry *whip.Registry
	RtmpRegistry *rtmp.Registry

	assets *rendererRegistry
}

func newPipelineCtx(cfg *config.Config, log *logger.Logger) *PipelineCtx {
	return &PipelineCtx{
		Config:       cfg,
		Log:          log,
		Sync:         clock.NewSyncPoint(),
		WhipRegistry: whip.NewRegistry(),
		RtmpRegistry: rtmp.NewRegistry(),
		assets:       newRendererRegistry(),
	}
}

// Engine is the running compositor. It holds the immutable PipelineCtx
// plus the mutable input/output registries the control API manipulates.
type Engine struct {
	Ctx *PipelineCtx

	mu      sync.RWMutex
	inputs  map[ids.InputId]*inputState
	outputs map[ids.OutputId]*outputState
	started bool
}

// New constructs an Engine. Call RegisterInput/RegisterOutput/UpdateScene
// freely before Start; ticks only begin running once Start is called
// (spec's idempotent start() permits the clock tick to run).
func New(cfg *config.Config, log *logger.Logger) *Engine {
	decoder.OpusFECGapMin = cfg.OpusFECGapMin
	decoder.OpusFECGapMax = cfg.OpusFECGapMax
	return &Engine{
		Ctx:     newPipelineCtx(cfg, log),
		inputs:  map[ids.InputId]*inputState{},
		outputs: map[ids.OutputId]*outputState{},
	}
}

// Start permits every registered output's render/mix tick to begin
// running. Calling Start twice is a no-op; outputs registered after Start
// begin ticking immediately on registration.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	e.started = true
	for _, out := range e.outputs {
		out.startTicking(e.Ctx)
	}
	return nil
}

func (e *Engine) isStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

// Close tears down every registered input and output. It is not part of
// the control API surface — it is the process-shutdown path.
func (e *Engine) Close() error {
	e.mu.Lock()
	inputs := make([]*inputState, 0, len(e.inputs))
	for _, in := range e.inputs {
		inputs = append(inputs, in)
	}
	outputs := make([]*outputState, 0, len(e.outputs))
	for _, out := range e.outputs {
		outputs = append(outputs, out)
	}
	e.inputs = map[ids.InputId]*inputState{}
	e.outputs = map[ids.OutputId]*outputState{}
	e.mu.Unlock()

	for _, in := range inputs {
		in.shutdown()
	}
	for _, out := range outputs {
		out.shutdown()
	}
	return nil
}

func (e *Engine) inputExists(id ids.InputId) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.inputs[id]
	return ok
}

func (e *Engine) outputExists(id ids.OutputId) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.outputs[id]
	return ok
}

func duplicateInputErr(id ids.InputId) error { return fmt.Errorf("pipeline: input %q already registered", id) }
func duplicateOutputErr(id ids.OutputId) error {
	return fmt.Errorf("pipeline: output %q already registered", id)
}
func unknownInputErr(id ids.InputId) error { return fmt.Errorf("pipeline: unknown input %q", id) }
func unknownOutputErr(id ids.OutputId) error {
	return fmt.Errorf("pipeline: unknown output %q", id)
}
