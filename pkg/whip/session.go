// Package whip implements WHIP ingress/egress and WHEP egress/ingress
// signaling: SDP offer/answer over HTTP, trickle-ICE via PATCH, and the
// per-endpoint session state machine (spec §4.8).
package whip

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// SessionState tracks where a peer connection is in its lifecycle.
type SessionState int

const (
	SessionNew SessionState = iota
	SessionConnected
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionNew:
		return "new"
	case SessionConnected:
		return "connected"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is a single negotiated peer connection belonging to an
// InputRegistration or OutputRegistration.
type Session struct {
	mu    sync.Mutex
	URL   string
	PC    *webrtc.PeerConnection
	state SessionState
}

func newSession(url string, pc *webrtc.PeerConnection) *Session {
	return &Session{URL: url, PC: pc, state: SessionNew}
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session's state.
func (s *Session) SetState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Close closes the underlying peer connection and marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = SessionClosed
	pc := s.PC
	s.mu.Unlock()
	if pc == nil {
		return nil
	}
	return pc.Close()
}

// InputRegistration is the state the WHIP ingress server holds per
// registered input endpoint (spec §4.8 "WHIP ingress (server)").
type InputRegistration struct {
	InputId          ids.InputId
	BearerToken      string
	EndpointId       string
	VideoPreferences []media.VideoCodec
	FrameSender      chan<- media.EncodedChunk
	SamplesSender    chan<- media.EncodedChunk

	mu      sync.Mutex
	Session *Session
}

// OutputRegistration is the state the WHEP egress server holds per
// registered output endpoint (spec §4.8 "WHEP egress (server)").
type OutputRegistration struct {
	OutputId           ids.OutputId
	BearerToken        string
	EndpointId         string
	EncoderPreferences []media.VideoCodec

	mu      sync.Mutex
	Session *Session
}

// ErrEndpointExists is returned by Registry.RegisterInput/RegisterOutput
// when the endpoint_id is already registered.
type ErrEndpointExists struct{ EndpointId string }

func (e *ErrEndpointExists) Error() string {
	return "whip: endpoint already registered: " + e.EndpointId
}

// ErrSessionConnected is returned when a POST offer arrives for an
// endpoint whose existing session is already Connected (spec §4.8, E5).
type ErrSessionConnected struct{ EndpointId string }

func (e *ErrSessionConnected) Error() string {
	return "whip: endpoint has a connected session: " + e.EndpointId
}

// ErrUnknownEndpoint is returned when an endpoint_id has no registration.
type ErrUnknownEndpoint struct{ EndpointId string }

func (e *ErrUnknownEndpoint) Error() string {
	return "whip: unknown endpoint: " + e.EndpointId
}

// Registry holds every registered WHIP input and WHEP output endpoint
// behind a single mutex per registry (spec §5 "Input/output registries
// are behind a single mutex per registry").
type Registry struct {
	mu      sync.Mutex
	inputs  map[string]*InputRegistration
	outputs map[string]*OutputRegistration
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		inputs:  make(map[string]*InputRegistration),
		outputs: make(map[string]*OutputRegistration),
	}
}

// RegisterInput adds a WHIP input endpoint. Registering the same
// endpoint_id twice is rejected.
func (r *Registry) RegisterInput(reg *InputRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.inputs[reg.EndpointId]; exists {
		return &ErrEndpointExists{EndpointId: reg.EndpointId}
	}
	r.inputs[reg.EndpointId] = reg
	return nil
}

// UnregisterInput removes a WHIP input endpoint, closing its session if
// one is active.
func (r *Registry) UnregisterInput(endpointId string) {
	r.mu.Lock()
	reg, ok := r.inputs[endpointId]
	delete(r.inputs, endpointId)
	r.mu.Unlock()
	if ok {
		reg.mu.Lock()
		sess := reg.Session
		reg.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
	}
}

// LookupInput finds a registered input endpoint by endpoint_id.
func (r *Registry) LookupInput(endpointId string) (*InputRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.inputs[endpointId]
	if !ok {
		return nil, &ErrUnknownEndpoint{EndpointId: endpointId}
	}
	return reg, nil
}

// RegisterOutput adds a WHEP output endpoint. Registering the same
// endpoint_id twice is rejected (spec §9 Open Question #3: mirrored to
// WHIP's behavior).
func (r *Registry) RegisterOutput(reg *OutputRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.outputs[reg.EndpointId]; exists {
		return &ErrEndpointExists{EndpointId: reg.EndpointId}
	}
	r.outputs[reg.EndpointId] = reg
	return nil
}

// UnregisterOutput removes a WHEP output endpoint, closing its session if
// one is active.
func (r *Registry) UnregisterOutput(endpointId string) {
	r.mu.Lock()
	reg, ok := r.outputs[endpointId]
	delete(r.outputs, endpointId)
	r.mu.Unlock()
	if ok {
		reg.mu.Lock()
		sess := reg.Session
		reg.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
	}
}

// LookupOutput finds a registered output endpoint by endpoint_id.
func (r *Registry) LookupOutput(endpointId string) (*OutputRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.outputs[endpointId]
	if !ok {
		return nil, &ErrUnknownEndpoint{EndpointId: endpointId}
	}
	return reg, nil
}

// attachSession installs sess on reg, closing any previous session. It
// returns ErrSessionConnected if the previous session is still Connected.
func (reg *InputRegistration) attachSession(sess *Session) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.Session != nil {
		if reg.Session.State() == SessionConnected {
			return &ErrSessionConnected{EndpointId: reg.EndpointId}
		}
		_ = reg.Session.Close()
	}
	reg.Session = sess
	return nil
}

func (reg *OutputRegistration) attachSession(sess *Session) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.Session != nil {
		if reg.Session.State() == SessionConnected {
			return &ErrSessionConnected{EndpointId: reg.EndpointId}
		}
		_ = reg.Session.Close()
	}
	reg.Session = sess
	return nil
}

func (reg *InputRegistration) currentSession() *Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.Session
}

func (reg *OutputRegistration) currentSession() *Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.Session
}

// CurrentSession returns the registration's active session, if any, safe
// for concurrent callers outside this package (e.g. an egress drain loop
// reading the negotiated PeerConnection's sender tracks).
func (reg *OutputRegistration) CurrentSession() *Session {
	return reg.currentSession()
}
