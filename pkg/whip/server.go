package whip

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/ethan/compositor-pipeline/pkg/clock"
	"github.com/ethan/compositor-pipeline/pkg/depayload"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// ServerConfig carries the tunables spec §4.8/§9 attaches to the WHIP/WHEP
// HTTP surface.
type ServerConfig struct {
	StunServers     []string
	IceGatherTimeout time.Duration
	BaseURL         string // e.g. "http://localhost:8080", used to build session Location URLs
}

// DefaultServerConfig returns the spec's default timeouts (10s ICE
// gathering, per spec §4.8 "Timeouts").
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		StunServers:      []string{"stun:stun.l.google.com:19302"},
		IceGatherTimeout: 10 * time.Second,
	}
}

// Server is the HTTP surface for WHIP ingress and WHEP egress (spec §4.8).
// It does not itself decide routing — Mount registers its handlers on a
// caller-supplied *http.ServeMux, the same separation the teacher keeps
// between pkg/relay and pkg/api.
type Server struct {
	registry *Registry
	cfg      ServerConfig
	log      *slog.Logger
}

// NewServer constructs a Server bound to registry.
func NewServer(registry *Registry, cfg ServerConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{registry: registry, cfg: cfg, log: log}
}

// WhipPathPrefix and WhepPathPrefix are the fixed mount points Mount
// registers its handlers under.
const (
	WhipPathPrefix = "/whip/"
	WhepPathPrefix = "/whep/"
)

// Mount registers the WHIP and WHEP HTTP handlers on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.HandleFunc(WhipPathPrefix, s.handleWhipEndpoint)
	mux.HandleFunc(WhepPathPrefix, s.handleWhepEndpoint)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// handleWhipEndpoint dispatches POST (new offer), PATCH (trickle ICE), and
// DELETE (terminate) for a WHIP ingress session, keyed by path suffix.
func (s *Server) handleWhipEndpoint(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, WhipPathPrefix)
	switch {
	case strings.HasPrefix(path, "session/"):
		sessionId := strings.TrimPrefix(path, "session/")
		s.handleSessionRequest(w, r, sessionId, s.lookupInputSession)
	default:
		s.handleWhipOffer(w, r, path)
	}
}

func (s *Server) handleWhepEndpoint(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, WhepPathPrefix)
	switch {
	case strings.HasPrefix(path, "session/"):
		sessionId := strings.TrimPrefix(path, "session/")
		s.handleSessionRequest(w, r, sessionId, s.lookupOutputSession)
	default:
		s.handleWhepOffer(w, r, path)
	}
}

// handleWhipOffer implements spec §4.8 "WHIP ingress (server)".
func (s *Server) handleWhipOffer(w http.ResponseWriter, r *http.Request, endpointId string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Content-Type") != "application/sdp" {
		http.Error(w, "expected Content-Type: application/sdp", http.StatusBadRequest)
		return
	}

	reg, err := s.registry.LookupInput(endpointId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if bearerToken(r) != reg.BearerToken {
		http.Error(w, "invalid bearer token", http.StatusUnauthorized)
		return
	}

	offerSDP, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read offer body: "+err.Error(), http.StatusBadRequest)
		return
	}

	api, err := newAPI(reg.VideoPreferences)
	if err != nil {
		http.Error(w, "build media engine: "+err.Error(), http.StatusInternalServerError)
		return
	}
	pc, err := newPeerConnection(api, s.cfg.StunServers)
	if err != nil {
		http.Error(w, "create peer connection: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := addRecvonlyVideoTransceiver(pc, nil); err != nil {
		_ = pc.Close()
		http.Error(w, "add video transceiver: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := addRecvonlyAudioTransceiver(pc); err != nil {
		_ = pc.Close()
		http.Error(w, "add audio transceiver: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sessionId := uuid.NewString()
	sess := newSession(s.cfg.BaseURL+"/whip/session/"+sessionId, pc)

	s.wireInputTrackReaders(reg, sess, pc)

	if err := reg.attachSession(sess); err != nil {
		_ = pc.Close()
		if _, ok := err.(*ErrSessionConnected); ok {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offerSDP)}); err != nil {
		http.Error(w, "set remote description: "+err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		http.Error(w, "create answer: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		http.Error(w, "set local description: "+err.Error(), http.StatusInternalServerError)
		return
	}
	waitForICEGathering(r.Context(), pc, s.cfg.IceGatherTimeout)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateConnected {
			sess.SetState(SessionConnected)
		} else if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			sess.SetState(SessionClosed)
		}
	})

	local := pc.LocalDescription()
	w.Header().Set("Content-Type", "application/sdp")
	w.Header().Set("Location", sess.URL)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(local.SDP))
}

// handleWhepOffer implements spec §4.8 "WHEP egress (server)": sendonly,
// negotiated codecs are the intersection of client preferences and the
// encoder-preferences list.
func (s *Server) handleWhepOffer(w http.ResponseWriter, r *http.Request, endpointId string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Content-Type") != "application/sdp" {
		http.Error(w, "expected Content-Type: application/sdp", http.StatusBadRequest)
		return
	}

	reg, err := s.registry.LookupOutput(endpointId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if bearerToken(r) != reg.BearerToken {
		http.Error(w, "invalid bearer token", http.StatusUnauthorized)
		return
	}

	offerSDP, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read offer body: "+err.Error(), http.StatusBadRequest)
		return
	}

	api, err := newAPI(reg.EncoderPreferences)
	if err != nil {
		http.Error(w, "build media engine: "+err.Error(), http.StatusInternalServerError)
		return
	}
	pc, err := newPeerConnection(api, s.cfg.StunServers)
	if err != nil {
		http.Error(w, "create peer connection: "+err.Error(), http.StatusInternalServerError)
		return
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: videoMimeType(preferredVideoCodec(reg.EncoderPreferences))}, "video", endpointId)
	if err != nil {
		_ = pc.Close()
		http.Error(w, "create video track: "+err.Error(), http.StatusInternalServerError)
		return
	}
	videoSender, err := addSendonlyTrack(pc, videoTrack)
	if err != nil {
		_ = pc.Close()
		http.Error(w, "add video track: "+err.Error(), http.StatusInternalServerError)
		return
	}
	audioTrack, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", endpointId)
	if err != nil {
		_ = pc.Close()
		http.Error(w, "create audio track: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := addSendonlyTrack(pc, audioTrack); err != nil {
		_ = pc.Close()
		http.Error(w, "add audio track: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sessionId := uuid.NewString()
	sess := newSession(s.cfg.BaseURL+"/whep/session/"+sessionId, pc)

	// RTCP reader drains PLI/FIR so the sender's internal buffers don't
	// fill; the packets are discarded and no keyframe request reaches an
	// encoder.
	go drainRTCP(videoSender)

	if err := reg.attachSession(sess); err != nil {
		_ = pc.Close()
		if _, ok := err.(*ErrSessionConnected); ok {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offerSDP)}); err != nil {
		http.Error(w, "set remote description: "+err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		http.Error(w, "create answer: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		http.Error(w, "set local description: "+err.Error(), http.StatusInternalServerError)
		return
	}
	waitForICEGathering(r.Context(), pc, s.cfg.IceGatherTimeout)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateConnected {
			sess.SetState(SessionConnected)
		} else if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			sess.SetState(SessionClosed)
		}
	})

	local := pc.LocalDescription()
	w.Header().Set("Content-Type", "application/sdp")
	w.Header().Set("Location", sess.URL)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(local.SDP))
}

func preferredVideoCodec(prefs []media.VideoCodec) media.VideoCodec {
	if len(prefs) == 0 {
		return media.VideoH264
	}
	return prefs[0]
}

// drainRTCP reads RTCP packets (PLI/FIR/NACK) off a sender so pion's
// internal buffers don't block; the packets are discarded, not forwarded
// as keyframe requests.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

type sessionLookup func(sessionId string) (*Session, error)

func (s *Server) lookupInputSession(sessionId string) (*Session, error) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	for _, reg := range s.registry.inputs {
		if sess := reg.currentSession(); sess != nil && strings.HasSuffix(sess.URL, sessionId) {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("whip: unknown session: %s", sessionId)
}

func (s *Server) lookupOutputSession(sessionId string) (*Session, error) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	for _, reg := range s.registry.outputs {
		if sess := reg.currentSession(); sess != nil && strings.HasSuffix(sess.URL, sessionId) {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("whep: unknown session: %s", sessionId)
}

// handleSessionRequest implements the shared PATCH (trickle ICE) / DELETE
// (terminate) handling for both WHIP and WHEP sessions (spec §4.8 "WHIP/WHEP
// HTTP").
func (s *Server) handleSessionRequest(w http.ResponseWriter, r *http.Request, sessionId string, lookup sessionLookup) {
	sess, err := lookup(sessionId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		if r.Header.Get("Content-Type") != "application/trickle-ice-sdpfrag" {
			http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read fragment: "+err.Error(), http.StatusBadRequest)
			return
		}
		candidates, err := parseTrickleICEFragment(string(body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		for _, c := range candidates {
			if err := sess.PC.AddICECandidate(c); err != nil {
				http.Error(w, "add ICE candidate: "+err.Error(), http.StatusUnprocessableEntity)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		_ = sess.Close()
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// parseTrickleICEFragment parses a trickle-ice-sdpfrag body's a=mid,
// a=ice-ufrag, a=candidate lines into ICE candidate inits (spec §4.8
// "PATCH <session> ... body = candidate fragment").
func parseTrickleICEFragment(body string) ([]webrtc.ICECandidateInit, error) {
	var candidates []webrtc.ICECandidateInit
	var mid string
	var mLineIndex uint16

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "a=mid:"):
			mid = strings.TrimPrefix(line, "a=mid:")
		case strings.HasPrefix(line, "a=candidate:"):
			candidate := strings.TrimPrefix(line, "a=")
			midCopy := mid
			candidates = append(candidates, webrtc.ICECandidateInit{
				Candidate:     candidate,
				SDPMid:        &midCopy,
				SDPMLineIndex: &mLineIndex,
			})
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("whip: no candidates in trickle-ice-sdpfrag body")
	}
	return candidates, nil
}

// wireInputTrackReaders registers an OnTrack handler that depayloads
// incoming RTP packets into media.EncodedChunk and forwards them on the
// registration's FrameSender/SamplesSender (spec §4.8's per-input
// frame_sender/samples_sender state).
func (s *Server) wireInputTrackReaders(reg *InputRegistration, sess *Session, pc *webrtc.PeerConnection) {
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		syncPoint := clock.NewSyncPoint()
		tsSync := clock.NewTimestampSync(syncPoint, uint32(track.Codec().ClockRate), 0)

		var dep depayload.Depayloader
		isVideo := track.Kind() == webrtc.RTPCodecTypeVideo
		switch {
		case isVideo && strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeH264):
			dep = depayload.NewH264()
		case isVideo && strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeVP8):
			dep = depayload.NewVP8()
		case isVideo && strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeVP9):
			dep = depayload.NewVP9()
		default:
			dep = depayload.NewOpus()
		}

		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			pts := tsSync.Resolve(pkt.Timestamp)
			chunks, err := dep.Depayload(pkt, pts)
			if err != nil {
				s.log.Warn("depayload error", "endpoint", reg.EndpointId, "error", err)
				continue
			}
			for _, chunk := range chunks {
				dest := reg.SamplesSender
				if isVideo {
					dest = reg.FrameSender
				}
				if dest == nil {
					continue
				}
				select {
				case dest <- chunk:
				default:
				}
			}
		}
	})
}
