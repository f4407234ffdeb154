package rtmp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ethan/compositor-pipeline/pkg/clock"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// ReconnectBackoff is a fixed 3s RTMP reconnect delay. Nothing in this
// package reads it: neither Server nor PublishClient reconnects a dropped
// connection.
const ReconnectBackoff = 3 * time.Second

// Registration is the state a registered RTMP input needs: the stream key
// publishers authenticate with, and the channels decoded chunks are
// forwarded to (mirrors pkg/whip's InputRegistration shape for the same
// ingress-to-pipeline handoff).
type Registration struct {
	StreamKey     string
	FrameSender   chan<- media.EncodedChunk
	SamplesSender chan<- media.EncodedChunk
}

// Registry looks up a Registration by stream key under a single mutex,
// same pattern as pkg/whip.Registry.
type Registry struct {
	mu  sync.Mutex
	ins map[string]*Registration
}

func NewRegistry() *Registry {
	return &Registry{ins: make(map[string]*Registration)}
}

func (r *Registry) Register(reg *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ins[reg.StreamKey]; ok {
		return fmt.Errorf("rtmp: stream key %q already registered", reg.StreamKey)
	}
	r.ins[reg.StreamKey] = reg
	return nil
}

func (r *Registry) Unregister(streamKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ins, streamKey)
}

func (r *Registry) Lookup(streamKey string) (*Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.ins[streamKey]
	return reg, ok
}

// ServerConfig carries the RTMP ingress server's tunables.
type ServerConfig struct {
	ListenAddr string
}

// Server accepts RTMP publisher connections, negotiates each one, looks up
// its stream key against Registry, and forwards decoded audio/video
// chunks, per spec §4.9.
type Server struct {
	cfg      ServerConfig
	registry *Registry
	log      *slog.Logger
	// trace is a dedicated zerolog logger for the high-volume per-chunk
	// trace path (spec DOMAIN STACK: zerolog for RTMP chunk tracing),
	// separate from the ambient *slog.Logger used for connection
	// lifecycle events.
	trace zerolog.Logger
}

func NewServer(cfg ServerConfig, registry *Registry, log *slog.Logger, trace zerolog.Logger) *Server {
	return &Server{cfg: cfg, registry: registry, log: log, trace: trace}
}

// ListenAndServe runs the accept loop until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("rtmp: listen %s: %w", s.cfg.ListenAddr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("rtmp server listening", "addr", s.cfg.ListenAddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rtmp: accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	log := s.log.With("component", "rtmp", "remote", remote)

	c1Checksum, s1Checksum, err := Handshake(conn)
	if err != nil {
		log.Warn("rtmp handshake failed", "error", err)
		return
	}
	log.Debug("rtmp handshake complete", "c1_checksum", c1Checksum, "s1_checksum", s1Checksum)

	parser := NewMessageParser()
	r := bufio.NewReader(conn)

	result, err := Negotiate(parser, r, conn)
	if err != nil {
		log.Warn("rtmp negotiation failed", "error", err)
		return
	}
	log.Info("rtmp stream published", "app", result.App, "stream_key", result.StreamKey)

	reg, ok := s.registry.Lookup(result.StreamKey)
	if !ok {
		log.Warn("rtmp publish for unregistered stream key", "stream_key", result.StreamKey)
		return
	}

	s.forwardMedia(ctx, parser, r, reg, log)
}

// forwardMedia reads the steady-state message stream after negotiation,
// transcoding Audio/Video messages and forwarding completed chunks onto
// the registration's channels (mirrors pkg/whip's wireInputTrackReaders).
func (s *Server) forwardMedia(ctx context.Context, parser *MessageParser, r *bufio.Reader, reg *Registration, log *slog.Logger) {
	syncPoint := clock.NewSyncPoint()
	videoSync := clock.NewTimestampSync(syncPoint, 1000, 0) // RTMP timestamps are in milliseconds
	audioSync := clock.NewTimestampSync(syncPoint, 1000, 0)
	transcoder := NewTagTranscoder()

	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := parser.ReadMessage(r)
		if err != nil {
			log.Debug("rtmp connection closed", "error", err)
			return
		}

		switch msg.Kind {
		case MsgSetChunkSize:
			parser.SetChunkSize(msg.ChunkSize)
		case MsgAudio:
			pts := audioSync.Resolve(msg.Timestamp)
			chunk, err := transcoder.TranscodeAudio(msg.Payload, pts)
			if err != nil {
				s.trace.Warn().Err(err).Msg("rtmp audio tag decode failed")
				continue
			}
			if chunk != nil {
				s.trace.Trace().Int("bytes", len(chunk.Data)).Msg("rtmp audio chunk")
				sendNonBlocking(reg.SamplesSender, *chunk)
			}
		case MsgVideo:
			pts := videoSync.Resolve(msg.Timestamp)
			chunks, err := transcoder.TranscodeVideo(msg.Payload, pts)
			if err != nil {
				s.trace.Warn().Err(err).Msg("rtmp video tag decode failed")
				continue
			}
			for _, chunk := range chunks {
				s.trace.Trace().Int("bytes", len(chunk.Data)).Msg("rtmp video chunk")
				sendNonBlocking(reg.FrameSender, chunk)
			}
		}
	}
}

func sendNonBlocking(ch chan<- media.EncodedChunk, chunk media.EncodedChunk) {
	if ch == nil {
		return
	}
	select {
	case ch <- chunk:
	default:
	}
}
