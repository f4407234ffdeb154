package whip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/ethan/compositor-pipeline/pkg/clock"
	"github.com/ethan/compositor-pipeline/pkg/depayload"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// ClientConfig carries the tunables a WHIP egress / WHEP ingress client
// needs (spec §4.8 "WHIP egress (client)" / "WHEP ingress (client)").
type ClientConfig struct {
	EndpointURL string
	BearerToken string
	StunServers []string
	HTTPClient  *http.Client
}

func (c ClientConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Client is a WHIP egress (push) client: it builds a sendonly peer
// connection, offers, negotiates exactly one video and one audio codec,
// and PATCHes trickle-ICE candidates as they're gathered.
type Client struct {
	cfg        ClientConfig
	pc         *webrtc.PeerConnection
	sessionURL string
	noPatch    bool // set after a 422/405 on PATCH, falls back to single-shot ICE
}

// NewWhipClient builds the peer connection (sendonly, one video track, one
// audio track) for a WHIP egress push but does not yet negotiate.
func NewWhipClient(cfg ClientConfig, videoCodecs []media.VideoCodec) (*Client, webrtc.TrackLocal, webrtc.TrackLocal, error) {
	api, err := newAPI(videoCodecs)
	if err != nil {
		return nil, nil, nil, err
	}
	pc, err := newPeerConnection(api, cfg.StunServers)
	if err != nil {
		return nil, nil, nil, err
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: videoMimeType(preferredVideoCodec(videoCodecs))}, "video", "whip")
	if err != nil {
		_ = pc.Close()
		return nil, nil, nil, fmt.Errorf("create video track: %w", err)
	}
	if _, err := addSendonlyTrack(pc, videoTrack); err != nil {
		_ = pc.Close()
		return nil, nil, nil, fmt.Errorf("add video track: %w", err)
	}

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "whip")
	if err != nil {
		_ = pc.Close()
		return nil, nil, nil, fmt.Errorf("create audio track: %w", err)
	}
	if _, err := addSendonlyTrack(pc, audioTrack); err != nil {
		_ = pc.Close()
		return nil, nil, nil, fmt.Errorf("add audio track: %w", err)
	}

	return &Client{cfg: cfg, pc: pc}, videoTrack, audioTrack, nil
}

// Connect performs the initial offer/answer exchange over HTTP (spec §4.8
// "WHIP/WHEP HTTP": POST with Content-Type: application/sdp, answer in the
// body, session URL in Location). If trickle is true, local ICE candidates
// are PATCHed to the server as they're discovered once the session URL is
// known (candidates found before the POST response arrives are not
// PATCHed); otherwise Connect waits for gathering to complete before offering
// (single-shot ICE).
func (c *Client) Connect(ctx context.Context, trickle bool) error {
	if trickle {
		c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
			if cand == nil || c.noPatch || c.sessionURL == "" {
				return
			}
			if err := c.patchCandidate(ctx, *cand); err != nil {
				c.noPatch = true
			}
		})
	}

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	if !trickle {
		waitForICEGathering(ctx, c.pc, 10*time.Second)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, strings.NewReader(c.pc.LocalDescription().SDP))
	if err != nil {
		return fmt.Errorf("build offer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.cfg.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whip: offer rejected: %d: %s", resp.StatusCode, string(body))
	}

	answerSDP, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read answer: %w", err)
	}
	c.sessionURL = resp.Header.Get("Location")

	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: string(answerSDP)}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// patchCandidate sends one local ICE candidate as a trickle-ice-sdpfrag
// PATCH. A 422/405 response disables further PATCHing (spec §4.8 "On PATCH
// 422/405 it falls back to single-shot ICE" — here, to no further trickle
// once negotiation has already completed single-shot).
func (c *Client) patchCandidate(ctx context.Context, cand webrtc.ICECandidate) error {
	frag := fmt.Sprintf("a=candidate:%s\r\n", cand.ToJSON().Candidate)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.sessionURL, bytes.NewBufferString(frag))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/trickle-ice-sdpfrag")
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}
	resp, err := c.cfg.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusMethodNotAllowed {
		return fmt.Errorf("whip: trickle ICE unsupported: %d", resp.StatusCode)
	}
	return nil
}

// Close best-effort DELETEs the server session (spec §4.8 "On DELETE it
// best-effort closes the server session") and closes the local peer
// connection.
func (c *Client) Close(ctx context.Context) error {
	if c.sessionURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.sessionURL, nil)
		if err == nil {
			if resp, err := c.cfg.httpClient().Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
	return c.pc.Close()
}

// WhepClient is a WHEP ingress (pull) client: it sends an offer, receives
// an answer, and dispatches incoming tracks to a per-payload-type decoder
// callback (spec §4.8 "WHEP ingress (client)").
type WhepClient struct {
	cfg ClientConfig
	pc  *webrtc.PeerConnection
}

// TrackHandler is invoked once per incoming track with a depayloaded
// chunk stream reader already wired; callers read chunks off the
// returned channel until it closes.
type TrackHandler func(kind media.MediaKind, chunks <-chan media.EncodedChunk)

// NewWhepClient builds a recvonly peer connection for WHEP ingress.
func NewWhepClient(cfg ClientConfig, videoCodecs []media.VideoCodec, onTrack TrackHandler) (*WhepClient, error) {
	api, err := newAPI(videoCodecs)
	if err != nil {
		return nil, err
	}
	pc, err := newPeerConnection(api, cfg.StunServers)
	if err != nil {
		return nil, err
	}
	if _, err := addRecvonlyVideoTransceiver(pc, nil); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}
	if _, err := addRecvonlyAudioTransceiver(pc); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		chunks := make(chan media.EncodedChunk, 32)
		kind := media.MediaKind{IsVideo: track.Kind() == webrtc.RTPCodecTypeVideo}
		go onTrack(kind, chunks)
		go pullTrack(track, chunks)
	})

	return &WhepClient{cfg: cfg, pc: pc}, nil
}

func pullTrack(track *webrtc.TrackRemote, out chan<- media.EncodedChunk) {
	defer close(out)
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
			continue
		}
		for _, chunk := range chunks {
			out <- chunk
		}
	}
}

// Connect performs the offer/answer exchange for WHEP ingress.
func (c *WhepClient) Connect(ctx context.Context) error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	waitForICEGathering(ctx, c.pc, 10*time.Second)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, strings.NewReader(c.pc.LocalDescription().SDP))
	if err != nil {
		return fmt.Errorf("build offer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.cfg.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whep: offer rejected: %d: %s", resp.StatusCode, string(body))
	}

	answerSDP, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read answer: %w", err)
	}
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: string(answerSDP)})
}

// Close closes the local peer connection.
func (c *WhepClient) Close() error {
	return c.pc.Close()
}
