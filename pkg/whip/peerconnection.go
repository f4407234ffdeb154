package whip

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/ethan/compositor-pipeline/pkg/media"
)

// videoMimeType maps a media.VideoCodec to its pion MIME type.
func videoMimeType(c media.VideoCodec) string {
	switch c {
	case media.VideoH264:
		return webrtc.MimeTypeH264
	case media.VideoVP8:
		return webrtc.MimeTypeVP8
	case media.VideoVP9:
		return webrtc.MimeTypeVP9
	default:
		return ""
	}
}

// mediaEngineWithCodecs builds a MediaEngine registering Opus audio and the
// given video codec preference list, mirroring the original's
// media_engine_with_codecs (peer_connection_recvonly.rs).
func mediaEngineWithCodecs(videoCodecs []media.VideoCodec) (*webrtc.MediaEngine, error) {
	m := &webrtc.MediaEngine{}

	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus codec: %w", err)
	}

	payloadType := webrtc.PayloadType(96)
	for _, codec := range videoCodecs {
		mime := videoMimeType(codec)
		if mime == "" {
			continue
		}
		if err := m.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  mime,
				ClockRate: 90000,
			},
			PayloadType: payloadType,
		}, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("register video codec %s: %w", mime, err)
		}
		payloadType++
	}

	return m, nil
}

// newAPI builds a pion API with the given codec set and default
// interceptors (NACK, RTCP reports), per spec §4.9 DOMAIN STACK wiring.
func newAPI(videoCodecs []media.VideoCodec) (*webrtc.API, error) {
	m, err := mediaEngineWithCodecs(videoCodecs)
	if err != nil {
		return nil, err
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i)), nil
}

// newPeerConnection builds a peer connection using the given STUN servers.
func newPeerConnection(api *webrtc.API, stunServers []string) (*webrtc.PeerConnection, error) {
	cfg := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	}
	return api.NewPeerConnection(cfg)
}

// waitForICEGathering blocks until ICE gathering completes or timeout
// elapses (spec §4.8 "waits up to a configured timeout for ICE
// gathering").
func waitForICEGathering(ctx context.Context, pc *webrtc.PeerConnection, timeout time.Duration) {
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	select {
	case <-gatherComplete:
	case <-time.After(timeout):
	case <-ctx.Done():
	}
}

// addRecvonlyVideoTransceiver adds a recvonly video transceiver with codec
// preferences set to videoCodecs, mirroring RecvonlyPeerConnection::new_video_track.
func addRecvonlyVideoTransceiver(pc *webrtc.PeerConnection, videoCodecs []webrtc.RTPCodecParameters) (*webrtc.RTPTransceiver, error) {
	t, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return nil, err
	}
	if len(videoCodecs) > 0 {
		if err := t.SetCodecPreferences(videoCodecs); err != nil {
			return nil, fmt.Errorf("set codec preferences: %w", err)
		}
	}
	return t, nil
}

// addRecvonlyAudioTransceiver adds a recvonly audio transceiver.
func addRecvonlyAudioTransceiver(pc *webrtc.PeerConnection) (*webrtc.RTPTransceiver, error) {
	return pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
}

// addSendonlyTrack adds a sendonly local track of the given kind, used by
// the WHIP egress client and the WHEP egress server.
func addSendonlyTrack(pc *webrtc.PeerConnection, track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return pc.AddTrack(track)
}
