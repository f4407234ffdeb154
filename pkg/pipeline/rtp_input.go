package pipeline

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/rtp"

	"github.com/ethan/compositor-pipeline/pkg/clock"
	"github.com/ethan/compositor-pipeline/pkg/config"
	"github.com/ethan/compositor-pipeline/pkg/depayload"
	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/jitterbuffer"
	"github.com/ethan/compositor-pipeline/pkg/media"
)

// rtpPopPollInterval is how often an idle pop loop re-checks the jitter
// buffer when PopPacket has nothing ready yet.
const rtpPopPollInterval = 2 * time.Millisecond

// wireInputSource dispatches opts.Kind to the concrete ingress wiring. It
// mutates in.closeFns/in.onKeyframeNeeded and may spawn goroutines tracked
// by in.wg, all before returning so UnregisterInput's shutdown() tears
// everything down symmetrically.
func wireInputSource(ctx *PipelineCtx, id ids.InputId, in *inputState, opts InputOptions) (InitInfo, error) {
	switch opts.Kind {
	case InputRawData:
		return InitInfo{RawData: &RawDataInputPort{in: in}}, nil

	case InputMp4:
		return InitInfo{}, wireMp4Input(in, opts.Mp4)

	case InputRtp:
		return InitInfo{}, wireRtpInput(ctx, in, opts.Rtp)

	case InputWhip:
		return wireWhipInput(ctx, id, in, opts.Whip)

	case InputWhep:
		return InitInfo{}, wireWhepInput(ctx, in, opts.Whep)

	case InputRtmp:
		return InitInfo{}, wireRtmpInput(ctx, in, opts.Rtmp)

	default:
		return InitInfo{}, fmt.Errorf("pipeline: unknown input kind %d", opts.Kind)
	}
}

// wireRtpInput opens one UDP listener per configured track (video/audio),
// feeding each through a jitter buffer and depayloader into the input's
// encoded-chunk channels (spec §4.1/§4.2's raw-RTP ingress path, with no
// WHIP/WHEP/RTMP signaling layered on top).
func wireRtpInput(ctx *PipelineCtx, in *inputState, opts RtpOptions) error {
	if opts.VideoListenAddr != "" {
		if err := startRtpTrack(ctx, in, opts.VideoListenAddr, opts.VideoClockRate, true, opts.VideoCodec, opts.AudioCodec); err != nil {
			return fmt.Errorf("pipeline: rtp video listener: %w", err)
		}
	}
	if opts.AudioListenAddr != "" {
		if err := startRtpTrack(ctx, in, opts.AudioListenAddr, opts.AudioClockRate, false, opts.VideoCodec, opts.AudioCodec); err != nil {
			return fmt.Errorf("pipeline: rtp audio listener: %w", err)
		}
	}
	return nil
}

func startRtpTrack(ctx *PipelineCtx, in *inputState, addr string, clockRate uint32, isVideo bool, videoCodec media.VideoCodec, audioCodec media.AudioCodec) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	in.closeFns = append(in.closeFns, func() { conn.Close() })

	tsSync := clock.NewTimestampSync(ctx.Sync, clockRate, 0)
	jb := jitterbuffer.New(jitterbuffer.Options{
		Mode:       rtpJitterMode(ctx.Config.JitterBufferMode),
		FixedDelay: ctx.Config.JitterBufferFixedDelay,
		Sync:       ctx.Sync,
		Timestamp:  tsSync,
		Log:        ctx.Log,
	})

	var dep depayload.Depayloader
	var kind media.MediaKind
	if isVideo {
		dep = rtpVideoDepayloader(videoCodec)
		kind = media.VideoKind(videoCodec)
	} else {
		dep = depayload.NewOpus()
		kind = media.AudioKind(audioCodec)
	}

	in.wg.Add(2)
	go runRtpReceiveLoop(in, conn, jb)
	go runRtpPopLoop(in, jb, dep, kind, isVideo)
	return nil
}

func rtpVideoDepayloader(codec media.VideoCodec) depayload.Depayloader {
	switch codec {
	case media.VideoVP8:
		return depayload.NewVP8()
	case media.VideoVP9:
		return depayload.NewVP9()
	default:
		return depayload.NewH264()
	}
}

func rtpJitterMode(mode config.JitterBufferMode) jitterbuffer.Mode {
	switch mode {
	case config.JitterQueueBased:
		return jitterbuffer.ModeQueueBased
	case config.JitterDisabled:
		return jitterbuffer.ModeDisabled
	default:
		return jitterbuffer.ModeFixed
	}
}

func runRtpReceiveLoop(in *inputState, conn *net.UDPConn, jb *jitterbuffer.Buffer) {
	defer in.wg.Done()
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		jb.WritePacket(pkt)

		select {
		case <-in.done:
			return
		default:
		}
	}
}

func runRtpPopLoop(in *inputState, jb *jitterbuffer.Buffer, dep depayload.Depayloader, kind media.MediaKind, isVideo bool) {
	defer in.wg.Done()
	ticker := time.NewTicker(rtpPopPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-in.done:
			return
		case <-ticker.C:
		}
		for {
			pkt, ok := jb.PopPacket()
			if !ok {
				break
			}
			chunks, err := dep.Depayload(pkt.Packet, pkt.Timestamp)
			if err != nil {
				continue
			}
			for _, c := range chunks {
				c.Kind = kind
				if isVideo {
					in.pushFrameChunk(c)
				} else {
					in.pushSampleChunk(c)
				}
			}
		}
	}
}
