package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/media"
	"github.com/ethan/compositor-pipeline/pkg/mp4"
	"github.com/ethan/compositor-pipeline/pkg/rtmp"
	"github.com/ethan/compositor-pipeline/pkg/whip"
)

// wireMp4Input plays a file back sample by sample, pacing each one so its
// file PTS lines up with wall-clock time elapsed since playback (re)started
// (file-based sources, unlike RTP/WHIP, have no live sender to pace
// against). Chunk PTS stay file-relative; they are not offset by the
// process sync point.
func wireMp4Input(in *inputState, opts Mp4InputOptions) error {
	f, err := os.Open(opts.Path)
	if err != nil {
		return fmt.Errorf("pipeline: open mp4 input: %w", err)
	}
	reader, err := mp4.Open(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("pipeline: parse mp4 input: %w", err)
	}
	in.closeFns = append(in.closeFns, func() { f.Close() })

	videoTrack, hasVideo := reader.FindH264Track()
	audioTrack, hasAudio := reader.FindAACTrack()

	in.wg.Add(1)
	go runMp4Playback(in, videoTrack, hasVideo, audioTrack, hasAudio, opts.Loop)
	return nil
}

func runMp4Playback(in *inputState, videoTrack *mp4.Track, hasVideo bool, audioTrack *mp4.Track, hasAudio bool, loop bool) {
	defer in.wg.Done()
	start := time.Now()

	for {
		var nextVideo, nextAudio func() (media.EncodedChunk, time.Duration, bool)
		if hasVideo {
			nextVideo = videoTrack.Chunks()
		}
		if hasAudio {
			nextAudio = audioTrack.Chunks()
		}

		videoChunk, videoOK := media.EncodedChunk{}, false
		audioChunk, audioOK := media.EncodedChunk{}, false
		if nextVideo != nil {
			videoChunk, _, videoOK = nextVideo()
		}
		if nextAudio != nil {
			audioChunk, _, audioOK = nextAudio()
		}

		for videoOK || audioOK {
			if videoOK && (!audioOK || videoChunk.Pts <= audioChunk.Pts) {
				waitUntil(start, videoChunk.Pts)
				in.pushFrameChunk(videoChunk)
				videoChunk, _, videoOK = nextVideo()
			} else if audioOK {
				waitUntil(start, audioChunk.Pts)
				in.pushSampleChunk(audioChunk)
				audioChunk, _, audioOK = nextAudio()
			}

			select {
			case <-in.done:
				return
			default:
			}
		}

		if !loop {
			return
		}
		start = time.Now()
	}
}

func waitUntil(start time.Time, pts time.Duration) {
	target := start.Add(pts)
	if d := time.Until(target); d > 0 {
		time.Sleep(d)
	}
}

// wireWhipInput registers a hosted WHIP ingress endpoint; the actual SDP
// negotiation is driven by whatever whip.Server an embedding program
// mounted over PipelineCtx.WhipRegistry.
func wireWhipInput(ctx *PipelineCtx, id ids.InputId, in *inputState, opts WhipInputOptions) (InitInfo, error) {
	reg := &whip.InputRegistration{
		InputId:          id,
		BearerToken:      opts.BearerToken,
		EndpointId:       opts.EndpointId,
		VideoPreferences: opts.VideoPreferences,
		FrameSender:      in.frameChunks,
		SamplesSender:    in.sampleChunks,
	}
	if err := ctx.WhipRegistry.RegisterInput(reg); err != nil {
		return InitInfo{}, fmt.Errorf("pipeline: whip register: %w", err)
	}
	in.closeFns = append(in.closeFns, func() { ctx.WhipRegistry.UnregisterInput(opts.EndpointId) })
	return InitInfo{WhipEndpointPath: "/whip/" + opts.EndpointId}, nil
}

// wireWhepInput pulls media from a remote WHEP server (pipeline acting as
// the WHEP client); whip.WhepClient depayloads each incoming track and this
// callback pushes the resulting chunks onto the input's queues.
func wireWhepInput(ctx *PipelineCtx, in *inputState, opts WhepInputOptions) error {
	client, err := whip.NewWhepClient(whip.ClientConfig{
		EndpointURL: opts.EndpointURL,
		BearerToken: opts.BearerToken,
		StunServers: opts.StunServers,
	}, opts.VideoCodecs, func(kind media.MediaKind, chunks <-chan media.EncodedChunk) {
		for c := range chunks {
			c.Kind = kind
			if kind.IsVideo {
				in.pushFrameChunk(c)
			} else {
				in.pushSampleChunk(c)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("pipeline: whep client: %w", err)
	}

	connCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.WhepInitTimeout)
	defer cancel()
	if err := client.Connect(connCtx); err != nil {
		return fmt.Errorf("pipeline: whep connect: %w", err)
	}

	in.closeFns = append(in.closeFns, func() { client.Close() })
	return nil
}

// wireRtmpInput registers a hosted RTMP ingress stream key; the actual
// handshake/chunk parsing is driven by whatever rtmp.Server an embedding
// program mounted over PipelineCtx.RtmpRegistry.
func wireRtmpInput(ctx *PipelineCtx, in *inputState, opts RtmpInputOptions) error {
	reg := &rtmp.Registration{
		StreamKey:     opts.StreamKey,
		FrameSender:   in.frameChunks,
		SamplesSender: in.sampleChunks,
	}
	if err := ctx.RtmpRegistry.Register(reg); err != nil {
		return fmt.Errorf("pipeline: rtmp register: %w", err)
	}
	in.closeFns = append(in.closeFns, func() { ctx.RtmpRegistry.Unregister(opts.StreamKey) })
	return nil
}
