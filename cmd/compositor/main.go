// cmd/compositor is the single process that runs the engine: it loads
// configuration, mounts the WHIP/WHEP HTTP surface and the RTMP listener
// over the engine's registries, registers whatever inputs/outputs the
// flags name, and runs until interrupted.
//
// There is deliberately no HTTP control-API layer here (SPEC_FULL.md
// carries spec.md §1's non-goal forward unchanged) — register_input/
// register_output/update_scene/register_renderer are Go calls against
// pkg/pipeline.Engine, made directly below, the same way an embedding
// program would use the package as a library.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ethan/compositor-pipeline/pkg/config"
	"github.com/ethan/compositor-pipeline/pkg/ids"
	"github.com/ethan/compositor-pipeline/pkg/logger"
	"github.com/ethan/compositor-pipeline/pkg/media"
	"github.com/ethan/compositor-pipeline/pkg/pipeline"
	"github.com/ethan/compositor-pipeline/pkg/rtmp"
	"github.com/ethan/compositor-pipeline/pkg/scene"
	"github.com/ethan/compositor-pipeline/pkg/whip"
)

func main() {
	fs := flag.NewFlagSet("compositor", flag.ExitOnError)
	logFlags := logger.RegisterFlags(fs)

	envPath := fs.String("env", ".env", "path to a .env-style config file; falls back to defaults if absent")
	httpAddr := fs.String("http", ":8080", "listen address for the WHIP/WHEP HTTP surface")
	rtmpAddr := fs.String("rtmp", ":1935", "listen address for RTMP ingress")

	inputMp4 := fs.String("input-mp4", "", "register an MP4 file input on startup, looping playback")
	inputWhipEndpoint := fs.String("whip-input-endpoint", "", "register a hosted WHIP ingress endpoint on startup")
	outputMp4 := fs.String("output-mp4", "", "register an MP4 file output on startup")
	outputWhepEndpoint := fs.String("whep-output-endpoint", "", "register a hosted WHEP egress endpoint on startup")
	outputWidth := fs.Int("output-width", 1280, "composited output width in pixels")
	outputHeight := fs.Int("output-height", 720, "composited output height in pixels")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	logCfg, err := logFlags.ToConfig()
	if err != nil {
		log.Fatalf("configure logger: %v", err)
	}
	lgr, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer lgr.Close()
	logger.SetDefault(lgr)

	cfg, err := config.Load(*envPath)
	if err != nil {
		lgr.Warn("no config file, using defaults", "path", *envPath, "error", err)
		cfg = config.Default()
	}

	engine := pipeline.New(cfg, lgr)

	whipServer := whip.NewServer(engine.Ctx.WhipRegistry, whip.ServerConfig{
		StunServers:      cfg.StunServers,
		IceGatherTimeout: cfg.IceGatherTimeout,
		BaseURL:          "http://" + trimLeadingColon(*httpAddr),
	}, lgr.Logger)

	mux := http.NewServeMux()
	whipServer.Mount(mux)
	httpServer := &http.Server{Addr: *httpAddr, Handler: mux}

	go func() {
		lgr.Info("whip/whep http surface listening", "addr", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lgr.Error("http server stopped", "error", err)
		}
	}()

	rtmpCtx, rtmpCancel := context.WithCancel(context.Background())
	rtmpServer := rtmp.NewServer(rtmp.ServerConfig{ListenAddr: *rtmpAddr}, engine.Ctx.RtmpRegistry, lgr.Logger, zerolog.New(os.Stdout).With().Timestamp().Logger())
	go func() {
		lgr.Info("rtmp ingress listening", "addr", *rtmpAddr)
		if err := rtmpServer.ListenAndServe(rtmpCtx); err != nil {
			lgr.Error("rtmp server stopped", "error", err)
		}
	}()

	if *inputMp4 != "" {
		if _, err := engine.RegisterInput(ids.InputId("mp4-input"), pipeline.InputOptions{
			Kind: pipeline.InputMp4,
			Mp4:  pipeline.Mp4InputOptions{Path: *inputMp4, Loop: true},
		}); err != nil {
			log.Fatalf("register mp4 input: %v", err)
		}
	}

	if *inputWhipEndpoint != "" {
		info, err := engine.RegisterInput(ids.InputId("whip-input"), pipeline.InputOptions{
			Kind: pipeline.InputWhip,
			Whip: pipeline.WhipInputOptions{
				EndpointId:       *inputWhipEndpoint,
				VideoPreferences: []media.VideoCodec{media.VideoH264},
			},
		}); err != nil {
			log.Fatalf("register whip input: %v", err)
		}
		lgr.Info("whip input registered", "path", info.WhipEndpointPath)
	}

	haveOutput := *outputMp4 != "" || *outputWhepEndpoint != ""
	if haveOutput {
		outOpts := pipeline.OutputOptions{
			Resolution: media.Resolution{Width: *outputWidth, Height: *outputHeight},
			VideoCodec: media.VideoH264,
			AudioCodec: media.AudioOpus,
		}
		if *outputMp4 != "" {
			outOpts.Kind = pipeline.OutputMp4
			outOpts.Mp4 = pipeline.Mp4OutputOptions{Path: *outputMp4}
			if _, err := engine.RegisterOutput(ids.OutputId("mp4-output"), outOpts); err != nil {
				log.Fatalf("register mp4 output: %v", err)
			}
		}
		if *outputWhepEndpoint != "" {
			outOpts.Kind = pipeline.OutputWhep
			outOpts.Whep = pipeline.WhepOutputOptions{EndpointId: *outputWhepEndpoint}
			if _, err := engine.RegisterOutput(ids.OutputId("whep-output"), outOpts); err != nil {
				log.Fatalf("register whep output: %v", err)
			}
		}

		if *inputMp4 != "" || *inputWhipEndpoint != "" {
			root := scene.View{
				Id: "root",
				ChildrenList: []scene.Component{
					scene.InputStream{Id: "main", InputId: firstInputId(*inputMp4, *inputWhipEndpoint)},
				},
			}
			if *outputMp4 != "" {
				_ = engine.UpdateScene(ids.OutputId("mp4-output"), root)
			}
			if *outputWhepEndpoint != "" {
				_ = engine.UpdateScene(ids.OutputId("whep-output"), root)
			}
		}
	}

	if err := engine.Start(); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	lgr.Info("compositor running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	rtmpCancel()
	_ = engine.Close()
}

func trimLeadingColon(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func firstInputId(mp4Path, whipEndpoint string) ids.InputId {
	if mp4Path != "" {
		return ids.InputId("mp4-input")
	}
	if whipEndpoint != "" {
		return ids.InputId("whip-input")
	}
	return ""
}
