// Package config loads pipeline tunables from a .env-style file, following
// the same key=value-per-line parsing the rest of the corpus uses for
// credentials, generalized to the compositor's runtime knobs.
package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// JitterBufferMode selects the jitter buffer's release policy (spec §4.1).
type JitterBufferMode string

const (
	JitterFixed      JitterBufferMode = "fixed"
	JitterQueueBased JitterBufferMode = "queue_based"
	JitterDisabled   JitterBufferMode = "disabled"
)

// Config holds every tunable of the pipeline engine.
type Config struct {
	// OutputFramerate drives the clock tick (render pass cadence).
	OutputFramerate int

	// JitterBufferMode and JitterBufferFixedDelay parameterize §4.1's
	// Fixed(d)/QueueBased/Disabled switch.
	JitterBufferMode       JitterBufferMode
	JitterBufferFixedDelay time.Duration

	// MixingSampleRate is the common rate every resampler normalizes to.
	MixingSampleRate int

	// StunServers is the default/fallback STUN server list for WHIP/WHEP
	// ICE agents (PipelineCtx.stun_servers).
	StunServers []string

	// IceGatherTimeout bounds how long WHIP/WHEP registration waits for ICE
	// candidate gathering before answering anyway (default 10s per §5).
	IceGatherTimeout time.Duration

	// WhepInitTimeout bounds WHEP session setup (default 60s per §5).
	WhepInitTimeout time.Duration

	// RtmpChunkSize is the RTMP chunk stream's default chunk size before any
	// SetChunkSize negotiation (default 128 per §4.9).
	RtmpChunkSize int

	// RtmpReconnectBackoff is the RTMP ingress reconnect backoff (default 3s
	// per §5).
	RtmpReconnectBackoff time.Duration

	// OpusFECGapMin/Max bound the gap (previous batch end PTS to next chunk
	// PTS) that triggers Opus FEC reconstruction (§4.3, §9 Open Questions).
	OpusFECGapMin time.Duration
	OpusFECGapMax time.Duration

	// DownloadRoot is where registered image/font assets are fetched to.
	DownloadRoot string
}

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
	return &Config{
		OutputFramerate:        30,
		JitterBufferMode:       JitterQueueBased,
		JitterBufferFixedDelay: 200 * time.Millisecond,
		MixingSampleRate:       48000,
		StunServers:            []string{"stun:stun.l.google.com:19302"},
		IceGatherTimeout:       10 * time.Second,
		WhepInitTimeout:        60 * time.Second,
		RtmpChunkSize:          128,
		RtmpReconnectBackoff:   3 * time.Second,
		OpusFECGapMin:          1 * time.Millisecond,
		OpusFECGapMax:          1000 * time.Millisecond,
		DownloadRoot:           "./assets",
	}
}

// Load reads configuration from a .env-style file, applying overrides on
// top of Default().
func Load(envPath string) (*Config, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}

		if err := cfg.apply(key, decodedValue); err != nil {
			return nil, fmt.Errorf("config key %q: %w", key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) apply(key, value string) error {
	switch key {
	case "output_framerate":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.OutputFramerate = n
	case "jitter_buffer_mode":
		switch JitterBufferMode(value) {
		case JitterFixed, JitterQueueBased, JitterDisabled:
			c.JitterBufferMode = JitterBufferMode(value)
		default:
			return fmt.Errorf("unknown jitter_buffer_mode %q", value)
		}
	case "jitter_buffer_fixed_delay_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.JitterBufferFixedDelay = time.Duration(n) * time.Millisecond
	case "mixing_sample_rate":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.MixingSampleRate = n
	case "stun_servers":
		c.StunServers = strings.Split(value, ",")
	case "ice_gather_timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.IceGatherTimeout = time.Duration(n) * time.Millisecond
	case "whep_init_timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.WhepInitTimeout = time.Duration(n) * time.Millisecond
	case "rtmp_chunk_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.RtmpChunkSize = n
	case "rtmp_reconnect_backoff_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.RtmpReconnectBackoff = time.Duration(n) * time.Millisecond
	case "opus_fec_gap_min_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.OpusFECGapMin = time.Duration(n) * time.Millisecond
	case "opus_fec_gap_max_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.OpusFECGapMax = time.Duration(n) * time.Millisecond
	case "download_root":
		c.DownloadRoot = value
	}
	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.OutputFramerate <= 0 {
		return fmt.Errorf("output_framerate must be positive")
	}
	if c.MixingSampleRate <= 0 {
		return fmt.Errorf("mixing_sample_rate must be positive")
	}
	switch c.JitterBufferMode {
	case JitterFixed, JitterQueueBased, JitterDisabled:
	default:
		return fmt.Errorf("invalid jitter_buffer_mode %q", c.JitterBufferMode)
	}
	if c.OpusFECGapMin <= 0 || c.OpusFECGapMax <= c.OpusFECGapMin {
		return fmt.Errorf("invalid opus fec gap bounds [%s, %s]", c.OpusFECGapMin, c.OpusFECGapMax)
	}
	return nil
}
