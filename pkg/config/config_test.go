package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.env")
	contents := "output_framerate=60\n" +
		"jitter_buffer_mode=fixed\n" +
		"jitter_buffer_fixed_delay_ms=250\n" +
		"stun_servers=stun:a.example.com,stun:b.example.com\n" +
		"# a comment line\n\n" +
		"opus_fec_gap_min_ms=2\n" +
		"opus_fec_gap_max_ms=500\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.OutputFramerate)
	assert.Equal(t, JitterFixed, cfg.JitterBufferMode)
	assert.Equal(t, 250*time.Millisecond, cfg.JitterBufferFixedDelay)
	assert.Equal(t, []string{"stun:a.example.com", "stun:b.example.com"}, cfg.StunServers)
	assert.Equal(t, 2*time.Millisecond, cfg.OpusFECGapMin)
	assert.Equal(t, 500*time.Millisecond, cfg.OpusFECGapMax)
}

func TestValidateRejectsBadFECBounds(t *testing.T) {
	cfg := Default()
	cfg.OpusFECGapMin = 500 * time.Millisecond
	cfg.OpusFECGapMax = 10 * time.Millisecond

	assert.Error(t, cfg.Validate())
}
