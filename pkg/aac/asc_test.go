package aac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseASCSimple(t *testing.T) {
	asc := []byte{0b00010010, 0b00010000}
	got, err := ParseASC(asc)
	require.NoError(t, err)

	assert.Equal(t, uint8(2), got.Profile)
	assert.Equal(t, uint32(44100), got.SampleRate)
	assert.Equal(t, uint8(2), got.ChannelCount)
	assert.Equal(t, uint32(1024), got.FrameLength)
}

func TestParseASCComplicatedFrequency(t *testing.T) {
	asc := []byte{0b00010111, 0b10000000, 0b00010000, 0b10011011, 0b10010100}
	got, err := ParseASC(asc)
	require.NoError(t, err)

	assert.Equal(t, uint8(2), got.Profile)
	assert.Equal(t, uint32(0x2137), got.SampleRate)
	assert.Equal(t, uint8(2), got.ChannelCount)
	assert.Equal(t, uint32(960), got.FrameLength)
}

func TestParseASCComplicatedProfile(t *testing.T) {
	asc := []byte{0b11111001, 0b01000110, 0b00100000}
	got, err := ParseASC(asc)
	require.NoError(t, err)

	assert.Equal(t, uint8(42), got.Profile)
	assert.Equal(t, uint32(48000), got.SampleRate)
	assert.Equal(t, uint8(1), got.ChannelCount)
	assert.Equal(t, uint32(1024), got.FrameLength)
}

func TestParseASCComplicatedProfileAndFrequency(t *testing.T) {
	asc := []byte{
		0b11111001, 0b01011110, 0b00000000, 0b01000010, 0b01101110, 0b01000000,
	}
	got, err := ParseASC(asc)
	require.NoError(t, err)

	assert.Equal(t, uint8(42), got.Profile)
	assert.Equal(t, uint32(0x2137), got.SampleRate)
	assert.Equal(t, uint8(2), got.ChannelCount)
	assert.Equal(t, uint32(1024), got.FrameLength)
}

func TestParseASCTooShort(t *testing.T) {
	_, err := ParseASC([]byte{0x12})
	assert.Error(t, err)
}

func TestEncodeASCSimpleMatchesKnownBytes(t *testing.T) {
	cfg := AudioSpecificConfig{Profile: 2, SampleRate: 44100, ChannelCount: 2, FrameLength: 1024}
	got, err := EncodeASC(cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b00010010, 0b00010000}, got)
}

func TestEncodeASCRoundTrips(t *testing.T) {
	cases := []AudioSpecificConfig{
		{Profile: 2, SampleRate: 44100, ChannelCount: 2, FrameLength: 1024},
		{Profile: 2, SampleRate: 0x2137, ChannelCount: 2, FrameLength: 960},
		{Profile: 42, SampleRate: 48000, ChannelCount: 1, FrameLength: 1024},
		{Profile: 42, SampleRate: 0x2137, ChannelCount: 2, FrameLength: 1024},
	}

	for _, cfg := range cases {
		encoded, err := EncodeASC(cfg)
		require.NoError(t, err)

		got, err := ParseASC(encoded)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	}
}
