package perr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "fatal", KindFatal.String())
}

func TestWrapAndIs(t *testing.T) {
	base := errors.New("bad offset")
	err := Configuration("register_input", "in-1", base)

	require.True(t, Is(err, KindConfiguration))
	assert.False(t, Is(err, KindStream))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "in-1")
}

func TestIsUnwrapsThroughFmtErrorf(t *testing.T) {
	base := Stream("depayloader.push", "", errors.New("short packet"))
	wrapped := fmt.Errorf("reader loop: %w", base)

	assert.True(t, Is(wrapped, KindStream))
}
