package whip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterInputRejectsDuplicateEndpoint(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterInput(&InputRegistration{EndpointId: "cam-1"}))

	err := r.RegisterInput(&InputRegistration{EndpointId: "cam-1"})
	require.Error(t, err)
	var exists *ErrEndpointExists
	assert.ErrorAs(t, err, &exists)
}

func TestLookupInputUnknownEndpoint(t *testing.T) {
	r := NewRegistry()
	_, err := r.LookupInput("missing")
	require.Error(t, err)
	var unknown *ErrUnknownEndpoint
	assert.ErrorAs(t, err, &unknown)
}

func TestAttachSessionRejectsWhenPreviousConnected(t *testing.T) {
	reg := &InputRegistration{EndpointId: "cam-1"}
	first := newSession("https://example/s1", nil)
	require.NoError(t, reg.attachSession(first))
	first.SetState(SessionConnected)

	second := newSession("https://example/s2", nil)
	err := reg.attachSession(second)
	require.Error(t, err)
	var connected *ErrSessionConnected
	assert.ErrorAs(t, err, &connected)
	assert.Same(t, first, reg.currentSession())
}

func TestAttachSessionReplacesWhenPreviousNotConnected(t *testing.T) {
	reg := &InputRegistration{EndpointId: "cam-1"}
	first := newSession("https://example/s1", nil)
	require.NoError(t, reg.attachSession(first))

	second := newSession("https://example/s2", nil)
	require.NoError(t, reg.attachSession(second))
	assert.Same(t, second, reg.currentSession())
	assert.Equal(t, SessionClosed, first.State())
}

func TestUnregisterInputClosesActiveSession(t *testing.T) {
	r := NewRegistry()
	reg := &InputRegistration{EndpointId: "cam-1"}
	require.NoError(t, r.RegisterInput(reg))

	sess := newSession("https://example/s1", nil)
	require.NoError(t, reg.attachSession(sess))

	r.UnregisterInput("cam-1")
	assert.Equal(t, SessionClosed, sess.State())
	_, err := r.LookupInput("cam-1")
	require.Error(t, err)
}

func TestRegisterOutputRejectsDuplicateEndpoint(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterOutput(&OutputRegistration{EndpointId: "out-1"}))

	err := r.RegisterOutput(&OutputRegistration{EndpointId: "out-1"})
	require.Error(t, err)
	var exists *ErrEndpointExists
	assert.ErrorAs(t, err, &exists)
}
