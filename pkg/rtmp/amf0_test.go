package rtmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAMF0RoundTripNumberStringBool(t *testing.T) {
	values := []Value{NumberValue(42.5), StringValue("connect"), BoolValue(true), NullValue()}
	encoded := EncodeAMF0(nil, values...)

	decoded, err := DecodeAMF0(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 4)
	assert.Equal(t, 42.5, decoded[0].Number)
	assert.Equal(t, "connect", decoded[1].String)
	assert.True(t, decoded[2].Boolean)
	assert.Equal(t, uint8(amf0Null), decoded[3].Kind)
}

func TestAMF0RoundTripObjectWithNestedProperties(t *testing.T) {
	obj := ObjectValue(
		Prop("app", StringValue("live")),
		Prop("capabilities", NumberValue(31)),
	)
	encoded := EncodeAMF0(nil, obj)

	decoded, err := DecodeAMF0(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	app, ok := decoded[0].Lookup("app")
	require.True(t, ok)
	assert.Equal(t, "live", app.String)

	caps, ok := decoded[0].Lookup("capabilities")
	require.True(t, ok)
	assert.Equal(t, float64(31), caps.Number)
}

func TestAMF0DecodeConnectCommandShape(t *testing.T) {
	encoded := EncodeAMF0(nil,
		StringValue("connect"),
		NumberValue(1),
		ObjectValue(Prop("app", StringValue("live"))),
	)

	decoded, err := DecodeAMF0(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, "connect", decoded[0].String)
	assert.Equal(t, float64(1), decoded[1].Number)
	app, ok := decoded[2].Lookup("app")
	require.True(t, ok)
	assert.Equal(t, "live", app.String)
}

func TestAMF0DecodeStrictArray(t *testing.T) {
	arr := Value{Kind: amf0StrictArray, Array: []Value{NumberValue(1), StringValue("a")}}
	encoded := EncodeAMF0(nil, arr)

	decoded, err := DecodeAMF0(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Len(t, decoded[0].Array, 2)
	assert.Equal(t, float64(1), decoded[0].Array[0].Number)
	assert.Equal(t, "a", decoded[0].Array[1].String)
}

func TestAMF0DecodeRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeAMF0([]byte{amf0Number, 0x00, 0x01})
	assert.Error(t, err)
}
