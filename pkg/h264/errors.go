package h264

import "errors"

var (
	errTooShort                = errors.New("h264: nal unit too short")
	errUnsupportedScalingMatrix = errors.New("h264: custom scaling matrices unsupported")
)
