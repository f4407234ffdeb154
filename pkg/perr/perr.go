// Package perr implements the pipeline's error taxonomy: a small set of
// error kinds orthogonal to the specific Go error types, so callers can
// decide propagation policy with errors.As instead of string matching.
package perr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error by how it must be handled.
type Kind int

const (
	// KindConfiguration marks invalid request parameters, surfaced
	// synchronously to the registration call. No state change occurs.
	KindConfiguration Kind = iota
	// KindInitialization marks failure to construct a codec/encoder/decoder
	// or negotiate a codec. Registration fails and partial resources are
	// torn down before return.
	KindInitialization
	// KindStream marks malformed wire data (RTP/AMF0/FLV) or an
	// out-of-range timestamp. Logged at warn, the packet is dropped, the
	// loop continues.
	KindStream
	// KindTransport marks a closed channel, closed peer connection, or
	// HTTP failure. Treated as EOS locally; the affected side tears down.
	KindTransport
	// KindFatal marks GPU device loss or allocation failure in a core
	// thread. The affected output is marked failed; other outputs continue.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInitialization:
		return "initialization"
	case KindStream:
		return "stream"
	case KindTransport:
		return "transport"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a pipeline error tagged with a Kind and, where relevant, the
// input/output id it concerns.
type Error struct {
	Kind Kind
	Op   string // e.g. "register_input", "jitterbuffer.push"
	Id   string // InputId/OutputId string form, empty if not applicable
	Err  error
}

func (e *Error) Error() string {
	if e.Id != "" {
		return fmt.Sprintf("%s: %s[%s]: %v", e.Kind, e.Op, e.Id, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is a pipeline *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind == kind
}

// Configuration wraps err as a configuration error.
func Configuration(op, id string, err error) error {
	return &Error{Kind: KindConfiguration, Op: op, Id: id, Err: err}
}

// Initialization wraps err as an initialization error.
func Initialization(op, id string, err error) error {
	return &Error{Kind: KindInitialization, Op: op, Id: id, Err: err}
}

// Stream wraps err as a stream error.
func Stream(op, id string, err error) error {
	return &Error{Kind: KindStream, Op: op, Id: id, Err: err}
}

// Transport wraps err as a transport error.
func Transport(op, id string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Id: id, Err: err}
}

// Fatal wraps err as a fatal error.
func Fatal(op, id string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Id: id, Err: err}
}
