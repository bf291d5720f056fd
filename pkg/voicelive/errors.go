package voicelive

import (
	"errors"
	"fmt"
)

// Kind classifies session failures.
type Kind int

const (
	KindUnknown Kind = iota
	PermissionDenied
	DeviceUnavailable
	ConnectionFailed
	AuthRejected
	TransportClosed
	QuotaExceeded
	DecodeFailed
	EmptySession
)

var kindNames = [...]string{
	KindUnknown:       "unknown",
	PermissionDenied:  "permission denied",
	DeviceUnavailable: "device unavailable",
	ConnectionFailed:  "connection failed",
	AuthRejected:      "auth rejected",
	TransportClosed:   "transport closed",
	QuotaExceeded:     "quota exceeded",
	DecodeFailed:      "decode failed",
	EmptySession:      "empty session",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrPermissionDenied  = errors.New("voicelive: permission denied")
	ErrDeviceUnavailable = errors.New("voicelive: device unavailable")
	ErrConnectionFailed  = errors.New("voicelive: connection failed")
	ErrAuthRejected      = errors.New("voicelive: auth rejected")
	ErrTransportClosed   = errors.New("voicelive: transport closed")
	ErrQuotaExceeded     = errors.New("voicelive: quota exceeded")
	ErrDecodeFailed      = errors.New("voicelive: decode failed")
	ErrEmptySession      = errors.New("voicelive: empty session")
)

// Other sentinel errors.
var (
	ErrAlreadyStarted = errors.New("voicelive: already started")
	ErrInvalidState   = errors.New("voicelive: invalid state")
	ErrSealed         = errors.New("voicelive: recording sealed")
	ErrRateMismatch   = errors.New("voicelive: sample rate mismatch")
)

func (k Kind) sentinel() error {
	switch k {
	case PermissionDenied:
		return ErrPermissionDenied
	case DeviceUnavailable:
		return ErrDeviceUnavailable
	case ConnectionFailed:
		return ErrConnectionFailed
	case AuthRejected:
		return ErrAuthRejected
	case TransportClosed:
		return ErrTransportClosed
	case QuotaExceeded:
		return ErrQuotaExceeded
	case DecodeFailed:
		return ErrDecodeFailed
	case EmptySession:
		return ErrEmptySession
	}
	return nil
}

// Error is a classified failure of a session operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "voicelive: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// classify returns err as an *Error, keeping an existing classification and
// otherwise assigning def.
func classify(op string, err error, def Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			return newError(e.Kind, op, e.Err)
		}
		return e
	}
	return newError(def, op, err)
}
