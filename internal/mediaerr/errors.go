// Package mediaerr defines the error taxonomy shared by the codec registry,
// the stream adapter, the frame index and the concrete codecs.
//
// Errors are classified by Kind. Callers use KindOf to branch on the class of
// a failure and Recoverable to decide whether another codec or representation
// is worth trying.
package mediaerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration: codec not registered, descriptor class unrecognized.
	KindConfiguration
	// KindUnsupported: no codec claims a descriptor, or an operation is not
	// implemented by the selected codec.
	KindUnsupported
	// KindFormat: malformed directory or marker data.
	KindFormat
	// KindResource: allocation failure, buffer too small.
	KindResource
	// KindPosition: frame index absent, frame number out of range.
	KindPosition
	KindDecode
	KindEncode
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnsupported:
		return "unsupported"
	case KindFormat:
		return "format"
	case KindResource:
		return "resource"
	case KindPosition:
		return "position"
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	default:
		return "unknown"
	}
}

// Sentinel errors. Each one has a fixed Kind (see KindOf).
var (
	ErrUnsupportedFormat     = errors.New("no codec handles this format")
	ErrOperationNotSupported = errors.New("operation not supported by codec")
	ErrCodecNotRegistered    = errors.New("codec not registered")
	ErrNoFrameIndex          = errors.New("no frame index")
	ErrBadFrameOffset        = errors.New("bad frame offset")
	ErrMalformedDirectory    = errors.New("malformed directory")
	ErrDecompression         = errors.New("decompression error")
	ErrCompression           = errors.New("compression error")
	ErrBufferTooSmall        = errors.New("buffer too small")
	ErrPropertyNotFound      = errors.New("property not found")
)

var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrUnsupportedFormat, KindUnsupported},
	{ErrOperationNotSupported, KindUnsupported},
	{ErrCodecNotRegistered, KindConfiguration},
	{ErrNoFrameIndex, KindPosition},
	{ErrBadFrameOffset, KindPosition},
	{ErrMalformedDirectory, KindFormat},
	{ErrDecompression, KindDecode},
	{ErrCompression, KindEncode},
	{ErrBufferTooSmall, KindResource},
	{ErrPropertyNotFound, KindConfiguration},
}

// Error records the operation that failed, the class of the failure and the
// underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with an operation name and kind. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a wrapped error from a format string. The format may use %w.
func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnknown {
		return e.Kind
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindUnknown
}

// Recoverable reports whether the caller may retry with another codec or
// representation. Format, decode, encode, resource and position failures are
// fatal for the handle that produced them.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindUnsupported, KindConfiguration:
		return true
	default:
		return false
	}
}
