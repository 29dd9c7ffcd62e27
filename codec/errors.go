package codec

import "fmt"

// CodecError reports a token or link that cannot be encoded or decoded.
type CodecError struct {
	Err    error
	Reason string
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid link: %s: %v", e.Reason, e.Err)
	}

	return "invalid link: " + e.Reason
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func codecErr(format string, args ...any) *CodecError {
	return &CodecError{Reason: fmt.Sprintf(format, args...)}
}

func wrapCodecErr(err error, format string, args ...any) *CodecError {
	return &CodecError{Reason: fmt.Sprintf(format, args...), Err: err}
}
