package transform

import "fmt"

// Kind classifies pipeline failures.
type Kind string

const (
	// KindDecode means the source bytes are not a supported or intact image.
	KindDecode Kind = "decode"

	// KindEncode means the pipeline could not produce a PNG.
	KindEncode Kind = "encode"
)

// Error is returned by Transform. No partial output accompanies it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DecodeError wraps err as a KindDecode pipeline error.
func DecodeError(err error) error {
	return &Error{Kind: KindDecode, Err: err}
}

// EncodeError wraps err as a KindEncode pipeline error.
func EncodeError(err error) error {
	return &Error{Kind: KindEncode, Err: err}
}
