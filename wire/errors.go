package wire

import (
	"errors"
	"fmt"
)

// Codec errors. Each one aborts only the enclosing encode/decode attempt;
// the cursor is rewound to the start of the failed value so a later retry
// cannot over-read into the next value's bytes.
var (
	// ErrInvalidBoolean reports a boolean slot holding a 4-byte integer
	// outside {0,1}.
	ErrInvalidBoolean = errors.New("wire: invalid boolean value")

	// ErrNullString reports a string slot with no content.
	ErrNullString = errors.New("wire: null string")

	// ErrUnsupportedVariantSignature reports a variant whose wire signature
	// matches none of the registered alternatives.
	ErrUnsupportedVariantSignature = errors.New("wire: unsupported variant signature")

	// ErrCorruptContainer reports a container whose declared extent does not
	// match its contents, or a value truncated by the end of the buffer.
	ErrCorruptContainer = errors.New("wire: corrupt container")
)

// TypeMismatchError reports a wire value whose type tag differs from the
// tag the schema expects at that position.
type TypeMismatchError struct {
	Expected Tag
	Actual   Tag
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("wire: argument type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// RemoteError carries the error string a peer attached to a failed call.
// The protocol transmits no structured code, only this text.
type RemoteError struct {
	Text string
}

func (e *RemoteError) Error() string {
	return "wire: remote error: " + e.Text
}
