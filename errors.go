package docstore

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure surfaced by an Adapter is an *Error whose Kind is
// one of these sentinels, so callers can branch with errors.Is.
var (
	ErrInvalidName              = errors.New("docstore: invalid collection name")
	ErrEncryptionRequired       = errors.New("docstore: encryption required")
	ErrInitFailed               = errors.New("docstore: initialization failed")
	ErrEncryptionFailed         = errors.New("docstore: encryption failed")
	ErrDecryptionFailed         = errors.New("docstore: decryption failed")
	ErrFallbackParseFailed      = errors.New("docstore: plaintext fallback parse failed")
	ErrValidationFailed         = errors.New("docstore: validation failed")
	ErrFallbackValidationFailed = errors.New("docstore: plaintext fallback validation failed")
	ErrParseFailed              = errors.New("docstore: parse failed")
	ErrWriteFailed              = errors.New("docstore: write failed")
	ErrSaveFailed               = errors.New("docstore: save failed")
	ErrCallbackFailed           = errors.New("docstore: change callback failed")
	ErrUnsupported              = errors.New("docstore: operation not supported by storage backend")
)

// Error captures the operation and collection alongside the failure kind and
// the precipitating cause.
type Error struct {
	Op   string
	Name string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("docstore: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteByte(' ')
	}
	if e.Name != "" {
		fmt.Fprintf(&b, "%q", e.Name)
	} else {
		b.WriteString("<unnamed>")
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(strings.TrimPrefix(e.Kind.Error(), "docstore: "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Is reports fallback validation failures as validation failures too.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == ErrValidationFailed && e.Kind == ErrFallbackValidationFailed
}

func newError(op, name string, kind, err error) *Error {
	return &Error{Op: op, Name: name, Kind: kind, Err: err}
}

// kindOf returns the Kind of the outermost *Error in err, if any.
func kindOf(err error) error {
	var docErr *Error
	if errors.As(err, &docErr) {
		return docErr.Kind
	}
	return nil
}
