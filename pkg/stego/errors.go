package stego

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapacity is returned when the framed payload does not fit the carrier.
	ErrCapacity = errors.New("payload exceeds carrier capacity")
	// ErrEncryption is returned when the random source fails during encryption.
	ErrEncryption = errors.New("encryption failed")
	// ErrDecryption usually means a wrong password or a corrupted ciphertext.
	ErrDecryption = errors.New("decryption failed (wrong password or corrupted data)")
	// ErrIntegrity is returned when the container checksum or framing does not hold.
	ErrIntegrity = errors.New("container integrity check failed")
	// ErrTruncated is returned when the declared length exceeds the recovered bytes.
	ErrTruncated = errors.New("container truncated")

	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendCapacity    = fmt.Errorf("backend: %w", ErrCapacity)
	ErrBackendTimeout     = errors.New("backend timed out")
	ErrBackendFailed      = errors.New("backend failed")

	// ErrExtraction is matched by *ExtractionError once every backend was tried.
	ErrExtraction = errors.New("no backend could extract a valid payload")

	ErrEmptyPassword      = errors.New("password must not be empty")
	ErrUnsupportedCarrier = errors.New("unsupported carrier format")
)

// Attempt records the outcome of one backend during auto-detection.
type Attempt struct {
	Backend string
	Err     error
}

// ExtractionError is the terminal failure of Engine.Extract. It unwraps to the
// error of every attempt, so errors.Is(err, ErrDecryption) tells a wrong
// password apart from a missing tool.
type ExtractionError struct {
	Attempts []Attempt
}

func (e *ExtractionError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrExtraction.Error()
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("%v [%s]", ErrExtraction, strings.Join(parts, "; "))
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

func (e *ExtractionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// OnlyUnavailable reports whether every attempt failed because its backend
// was not installed or not applicable to the carrier.
func (e *ExtractionError) OnlyUnavailable() bool {
	for _, a := range e.Attempts {
		if !errors.Is(a.Err, ErrBackendUnavailable) && !errors.Is(a.Err, ErrUnsupportedCarrier) {
			return false
		}
	}
	return len(e.Attempts) > 0
}
