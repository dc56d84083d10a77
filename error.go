// Package pdf implements the PDF 1.6 stream filter pipeline and the
// Standard Security Handler encryption core used to read and write
// encrypted, filtered PDF object streams.
package pdf

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds raised by this package. Callers match against
// these with errors.Is; wrapped instances still carry a stack trail
// from github.com/pkg/errors for diagnostic printing with "%+v".
var (
	// ErrUnsupportedFilter is returned when encode or decode has not
	// been implemented for a FilterKind (CCITTFax, JBIG2, DCT, JPX, or
	// an encode request for RunLength/LZW).
	ErrUnsupportedFilter = errors.New("pdf: unsupported filter")

	// ErrInvalidStream indicates structurally malformed filter input,
	// e.g. a non-hex, non-whitespace byte in an ASCIIHex stream.
	ErrInvalidStream = errors.New("pdf: invalid filter stream")

	// ErrValueOutOfRange indicates a numeric overflow or code-table
	// violation, e.g. an ASCII85 tuple overflow or an LZW code outside
	// the dictionary.
	ErrValueOutOfRange = errors.New("pdf: value out of range")

	// ErrInvalidPredictor indicates an unrecognized PNG filter-type
	// byte during predictor reversal.
	ErrInvalidPredictor = errors.New("pdf: invalid predictor filter type")

	// ErrFlate wraps any deflate/inflate failure.
	ErrFlate = errors.New("pdf: flate error")

	// ErrOutOfMemory indicates an allocation failure while sizing a
	// codec's internal buffers.
	ErrOutOfMemory = errors.New("pdf: out of memory")

	// ErrInvalidPassword is raised by the document layer when neither
	// the user nor the owner password authenticates.
	ErrInvalidPassword = errors.New("pdf: invalid password")

	// ErrInvalidEncryptionDict indicates the encryption dictionary is
	// missing required keys or declares an unsupported V/R combination.
	ErrInvalidEncryptionDict = errors.New("pdf: invalid encryption dictionary")

	// errSessionClosed is returned by any FilterSession operation
	// attempted after end() has already run.
	errSessionClosed = errors.New("pdf: filter session already closed")

	// errSessionPhase is returned when block()/end() is called before
	// begin(), or begin() is called twice.
	errSessionPhase = errors.New("pdf: filter session used out of phase")

	errCorrupted = errors.New("pdf: corrupted ciphertext")
)

// StreamError annotates one of the sentinel errors above with the
// FilterKind and, where known, a byte offset into the stream being
// processed. The PDF 1.6 library surfaces these for callers that want
// to print a diagnostic without localization.
type StreamError struct {
	Kind   FilterKind
	Offset int64
	Err    error
}

func (e *StreamError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s (at byte %d)", e.Kind, e.Err, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func streamErrorf(kind FilterKind, offset int64, cause error) error {
	return errors.WithStack(&StreamError{Kind: kind, Offset: offset, Err: cause})
}

// AuthenticationError indicates that Authenticate was called with a
// password that matches neither the owner nor the user derivation.
type AuthenticationError struct {
	DocumentID []byte
}

func (e *AuthenticationError) Error() string {
	if len(e.DocumentID) == 0 {
		return "pdf: authentication failed"
	}
	return fmt.Sprintf("pdf: authentication failed for document ID %x", e.DocumentID)
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrInvalidPassword
}
