package pdf

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// phase is the lifecycle state of a FilterSession.
type phase int

const (
	phaseIdle phase = iota
	phaseEncoding
	phaseDecoding
	phaseClosed
)

// codec is the capability set a FilterKind's implementation provides:
// push-style encode (block writes flow straight through to the
// returned WriteCloser, which chains down to the caller's sink) and
// pull-style decode (the returned Reader is read by the bridge in
// FilterSession.beginDecode). This is the same shape as the teacher's
// "filter" interface, generalized to standalone codec packages.
type codec interface {
	encode(sink io.WriteCloser) (io.WriteCloser, error)
	decode(source io.Reader) (io.Reader, error)
}

// scratchSize is the working buffer used to pump bytes between the
// pull-style decoders and the push-style FilterSession.block API.
const scratchSize = 16 * 1024

// FilterSession is a per-operation state object: it owns a reference
// to a downstream sink, a codec-specific transform, and a phase. It is
// created by NewFilterSession (the factory), transitions Idle ->
// Encoding/Decoding on beginEncode/beginDecode, consumes zero or more
// block calls, and transitions to Closed on end. No operation is valid
// after Closed, and double-close is an error. A session is reentrant
// across distinct instances but not across concurrent calls on one
// instance.
type FilterSession struct {
	kind FilterKind
	c    codec
	ph   phase

	// encode state
	encW io.WriteCloser

	// decode state: beginDecode bridges the codec's pull-style Reader
	// to this session's push-style block/end API using an in-memory
	// pipe plus a background pump goroutine, the standard Go idiom for
	// adapting a Reader into something fed by external Write calls.
	pipeW  *io.PipeWriter
	pumped chan error
	once   sync.Once
}

// NewFilterSession constructs a session for one encode or decode
// operation of the given FilterKind. The session itself does no work
// until beginEncode or beginDecode is called.
func NewFilterSession(kind FilterKind, params *PredictorParams) (*FilterSession, error) {
	c, err := newCodec(kind, params)
	if err != nil {
		return nil, err
	}
	return &FilterSession{kind: kind, c: c, ph: phaseIdle}, nil
}

// beginEncode attaches sink as the destination for encoded output and
// moves an Idle session to Encoding. It fails with errSessionPhase if
// the session is not Idle, and with ErrUnsupportedFilter if encode is
// not implemented for this FilterKind.
func (s *FilterSession) beginEncode(sink io.WriteCloser) error {
	if s.ph != phaseIdle {
		return errors.WithStack(errSessionPhase)
	}
	w, err := s.c.encode(sink)
	if err != nil {
		return err
	}
	s.encW = w
	s.ph = phaseEncoding
	return nil
}

// beginDecode attaches sink as the destination for decoded output and
// moves an Idle session to Decoding. It fails with errSessionPhase if
// the session is not Idle, and with ErrUnsupportedFilter if decode is
// not implemented for this FilterKind.
func (s *FilterSession) beginDecode(sink io.WriteCloser) error {
	if s.ph != phaseIdle {
		return errors.WithStack(errSessionPhase)
	}

	pr, pw := io.Pipe()
	out, err := s.c.decode(pr)
	if err != nil {
		pr.Close()
		pw.Close()
		return err
	}

	s.pipeW = pw
	s.pumped = make(chan error, 1)
	go func() {
		buf := make([]byte, scratchSize)
		_, copyErr := io.CopyBuffer(sink, out, buf)
		closeErr := sink.Close()
		if copyErr == nil {
			copyErr = closeErr
		}
		s.pumped <- copyErr
	}()

	s.ph = phaseDecoding
	return nil
}

// block pushes a span of input into the session. It never retains the
// input slice after returning. It is invalid to call block before
// begin or after end.
func (s *FilterSession) block(p []byte) error {
	switch s.ph {
	case phaseEncoding:
		_, err := s.encW.Write(p)
		return err
	case phaseDecoding:
		_, err := s.pipeW.Write(p)
		if err != nil {
			// the pump goroutine has already failed and closed its
			// read end; surface its error, which is more specific
			// than the plain broken-pipe error from Write.
			if pumpErr := s.drainPump(); pumpErr != nil {
				return pumpErr
			}
		}
		return err
	case phaseClosed:
		return errors.WithStack(errSessionClosed)
	default:
		return errors.WithStack(errSessionPhase)
	}
}

// end flushes any buffered codec state, writes residual output to the
// sink, and transitions the session to Closed. Calling end twice is an
// error.
func (s *FilterSession) end() error {
	switch s.ph {
	case phaseEncoding:
		s.ph = phaseClosed
		return s.encW.Close()
	case phaseDecoding:
		s.ph = phaseClosed
		s.pipeW.Close()
		return s.drainPump()
	case phaseClosed:
		return errors.WithStack(errSessionClosed)
	default:
		return errors.WithStack(errSessionPhase)
	}
}

func (s *FilterSession) drainPump() error {
	var err error
	s.once.Do(func() {
		err = <-s.pumped
	})
	return err
}

// failEncodeDecode is invoked when a downstream sink errors mid-stream.
// It releases codec-owned resources (e.g. zlib streams) and leaves the
// session Closed so no further operation on it can succeed.
func (s *FilterSession) failEncodeDecode() {
	switch s.ph {
	case phaseEncoding:
		if s.encW != nil {
			s.encW.Close()
		}
	case phaseDecoding:
		if s.pipeW != nil {
			s.pipeW.CloseWithError(errSessionClosed)
		}
		s.drainPump()
	}
	s.ph = phaseClosed
}
