// Package ascii85 implements the PDF variant of the ASCII85 stream
// filter: base-85 tuple packing with the "z" all-zero shortcut and a
// "~>" end-of-data marker.
package ascii85

import (
	"errors"
	"io"
)

// Sentinel errors raised by reader.Read on malformed input.
var (
	ErrInvalidEndMarker    = errors.New("ascii85: invalid end marker")
	ErrUnexpectedEndMarker = errors.New("ascii85: unexpected end marker")
	ErrInvalidCharacter    = errors.New("ascii85: invalid character")
	ErrValueOutOfRange     = errors.New("ascii85: value out of range")
)

// Encode returns a new WriteCloser which encodes data written to it in
// ASCII85 format and writes the result to w. Close must be called to
// flush the final partial group and append the "~>" end marker; it
// also closes w.
func Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return &writer{w: w}, nil
}

// Decode returns a new Reader which decodes ASCII85 data read from r.
func Decode(r io.Reader) (io.Reader, error) {
	return &reader{r: r}, nil
}

type reader struct {
	r              io.Reader
	immediateError error
	delayedError   error
	buf            [512]byte
	outbuf         [4]byte
	leftover       []byte
	pos, nbuf      int
	v              uint64
	k              int
	isEnd          bool
}

func (r *reader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.immediateError != nil {
		return 0, r.immediateError
	}

	if len(r.leftover) > 0 {
		n = copy(p, r.leftover)
		r.leftover = r.leftover[n:]
	}

	for n < len(p) {
		for r.pos == r.nbuf && r.delayedError == nil {
			r.nbuf, r.delayedError = r.r.Read(r.buf[:])
			r.pos = 0
			if r.delayedError == io.EOF {
				r.delayedError = io.ErrUnexpectedEOF
			}
		}
		if r.pos == r.nbuf {
			r.immediateError = r.delayedError
			return n, r.immediateError
		}

		for r.pos < r.nbuf {
			c := r.buf[r.pos]
			r.pos++

			if r.isEnd {
				if c == '>' {
					r.immediateError = io.EOF
				} else {
					r.immediateError = ErrInvalidEndMarker
				}
				return n, r.immediateError
			}

			switch {
			case c >= '!' && c < '!'+85:
				r.v = r.v*85 + uint64(c-'!')
				r.k++
				if r.k == 5 && r.v > 1<<32-1 {
					r.immediateError = ErrValueOutOfRange
					return n, r.immediateError
				}
			case r.k == 0 && c == 'z':
				r.v = 0
				r.k = 5
			case isSpace(c):
				continue
			case c == '~':
				switch r.k {
				case 0:
					// pass
				case 1:
					r.immediateError = ErrUnexpectedEndMarker
					return n, r.immediateError
				default:
					for i := r.k; i < 5; i++ {
						r.v = r.v*85 + 84
					}
					if r.v > 1<<32-1 {
						r.immediateError = ErrValueOutOfRange
						return n, r.immediateError
					}
					r.outbuf[0] = byte(r.v >> 24)
					r.outbuf[1] = byte(r.v >> 16)
					r.outbuf[2] = byte(r.v >> 8)
					r.outbuf[3] = byte(r.v)
					l := copy(p[n:], r.outbuf[:r.k-1])
					n += l
					if l < r.k-1 {
						r.leftover = r.outbuf[l : r.k-1]
					}
					r.k = 0
				}
				r.isEnd = true
				continue
			default:
				r.immediateError = ErrInvalidCharacter
				return n, r.immediateError
			}

			if r.k == 5 {
				r.outbuf[0] = byte(r.v >> 24)
				r.outbuf[1] = byte(r.v >> 16)
				r.outbuf[2] = byte(r.v >> 8)
				r.outbuf[3] = byte(r.v)
				r.k = 0
				r.v = 0

				l := copy(p[n:], r.outbuf[:])
				n += l
				if l < 4 {
					r.leftover = r.outbuf[l:]
				}
				break
			}
		}
	}
	return n, r.immediateError
}

type writer struct {
	w io.WriteCloser
	v uint32
	k int
}

func (w *writer) Write(p []byte) (n int, err error) {
	for _, b := range p {
		w.v = w.v<<8 | uint32(b)
		w.k++
		if w.k == 4 {
			if err := w.emitGroup(); err != nil {
				return n, err
			}
			w.v = 0
			w.k = 0
		}
		n++
	}
	return n, nil
}

func (w *writer) emitGroup() error {
	if w.v == 0 {
		_, err := w.w.Write([]byte{'z'})
		return err
	}
	var c [5]byte
	v := w.v
	for i := 4; i >= 0; i-- {
		c[i] = byte(v%85) + '!'
		v /= 85
	}
	_, err := w.w.Write(c[:])
	return err
}

// Close flushes the remaining partial group (emitting n+1 digits for n
// leftover bytes) and appends the "~>" end marker, then closes the
// underlying writer.
func (w *writer) Close() error {
	if w.k != 0 {
		v := w.v << ((4 - w.k) * 8)
		var c [5]byte
		for i := 4; i >= 0; i-- {
			c[i] = byte(v%85) + '!'
			v /= 85
		}
		if _, err := w.w.Write(c[:w.k+1]); err != nil {
			return err
		}
		w.v = 0
		w.k = 0
	}
	if _, err := w.w.Write([]byte{'~', '>'}); err != nil {
		return err
	}
	return w.w.Close()
}

func isSpace(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32, 8, 0x7f:
		return true
	default:
		return false
	}
}
