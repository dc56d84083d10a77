// Package asciihex implements the PDF ASCIIHexDecode/Encode stream
// filter: two ASCII hex digits per input byte, with whitespace
// tolerance and a trailing-nibble rule on decode.
package asciihex

import (
	"errors"
	"io"
)

const hexDigits = "0123456789ABCDEF"

// ErrInvalidCharacter is returned by Read when the stream contains a
// byte that is neither a hex digit nor tolerated whitespace.
var ErrInvalidCharacter = errors.New("asciihex: invalid character in stream")

// Encode returns a WriteCloser that emits two uppercase hex digits for
// every byte written to it, and forwards the encoded text to w. The
// EOD marker ">" is the responsibility of the containing stream
// writer, not this codec; Close flushes any pending output and closes
// w without emitting an EOD marker.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &writer{w: w}
}

// Decode returns a Reader that decodes hex digits read from r,
// skipping whitespace (space, tab, CR, LF, FF, NUL) and tolerating a
// trailing odd nibble (treated as if the missing low nibble were 0).
// Non-hex, non-whitespace input is reported as an error from Read. The
// EOD marker ">" terminates decoding; r is expected to have already
// had any EOD marker consumed by the caller's stream reader, though
// Decode tolerates and stops at one if present.
func Decode(r io.Reader) io.Reader {
	return &reader{r: r}
}

type writer struct {
	w   io.WriteCloser
	buf [2]byte
}

func (enc *writer) Write(p []byte) (int, error) {
	for _, b := range p {
		enc.buf[0] = hexDigits[b>>4]
		enc.buf[1] = hexDigits[b&0xf]
		if _, err := enc.w.Write(enc.buf[:]); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (enc *writer) Close() error {
	return enc.w.Close()
}

type reader struct {
	r       io.Reader
	buf     [512]byte
	pos     int
	n       int
	err     error
	havePad bool // true once we've read one hex digit of a pair
	pad     byte
	done    bool
}

func isHexWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	default:
		return false
	}
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	default:
		return 0, false
	}
}

func (d *reader) fill() error {
	if d.pos < d.n {
		return nil
	}
	n, err := d.r.Read(d.buf[:])
	d.pos, d.n = 0, n
	if n == 0 && err == nil {
		return io.ErrNoProgress
	}
	return err
}

func (d *reader) Read(p []byte) (int, error) {
	if d.done {
		if d.err != nil {
			return 0, d.err
		}
		return 0, io.EOF
	}
	out := 0
	for out < len(p) {
		if err := d.fill(); err != nil {
			if err == io.EOF {
				// Reaching real EOF without a literal ">" is not an
				// error: the EOD marker is the containing stream
				// writer's responsibility (see Encode's doc comment),
				// so a bare stream that simply runs out of bytes still
				// decodes cleanly.
				if d.havePad {
					p[out] = d.pad << 4
					out++
					d.havePad = false
				}
				d.done = true
				if out > 0 {
					return out, nil
				}
				return out, io.EOF
			}
			d.done = true
			d.err = err
			return out, err
		}
		for d.pos < d.n && out < len(p) {
			c := d.buf[d.pos]
			d.pos++
			if c == '>' {
				if d.havePad {
					p[out] = d.pad << 4
					out++
					d.havePad = false
				}
				d.done = true
				return out, io.EOF
			}
			if isHexWhitespace(c) {
				continue
			}
			v, ok := hexVal(c)
			if !ok {
				d.done = true
				d.err = ErrInvalidCharacter
				if out > 0 {
					return out, nil
				}
				return 0, d.err
			}
			if !d.havePad {
				d.pad = v
				d.havePad = true
			} else {
				p[out] = d.pad<<4 | v
				out++
				d.havePad = false
			}
		}
	}
	return out, nil
}
