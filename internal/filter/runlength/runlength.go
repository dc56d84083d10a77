// Package runlength implements decoding for the PDF RunLengthDecode
// stream filter. Encoding is not implemented by this library; PDF
// writers using this module must choose a different filter.
package runlength

import "io"

// Decode returns a Reader that decodes run-length data read from r.
// Each record starts with a length byte n: 0..127 copies the next n+1
// bytes verbatim, 128 signals end of data, and 129..255 repeats the
// next byte 257-n times.
func Decode(r io.Reader) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r       io.Reader
	lenBuf  [1]byte
	runByte [1]byte
	pending []byte
	repeat  byte
	nRepeat int
	done    bool
}

func (d *reader) Read(p []byte) (int, error) {
	if d.done && len(d.pending) == 0 && d.nRepeat == 0 {
		return 0, io.EOF
	}
	out := 0
	for out < len(p) {
		if len(d.pending) > 0 {
			n := copy(p[out:], d.pending)
			d.pending = d.pending[n:]
			out += n
			continue
		}
		if d.nRepeat > 0 {
			n := len(p) - out
			if n > d.nRepeat {
				n = d.nRepeat
			}
			for i := 0; i < n; i++ {
				p[out+i] = d.repeat
			}
			out += n
			d.nRepeat -= n
			continue
		}
		if d.done {
			break
		}

		if _, err := io.ReadFull(d.r, d.lenBuf[:]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				d.done = true
				break
			}
			return out, err
		}
		n := d.lenBuf[0]
		switch {
		case n == 128:
			d.done = true
		case n < 128:
			literalLen := int(n) + 1
			buf := make([]byte, literalLen)
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return out, err
			}
			d.pending = buf
		default:
			if _, err := io.ReadFull(d.r, d.runByte[:]); err != nil {
				return out, err
			}
			d.repeat = d.runByte[0]
			d.nRepeat = 257 - int(n)
		}
	}
	if out == 0 && d.done {
		return 0, io.EOF
	}
	return out, nil
}
