package pdf

import (
	"io"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const hexDigits = "0123456789ABCDEF"

// PdfString carries the raw bytes of a PDF string object together
// with the two flags that determine how it is written back out:
// isHex selects hex-literal (<…>) syntax over escaped-literal (…)
// syntax, and isUnicode records that the payload is BOM-prefixed
// UTF-16BE rather than PDFDocEncoding.
type PdfString struct {
	data      []byte
	isHex     bool
	isUnicode bool
}

var utf16BOM = []byte{0xFE, 0xFF}

// errPDFDocUnmappable is returned by the PDFDocEncoding encoder
// transformer when the input contains a rune outside the charmap;
// EncodePDFDocString turns this into its ok=false return.
var errPDFDocUnmappable = errors.New("pdf: rune not representable in PDFDocEncoding")

// NewPdfStringBytes wraps data, the raw payload bytes of a string
// token as read from a PDF file, inferring isUnicode from the
// presence of the UTF-16BE byte-order mark.
func NewPdfStringBytes(data []byte, isHex bool) *PdfString {
	return &PdfString{
		data:      data,
		isHex:     isHex,
		isUnicode: hasUTF16BOM(data),
	}
}

// NewPdfStringText builds a PdfString from Go text, preferring the
// smaller PDFDocEncoding and falling back to BOM-prefixed UTF-16BE for
// text PDFDocEncoding cannot represent.
func NewPdfStringText(s string) (*PdfString, error) {
	if buf, ok := EncodePDFDocString(s); ok {
		return &PdfString{data: buf}, nil
	}
	buf, err := EncodeUTF16BE(s, false)
	if err != nil {
		return nil, errors.Wrap(err, "pdf: encoding text string")
	}
	out := make([]byte, 0, len(utf16BOM)+len(buf))
	out = append(out, utf16BOM...)
	out = append(out, buf...)
	return &PdfString{data: out, isUnicode: true}, nil
}

func hasUTF16BOM(b []byte) bool {
	return len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF
}

// IsUnicode reports whether the stored bytes begin with the UTF-16BE
// byte-order mark.
func (s *PdfString) IsUnicode() bool { return hasUTF16BOM(s.data) }

// IsHex reports whether this string should be serialized in hex
// literal form.
func (s *PdfString) IsHex() bool { return s.isHex }

// Bytes returns the raw stored bytes. When the stored data ends in two
// zero bytes, those two bytes are treated as a terminator and left
// out. The constructors store the payload as given and do not append
// such a terminator.
func (s *PdfString) Bytes() []byte {
	if n := len(s.data); n >= 2 && s.data[n-2] == 0 && s.data[n-1] == 0 {
		return s.data[:n-2]
	}
	return s.data
}

// GetLength reports the number of payload bytes, that is the length
// of Bytes (without a trailing two-zero-byte terminator, if stored).
func (s *PdfString) GetLength() int { return len(s.Bytes()) }

// Text decodes the stored bytes to a Go string: UTF-16BE (past the
// BOM) when IsUnicode is true, PDFDocEncoding otherwise.
func (s *PdfString) Text() (string, error) {
	b := s.Bytes()
	if s.IsUnicode() {
		return DecodeUTF16BE(b[2:], false)
	}
	return DecodePDFDocString(b), nil
}

// Encrypted returns a copy of s with its bytes replaced by enc's
// encryption of the current bytes under ref.
func (s *PdfString) Encrypted(enc *EncryptionState, ref Reference) (*PdfString, error) {
	buf := append([]byte(nil), s.data...)
	out, err := enc.EncryptBytes(ref, buf)
	if err != nil {
		return nil, err
	}
	return &PdfString{data: out, isHex: s.isHex, isUnicode: s.isUnicode}, nil
}

// Write serializes s to w as a PDF string object: hex-literal form
// (<…>) if IsHex is set, escaped-literal form (…) otherwise. When enc
// is non-nil, s is encrypted under ref before being written.
func (s *PdfString) Write(w io.Writer, enc *EncryptionState, ref Reference) error {
	data := s.data
	isHex := s.isHex
	if enc != nil {
		encS, err := s.Encrypted(enc, ref)
		if err != nil {
			return err
		}
		data = encS.data
		isHex = encS.isHex
	}
	if isHex {
		return writeHexString(w, data)
	}
	_, err := w.Write(EscapeLiteralString(data))
	return err
}

func writeHexString(w io.Writer, data []byte) error {
	if _, err := w.Write([]byte{'<'}); err != nil {
		return err
	}
	var buf [2]byte
	for _, b := range data {
		buf[0] = hexDigits[b>>4]
		buf[1] = hexDigits[b&0xf]
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte{'>'})
	return err
}

// EscapeLiteralString returns data framed as a PDF literal string,
// "(…)", escaping backslashes, parentheses, and the control characters
// PDF 32000-1:2008 §7.3.4.2 assigns a short escape to.
func EscapeLiteralString(data []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, '(')
	for _, b := range data {
		switch b {
		case '\\', '(', ')':
			out = append(out, '\\', b)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		case '\b':
			out = append(out, '\\', 'b')
		case '\f':
			out = append(out, '\\', 'f')
		default:
			out = append(out, b)
		}
	}
	out = append(out, ')')
	return out
}

// --- PDFDocEncoding, wired through golang.org/x/text/encoding so the
// byte<->rune charmap plugs into the same Decoder/Encoder machinery as
// the standard library's own charmap tables. ---

// pdfDocToRune maps each PDFDocEncoding byte value to its Unicode
// scalar value (PDF 32000-1:2008 Annex D). Bytes not named by the
// table below pass through as ISO Latin-1 (identity).
var pdfDocToRune = func() [256]rune {
	var t [256]rune
	for i := range t {
		t[i] = rune(i)
	}
	overrides := map[byte]rune{
		0x18: 0x02D8, // breve
		0x19: 0x02C7, // caron
		0x1A: 0x02C6, // circumflex
		0x1B: 0x02D9, // dotaccent
		0x1C: 0x02DD, // hungarumlaut
		0x1D: 0x02DB, // ogonek
		0x1E: 0x02DA, // ring
		0x1F: 0x02DC, // tilde
		0x80: 0x2022, // bullet
		0x81: 0x2020, // dagger
		0x82: 0x2021, // daggerdbl
		0x83: 0x2026, // ellipsis
		0x84: 0x2014, // emdash
		0x85: 0x2013, // endash
		0x86: 0x0192, // florin
		0x87: 0x2044, // fraction
		0x88: 0x2039, // guilsinglleft
		0x89: 0x203A, // guilsinglright
		0x8A: 0x2212, // minus
		0x8B: 0x2030, // perthousand
		0x8C: 0x201E, // quotedblbase
		0x8D: 0x201C, // quotedblleft
		0x8E: 0x201D, // quotedblright
		0x8F: 0x2018, // quoteleft
		0x90: 0x2019, // quoteright
		0x91: 0x201A, // quotesinglbase
		0x92: 0x2122, // trademark
		0x93: 0xFB01, // fi
		0x94: 0xFB02, // fl
		0x95: 0x0141, // Lslash
		0x96: 0x0152, // OE
		0x97: 0x0160, // Scaron
		0x98: 0x0178, // Ydieresis
		0x99: 0x017D, // Zcaron
		0x9A: 0x0131, // dotlessi
		0x9B: 0x0142, // lslash
		0x9C: 0x0153, // oe
		0x9D: 0x0161, // scaron
		0x9E: 0x017E, // zcaron
		0xA0: 0x20AC, // Euro
	}
	for b, r := range overrides {
		t[b] = r
	}
	return t
}()

var runeToPDFDoc = func() map[rune]byte {
	m := make(map[rune]byte, 256)
	for b, r := range pdfDocToRune {
		m[r] = byte(b)
	}
	return m
}()

// pdfDocEncoding implements encoding.Encoding over the PDFDocEncoding
// charmap above.
type pdfDocEncoding struct{}

// PDFDocEncoding is the single-byte charmap PDF uses for text strings
// that do not carry a UTF-16BE byte-order mark.
var PDFDocEncoding encoding.Encoding = pdfDocEncoding{}

func (pdfDocEncoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: pdfDocDecoder{}}
}

func (pdfDocEncoding) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: pdfDocEncoder{}}
}

type pdfDocDecoder struct{ transform.NopResetter }

func (pdfDocDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r := pdfDocToRune[src[nSrc]]
		size := utf8.RuneLen(r)
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc++
	}
	return nDst, nSrc, nil
}

type pdfDocEncoder struct{ transform.NopResetter }

func (pdfDocEncoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size <= 1 {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				return nDst, nSrc, transform.ErrShortSrc
			}
		}
		b, ok := runeToPDFDoc[r]
		if !ok {
			return nDst, nSrc, errPDFDocUnmappable
		}
		if nDst+1 > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = b
		nDst++
		nSrc += size
	}
	return nDst, nSrc, nil
}

// EncodePDFDocString encodes s with PDFDocEncoding, reporting ok=false
// if s contains a scalar value the charmap cannot represent.
func EncodePDFDocString(s string) ([]byte, bool) {
	out, err := PDFDocEncoding.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, false
	}
	return out, true
}

// DecodePDFDocString decodes b, assumed to be PDFDocEncoding text; the
// charmap is total over all 256 byte values, so this never fails.
func DecodePDFDocString(b []byte) string {
	out, _ := PDFDocEncoding.NewDecoder().Bytes(b)
	return string(out)
}

// --- UTF-8 <-> UTF-16BE, independent of the PdfString BOM framing ---

// EncodeUTF16BE converts s to big-endian UTF-16 code units. In strict
// mode malformed UTF-8 input is an error; in lenient mode it is
// replaced with U+FFFD per the WHATWG replacement rule.
func EncodeUTF16BE(s string, lenient bool) ([]byte, error) {
	out := make([]byte, 0, 2*len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			if !lenient {
				return nil, errors.New("pdf: invalid UTF-8 in text string")
			}
			r = utf8.RuneError
		}
		if r <= 0xFFFF {
			out = append(out, byte(r>>8), byte(r))
		} else {
			r1, r2 := utf16.EncodeRune(r)
			out = append(out, byte(r1>>8), byte(r1), byte(r2>>8), byte(r2))
		}
		i += size
	}
	return out, nil
}

// DecodeUTF16BE converts big-endian UTF-16 code units to a UTF-8 Go
// string. In strict mode an odd byte count or an unpaired surrogate is
// an error; in lenient mode both are replaced with U+FFFD.
func DecodeUTF16BE(b []byte, lenient bool) (string, error) {
	odd := len(b)%2 != 0
	if odd {
		if !lenient {
			return "", errors.New("pdf: odd-length UTF-16BE input")
		}
		b = b[:len(b)-1]
	}

	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}

	var sb strings.Builder
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u < 0xD800 || u > 0xDFFF:
			sb.WriteRune(rune(u))
		case u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF:
			sb.WriteRune(utf16.DecodeRune(rune(u), rune(units[i+1])))
			i++
		default:
			if !lenient {
				return "", errors.New("pdf: unpaired UTF-16BE surrogate")
			}
			sb.WriteRune(utf8.RuneError)
		}
	}
	if odd {
		sb.WriteRune(utf8.RuneError)
	}
	return sb.String(), nil
}
