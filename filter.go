package pdf

import (
	"compress/zlib"
	"io"

	"github.com/pkg/errors"

	"github.com/arcale/pdfstream/ascii85"
	"github.com/arcale/pdfstream/internal/filter/asciihex"
	"github.com/arcale/pdfstream/internal/filter/predict"
	"github.com/arcale/pdfstream/internal/filter/runlength"
	"github.com/arcale/pdfstream/internal/filter/unsupported"
	"github.com/arcale/pdfstream/lzw"
)

// FilterKind is a tagged variant over the PDF stream filters. Only the
// first five have encode/decode implementations; CCITTFax, JBIG2, DCT,
// and JPX are recognized name-tags that report ErrUnsupportedFilter.
type FilterKind int

const (
	FilterASCIIHex FilterKind = iota
	FilterASCII85
	FilterLZW
	FilterFlate
	FilterRunLength
	FilterCCITTFax
	FilterJBIG2
	FilterDCT
	FilterJPX
	FilterCrypt
)

func (k FilterKind) String() string {
	if n, ok := filterLongNames[k]; ok {
		return string(n)
	}
	return "Unknown"
}

// filterLongNames maps each FilterKind to its canonical wire name.
var filterLongNames = map[FilterKind]Name{
	FilterASCIIHex:  "ASCIIHexDecode",
	FilterASCII85:   "ASCII85Decode",
	FilterLZW:       "LZWDecode",
	FilterFlate:     "FlateDecode",
	FilterRunLength: "RunLengthDecode",
	FilterCCITTFax:  "CCITTFaxDecode",
	FilterJBIG2:     "JBIG2Decode",
	FilterDCT:       "DCTDecode",
	FilterJPX:       "JPXDecode",
	FilterCrypt:     "Crypt",
}

// filterNamesByWire resolves both the canonical name and the short
// aliases PDF readers must accept (spec.md §6).
var filterNamesByWire = map[Name]FilterKind{
	"ASCIIHexDecode":  FilterASCIIHex,
	"AHx":             FilterASCIIHex,
	"ASCII85Decode":   FilterASCII85,
	"A85":             FilterASCII85,
	"LZWDecode":       FilterLZW,
	"LZW":             FilterLZW,
	"FlateDecode":     FilterFlate,
	"Fl":              FilterFlate,
	"RunLengthDecode": FilterRunLength,
	"RL":              FilterRunLength,
	"CCITTFaxDecode":  FilterCCITTFax,
	"CCF":             FilterCCITTFax,
	"JBIG2Decode":     FilterJBIG2,
	"DCTDecode":       FilterDCT,
	"DCT":             FilterDCT,
	"JPXDecode":       FilterJPX,
	"Crypt":           FilterCrypt,
}

// FilterKindByName resolves a wire-format filter name, including the
// short aliases, to a FilterKind.
func FilterKindByName(name Name) (FilterKind, bool) {
	k, ok := filterNamesByWire[name]
	return k, ok
}

// FilterInfo describes one PDF stream filter entry as it appears in a
// stream dictionary's /Filter and /DecodeParms arrays.
type FilterInfo struct {
	Name  Name
	Parms Dict
}

// extractFilterInfo reads the /Filter and /DecodeParms entries of a
// stream dictionary into a list of FilterInfo, in application order.
func extractFilterInfo(dict Dict) ([]*FilterInfo, error) {
	parmsObj := dict["DecodeParms"]
	var filters []*FilterInfo
	switch f := dict["Filter"].(type) {
	case nil:
		// pass
	case []Object:
		pa, _ := parmsObj.([]Object)
		for i, fi := range f {
			name, ok := fi.(Name)
			if !ok {
				return nil, errors.WithStack(ErrInvalidEncryptionDict)
			}
			var pDict Dict
			if len(pa) > i {
				if d, ok := pa[i].(Dict); ok {
					pDict = d
				}
			}
			filters = append(filters, &FilterInfo{Name: name, Parms: pDict})
		}
	case Name:
		pDict, _ := parmsObj.(Dict)
		filters = append(filters, &FilterInfo{Name: f, Parms: pDict})
	default:
		return nil, errors.Wrap(ErrInvalidEncryptionDict, "invalid /Filter field")
	}
	return filters, nil
}

// Object is the minimal value type a PDF array entry can hold, for the
// purpose of walking /Filter and /DecodeParms. The full PDF object
// model is out of scope here; callers adapt their own Object type to
// this interface boundary.
type Object any

// newCodec builds the codec implementation for kind. params only
// applies to FilterFlate and FilterLZW (predictor reversal).
func newCodec(kind FilterKind, params *PredictorParams) (codec, error) {
	switch kind {
	case FilterASCIIHex:
		return asciiHexCodec{}, nil
	case FilterASCII85:
		return ascii85Codec{}, nil
	case FilterFlate:
		return &flateCodec{params: normalizePredictorParams(params)}, nil
	case FilterRunLength:
		return runLengthCodec{}, nil
	case FilterLZW:
		return &lzwCodec{params: normalizePredictorParams(params)}, nil
	case FilterCCITTFax, FilterJBIG2, FilterDCT, FilterJPX:
		return unsupportedCodec{kind: kind}, nil
	case FilterCrypt:
		return cryptCodec{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFilter, "filter kind %s", kind)
	}
}

// PredictorParams configures predictor reversal for the Flate and LZW
// filters (spec.md §3). Predictor 1 is a no-op, 2 is TIFF, 10-15 are
// the PNG per-row predictor selectors.
type PredictorParams struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
	EarlyChange      int
}

func normalizePredictorParams(p *PredictorParams) *PredictorParams {
	if p == nil {
		return &PredictorParams{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1}
	}
	out := *p
	if out.Predictor == 0 {
		out.Predictor = 1
	}
	if out.Colors == 0 {
		out.Colors = 1
	}
	if out.BitsPerComponent == 0 {
		out.BitsPerComponent = 8
	}
	if out.Columns == 0 {
		out.Columns = 1
	}
	return &out
}

// predictorParamsFromDict builds PredictorParams from a /DecodeParms
// dictionary, applying the spec.md §3 defaults for missing entries.
func predictorParamsFromDict(parms Dict) *PredictorParams {
	res := &PredictorParams{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1}
	if parms == nil {
		return res
	}
	if v, ok := parms["Predictor"].(Integer); ok && v >= 1 && v <= 15 {
		res.Predictor = int(v)
	}
	if v, ok := parms["Colors"].(Integer); ok && v >= 1 {
		res.Colors = int(v)
	}
	if v, ok := parms["BitsPerComponent"].(Integer); ok {
		switch v {
		case 1, 2, 4, 8, 16:
			res.BitsPerComponent = int(v)
		}
	}
	if v, ok := parms["Columns"].(Integer); ok && v >= 1 {
		res.Columns = int(v)
	}
	if v, ok := parms["EarlyChange"].(Integer); ok {
		if v == 0 {
			res.EarlyChange = 0
		} else {
			res.EarlyChange = 1
		}
	}
	return res
}

// ToDict serializes non-default predictor parameters into a
// /DecodeParms dictionary, or returns nil when all fields are at their
// PDF defaults (Predictor=1, Colors=1, BitsPerComponent=8, Columns=1,
// EarlyChange=1).
func (p *PredictorParams) ToDict() Dict {
	if p == nil {
		return nil
	}
	res := Dict{}
	if p.Predictor != 1 {
		res["Predictor"] = Integer(p.Predictor)
	}
	if p.Colors != 1 {
		res["Colors"] = Integer(p.Colors)
	}
	if p.BitsPerComponent != 8 {
		res["BitsPerComponent"] = Integer(p.BitsPerComponent)
	}
	if p.Columns != 1 {
		res["Columns"] = Integer(p.Columns)
	}
	if p.EarlyChange == 0 {
		res["EarlyChange"] = Integer(0)
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

// --- Flate ---

type flateCodec struct {
	params *PredictorParams
}

func (f *flateCodec) encode(sink io.WriteCloser) (io.WriteCloser, error) {
	zw := zlib.NewWriter(sink)
	closeBoth := func() error {
		if err := zw.Close(); err != nil {
			return errors.Wrap(ErrFlate, err.Error())
		}
		return sink.Close()
	}

	switch f.params.Predictor {
	case 1:
		return &withClose{Writer: zw, close: closeBoth}, nil
	case 2:
		return predict.NewTIFFWriter(zw, closeBoth, f.params.Colors, f.params.BitsPerComponent, f.params.Columns), nil
	default:
		if f.params.Predictor < 10 || f.params.Predictor > 15 {
			return nil, errors.Wrapf(ErrInvalidPredictor, "predictor %d", f.params.Predictor)
		}
		return predict.NewPNGWriter(zw, closeBoth, f.params.Colors, f.params.BitsPerComponent, f.params.Columns), nil
	}
}

func (f *flateCodec) decode(source io.Reader) (io.Reader, error) {
	var res io.Reader = &flateReader{src: source}
	switch f.params.Predictor {
	case 1:
		return res, nil
	case 2:
		return predict.NewTIFFReader(res, f.params.Colors, f.params.BitsPerComponent, f.params.Columns), nil
	default:
		if f.params.Predictor < 10 || f.params.Predictor > 15 {
			return nil, errors.Wrapf(ErrInvalidPredictor, "predictor %d", f.params.Predictor)
		}
		return predict.NewPNGReader(res, f.params.Colors, f.params.BitsPerComponent, f.params.Columns), nil
	}
}

// flateReader translates zlib.Reader errors into ErrFlate. The zlib
// reader is created on the first Read, so building the decoder does
// not itself read the stream header from src.
type flateReader struct {
	src io.Reader
	r   io.ReadCloser
}

func (r *flateReader) Read(p []byte) (int, error) {
	if r.r == nil {
		zr, err := zlib.NewReader(r.src)
		if err != nil {
			return 0, errors.Wrap(ErrFlate, err.Error())
		}
		r.r = zr
	}
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		return n, errors.Wrap(ErrFlate, err.Error())
	}
	return n, err
}

// errTranslation maps one leaf-package sentinel to the pdf-level
// sentinel it should surface as across the package boundary.
type errTranslation struct {
	from error
	to   error
}

// translatingReader rewrites a leaf codec's internal sentinel errors
// into the pdf-level ErrInvalidStream/ErrValueOutOfRange sentinels
// spec.md §7 requires callers be able to match with errors.Is, wrapped
// in a StreamError for diagnostic context. flateReader does the
// corresponding translation for ErrFlate without a StreamError.
type translatingReader struct {
	r     io.Reader
	kind  FilterKind
	rules []errTranslation
}

func (t *translatingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	for _, rule := range t.rules {
		if errors.Is(err, rule.from) {
			return n, streamErrorf(t.kind, -1, errors.Wrap(rule.to, err.Error()))
		}
	}
	return n, err
}

// --- ASCIIHex ---

type asciiHexCodec struct{}

func (asciiHexCodec) encode(sink io.WriteCloser) (io.WriteCloser, error) {
	return asciihex.Encode(sink), nil
}

var asciiHexErrRules = []errTranslation{
	{from: asciihex.ErrInvalidCharacter, to: ErrInvalidStream},
}

func (asciiHexCodec) decode(source io.Reader) (io.Reader, error) {
	return &translatingReader{r: asciihex.Decode(source), kind: FilterASCIIHex, rules: asciiHexErrRules}, nil
}

// --- ASCII85 ---

type ascii85Codec struct{}

func (ascii85Codec) encode(sink io.WriteCloser) (io.WriteCloser, error) {
	return ascii85.Encode(sink)
}

var ascii85ErrRules = []errTranslation{
	{from: ascii85.ErrValueOutOfRange, to: ErrValueOutOfRange},
	{from: ascii85.ErrInvalidEndMarker, to: ErrInvalidStream},
	{from: ascii85.ErrUnexpectedEndMarker, to: ErrInvalidStream},
	{from: ascii85.ErrInvalidCharacter, to: ErrInvalidStream},
}

func (ascii85Codec) decode(source io.Reader) (io.Reader, error) {
	r, err := ascii85.Decode(source)
	if err != nil {
		return nil, err
	}
	return &translatingReader{r: r, kind: FilterASCII85, rules: ascii85ErrRules}, nil
}

// --- RunLength (decode only) ---

type runLengthCodec struct{}

func (runLengthCodec) encode(sink io.WriteCloser) (io.WriteCloser, error) {
	return nil, errors.Wrap(ErrUnsupportedFilter, "RunLength encode")
}

func (runLengthCodec) decode(source io.Reader) (io.Reader, error) {
	return runlength.Decode(source), nil
}

// --- LZW (decode only) ---

type lzwCodec struct {
	params *PredictorParams
}

func (c *lzwCodec) encode(sink io.WriteCloser) (io.WriteCloser, error) {
	return nil, errors.Wrap(ErrUnsupportedFilter, "LZW encode")
}

var lzwErrRules = []errTranslation{
	{from: lzw.ErrCodeOutOfRange, to: ErrValueOutOfRange},
	{from: lzw.ErrInvalidCodeBeforeEntry, to: ErrInvalidStream},
}

func (c *lzwCodec) decode(source io.Reader) (io.Reader, error) {
	earlyChange := c.params.EarlyChange != 0
	var res io.Reader = &translatingReader{r: lzw.NewReader(source, earlyChange), kind: FilterLZW, rules: lzwErrRules}
	switch c.params.Predictor {
	case 1:
		return res, nil
	case 2:
		return predict.NewTIFFReader(res, c.params.Colors, c.params.BitsPerComponent, c.params.Columns), nil
	default:
		if c.params.Predictor < 10 || c.params.Predictor > 15 {
			return nil, errors.Wrapf(ErrInvalidPredictor, "predictor %d", c.params.Predictor)
		}
		return predict.NewPNGReader(res, c.params.Colors, c.params.BitsPerComponent, c.params.Columns), nil
	}
}

// --- unsupported placeholders: CCITTFax, JBIG2, DCT, JPX ---

type unsupportedCodec struct {
	kind FilterKind
}

func (c unsupportedCodec) encode(sink io.WriteCloser) (io.WriteCloser, error) {
	return nil, errors.Wrap(ErrUnsupportedFilter, unsupported.Err(c.kind.String()).Error())
}

func (c unsupportedCodec) decode(source io.Reader) (io.Reader, error) {
	return nil, errors.Wrap(ErrUnsupportedFilter, unsupported.Err(c.kind.String()).Error())
}

// withClose pairs an io.Writer with an explicit close callback, used
// to chain a codec's flush into the downstream sink's Close.
type withClose struct {
	io.Writer
	close func() error
}

func (w *withClose) Close() error { return w.close() }
