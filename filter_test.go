package pdf

import (
	"errors"
	"testing"
)

func TestFilterKindByName(t *testing.T) {
	cases := []struct {
		name Name
		want FilterKind
	}{
		{"ASCIIHexDecode", FilterASCIIHex},
		{"AHx", FilterASCIIHex},
		{"ASCII85Decode", FilterASCII85},
		{"A85", FilterASCII85},
		{"LZWDecode", FilterLZW},
		{"LZW", FilterLZW},
		{"FlateDecode", FilterFlate},
		{"Fl", FilterFlate},
		{"RunLengthDecode", FilterRunLength},
		{"RL", FilterRunLength},
		{"Crypt", FilterCrypt},
	}
	for _, c := range cases {
		got, ok := FilterKindByName(c.name)
		if !ok {
			t.Errorf("%q: not recognized", c.name)
			continue
		}
		if got != c.want {
			t.Errorf("%q: got %v, want %v", c.name, got, c.want)
		}
	}

	if _, ok := FilterKindByName("NotAFilter"); ok {
		t.Error("expected an unknown filter name to not resolve")
	}
}

func TestFilterKindString(t *testing.T) {
	if FilterFlate.String() != "FlateDecode" {
		t.Errorf("got %q", FilterFlate.String())
	}
	if FilterKind(999).String() != "Unknown" {
		t.Errorf("got %q for an out-of-range FilterKind", FilterKind(999).String())
	}
}

func TestExtractFilterInfoSingle(t *testing.T) {
	dict := Dict{
		"Filter":      Name("FlateDecode"),
		"DecodeParms": Dict{"Predictor": Integer(12), "Columns": Integer(5)},
	}
	info, err := extractFilterInfo(dict)
	if err != nil {
		t.Fatal(err)
	}
	if len(info) != 1 {
		t.Fatalf("got %d entries, want 1", len(info))
	}
	if info[0].Name != "FlateDecode" {
		t.Errorf("got name %q", info[0].Name)
	}
	if info[0].Parms["Columns"] != Integer(5) {
		t.Errorf("got parms %+v", info[0].Parms)
	}
}

func TestExtractFilterInfoArray(t *testing.T) {
	dict := Dict{
		"Filter":      []Object{Name("ASCII85Decode"), Name("FlateDecode")},
		"DecodeParms": []Object{nil, Dict{"Predictor": Integer(2)}},
	}
	info, err := extractFilterInfo(dict)
	if err != nil {
		t.Fatal(err)
	}
	if len(info) != 2 {
		t.Fatalf("got %d entries, want 2", len(info))
	}
	if info[0].Name != "ASCII85Decode" || info[0].Parms != nil {
		t.Errorf("entry 0 = %+v", info[0])
	}
	if info[1].Name != "FlateDecode" || info[1].Parms["Predictor"] != Integer(2) {
		t.Errorf("entry 1 = %+v", info[1])
	}
}

func TestExtractFilterInfoNone(t *testing.T) {
	info, err := extractFilterInfo(Dict{})
	if err != nil {
		t.Fatal(err)
	}
	if info != nil {
		t.Errorf("got %+v, want nil", info)
	}
}

func TestExtractFilterInfoInvalidArrayEntry(t *testing.T) {
	dict := Dict{"Filter": []Object{Integer(3)}}
	_, err := extractFilterInfo(dict)
	if err == nil {
		t.Error("expected an error for a non-Name array entry")
	}
}

func TestExtractFilterInfoInvalidFilterField(t *testing.T) {
	dict := Dict{"Filter": Integer(3)}
	_, err := extractFilterInfo(dict)
	if err == nil {
		t.Error("expected an error for a non-Name/array /Filter value")
	}
}

func TestNewCodecDispatch(t *testing.T) {
	for _, kind := range []FilterKind{
		FilterASCIIHex, FilterASCII85, FilterFlate, FilterRunLength,
		FilterLZW, FilterCCITTFax, FilterJBIG2, FilterDCT, FilterJPX,
		FilterCrypt,
	} {
		if _, err := newCodec(kind, nil); err != nil {
			t.Errorf("%v: %v", kind, err)
		}
	}

	_, err := newCodec(FilterKind(999), nil)
	if !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("got %v, want ErrUnsupportedFilter", err)
	}
}

func TestUnsupportedCodecReportsErrUnsupportedFilter(t *testing.T) {
	for _, kind := range []FilterKind{FilterCCITTFax, FilterJBIG2, FilterDCT, FilterJPX} {
		c, err := newCodec(kind, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.encode(nopCloseBuf{}); !errors.Is(err, ErrUnsupportedFilter) {
			t.Errorf("%v encode: got %v", kind, err)
		}
		if _, err := c.decode(nil); !errors.Is(err, ErrUnsupportedFilter) {
			t.Errorf("%v decode: got %v", kind, err)
		}
	}
}

func TestRunLengthAndLZWEncodeUnsupported(t *testing.T) {
	rl, err := newCodec(FilterRunLength, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rl.encode(nopCloseBuf{}); !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("RunLength encode: got %v", err)
	}

	lz, err := newCodec(FilterLZW, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lz.encode(nopCloseBuf{}); !errors.Is(err, ErrUnsupportedFilter) {
		t.Errorf("LZW encode: got %v", err)
	}
}

func TestPredictorParamsFromDictDefaults(t *testing.T) {
	p := predictorParamsFromDict(nil)
	want := &PredictorParams{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1}
	if *p != *want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestPredictorParamsFromDictOverrides(t *testing.T) {
	parms := Dict{
		"Predictor":        Integer(15),
		"Colors":           Integer(3),
		"BitsPerComponent": Integer(4),
		"Columns":          Integer(10),
		"EarlyChange":      Integer(0),
	}
	p := predictorParamsFromDict(parms)
	want := &PredictorParams{Predictor: 15, Colors: 3, BitsPerComponent: 4, Columns: 10, EarlyChange: 0}
	if *p != *want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestPredictorParamsFromDictIgnoresInvalidBitsPerComponent(t *testing.T) {
	parms := Dict{"BitsPerComponent": Integer(3)}
	p := predictorParamsFromDict(parms)
	if p.BitsPerComponent != 8 {
		t.Errorf("got %d, want the default 8 for an invalid value", p.BitsPerComponent)
	}
}

func TestPredictorParamsToDictDefaultsOmitted(t *testing.T) {
	p := &PredictorParams{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1}
	if got := p.ToDict(); got != nil {
		t.Errorf("got %+v, want nil for all-default params", got)
	}
	if got := (*PredictorParams)(nil).ToDict(); got != nil {
		t.Errorf("got %+v, want nil for a nil receiver", got)
	}
}

func TestPredictorParamsToDictNonDefaults(t *testing.T) {
	p := &PredictorParams{Predictor: 12, Colors: 3, BitsPerComponent: 4, Columns: 8, EarlyChange: 0}
	got := p.ToDict()
	want := Dict{
		"Predictor":        Integer(12),
		"Colors":           Integer(3),
		"BitsPerComponent": Integer(4),
		"Columns":          Integer(8),
		"EarlyChange":      Integer(0),
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("key %q: got %v, want %v", k, got[k], v)
		}
	}
}

func TestNormalizePredictorParamsNil(t *testing.T) {
	p := normalizePredictorParams(nil)
	want := &PredictorParams{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1}
	if *p != *want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestNormalizePredictorParamsFillsZeroes(t *testing.T) {
	p := normalizePredictorParams(&PredictorParams{Predictor: 0, Colors: 0, BitsPerComponent: 0, Columns: 0})
	if p.Predictor != 1 || p.Colors != 1 || p.BitsPerComponent != 8 || p.Columns != 1 {
		t.Errorf("got %+v", p)
	}
}
