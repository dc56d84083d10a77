package predict

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTIFFReader8Bit(t *testing.T) {
	// Grayscale, 8 bits per sample, 4 columns, 1 color: each row is a
	// horizontal difference chain that must be undone by running sum.
	in := []byte{100, 10, 251, 15}
	want := []byte{100, 110, 105, 120}

	r := NewTIFFReader(bytes.NewReader(in), 1, 8, 4)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestTIFFReader16BitRGB(t *testing.T) {
	// RGB, 16 bits per sample, big-endian, 2 columns: horizontal
	// differencing runs within the row, offset by the 3-channel
	// stride, so the second pixel's stored value is a +0x0101 delta
	// per channel over the first pixel.
	pixel0 := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	delta := []byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01}
	in := append(append([]byte{}, pixel0...), delta...)

	r := NewTIFFReader(bytes.NewReader(in), 3, 16, 2)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}

	pixel1 := []byte{0x02, 0x01, 0x03, 0x01, 0x04, 0x01}
	want := append(append([]byte{}, pixel0...), pixel1...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestTIFFRoundTrip(t *testing.T) {
	cases := []struct {
		colors, bpc, cols int
		rows              int
	}{
		{1, 8, 4, 3},
		{3, 8, 5, 2},
		{3, 16, 2, 4},
		{1, 1, 16, 2},
		{1, 2, 8, 2},
		{1, 4, 4, 2},
	}

	for _, c := range cases {
		rb := rowBytes(c.colors, c.bpc, c.cols)
		in := make([]byte, rb*c.rows)
		for i := range in {
			in[i] = byte(i*37 + 11)
		}

		buf := &bytes.Buffer{}
		w := NewTIFFWriter(buf, func() error { return nil }, c.colors, c.bpc, c.cols)
		if _, err := w.Write(in); err != nil {
			t.Fatalf("%+v: write: %v", c, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("%+v: close: %v", c, err)
		}

		r := NewTIFFReader(bytes.NewReader(buf.Bytes()), c.colors, c.bpc, c.cols)
		out, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("%+v: read: %v", c, err)
		}
		if diff := cmp.Diff(in, out); diff != "" {
			t.Errorf("%+v: round trip mismatch (-want +got):\n%s", c, diff)
		}
	}
}
