package runlength

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeExamples(t *testing.T) {
	testCases := []struct {
		name     string
		encoded  []byte
		expected []byte
	}{
		{
			name:     "empty",
			encoded:  []byte{128},
			expected: []byte{},
		},
		{
			name:     "literal run",
			encoded:  []byte{4, 1, 2, 3, 4, 5, 128},
			expected: []byte{1, 2, 3, 4, 5},
		},
		{
			name:     "replicated run",
			encoded:  []byte{255, 7, 128},
			expected: bytes.Repeat([]byte{7}, 2),
		},
		{
			name:     "max replicated run",
			encoded:  []byte{129, 7, 128},
			expected: bytes.Repeat([]byte{7}, 128),
		},
		{
			name:     "mixed runs",
			encoded:  []byte{2, 1, 2, 3, 253, 4, 1, 5, 6, 128},
			expected: []byte{1, 2, 3, 4, 4, 4, 4, 5, 6},
		},
		{
			name:     "missing EOD marker still yields decoded data",
			encoded:  []byte{4, 1, 2, 3, 4, 5},
			expected: []byte{1, 2, 3, 4, 5},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dec := Decode(bytes.NewReader(tc.encoded))
			out, err := io.ReadAll(dec)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if diff := cmp.Diff(tc.expected, out); diff != "" {
				t.Errorf("decode failed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeInChunks(t *testing.T) {
	encoded := []byte{2, 1, 2, 3, 253, 4, 1, 5, 6, 128}
	expected := []byte{1, 2, 3, 4, 4, 4, 4, 5, 6}

	dec := Decode(bytes.NewReader(encoded))
	buf := make([]byte, 2)
	var got []byte
	for {
		n, err := dec.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
	}

	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("chunked decode failed (-want +got):\n%s", diff)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{128})
	f.Add([]byte{4, 1, 2, 3, 4, 5, 128})
	f.Add([]byte{255, 7, 128})
	f.Add([]byte{129, 7, 128})

	f.Fuzz(func(t *testing.T, data []byte) {
		dec := Decode(bytes.NewReader(data))
		// The decoder must never hang or panic on arbitrary input; errors
		// are acceptable, infinite loops and panics are not.
		buf := make([]byte, 64)
		for i := 0; i < 1000; i++ {
			_, err := dec.Read(buf)
			if err != nil {
				return
			}
		}
	})
}
