package asciihex

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
		wantErr  bool
	}{
		{
			name:     "Simple hex string",
			input:    "48656C6C6F20576F726C64>",
			expected: []byte("Hello World"),
		},
		{
			name:     "Hex string with whitespace",
			input:    "48 65 6C 6C 6F 20 57 6F 72 6C 64>",
			expected: []byte("Hello World"),
		},
		{
			name:     "Hex string with mixed case",
			input:    "48656c6C6F20576f726C64>",
			expected: []byte("Hello World"),
		},
		{
			name:     "Hex string with newlines and tabs",
			input:    "48656C6C6F\n20576F\t726C64>",
			expected: []byte("Hello World"),
		},
		{
			name:     "Empty string",
			input:    ">",
			expected: []byte{},
		},
		{
			name:     "Odd number of digits",
			input:    "202>",
			expected: []byte("  "),
		},
		{
			name:     "Invalid character",
			input:    "48X848>",
			expected: []byte("H"),
			wantErr:  true,
		},
		{
			name:     "No EOD marker",
			input:    "48656C6C6F20576F726C64",
			expected: []byte("Hello World"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := Decode(strings.NewReader(tt.input))
			result, err := io.ReadAll(reader)

			if !bytes.Equal(result, tt.expected) {
				t.Errorf("Decode() = %v, want %v", result, tt.expected)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeInChunks(t *testing.T) {
	input := "48656C6C6F20576F726C64>"
	expected := []byte("Hello World")

	reader := Decode(strings.NewReader(input))
	result := make([]byte, 3)
	var fullResult []byte

	for {
		n, err := reader.Read(result)
		fullResult = append(fullResult, result[:n]...)
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if !bytes.Equal(fullResult, expected) {
		t.Errorf("Decode() in chunks = %v, want %v", fullResult, expected)
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"Hello World",
		"grossartig",
		strings.Repeat("x", 67),
	}
	buf := &bytes.Buffer{}
	for _, input := range inputs {
		buf.Reset()
		enc := Encode(nopCloser{buf})
		if _, err := enc.Write([]byte(input)); err != nil {
			t.Fatal(err)
		}
		if err := enc.Close(); err != nil {
			t.Fatal(err)
		}
		buf.WriteByte('>')

		dec := Decode(buf)
		result, err := io.ReadAll(dec)
		if err != nil {
			t.Fatal(err)
		}
		if string(result) != input {
			t.Errorf("roundtrip failed: %q -> %q", input, result)
		}
	}
}

func TestEncodeUppercase(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := Encode(nopCloser{buf})
	if _, err := enc.Write([]byte("Hi")); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "4869"; got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}
