package pdf

import "io"

// cryptCodec implements the /Crypt filter as a pass-through: the only
// crypt filter name this library recognizes on a stream's /Filter
// array is /Identity (PDF 1.6 §7.6.5), meaning "do not apply the
// document's encryption to this stream" — any other crypt filter name
// is a document-layer concern (naming an entry in the encryption
// dictionary's /CF map) that is out of scope here.
type cryptCodec struct{}

func (cryptCodec) encode(sink io.WriteCloser) (io.WriteCloser, error) {
	return sink, nil
}

func (cryptCodec) decode(source io.Reader) (io.Reader, error) {
	return source, nil
}
