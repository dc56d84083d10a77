// Package unsupported reports the image-compression stream filters
// (CCITTFax, JBIG2, DCT, JPX) that this library recognizes by name but
// does not decode or encode.
package unsupported

import "fmt"

// Err returns the error reported by encode/decode attempts on the
// named filter.
func Err(name string) error {
	return fmt.Errorf("pdf: %s filter is not implemented", name)
}
