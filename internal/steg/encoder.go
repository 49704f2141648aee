package steg

import (
	"bytes"
	"fmt"

	"github.com/faanross/simulacra_ppm/internal/spec"
)

// EmbedBit modifies the LSB of a pixel byte to store a bit
func EmbedBit(value uint8, bit bool) uint8 {
	if bit {
		return value | 1
	}
	return value &^ 1
}

// Embed returns a copy of pixels carrying message. The source slice is left
// untouched; only the LSBs of the first 8*(len(magic)+len(message)+1) bytes
// of the copy differ from it.
func (c *Codec) Embed(pixels []byte, message string) ([]byte, error) {
	framed := c.frame(message)
	if err := c.check(pixels, framed); err != nil {
		return nil, err
	}
	out := bytes.Clone(pixels)
	writeFramed(out, framed)
	return out, nil
}

// check runs the capacity and already-hidden checks against the unmodified
// source, in that order.
func (c *Codec) check(pixels []byte, framed []byte) error {
	needed := len(framed) * spec.BITS_PER_BYTE
	if needed > len(pixels) {
		return &Error{
			Kind:   KindTooBig,
			Detail: fmt.Sprintf("message needs %d pixel bytes, image has %d", needed, len(pixels)),
		}
	}
	if c.HasMessage(pixels) {
		return &Error{
			Kind:   KindAlreadyHidden,
			Detail: fmt.Sprintf("image already starts with %q", c.magic),
		}
	}
	return nil
}

// writeFramed streams framed into dst, one bit per byte, MSB first.
// dst must hold at least 8*len(framed) bytes.
func writeFramed(dst []byte, framed []byte) {
	for i, b := range framed {
		group := dst[i*spec.BITS_PER_BYTE : (i+1)*spec.BITS_PER_BYTE]
		for j := range group {
			group[j] = EmbedBit(group[j], b&(1<<(7-j)) != 0)
		}
	}
}
