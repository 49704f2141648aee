package steg

import (
	"bytes"
	"fmt"

	"github.com/faanross/simulacra_ppm/internal/spec"
)

// ExtractByte rebuilds one payload byte from the LSBs of the first 8 pixel
// bytes of group, MSB first.
func ExtractByte(group []byte) byte {
	var b byte
	for j := 0; j < spec.BITS_PER_BYTE; j++ {
		b = b<<1 | group[j]&1
	}
	return b
}

// Extract recovers the message embedded in pixels.
func (c *Codec) Extract(pixels []byte) (string, error) {
	payload, terminated := readPayload(pixels)
	if !terminated {
		return "", &Error{
			Kind:   KindBadMessage,
			Detail: fmt.Sprintf("no terminator in %d pixel bytes", len(pixels)),
		}
	}
	if !bytes.HasPrefix(payload, c.magic) {
		return "", &Error{
			Kind:   KindNoMessage,
			Detail: fmt.Sprintf("payload does not start with %q", c.magic),
		}
	}
	return string(payload[len(c.magic):]), nil
}

// readPayload decodes bytes until a terminator or the end of pixels. A
// trailing group shorter than 8 bytes cannot hold a byte and is ignored.
func readPayload(pixels []byte) (payload []byte, terminated bool) {
	for off := 0; off+spec.BITS_PER_BYTE <= len(pixels); off += spec.BITS_PER_BYTE {
		b := ExtractByte(pixels[off:])
		if b == spec.TERMINATOR {
			return payload, true
		}
		payload = append(payload, b)
	}
	return payload, false
}
