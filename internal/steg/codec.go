// Package steg hides a text message in the least significant bits of a
// pixel buffer, one payload bit per pixel byte.
//
// The embedded stream is framed as magic ++ message ++ NUL and always starts
// at pixel byte 0. Bits are written MSB first.
package steg

import (
	"bytes"

	"github.com/faanross/simulacra_ppm/internal/netpbm"
	"github.com/faanross/simulacra_ppm/internal/spec"
)

// Codec embeds and extracts framed messages. The zero value is not usable;
// build one with New. A Codec is immutable and safe for concurrent use.
type Codec struct {
	magic []byte
}

// Option configures a Codec.
type Option func(*Codec)

// WithMagic replaces the default "stg" marker.
func WithMagic(magic string) Option {
	return func(c *Codec) {
		c.magic = []byte(magic)
	}
}

// New returns a codec using spec.MAGIC unless overridden.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{magic: []byte(spec.MAGIC)}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.magic) == 0 || bytes.IndexByte(c.magic, spec.TERMINATOR) >= 0 {
		return nil, ErrInvalidMagic
	}
	return c, nil
}

var defaultCodec = &Codec{magic: []byte(spec.MAGIC)}

// Default returns the codec using the "stg" marker.
func Default() *Codec {
	return defaultCodec
}

// Magic returns a copy of the marker.
func (c *Codec) Magic() string {
	return string(c.magic)
}

// frame builds magic ++ message ++ NUL.
func (c *Codec) frame(message string) []byte {
	framed := make([]byte, 0, len(c.magic)+len(message)+1)
	framed = append(framed, c.magic...)
	framed = append(framed, message...)
	return append(framed, spec.TERMINATOR)
}

// Capacity returns the longest message, in bytes, that fits into a pixel
// buffer of n bytes, or -1 if not even an empty message fits.
func (c *Codec) Capacity(n int) int {
	return max(n/spec.BITS_PER_BYTE-len(c.magic)-1, -1)
}

// Fits reports whether message can be hidden in n pixel bytes.
func (c *Codec) Fits(n int, message string) bool {
	return spec.BITS_PER_BYTE*(len(c.magic)+len(message)+1) <= n
}

// HasMessage reports whether pixels start with the marker.
func (c *Codec) HasMessage(pixels []byte) bool {
	if len(pixels) < len(c.magic)*spec.BITS_PER_BYTE {
		return false
	}
	for i, want := range c.magic {
		if ExtractByte(pixels[i*spec.BITS_PER_BYTE:]) != want {
			return false
		}
	}
	return true
}

// Hide returns a copy of img with message embedded. img is never modified.
func (c *Codec) Hide(img *netpbm.Image, message string) (*netpbm.Image, error) {
	framed := c.frame(message)
	if err := c.check(img.Pixels, framed); err != nil {
		return nil, err
	}
	out := img.Clone()
	writeFramed(out.Pixels, framed)
	return out, nil
}

// Unhide recovers the message hidden in img.
func (c *Codec) Unhide(img *netpbm.Image) (string, error) {
	return c.Extract(img.Pixels)
}

// Hide embeds message into img using the default codec.
func Hide(img *netpbm.Image, message string) (*netpbm.Image, error) {
	return defaultCodec.Hide(img, message)
}

// Unhide extracts a message from img using the default codec.
func Unhide(img *netpbm.Image) (string, error) {
	return defaultCodec.Unhide(img)
}
