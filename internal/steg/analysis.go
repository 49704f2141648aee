package steg

import (
	"math"

	"github.com/faanross/simulacra_ppm/internal/spec"
)

// Report summarises the LSB plane of a pixel buffer.
type Report struct {
	PixelBytes  int
	Zeros       int     // Pixel bytes with LSB 0
	Ones        int     // Pixel bytes with LSB 1
	Entropy     float64 // Shannon entropy of the LSB byte stream, 0..8 bits
	Capacity    int     // Longest message that fits, -1 if none
	HasMessage  bool    // Stream starts with the marker
	PayloadSize int     // Message bytes before the terminator, -1 if unterminated or absent
}

// ZeroRatio is the share of LSBs that are 0, in percent.
func (r Report) ZeroRatio() float64 {
	if r.PixelBytes == 0 {
		return 0
	}
	return float64(r.Zeros) * 100 / float64(r.PixelBytes)
}

// LooksRandom reports an LSB plane close to uniform noise, which is what a
// natural photo or an encrypted payload tends to produce.
func (r Report) LooksRandom() bool {
	ratio := r.ZeroRatio()
	return ratio > 45 && ratio < 55 && r.Entropy > 7.5
}

// Analyze inspects the LSBs of pixels using c's marker.
func (c *Codec) Analyze(pixels []byte) Report {
	r := Report{
		PixelBytes:  len(pixels),
		Capacity:    c.Capacity(len(pixels)),
		HasMessage:  c.HasMessage(pixels),
		PayloadSize: -1,
	}

	for _, p := range pixels {
		if p&1 == 0 {
			r.Zeros++
		} else {
			r.Ones++
		}
	}

	var frequency [256]int
	groups := len(pixels) / spec.BITS_PER_BYTE
	for i := range groups {
		frequency[ExtractByte(pixels[i*spec.BITS_PER_BYTE:])]++
	}
	for _, count := range frequency {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(groups)
		r.Entropy -= p * math.Log2(p)
	}

	if r.HasMessage {
		if msg, err := c.Extract(pixels); err == nil {
			r.PayloadSize = len(msg)
		}
	}
	return r
}
