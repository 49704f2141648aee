// Package netpbm reads and writes uncompressed Netpbm rasters (PGM and PPM,
// plain and raw). Pixels always hold the raster in raw (P5/P6) layout so a
// carrier can be edited byte by byte regardless of how it was stored.
package netpbm

import (
	"bytes"
	"fmt"
	"slices"
)

// Format is the Netpbm magic number.
type Format string

const (
	PlainGray Format = "P2"
	PlainRGB  Format = "P3"
	RawGray   Format = "P5"
	RawRGB    Format = "P6"
)

// Channels returns the samples per pixel for the format.
func (f Format) Channels() int {
	switch f {
	case PlainRGB, RawRGB:
		return 3
	default:
		return 1
	}
}

// Plain reports whether samples are written as ASCII decimals.
func (f Format) Plain() bool {
	return f == PlainGray || f == PlainRGB
}

func (f Format) valid() bool {
	switch f {
	case PlainGray, PlainRGB, RawGray, RawRGB:
		return true
	}
	return false
}

// MaxRasterSize bounds the raster length a header may declare.
const MaxRasterSize = 1 << 30

// Image is a decoded Netpbm raster.
type Image struct {
	Format   Format
	Comments []string // Header comments without the leading '#'
	Width    int
	Height   int
	MaxVal   int    // Color depth, 1..65535
	Pixels   []byte // Raw layout; 2 bytes big endian per sample when MaxVal > 255
}

// FormatError reports a malformed or unsupported header field.
type FormatError struct {
	Field string
	Msg   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("netpbm: invalid %s: %s", e.Field, e.Msg)
}

// New returns a zeroed image of the given geometry.
func New(format Format, width, height, maxVal int) (*Image, error) {
	img := &Image{
		Format: format,
		Width:  width,
		Height: height,
		MaxVal: maxVal,
	}
	if err := img.validate(); err != nil {
		return nil, err
	}
	img.Pixels = make([]byte, img.RasterSize())
	return img, nil
}

// BytesPerSample is 1 for 8-bit depth and 2 above it.
func (img *Image) BytesPerSample() int {
	if img.MaxVal > 255 {
		return 2
	}
	return 1
}

// RasterSize is the expected length of Pixels.
func (img *Image) RasterSize() int {
	return img.Width * img.Height * img.Format.Channels() * img.BytesPerSample()
}

// Clone returns a deep copy sharing no storage with img.
func (img *Image) Clone() *Image {
	return &Image{
		Format:   img.Format,
		Comments: slices.Clone(img.Comments),
		Width:    img.Width,
		Height:   img.Height,
		MaxVal:   img.MaxVal,
		Pixels:   bytes.Clone(img.Pixels),
	}
}

// SameMetadata reports whether a and b have identical headers and comments.
func SameMetadata(a, b *Image) bool {
	return a.Format == b.Format &&
		a.Width == b.Width &&
		a.Height == b.Height &&
		a.MaxVal == b.MaxVal &&
		slices.Equal(a.Comments, b.Comments)
}

func (img *Image) validate() error {
	if !img.Format.valid() {
		return &FormatError{Field: "magic", Msg: fmt.Sprintf("unsupported format %q", img.Format)}
	}
	if img.Width <= 0 || img.Height <= 0 {
		return &FormatError{Field: "size", Msg: fmt.Sprintf("%dx%d", img.Width, img.Height)}
	}
	if img.MaxVal < 1 || img.MaxVal > 65535 {
		return &FormatError{Field: "maxval", Msg: fmt.Sprintf("%d out of range 1..65535", img.MaxVal)}
	}
	perPixel := img.Format.Channels() * img.BytesPerSample()
	if img.Width > MaxRasterSize/perPixel/img.Height {
		return &FormatError{Field: "size", Msg: fmt.Sprintf("%dx%d exceeds %d raster bytes", img.Width, img.Height, MaxRasterSize)}
	}
	return nil
}
