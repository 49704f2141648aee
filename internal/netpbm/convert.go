package netpbm

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Import decodes any registered raster format (PNG, GIF, JPEG, BMP, TIFF)
// into an 8-bit P6 image. The source format name is returned as well.
func Import(r io.Reader) (*Image, string, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decoding cover: %w", err)
	}
	return FromImage(src, fmt.Sprintf(" converted from %s", format)), format, nil
}

// FromImage copies src into an 8-bit RGB raster. Alpha is discarded.
func FromImage(src image.Image, comments ...string) *Image {
	b := src.Bounds()
	img := &Image{
		Format:   RawRGB,
		Comments: comments,
		Width:    b.Dx(),
		Height:   b.Dy(),
		MaxVal:   255,
	}
	img.Pixels = make([]byte, 0, img.RasterSize())

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			img.Pixels = append(img.Pixels, c.R, c.G, c.B)
		}
	}
	return img
}

// ToImage returns an image.Image view for export. Samples are scaled to
// 8 or 16 bits depending on depth, so LSBs survive only for MaxVal 255 and
// 65535.
func (img *Image) ToImage() image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	channels := img.Format.Channels()
	wide := img.BytesPerSample() == 2

	maxVal := uint32(img.MaxVal)
	sample := func(i int) uint32 {
		var v uint32
		if wide {
			v = uint32(img.Pixels[2*i])<<8 | uint32(img.Pixels[2*i+1])
		} else {
			v = uint32(img.Pixels[i])
		}
		// Decode lets a hidden bit lift a sample one past maxval.
		return min(v, maxVal) * 0xffff / maxVal
	}

	if channels == 1 {
		if wide {
			out := image.NewGray16(rect)
			for i := range img.Width * img.Height {
				out.SetGray16(i%img.Width, i/img.Width, color.Gray16{Y: uint16(sample(i))})
			}
			return out
		}
		out := image.NewGray(rect)
		for i := range img.Width * img.Height {
			out.Pix[i] = uint8(sample(i) >> 8)
		}
		return out
	}

	if wide {
		out := image.NewRGBA64(rect)
		for i := range img.Width * img.Height {
			out.SetRGBA64(i%img.Width, i/img.Width, color.RGBA64{
				R: uint16(sample(3 * i)),
				G: uint16(sample(3*i + 1)),
				B: uint16(sample(3*i + 2)),
				A: 0xffff,
			})
		}
		return out
	}
	out := image.NewRGBA(rect)
	for i := range img.Width * img.Height {
		out.Pix[4*i] = uint8(sample(3*i) >> 8)
		out.Pix[4*i+1] = uint8(sample(3*i+1) >> 8)
		out.Pix[4*i+2] = uint8(sample(3*i+2) >> 8)
		out.Pix[4*i+3] = 0xff
	}
	return out
}
