package netpbm

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestDecodeRawRGB(t *testing.T) {
	data := []byte("P6\n# created by hand\n#second\n2 1\n255\n")
	data = append(data, 1, 2, 3, 250, 251, 252)

	img, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, RawRGB, img.Format)
	assert.Equal(t, []string{" created by hand", "second"}, img.Comments)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assert.Equal(t, 255, img.MaxVal)
	assert.Equal(t, []byte{1, 2, 3, 250, 251, 252}, img.Pixels)
}

func TestDecodeRasterStartsWithWhitespaceByte(t *testing.T) {
	// The first sample is 0x0a; only one whitespace byte follows maxval.
	data := append([]byte("P5 3 1 255\n"), '\n', ' ', '#')

	img, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []byte{'\n', ' ', '#'}, img.Pixels)
}

func TestDecodePlain(t *testing.T) {
	src := "P3\n# plain\n2 2 15\n 0 1 2  3 4 5\n# mid raster\n6 7 8 9 10 15\n"

	img, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, PlainRGB, img.Format)
	assert.Equal(t, []string{" plain"}, img.Comments)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 15}, img.Pixels)
}

func TestDecodeSixteenBit(t *testing.T) {
	img, err := Decode(strings.NewReader("P2 2 1 1000\n999 256\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, img.BytesPerSample())
	assert.Equal(t, []byte{0x03, 0xe7, 0x01, 0x00}, img.Pixels)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img))
	assert.Equal(t, "P2\n2 1\n1000\n999 256\n", buf.String())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"bad magic", "P7\n1 1 255\n\x00", "magic"},
		{"zero width", "P5 0 1 255\n", "size"},
		{"maxval too big", "P5 1 1 70000\n\x00", "maxval"},
		{"not a number", "P5 x 1 255\n", "width"},
		{"sample above maxval", "P5 1 1 10\n\x20", "sample"},
		{"plain sample above maxval", "P2 1 1 10\n12\n", "sample"},
		{"size product overflows", "P6 3037000500 3037000500 255\n", "size"},
		{"size product wraps to zero", "P5 4611686018427387904 4 255\n", "size"},
		{"raster above limit", "P6 32768 32768 255\n", "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(strings.NewReader("P6 2 2 255\nabc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading raster")

	_, err = Decode(strings.NewReader("P6 2"))
	require.Error(t, err)

	// A large declared raster with no data behind it fails on the data.
	_, err = Decode(strings.NewReader("P5 16384 16384 255\nxyz"))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, format := range []Format{PlainGray, PlainRGB, RawGray, RawRGB} {
		t.Run(string(format), func(t *testing.T) {
			img, err := New(format, 13, 7, 255)
			require.NoError(t, err)
			img.Comments = []string{" one", "two "}
			for i := range img.Pixels {
				img.Pixels[i] = byte(i*31 + 7)
			}

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, img))

			if format.Plain() {
				for _, line := range strings.Split(buf.String(), "\n") {
					assert.LessOrEqual(t, len(line), maxPlainLine)
				}
			}

			got, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, img, got)
		})
	}
}

func TestEncodeRejectsWrongRaster(t *testing.T) {
	img, err := New(RawRGB, 2, 2, 255)
	require.NoError(t, err)
	img.Pixels = img.Pixels[:5]

	var fe *FormatError
	require.ErrorAs(t, Encode(&bytes.Buffer{}, img), &fe)
	assert.Equal(t, "raster", fe.Field)
}

func TestCloneAndSameMetadata(t *testing.T) {
	img, err := New(RawRGB, 2, 2, 255)
	require.NoError(t, err)
	img.Comments = []string{"a"}

	c := img.Clone()
	assert.True(t, SameMetadata(img, c))
	c.Pixels[0] = 9
	c.Comments[0] = "b"
	assert.Equal(t, byte(0), img.Pixels[0])
	assert.False(t, SameMetadata(img, c))
}

func TestImportBMP(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := range 6 {
		src.Set(i%3, i/3, color.RGBA{R: uint8(i), G: uint8(10 + i), B: uint8(20 + i), A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, src))

	img, format, err := Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)
	assert.Equal(t, RawRGB, img.Format)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, []string{" converted from bmp"}, img.Comments)
	assert.Equal(t, []byte{0, 10, 20, 1, 11, 21, 2, 12, 22, 3, 13, 23, 4, 14, 24, 5, 15, 25}, img.Pixels)
}

func TestPNGRoundTripKeepsLSBs(t *testing.T) {
	img, err := New(RawRGB, 4, 3, 255)
	require.NoError(t, err)
	for i := range img.Pixels {
		img.Pixels[i] = byte(i*53 + 1)
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img.ToImage()))

	back, _, err := Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Pixels, back.Pixels)
}

func TestToImageGray(t *testing.T) {
	img, err := New(RawGray, 2, 1, 255)
	require.NoError(t, err)
	img.Pixels = []byte{7, 200}

	gray, ok := img.ToImage().(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, []uint8{7, 200}, gray.Pix)
}

func TestToImageClampsAboveMaxval(t *testing.T) {
	gray, err := Decode(strings.NewReader("P5 1 1 254\n\xff"))
	require.NoError(t, err)
	g := gray.ToImage().(*image.Gray)
	assert.Equal(t, uint8(255), g.Pix[0])

	rgb, err := New(RawRGB, 1, 1, 254)
	require.NoError(t, err)
	rgb.Pixels = []byte{255, 254, 0}
	r, gr, b, _ := rgb.ToImage().At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0}, []uint32{r, gr, b})

	wide, err := New(RawGray, 1, 1, 1000)
	require.NoError(t, err)
	wide.Pixels = []byte{0x03, 0xe9} // 1001
	g16 := wide.ToImage().(*image.Gray16)
	assert.Equal(t, uint16(0xffff), g16.Gray16At(0, 0).Y)
}
