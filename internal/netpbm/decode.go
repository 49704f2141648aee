package netpbm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Decode reads a P2, P3, P5 or P6 image from r.
func Decode(r io.Reader) (*Image, error) {
	d := &decoder{r: bufio.NewReader(r)}

	magic := make([]byte, 2)
	if _, err := io.ReadFull(d.r, magic); err != nil {
		return nil, fmt.Errorf("netpbm: reading magic: %w", err)
	}

	img := &Image{Format: Format(magic)}
	if !img.Format.valid() {
		return nil, &FormatError{Field: "magic", Msg: fmt.Sprintf("unsupported format %q", magic)}
	}

	var err error
	if img.Width, err = d.headerInt("width"); err != nil {
		return nil, err
	}
	if img.Height, err = d.headerInt("height"); err != nil {
		return nil, err
	}
	if img.MaxVal, err = d.headerInt("maxval"); err != nil {
		return nil, err
	}
	img.Comments = d.comments
	if err := img.validate(); err != nil {
		return nil, err
	}

	if img.Format.Plain() {
		img.Pixels, err = d.plainRaster(img)
	} else {
		img.Pixels, err = d.rawRaster(img)
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// initialRaster caps the up front allocation for a raster.
const initialRaster = 1 << 20

type decoder struct {
	r        *bufio.Reader
	comments []string
}

// headerInt reads the next decimal token, collecting any comments before it.
func (d *decoder) headerInt(field string) (int, error) {
	tok, err := d.token(true)
	if err != nil {
		return 0, fmt.Errorf("netpbm: reading %s: %w", field, err)
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &FormatError{Field: field, Msg: fmt.Sprintf("not a number: %q", tok)}
	}
	return n, nil
}

// token skips whitespace and comments and returns the next word. The single
// whitespace byte terminating the word is consumed.
func (d *decoder) token(keepComments bool) (string, error) {
	var sb strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return sb.String(), nil
			}
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		switch {
		case c == '#' && sb.Len() == 0:
			line, err := d.r.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			if keepComments {
				d.comments = append(d.comments, strings.TrimRight(line, "\r\n"))
			}
		case isSpace(c):
			if sb.Len() > 0 {
				return sb.String(), nil
			}
		default:
			sb.WriteByte(c)
		}
	}
}

// sampleLimit is the largest sample accepted. A hidden bit can raise a
// sample one past an even maxval, so the LSB is not held to it.
func sampleLimit(img *Image) int {
	return img.MaxVal | 1
}

func (d *decoder) rawRaster(img *Image) ([]byte, error) {
	// Grow with the data actually present rather than the declared size.
	var buf bytes.Buffer
	buf.Grow(min(img.RasterSize(), initialRaster))
	if _, err := io.CopyN(&buf, d.r, int64(img.RasterSize())); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("netpbm: reading raster: %w", err)
	}
	pixels := buf.Bytes()
	limit := sampleLimit(img)
	if img.BytesPerSample() == 2 {
		for i := 0; i < len(pixels); i += 2 {
			if v := int(pixels[i])<<8 | int(pixels[i+1]); v > limit {
				return nil, &FormatError{Field: "sample", Msg: fmt.Sprintf("%d exceeds maxval %d", v, img.MaxVal)}
			}
		}
		return pixels, nil
	}
	for _, v := range pixels {
		if int(v) > limit {
			return nil, &FormatError{Field: "sample", Msg: fmt.Sprintf("%d exceeds maxval %d", v, img.MaxVal)}
		}
	}
	return pixels, nil
}

func (d *decoder) plainRaster(img *Image) ([]byte, error) {
	wide := img.BytesPerSample() == 2
	limit := sampleLimit(img)
	samples := img.Width * img.Height * img.Format.Channels()
	pixels := make([]byte, 0, min(img.RasterSize(), initialRaster))

	for i := 0; i < samples; i++ {
		tok, err := d.token(false)
		if err != nil {
			return nil, fmt.Errorf("netpbm: reading sample %d: %w", i, err)
		}
		v, err := strconv.Atoi(tok)
		if err != nil || v < 0 || v > limit {
			return nil, &FormatError{Field: "sample", Msg: fmt.Sprintf("%q at index %d", tok, i)}
		}
		if wide {
			pixels = append(pixels, byte(v>>8))
		}
		pixels = append(pixels, byte(v))
	}
	return pixels, nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
