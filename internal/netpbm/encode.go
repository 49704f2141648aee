package netpbm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// maxPlainLine is the line length limit for plain formats.
const maxPlainLine = 70

// Encode writes img to w in img.Format.
func Encode(w io.Writer, img *Image) error {
	if err := img.validate(); err != nil {
		return err
	}
	if len(img.Pixels) != img.RasterSize() {
		return &FormatError{
			Field: "raster",
			Msg:   fmt.Sprintf("have %d bytes, want %d", len(img.Pixels), img.RasterSize()),
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", img.Format)
	for _, c := range img.Comments {
		fmt.Fprintf(bw, "#%s\n", c)
	}
	fmt.Fprintf(bw, "%d %d\n%d\n", img.Width, img.Height, img.MaxVal)

	if img.Format.Plain() {
		writePlain(bw, img)
	} else if _, err := bw.Write(img.Pixels); err != nil {
		return fmt.Errorf("netpbm: writing raster: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("netpbm: flushing: %w", err)
	}
	return nil
}

func writePlain(bw *bufio.Writer, img *Image) {
	step := img.BytesPerSample()
	line := 0
	buf := make([]byte, 0, 5)

	for i := 0; i < len(img.Pixels); i += step {
		v := int(img.Pixels[i])
		if step == 2 {
			v = v<<8 | int(img.Pixels[i+1])
		}
		buf = strconv.AppendInt(buf[:0], int64(v), 10)

		if line > 0 && line+1+len(buf) > maxPlainLine {
			bw.WriteByte('\n')
			line = 0
		}
		if line > 0 {
			bw.WriteByte(' ')
			line++
		}
		bw.Write(buf)
		line += len(buf)
	}
	bw.WriteByte('\n')
}
