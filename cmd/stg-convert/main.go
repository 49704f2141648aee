package main

import (
	"bytes"
	"flag"
	"fmt"
	"github.com/faanross/simulacra_ppm/internal/netpbm"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	inputFile := flag.String("in", "", "Source image (Netpbm, PNG, GIF, JPEG, BMP or TIFF)")
	outputFile := flag.String("out", "", "Destination, .png exports, anything else writes Netpbm")
	ascii := flag.Bool("ascii", false, "Write plain (P2/P3) Netpbm instead of raw")
	flag.Parse()

	if *inputFile == "" || *outputFile == "" {
		log.Fatal("❌ Please provide -in and -out")
	}

	data, err := os.ReadFile(*inputFile)
	if err != nil {
		log.Fatalf("❌ Error reading file: %v", err)
	}

	img, err := netpbm.Decode(bytes.NewReader(data))
	if err != nil {
		var format string
		img, format, err = netpbm.Import(bytes.NewReader(data))
		if err != nil {
			log.Fatalf("❌ Unsupported input: %v", err)
		}
		fmt.Printf("📥 Imported %s %dx%d\n", format, img.Width, img.Height)
	} else {
		fmt.Printf("📥 Read %s %dx%d maxval %d\n", img.Format, img.Width, img.Height, img.MaxVal)
	}

	out, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("❌ Cannot create output file: %v", err)
	}
	defer out.Close()

	if strings.EqualFold(filepath.Ext(*outputFile), ".png") {
		if img.MaxVal != 255 && img.MaxVal != 65535 {
			fmt.Printf("⚠️  Maxval %d is rescaled, hidden bits will not survive\n", img.MaxVal)
		}
		if err := png.Encode(out, img.ToImage()); err != nil {
			log.Fatalf("❌ PNG encoding failed: %v", err)
		}
		fmt.Printf("✅ Wrote %s\n", *outputFile)
		return
	}

	img.Format = withEncoding(img.Format, *ascii)
	if err := netpbm.Encode(out, img); err != nil {
		log.Fatalf("❌ Netpbm encoding failed: %v", err)
	}
	fmt.Printf("✅ Wrote %s (%s)\n", *outputFile, img.Format)
}

// withEncoding keeps the channel count and switches between plain and raw.
func withEncoding(f netpbm.Format, plain bool) netpbm.Format {
	switch {
	case f.Channels() == 1 && plain:
		return netpbm.PlainGray
	case f.Channels() == 1:
		return netpbm.RawGray
	case plain:
		return netpbm.PlainRGB
	default:
		return netpbm.RawRGB
	}
}
