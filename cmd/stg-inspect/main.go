package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"github.com/faanross/simulacra_ppm/internal/netpbm"
	"github.com/faanross/simulacra_ppm/internal/spec"
	"github.com/faanross/simulacra_ppm/internal/steg"
	"golang.org/x/crypto/blake2b"
	"log"
	"os"
	"strings"
)

func main() {
	inputFile := flag.String("in", "", "Image to inspect (Netpbm, or PNG/GIF/JPEG/BMP/TIFF)")
	magic := flag.String("magic", spec.MAGIC, "Marker to look for")
	flag.Parse()

	if *inputFile == "" {
		log.Fatal("❌ Please provide an image with -in")
	}

	codec, err := steg.New(steg.WithMagic(*magic))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	data, err := os.ReadFile(*inputFile)
	if err != nil {
		log.Fatalf("❌ Error reading file: %v", err)
	}

	img, source, err := load(data)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	fmt.Println("\n🔍 Carrier inspection")
	fmt.Println("=" + strings.Repeat("=", 40))

	fmt.Printf("\n📄 %s\n", *inputFile)
	fmt.Printf("   Source:       %s\n", source)
	fmt.Printf("   Format:       %s (%d channels)\n", img.Format, img.Format.Channels())
	fmt.Printf("   Size:         %dx%d\n", img.Width, img.Height)
	fmt.Printf("   Maxval:       %d (%d bytes per sample)\n", img.MaxVal, img.BytesPerSample())
	fmt.Printf("   Pixel bytes:  %d\n", len(img.Pixels))
	for _, c := range img.Comments {
		fmt.Printf("   Comment:      %s\n", c)
	}

	digest := blake2b.Sum256(img.Pixels)
	fmt.Printf("   Pixel digest: %s\n", hex.EncodeToString(digest[:]))

	r := codec.Analyze(img.Pixels)
	fmt.Println("\n📊 Capacity")
	if r.Capacity < 0 {
		fmt.Printf("   Too small for any message (needs %d pixel bytes)\n", (len(codec.Magic())+1)*spec.BITS_PER_BYTE)
	} else {
		fmt.Printf("   %d bytes with marker %q\n", r.Capacity, codec.Magic())
	}

	fmt.Println("\n🔬 LSB plane")
	fmt.Printf("   Zeros/ones:   %d / %d (%.1f%% zeros)\n", r.Zeros, r.Ones, r.ZeroRatio())
	fmt.Printf("   Entropy:      %.3f bits per byte\n", r.Entropy)
	if r.LooksRandom() {
		fmt.Println("   Verdict:      noise-like")
	} else {
		fmt.Println("   Verdict:      structured")
	}

	fmt.Println("\n📦 Payload")
	switch {
	case r.PayloadSize >= 0:
		fmt.Printf("   ✅ Message present: %d bytes\n", r.PayloadSize)
	case r.HasMessage:
		fmt.Println("   ⚠️  Marker present but no terminator")
	default:
		fmt.Println("   No message")
	}
	fmt.Println()
}

// load decodes Netpbm directly and anything else through the image registry.
func load(data []byte) (*netpbm.Image, string, error) {
	img, err := netpbm.Decode(bytes.NewReader(data))
	if err == nil {
		return img, "netpbm", nil
	}
	imported, format, ierr := netpbm.Import(bytes.NewReader(data))
	if ierr != nil {
		return nil, "", fmt.Errorf("not a readable image: %v", err)
	}
	return imported, format + " (converted to " + string(imported.Format) + ")", nil
}
