package main

import (
	"flag"
	"fmt"
	"github.com/faanross/simulacra_ppm/internal/netpbm"
	"github.com/faanross/simulacra_ppm/internal/spec"
	"github.com/faanross/simulacra_ppm/internal/steg"
	"log"
	"os"
	"strings"
)

func main() {
	// Command line arguments
	inputFile := flag.String("in", "", "Cover image (PPM/PGM)")
	outputFile := flag.String("out", "stego.ppm", "Output image")
	message := flag.String("msg", "", "Message to hide")
	messageFile := flag.String("file", "", "Read the message from a file instead")
	magic := flag.String("magic", spec.MAGIC, "Marker placed before the message")
	flag.Parse()

	if *inputFile == "" {
		log.Fatal("❌ Please provide a cover image with -in")
	}
	if (*message == "") == (*messageFile == "") {
		log.Fatal("❌ Provide exactly one of -msg or -file")
	}

	codec, err := steg.New(steg.WithMagic(*magic))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	text := *message
	if *messageFile != "" {
		data, err := os.ReadFile(*messageFile)
		if err != nil {
			log.Fatalf("❌ Error reading message: %v", err)
		}
		text = string(data)
	}

	fmt.Println("\n🖼️  Netpbm Steganography: hide")
	fmt.Println("=" + strings.Repeat("=", 40))

	cover, err := readImage(*inputFile)
	if err != nil {
		log.Fatalf("❌ Error reading cover: %v", err)
	}

	fmt.Printf("\n📄 Cover: %s (%s %dx%d, maxval %d)\n", *inputFile, cover.Format, cover.Width, cover.Height, cover.MaxVal)
	fmt.Printf("   Capacity: %d bytes\n", codec.Capacity(len(cover.Pixels)))
	fmt.Printf("   Message:  %d bytes\n", len(text))
	if !codec.Fits(len(cover.Pixels), text) {
		fmt.Printf("   ⚠️  Message does not fit: needs %d pixel bytes, cover has %d\n",
			(len(codec.Magic())+len(text)+1)*spec.BITS_PER_BYTE, len(cover.Pixels))
	}
	if strings.IndexByte(text, spec.TERMINATOR) >= 0 {
		fmt.Println("   ⚠️  Message contains NUL, only the part before it will be recovered")
	}

	stego, err := codec.Hide(cover, text)
	if err != nil {
		fail(err)
	}

	if err := writeImage(*outputFile, stego); err != nil {
		log.Fatalf("❌ Error writing output: %v", err)
	}

	fmt.Printf("\n✅ Message hidden!\n")
	fmt.Printf("   Output: %s\n", *outputFile)
	fmt.Printf("\n🔓 To recover: stg-unhide -in %s\n", *outputFile)
}

func readImage(path string) (*netpbm.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return netpbm.Decode(file)
}

func writeImage(path string, img *netpbm.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := netpbm.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// fail prints codec errors unadorned so the STEG_ token starts the line.
func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
