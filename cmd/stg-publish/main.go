package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/faanross/simulacra_ppm/internal/netpbm"
	"github.com/faanross/simulacra_ppm/internal/relay"
	"github.com/faanross/simulacra_ppm/internal/spec"
	"log"
	"os"
	"path/filepath"
	"time"
)

func main() {
	api := flag.String("api", "http://localhost"+spec.DEFAULT_HTTP, "Relay HTTP API")
	input := flag.String("in", "", "Carrier image to publish")
	name := flag.String("name", "", "Name shown in listings (default: file name)")
	timeout := flag.Duration("timeout", 30*time.Second, "Upload timeout")
	flag.Parse()

	if *input == "" {
		log.Fatal("❌ Please provide a carrier with -in")
	}
	if *name == "" {
		*name = filepath.Base(*input)
	}

	fmt.Println("\n🚀 CARRIER UPLOADER")

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("❌ Error reading carrier: %v", err)
	}

	// Fail early instead of shipping a file the relay will reject.
	file, err := os.Open(*input)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	img, err := netpbm.Decode(file)
	file.Close()
	if err != nil {
		log.Fatalf("❌ %s is not a Netpbm image: %v", *input, err)
	}

	fmt.Printf("📷 Carrier: %s (%s %dx%d, %d bytes)\n", *input, img.Format, img.Width, img.Height, len(data))
	fmt.Printf("   Uploading to: %s\n", *api)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := relay.Upload(ctx, *api, *name, data)
	if err != nil {
		log.Fatalf("❌ Upload failed: %v", err)
	}

	fmt.Printf("\n✅ Upload successful!\n")
	fmt.Printf("   Carrier ID: %s\n", result.ID)
	fmt.Printf("   Chunks:     %d\n", result.Chunks)
	fmt.Printf("\nExample receiver command:\n")
	fmt.Printf("  stg-fetch -id %s -unhide\n", result.ID)
}
