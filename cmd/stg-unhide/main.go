package main

import (
	"flag"
	"fmt"
	"github.com/faanross/simulacra_ppm/internal/netpbm"
	"github.com/faanross/simulacra_ppm/internal/spec"
	"github.com/faanross/simulacra_ppm/internal/steg"
	"golang.org/x/term"
	"io"
	"log"
	"os"
	"strings"
)

func main() {
	inputFile := flag.String("in", "", "Stego image (PPM/PGM)")
	outputFile := flag.String("out", "", "Write the message to a file instead of stdout")
	magic := flag.String("magic", spec.MAGIC, "Marker expected before the message")
	analyze := flag.Bool("analyze", false, "Show LSB statistics")
	flag.Parse()

	if *inputFile == "" {
		log.Fatal("❌ Please provide a stego image with -in")
	}

	codec, err := steg.New(steg.WithMagic(*magic))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	file, err := os.Open(*inputFile)
	if err != nil {
		log.Fatalf("❌ Error opening image: %v", err)
	}
	img, err := netpbm.Decode(file)
	file.Close()
	if err != nil {
		log.Fatalf("❌ Error reading image: %v", err)
	}

	// Banners only for a person at a terminal, raw text for pipes.
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	if *analyze {
		printReport(reportOutput(interactive), codec.Analyze(img.Pixels))
	}

	message, err := codec.Unhide(img)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(message), 0644); err != nil {
			log.Fatalf("❌ Error writing message: %v", err)
		}
		fmt.Printf("✅ Recovered %d bytes to %s\n", len(message), *outputFile)
		return
	}

	if !interactive {
		fmt.Print(message)
		return
	}

	fmt.Println("\n🔓 Recovered message")
	fmt.Println("=" + strings.Repeat("=", 40))
	fmt.Println(message)
}

// reportOutput keeps the analysis out of piped message output.
func reportOutput(interactive bool) io.Writer {
	if interactive {
		return os.Stdout
	}
	return os.Stderr
}

func printReport(w io.Writer, r steg.Report) {
	fmt.Fprintln(w, "\n🔬 LSB analysis")
	fmt.Fprintf(w, "   Pixel bytes:   %d\n", r.PixelBytes)
	fmt.Fprintf(w, "   LSB zeros:     %d (%.1f%%)\n", r.Zeros, r.ZeroRatio())
	fmt.Fprintf(w, "   LSB ones:      %d\n", r.Ones)
	fmt.Fprintf(w, "   Byte entropy:  %.3f bits\n", r.Entropy)
	fmt.Fprintf(w, "   Capacity:      %d bytes\n", r.Capacity)
	switch {
	case r.PayloadSize >= 0:
		fmt.Fprintf(w, "   Payload:       %d bytes\n", r.PayloadSize)
	case r.HasMessage:
		fmt.Fprintln(w, "   Payload:       marker found, no terminator")
	default:
		fmt.Fprintln(w, "   Payload:       none found")
	}
	if r.LooksRandom() {
		fmt.Fprintln(w, "   ✅ LSB plane looks random")
	} else {
		fmt.Fprintln(w, "   ⚠️  LSB plane is biased")
	}
	fmt.Fprintln(w)
}
