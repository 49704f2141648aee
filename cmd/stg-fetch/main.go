package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"github.com/faanross/simulacra_ppm/internal/netpbm"
	"github.com/faanross/simulacra_ppm/internal/relay"
	"github.com/faanross/simulacra_ppm/internal/spec"
	"github.com/faanross/simulacra_ppm/internal/steg"
	"golang.org/x/term"
	"log"
	"os"
	"strings"
	"time"
)

// ProgressBar draws chunk progress on a terminal.
type ProgressBar struct {
	total   int
	current int
	enabled bool
}

func NewProgressBar(total int) *ProgressBar {
	return &ProgressBar{total: total, enabled: term.IsTerminal(int(os.Stdout.Fd()))}
}

func (pb *ProgressBar) Update(current int) {
	pb.current = current
	if !pb.enabled {
		return
	}
	percent := float64(pb.current) / float64(pb.total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	fmt.Printf("\r   [%s] %d/%d (%.1f%%)", bar, pb.current, pb.total, percent)
}

func (pb *ProgressBar) Finish() {
	if pb.enabled {
		fmt.Println()
	}
}

func main() {
	server := flag.String("server", "localhost"+spec.DEFAULT_ADDR, "Relay DNS server")
	domain := flag.String("domain", spec.DEFAULT_DOMAIN, "Relay domain")
	id := flag.String("id", "", "Carrier ID to fetch")
	output := flag.String("out", "", "Write the carrier image here")
	unhide := flag.Bool("unhide", false, "Extract the hidden message after fetching")
	magic := flag.String("magic", spec.MAGIC, "Marker expected before the message")
	list := flag.Bool("list", false, "List published carriers")
	workers := flag.Int("workers", spec.FETCH_WORKERS, "Concurrent chunk queries")
	timeout := flag.Duration("timeout", 5*time.Second, "Per query timeout")
	flag.Parse()

	fmt.Println("\n📡 CARRIER RELAY CLIENT")

	client := relay.NewClient(*server, *domain)
	client.Workers = *workers
	client.Timeout = *timeout
	ctx := context.Background()

	if *list {
		listings, err := client.List(ctx)
		if err != nil {
			log.Fatalf("❌ Listing failed: %v", err)
		}
		if len(listings) == 0 {
			fmt.Println("   No carriers published")
			return
		}
		fmt.Printf("\n%-18s %-24s %s\n", "ID", "NAME", "BYTES")
		for _, l := range listings {
			fmt.Printf("%-18s %-24s %d\n", l.ID, l.Name, l.Size)
		}
		return
	}

	if *id == "" {
		log.Fatal("❌ Please provide -id or -list")
	}
	if *output == "" && !*unhide {
		log.Fatal("❌ Nothing to do: provide -out and/or -unhide")
	}

	fmt.Printf("\n📥 RETRIEVING CARRIER: %s\n", *id)
	fmt.Printf("   Server: %s\n", *server)
	fmt.Printf("   Domain: %s\n", *domain)

	startTime := time.Now()
	var bar *ProgressBar
	data, err := client.Fetch(ctx, *id, func(done, total int) {
		if bar == nil {
			bar = NewProgressBar(total)
		}
		bar.Update(done)
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Fatalf("❌ Retrieval failed: %v", err)
	}
	fmt.Printf("   ✅ %d bytes in %v\n", len(data), time.Since(startTime).Round(time.Millisecond))

	if *output != "" {
		if err := os.WriteFile(*output, data, 0644); err != nil {
			log.Fatalf("❌ Error writing carrier: %v", err)
		}
		fmt.Printf("   💾 Saved to %s\n", *output)
	}

	if !*unhide {
		return
	}

	codec, err := steg.New(steg.WithMagic(*magic))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	img, err := netpbm.Decode(bytes.NewReader(data))
	if err != nil {
		log.Fatalf("❌ Carrier is not a Netpbm image: %v", err)
	}
	message, err := codec.Unhide(img)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("\n🔓 Recovered message")
	fmt.Println("=" + strings.Repeat("=", 40))
	fmt.Println(message)
}
