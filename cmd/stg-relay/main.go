package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/faanross/simulacra_ppm/internal/relay"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

func main() {
	configFile := flag.String("config", "", "YAML config file")
	domain := flag.String("domain", "", "Domain to serve")
	addr := flag.String("addr", "", "DNS listen address (UDP and TCP)")
	httpAddr := flag.String("http", "", "HTTP API address, \"off\" disables it")
	ttl := flag.Uint("ttl", 0, "TTL of manifest and chunk records, seconds")
	storeFile := flag.String("store", "", "Persist carriers to this JSON file")
	expire := flag.Duration("expire", 0, "Withdraw carriers older than this")
	publish := flag.String("publish", "", "Comma separated carrier files to publish at start")
	zoneFile := flag.String("zone", "", "Zone file to load at start")
	exportZone := flag.String("export-zone", "", "Write the zone of all carriers to this file and exit")
	verbose := flag.Bool("v", false, "Log every query")
	flag.Parse()

	conf := relay.DefaultConfig()
	if *configFile != "" {
		var err error
		if conf, err = relay.LoadConfig(*configFile); err != nil {
			log.Fatalf("❌ Config error: %v", err)
		}
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "domain":
			conf.Domain = *domain
		case "addr":
			conf.Addr = *addr
		case "http":
			conf.HTTPAddr = *httpAddr
		case "ttl":
			conf.TTL = uint32(*ttl)
		case "store":
			conf.StoreFile = *storeFile
		case "expire":
			conf.Expire = *expire
		case "publish":
			conf.Publish = strings.Split(*publish, ",")
		case "zone":
			conf.Zone = *zoneFile
		case "v":
			conf.Verbose = *verbose
		}
	})
	if conf.HTTPAddr == "off" {
		conf.HTTPAddr = ""
	}
	if err := conf.Validate(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	store, err := conf.OpenStore()
	if err != nil {
		log.Fatalf("❌ Failed to open store: %v", err)
	}

	for _, path := range conf.Publish {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("❌ Error reading carrier: %v", err)
		}
		rec, err := relay.Publish(store, filepath.Base(path), data)
		if errors.Is(err, relay.ErrExists) {
			log.Printf("↪️  %s already published", path)
			continue
		}
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("📤 Published %s as %s (%d chunks)", path, rec.ID, len(rec.Chunks))
	}

	if conf.Zone != "" {
		if err := loadZone(store, conf.Zone, conf.Domain); err != nil {
			log.Fatalf("❌ Zone error: %v", err)
		}
	}

	if *exportZone != "" {
		f, err := os.Create(*exportZone)
		if err != nil {
			log.Fatalf("❌ Cannot create zone file: %v", err)
		}
		if err := relay.WriteZone(f, store.List(), conf.Domain, conf.TTL); err != nil {
			log.Fatalf("❌ Zone export failed: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("❌ Zone export failed: %v", err)
		}
		fmt.Printf("✅ Zone written to %s\n", *exportZone)
		return
	}

	var queryLog *log.Logger
	if conf.Verbose {
		queryLog = log.New(os.Stderr, "dns: ", log.LstdFlags)
	}
	handler := relay.NewServer(conf.Domain, store, conf.TTL, queryLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	servers := []*dns.Server{
		{Addr: conf.Addr, Net: "udp", Handler: handler},
		{Addr: conf.Addr, Net: "tcp", Handler: handler},
	}
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil {
				return fmt.Errorf("dns %s: %w", srv.Net, err)
			}
			return nil
		})
	}

	var api *http.Server
	if conf.HTTPAddr != "" {
		api = &http.Server{
			Addr:              conf.HTTPAddr,
			Handler:           relay.NewAPI(store, log.Default()).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
	}

	if conf.Expire > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(min(conf.Expire, time.Hour))
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if removed := store.CleanExpired(conf.Expire); removed > 0 {
						log.Printf("🧹 Withdrew %d expired carriers", removed)
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		fmt.Println("\n🛑 Shutting down...")
		for _, srv := range servers {
			srv.Shutdown()
		}
		if api != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			api.Shutdown(shutdownCtx)
		}
		return nil
	})

	printBanner(conf, store)

	if err := g.Wait(); err != nil {
		log.Printf("❌ %v", err)
	}

	printStats(store)
	if fs, ok := store.(*relay.FileStore); ok {
		if err := fs.Save(); err != nil {
			log.Printf("Failed to save state: %v", err)
		} else {
			log.Println("💾 State saved to disk")
		}
	}
}

func loadZone(store relay.Store, path, domain string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	recs, err := relay.LoadZone(f, domain)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		rec.Name = filepath.Base(path)
		if err := store.Put(rec); err != nil && !errors.Is(err, relay.ErrExists) {
			return err
		}
		log.Printf("✅ Loaded carrier %s from %s", rec.ID, path)
	}
	return nil
}

func printBanner(conf relay.Config, store relay.Store) {
	fmt.Printf("\n🌐 Carrier relay starting on %s (udp+tcp)\n", conf.Addr)
	fmt.Printf("📍 Domain: %s\n", conf.Domain)
	fmt.Printf("💾 Storage: ")
	if conf.StoreFile != "" {
		fmt.Printf("Persistent (%s)\n", conf.StoreFile)
	} else {
		fmt.Println("In-memory")
	}
	if conf.HTTPAddr != "" {
		fmt.Printf("📡 HTTP API: %s\n", conf.HTTPAddr)
	}
	if conf.Expire > 0 {
		fmt.Printf("🧹 Carriers expire after %v\n", conf.Expire)
	}
	printStats(store)
	fmt.Println("\n✅ Server ready!")
}

func printStats(store relay.Store) {
	stats := store.Stats()
	fmt.Printf("📊 %d carriers, %d chunks, %d bytes, %d chunk fetches\n",
		stats.Carriers, stats.Chunks, stats.Bytes, stats.Fetches)
}
