package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/faanross/simulacra_bmp/internal/chunker"
	"github.com/faanross/simulacra_bmp/internal/config"
	"github.com/faanross/simulacra_bmp/internal/cover"
	dnsserver "github.com/faanross/simulacra_bmp/internal/dns-server"
)

// ================================================================================
// DNS PUBLISHER - Serves stego BMPs as TXT records
// ================================================================================

func newStorage(storeFile string) dnsserver.Storage {
	if storeFile == "" {
		log.Println("💾 Using in-memory storage")
		return dnsserver.NewMemoryStorage()
	}

	log.Printf("📁 Using persistent storage (%s)", storeFile)
	storage, err := dnsserver.NewFileStorage(storeFile, log.Default())
	if err != nil {
		log.Fatalf("❌ Failed to create file storage: %v", err)
	}
	return storage
}

func printStats(storage dnsserver.Storage) {
	stats := storage.GetStats()
	fmt.Printf("\n📊 Storage Statistics:\n")
	fmt.Printf("   Total messages: %d\n", stats.TotalMessages)
	fmt.Printf("   New (unfetched): %d\n", stats.NewMessages)
	fmt.Printf("   Delivered: %d\n", stats.Delivered)
	fmt.Printf("   Total chunks: %d\n", stats.TotalChunks)

	messages, _ := storage.ListMessages()
	if len(messages) > 0 {
		fmt.Println("\n📬 Stored Messages:")
		for _, m := range messages {
			fmt.Printf("   %s: %d chunks, status=%s, fetched %d times by %d clients\n",
				m.ID, m.TotalChunks, strings.ToUpper(m.State.String()), m.Fetches, len(m.Consumers))
		}
	}
}

func main() {
	cfg := config.Load()

	domain := flag.String("domain", cfg.DNS.Domain, "Domain to serve")
	addr := flag.String("addr", cfg.DNS.Addr, "Listen address")
	store := flag.String("store", cfg.DNS.StoreFile, "Persistent storage file (empty for in-memory)")
	ttl := flag.Int("ttl", cfg.DNS.TTL, "TXT record TTL in seconds")
	publish := flag.String("publish", "", "Comma-separated stego BMP files to publish")
	zoneOut := flag.String("zone-out", "", "Also write published records to this zone file")
	cleanInterval := flag.Duration("clean", 1*time.Hour, "Cleanup interval for old messages")
	flushInterval := flag.Duration("flush", 30*time.Second, "How often delivery tracking is written to the store file")
	flag.Parse()

	cfg.DNS.Domain = *domain
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	storage := newStorage(*store)
	server := dnsserver.NewServer(*domain, storage, *ttl, log.Default())

	var records []chunker.DNSRecord
	for _, path := range strings.Split(*publish, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("❌ Failed to read %s: %v", path, err)
		}
		if info, err := cover.Inspect(data); err != nil {
			log.Printf("⚠️  %s: %v (publishing anyway)", path, err)
		} else {
			log.Printf("📷 %s: %dx%d BMP, %d bytes", path, info.Width, info.Height, info.FileSize)
		}

		msg, err := server.Publish(data)
		if err != nil {
			log.Fatalf("❌ Failed to publish %s: %v", path, err)
		}
		fmt.Printf("📤 %s → id %s (fetch m-%s.%s)\n", path, msg.Label(), msg.Label(), server.Domain())

		records = append(records, chunker.Records(msg, server.Domain(), *ttl)...)
	}

	if *zoneOut != "" && len(records) > 0 {
		zone := chunker.GenerateZoneFile(records, server.Domain())
		if err := os.WriteFile(*zoneOut, []byte(zone), 0644); err != nil {
			log.Fatalf("❌ Failed to write zone file: %v", err)
		}
		log.Printf("📝 Wrote %d records to %s", len(records), *zoneOut)
	}

	// Start cleanup goroutine
	go func() {
		ticker := time.NewTicker(*cleanInterval)
		defer ticker.Stop()
		for range ticker.C {
			if removed := storage.CleanExpired(*cleanInterval); removed > 0 {
				log.Printf("🧹 Cleaned %d expired messages", removed)
			}
		}
	}()

	// Delivery tracking is kept in memory between flushes
	if fs, ok := storage.(*dnsserver.FileStorage); ok {
		go func() {
			ticker := time.NewTicker(*flushInterval)
			defer ticker.Stop()
			for range ticker.C {
				if err := fs.Flush(); err != nil {
					log.Printf("❌ Failed to flush state: %v", err)
				}
			}
		}()
	}

	printStats(storage)

	// Handle shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		fmt.Println("\n🛑 Shutting down...")
		printStats(storage)

		if fs, ok := storage.(*dnsserver.FileStorage); ok {
			if err := fs.Save(); err != nil {
				log.Printf("Failed to save state: %v", err)
			} else {
				log.Println("💾 State saved to disk")
			}
		}

		if err := server.Shutdown(); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	fmt.Printf("\n🌐 DNS publisher starting on %s\n", *addr)
	fmt.Printf("📍 Domain: %s\n", server.Domain())
	fmt.Printf("🧹 Cleanup: Every %v\n", *cleanInterval)
	fmt.Println("\n✅ Server ready!")

	if err := server.ListenAndServe(*addr); err != nil {
		log.Fatalf("❌ DNS server failed: %v", err)
	}
}
