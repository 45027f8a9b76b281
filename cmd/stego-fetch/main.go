package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/faanross/simulacra_bmp/internal/config"
	dnsserver "github.com/faanross/simulacra_bmp/internal/dns-server"
	"github.com/faanross/simulacra_bmp/internal/scrypto"
	"github.com/faanross/simulacra_bmp/internal/stego"
)

// ================================================================================
// DNS RECEIVER CLIENT - Retrieves a published stego BMP and optionally reveals it
// ================================================================================

func main() {
	cfg := config.Load()

	server := flag.String("server", "127.0.0.1"+cfg.DNS.Addr, "DNS server address (host:port)")
	domain := flag.String("domain", cfg.DNS.Domain, "Domain the image was published under")
	id := flag.String("id", "", "Message id printed by stego-serve")
	output := flag.String("output", "fetched.bmp", "Where to save the fetched image")
	parallel := flag.Int("parallel", 8, "Concurrent chunk queries")
	retries := flag.Int("retries", 3, "Retries per record")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall fetch timeout")
	reveal := flag.Bool("reveal", false, "Decrypt the hidden message after fetching")
	degree := flag.Int("degree", cfg.Stego.Degree, "Bits per pixel byte used when encoding")
	count := flag.Int("count", 0, "Blob length for raw-mode images (0 reads the length prefix)")
	password := flag.String("password", "", "Password (env or prompt if not provided)")
	flag.Parse()

	if *id == "" {
		log.Fatal("❌ Please provide the message id with -id")
	}

	cfg.Stego.Degree = *degree
	cfg.DNS.Domain = *domain
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	fmt.Printf("\n📥 RETRIEVING MESSAGE: %s\n", *id)
	fmt.Printf("   Server: %s\n", *server)
	fmt.Printf("   Domain: %s\n", *domain)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	fetcher := dnsserver.NewFetcher(*server, *domain)
	fetcher.Concurrency = *parallel
	fetcher.MaxRetries = *retries
	fetcher.Logger = log.Default()

	start := time.Now()
	data, err := fetcher.Fetch(ctx, *id)
	if err != nil {
		log.Fatalf("❌ Retrieval failed: %v", err)
	}

	if err := stego.WriteFileAtomic(*output, data, 0644); err != nil {
		log.Fatalf("❌ Failed to save image: %v", err)
	}
	fmt.Printf("\n💾 Saved %d bytes to %s in %v\n", len(data), *output, time.Since(start).Round(time.Millisecond))

	if !*reveal {
		fmt.Printf("\n🔓 To decode: decoder -input %s -degree %d\n", *output, cfg.Stego.Degree)
		return
	}

	env := scrypto.NewEnvelope(cfg.Secrets(*password, false), cfg.KDF())
	s := stego.New(env, stego.Options{Degree: cfg.Stego.Degree})

	var message string
	if *count > 0 {
		message, err = s.RevealCount(data, *count)
	} else {
		message, err = s.Reveal(data)
	}
	if err != nil {
		log.Fatalf("❌ Decoding failed: %v", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("📝 DECRYPTED MESSAGE:")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", 60))
}
