package dnsserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"github.com/faanross/simulacra_bmp/internal/chunker"
)

// ================================================================================
// DNS RECEIVER - Retrieves published stego images
// ================================================================================

// Fetcher retrieves a published image by querying its TXT records
type Fetcher struct {
	Server      string // host:port of the DNS server
	Domain      string
	Concurrency int // Parallel chunk queries
	MaxRetries  int
	RetryDelay  time.Duration
	Logger      *log.Logger

	client *dns.Client
}

// NewFetcher creates a fetcher with sensible defaults
func NewFetcher(server, domain string) *Fetcher {
	return &Fetcher{
		Server:      server,
		Domain:      domain,
		Concurrency: 8,
		MaxRetries:  3,
		RetryDelay:  200 * time.Millisecond,
		client:      &dns.Client{Net: "udp", Timeout: 5 * time.Second},
	}
}

// Fetch retrieves the manifest, then all chunks in parallel, and returns the
// reassembled image once both per-chunk and whole-message checksums pass.
func (f *Fetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	logger := f.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	value, err := f.queryWithRetry(ctx, chunker.ManifestName(id, f.Domain))
	if err != nil {
		return nil, fmt.Errorf("manifest fetch failed: %w", err)
	}
	manifest, err := chunker.ParseManifest(value)
	if err != nil {
		return nil, err
	}
	logger.Printf("📋 Manifest: %d chunks, crc32 %08x", manifest.TotalChunks, manifest.Checksum)

	chunks := make([]chunker.Chunk, manifest.TotalChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.Concurrency, 1))

	for i := 0; i < manifest.TotalChunks; i++ {
		i := i
		g.Go(func() error {
			encoded, err := f.queryWithRetry(gctx, chunker.ChunkName(i, id, f.Domain))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}

			chunk, err := chunker.Decode(encoded)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if int(chunk.Metadata.Sequence) != i || int(chunk.Metadata.TotalChunks) != manifest.TotalChunks {
				return fmt.Errorf("chunk %d: served out of place (seq %d of %d)",
					i, chunk.Metadata.Sequence, chunk.Metadata.TotalChunks)
			}

			chunks[i] = *chunk
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Printf("📦 Retrieved %d chunks", len(chunks))

	data, err := chunker.Reassemble(chunks)
	if err != nil {
		return nil, fmt.Errorf("reassembly failed: %w", err)
	}
	if err := manifest.Verify(data); err != nil {
		return nil, err
	}

	logger.Printf("✅ Reassembled %d bytes", len(data))
	return data, nil
}

// queryWithRetry retries transient failures. NXDOMAIN is final.
func (f *Fetcher) queryWithRetry(ctx context.Context, name string) (string, error) {
	var err error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * f.RetryDelay):
			}
		}

		var value string
		value, err = f.query(ctx, name)
		if err == nil || errors.Is(err, ErrNotFound) {
			return value, err
		}
	}
	return "", err
}

func (f *Fetcher) query(ctx context.Context, name string) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	client := f.client
	if client == nil {
		client = &dns.Client{Net: "udp", Timeout: 5 * time.Second}
	}

	resp, _, err := client.ExchangeContext(ctx, m, f.Server)
	if err != nil {
		return "", err
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	default:
		return "", fmt.Errorf("%s: %s", name, dns.RcodeToString[resp.Rcode])
	}

	for _, ans := range resp.Answer {
		if txt, ok := ans.(*dns.TXT); ok && len(txt.Txt) > 0 {
			return strings.Join(txt.Txt, ""), nil
		}
	}
	return "", fmt.Errorf("%s: no TXT answer", name)
}
