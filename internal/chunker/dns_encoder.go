package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DNSRecord represents a TXT record ready for serving
type DNSRecord struct {
	Name  string
	Value string
	TTL   int
}

// ChunkName returns the record name for chunk seq of a message
func ChunkName(seq int, label, domain string) string {
	return fmt.Sprintf("c-%d-%s.%s", seq, label, strings.TrimSuffix(domain, "."))
}

// ManifestName returns the record name of a message manifest
func ManifestName(label, domain string) string {
	return fmt.Sprintf("m-%s.%s", label, strings.TrimSuffix(domain, "."))
}

// Query is a parsed record name
type Query struct {
	Manifest bool
	Sequence int
	Label    string
}

// ParseName splits a query name under domain into its parts. Names are
// matched case-insensitively and may be fully qualified.
func ParseName(name, domain string) (Query, error) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	suffix := "." + strings.ToLower(strings.TrimSuffix(domain, "."))
	if !strings.HasSuffix(name, suffix) {
		return Query{}, fmt.Errorf("%q is outside %q", name, domain)
	}

	host := strings.TrimSuffix(name, suffix)
	if strings.Contains(host, ".") {
		return Query{}, fmt.Errorf("unexpected subdomain %q", host)
	}

	switch {
	case strings.HasPrefix(host, "m-"):
		label := host[2:]
		if label == "" {
			return Query{}, fmt.Errorf("empty manifest label")
		}
		return Query{Manifest: true, Label: label}, nil

	case strings.HasPrefix(host, "c-"):
		parts := strings.SplitN(host[2:], "-", 2)
		if len(parts) != 2 || parts[1] == "" {
			return Query{}, fmt.Errorf("invalid chunk name %q", host)
		}
		seq, err := strconv.Atoi(parts[0])
		if err != nil || seq < 0 {
			return Query{}, fmt.Errorf("invalid chunk sequence %q", parts[0])
		}
		return Query{Sequence: seq, Label: parts[1]}, nil
	}

	return Query{}, fmt.Errorf("unknown record %q", host)
}

// Records converts a chunked message into its TXT records, manifest first
func Records(msg *Message, domain string, ttl int) []DNSRecord {
	label := msg.Label()
	records := make([]DNSRecord, 0, len(msg.Chunks)+1)

	records = append(records, DNSRecord{
		Name:  ManifestName(label, domain),
		Value: msg.Manifest(),
		TTL:   ttl,
	})

	for _, chunk := range msg.Chunks {
		records = append(records, DNSRecord{
			Name:  ChunkName(int(chunk.Metadata.Sequence), label, domain),
			Value: chunk.Encoded,
			TTL:   ttl,
		})
	}

	return records
}

// GenerateZoneFile creates a BIND-compatible zone file
func GenerateZoneFile(records []DNSRecord, domain string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; Zone file for %s\n", domain))
	sb.WriteString(fmt.Sprintf("; Generated: %s\n", time.Now().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("; Records: %d\n\n", len(records)))

	sb.WriteString(fmt.Sprintf("$ORIGIN %s.\n", strings.TrimSuffix(domain, ".")))
	sb.WriteString("$TTL 300\n\n")

	for _, record := range records {
		sb.WriteString(fmt.Sprintf("%s.\t%d\tIN\tTXT\t\"%s\"\n",
			record.Name, record.TTL, escapeTXTValue(record.Value)))
	}

	return sb.String()
}

// escapeTXTValue escapes special characters for zone files
func escapeTXTValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return value
}
