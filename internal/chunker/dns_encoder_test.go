package chunker

import (
	"strings"
	"testing"
)

func TestRecordNames(t *testing.T) {
	if got := ChunkName(3, "abcd", "covert.example.com."); got != "c-3-abcd.covert.example.com" {
		t.Errorf("ChunkName = %q", got)
	}
	if got := ManifestName("abcd", "covert.example.com"); got != "m-abcd.covert.example.com" {
		t.Errorf("ManifestName = %q", got)
	}
}

func TestParseName(t *testing.T) {
	const domain = "covert.example.com"

	tests := []struct {
		name    string
		query   string
		want    Query
		wantErr bool
	}{
		{"manifest", "m-0011aabb.covert.example.com.", Query{Manifest: true, Label: "0011aabb"}, false},
		{"chunk", "c-12-0011aabb.covert.example.com", Query{Sequence: 12, Label: "0011aabb"}, false},
		{"mixed case", "C-0-0011AABB.Covert.Example.COM.", Query{Sequence: 0, Label: "0011aabb"}, false},
		{"other domain", "m-0011aabb.example.org.", Query{}, true},
		{"nested", "c-1-x.data.covert.example.com.", Query{}, true},
		{"bad sequence", "c-one-x.covert.example.com.", Query{}, true},
		{"negative sequence", "c--1-x.covert.example.com.", Query{}, true},
		{"empty label", "m-.covert.example.com.", Query{}, true},
		{"unknown prefix", "x-1.covert.example.com.", Query{}, true},
		{"apex", "covert.example.com.", Query{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseName(tt.query, domain)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRecordsRoundTripNames(t *testing.T) {
	msg, err := NewChunker(0).Split(sampleImage(400))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	records := Records(msg, "covert.example.com", 300)
	if len(records) != len(msg.Chunks)+1 {
		t.Fatalf("records = %d, want %d", len(records), len(msg.Chunks)+1)
	}
	if records[0].Value != msg.Manifest() {
		t.Fatalf("first record should be the manifest, got %q", records[0].Value)
	}

	for i, r := range records[1:] {
		q, err := ParseName(r.Name, "covert.example.com")
		if err != nil {
			t.Fatalf("ParseName(%q) failed: %v", r.Name, err)
		}
		if q.Manifest || q.Sequence != i || q.Label != msg.Label() {
			t.Fatalf("record %d parsed as %+v", i, q)
		}
		if r.TTL != 300 {
			t.Fatalf("ttl = %d", r.TTL)
		}
	}
}

func TestGenerateZoneFile(t *testing.T) {
	records := []DNSRecord{
		{Name: "m-ab.covert.example.com", Value: `2:0000abcd:1`, TTL: 300},
		{Name: "c-0-ab.covert.example.com", Value: `quote"and\slash`, TTL: 60},
	}

	zone := GenerateZoneFile(records, "covert.example.com")

	for _, want := range []string{
		"$ORIGIN covert.example.com.",
		"m-ab.covert.example.com.\t300\tIN\tTXT\t\"2:0000abcd:1\"",
		`c-0-ab.covert.example.com.` + "\t60\tIN\tTXT\t" + `"quote\"and\\slash"`,
	} {
		if !strings.Contains(zone, want) {
			t.Errorf("zone file missing %q:\n%s", want, zone)
		}
	}
}
