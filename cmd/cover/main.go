package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/faanross/simulacra_bmp/internal/cover"
	"github.com/faanross/simulacra_bmp/internal/scrypto"
	"github.com/faanross/simulacra_bmp/internal/spec"
	"github.com/faanross/simulacra_bmp/internal/stego"
)

func main() {
	outputFile := flag.String("output", "cover.bmp", "Output BMP file")
	width := flag.Int("width", spec.DEFAULT_WIDTH, "Image width")
	height := flag.Int("height", spec.DEFAULT_HEIGHT, "Image height")
	inspect := flag.String("inspect", "", "Report capacity of an existing BMP instead")
	flag.Parse()

	var data []byte
	var err error

	if *inspect != "" {
		data, err = os.ReadFile(*inspect)
		if err != nil {
			log.Fatalf("❌ Error reading image: %v", err)
		}
	} else {
		data, err = cover.Generate(*width, *height, nil)
		if err != nil {
			log.Fatalf("❌ Cover generation failed: %v", err)
		}
		if err := stego.WriteFileAtomic(*outputFile, data, 0644); err != nil {
			log.Fatalf("❌ Cannot write output file: %v", err)
		}
		fmt.Printf("🎨 Generated %s\n", *outputFile)
	}

	info, err := cover.Inspect(data)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	fmt.Printf("\n📷 Image: %dx%d, %d bpp, pixel data at %d, %d bytes\n",
		info.Width, info.Height, info.BitsPerPixel, info.PixelOffset, info.FileSize)
	if !info.Standard() {
		fmt.Println("   ⚠️  Non-standard layout: embedding will overwrite header or palette bytes")
	}

	caps := info.Capacities()
	fmt.Println("\n📊 Capacity per degree:")
	fmt.Println("   " + strings.Repeat("-", 44))
	fmt.Printf("   %-7s %-12s %s\n", "Degree", "Symbols", "Max message (framed)")
	for _, d := range spec.Degrees {
		fmt.Printf("   %-7d %-12d %d bytes\n", d, caps[d], maxMessage(caps[d]-spec.LENGTH_PREFIX))
	}
}

// maxMessage returns the longest plaintext whose sealed blob fits in n symbols
func maxMessage(n int) int {
	if scrypto.SealedLen(0) > n {
		return 0
	}
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if scrypto.SealedLen(mid) <= n {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
