package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/faanross/simulacra_bmp/internal/config"
	"github.com/faanross/simulacra_bmp/internal/cover"
	"github.com/faanross/simulacra_bmp/internal/scrypto"
	"github.com/faanross/simulacra_bmp/internal/stego"
)

func main() {
	cfg := config.Load()

	// Command line arguments
	inputFile := flag.String("input", "", "Path to cover BMP image")
	outputFile := flag.String("output", "encoded.bmp", "Output BMP file")
	message := flag.String("message", "", "Message to hide")
	textFile := flag.String("file", "", "Read message from text file")
	degree := flag.Int("degree", cfg.Stego.Degree, "Bits per pixel byte (1, 2, 4 or 8)")
	raw := flag.Bool("raw", !cfg.Stego.Framed, "Embed without length prefix (decoder needs -count)")
	password := flag.String("password", "", "Password (env or prompt if not provided)")
	verbose := flag.Bool("verbose", false, "Show progress")

	flag.Parse()

	cfg.Stego.Degree = *degree
	cfg.Stego.Framed = !*raw
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Validate input
	if *inputFile == "" {
		log.Fatal("❌ Please provide cover image with -input flag")
	}

	text := *message
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			log.Fatalf("❌ Error reading file: %v", err)
		}
		text = string(data)
	}
	if text == "" {
		log.Fatal("❌ Please provide a message with -message or -file")
	}

	fmt.Println("\n🔐 BMP Steganography Encoder")
	fmt.Println("=" + strings.Repeat("=", 40))
	fmt.Printf("\n📄 Message: %d bytes\n", len(text))

	if data, err := os.ReadFile(*inputFile); err == nil {
		if info, err := cover.Inspect(data); err == nil {
			fmt.Printf("📷 Cover: %s (%dx%d, %d bpp, %d bytes)\n",
				*inputFile, info.Width, info.Height, info.BitsPerPixel, info.FileSize)
			if !info.Standard() {
				fmt.Println("   ⚠️  Not a plain 24-bit BMP with a 54-byte header; output may not display")
			}
		}
	}

	opts := stego.Options{Degree: cfg.Stego.Degree, Framed: cfg.Stego.Framed}
	if *verbose {
		opts.Logger = log.Default()
	}

	env := scrypto.NewEnvelope(cfg.Secrets(*password, true), cfg.KDF())
	result, err := stego.New(env, opts).HideFile(*inputFile, *outputFile, text)
	if err != nil {
		log.Fatalf("❌ Encoding failed: %v", err)
	}

	fmt.Println(result.Report)

	fmt.Printf("\n✅ Steganography complete!\n")
	fmt.Printf("   Output: %s\n", *outputFile)
	fmt.Printf("   Security: %s\n", cfg.KDF())
	if cfg.Stego.Framed {
		fmt.Printf("\n🔓 To decode: decoder -input %s -degree %d\n", *outputFile, cfg.Stego.Degree)
	} else {
		fmt.Printf("\n🔓 To decode: decoder -input %s -degree %d -count %d\n",
			*outputFile, cfg.Stego.Degree, result.BlobLen)
	}
}
