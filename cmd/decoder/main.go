package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/faanross/simulacra_bmp/internal/config"
	"github.com/faanross/simulacra_bmp/internal/scrypto"
	"github.com/faanross/simulacra_bmp/internal/stego"
)

func main() {
	cfg := config.Load()

	// Command line arguments
	inputFile := flag.String("input", "", "Path to stego BMP image")
	outputFile := flag.String("output", "", "Save extracted message to file")
	degree := flag.Int("degree", cfg.Stego.Degree, "Bits per pixel byte used when encoding")
	count := flag.Int("count", 0, "Blob length for images embedded with -raw (0 reads the length prefix)")
	password := flag.String("password", "", "Password (env or prompt if not provided)")
	tryList := flag.String("trylist", "", "Comma-separated passwords to try")
	verbose := flag.Bool("verbose", false, "Show full extracted message")

	flag.Parse()

	cfg.Stego.Degree = *degree
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Validate input
	if *inputFile == "" {
		log.Fatal("❌ Please provide input image with -input flag")
	}

	fmt.Println("\n🔓 BMP Steganography Decoder")
	fmt.Println("=" + strings.Repeat("=", 40))
	fmt.Printf("\n📷 Image: %s (degree %d, ", *inputFile, cfg.Stego.Degree)
	if *count > 0 {
		fmt.Printf("%d symbols)\n", *count)
	} else {
		fmt.Println("framed)")
	}

	var opts stego.Options
	opts.Degree = cfg.Stego.Degree
	if *verbose {
		opts.Logger = log.Default()
	}

	var message string

	// Try multiple passwords mode
	if *tryList != "" {
		img, err := os.ReadFile(*inputFile)
		if err != nil {
			log.Fatalf("❌ Error reading image: %v", err)
		}

		passwords := strings.Split(*tryList, ",")
		opts.Logger = log.Default()

		var idx int
		message, idx, err = stego.TryPasswords(img, *count, passwords, opts, cfg.KDF())
		if err != nil {
			log.Fatalf("❌ Password sweep failed: %v", err)
		}
		fmt.Printf("\n🔑 Password #%d matched\n", idx+1)
	} else {
		env := scrypto.NewEnvelope(cfg.Secrets(*password, false), cfg.KDF())

		var err error
		message, err = stego.New(env, opts).RevealFile(*inputFile, *count)
		if err != nil {
			log.Fatalf("❌ Decoding failed: %v", err)
		}
	}

	// Display results
	fmt.Printf("\n✅ MESSAGE SUCCESSFULLY DECRYPTED\n")
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("📝 DECRYPTED MESSAGE:")
	fmt.Println(strings.Repeat("=", 60))

	if text, cut := preview(message, 500, 200); *verbose || !cut {
		fmt.Println(message)
	} else {
		fmt.Println(text)
		fmt.Printf("\n(Use -verbose flag to see full message)\n")
	}

	fmt.Println(strings.Repeat("=", 60))

	// Save to file if requested
	if *outputFile != "" {
		if err := stego.WriteFileAtomic(*outputFile, []byte(message), 0644); err != nil {
			log.Fatalf("❌ Error saving output: %v", err)
		}
		fmt.Printf("\n💾 Message saved to: %s\n", *outputFile)
	}
}

// preview shortens messages longer than limit runes to their first and last
// edge runes. Cuts fall on rune boundaries.
func preview(message string, limit, edge int) (string, bool) {
	runes := []rune(message)
	if len(runes) <= limit {
		return message, false
	}
	return fmt.Sprintf("%s\n... [%d more characters] ...\n%s",
		string(runes[:edge]),
		len(runes)-2*edge,
		string(runes[len(runes)-edge:])), true
}
