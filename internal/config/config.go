package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/faanross/simulacra_bmp/internal/bitmask"
	"github.com/faanross/simulacra_bmp/internal/scrypto"
	"github.com/faanross/simulacra_bmp/internal/spec"
)

// Config holds all application configuration
type Config struct {
	Stego  StegoConfig
	Crypto CryptoConfig
	DNS    DNSConfig
}

// StegoConfig holds embedding configuration
type StegoConfig struct {
	Degree int
	Framed bool
}

// CryptoConfig holds envelope configuration
type CryptoConfig struct {
	Iterations  int
	KeySize     int
	Hash        string
	PasswordEnv string // Name of the variable holding the password
}

// DNSConfig holds covert transport configuration
type DNSConfig struct {
	Domain    string
	Addr      string
	StoreFile string // Empty means in-memory storage
	TTL       int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Stego: StegoConfig{
			Degree: getEnvInt("STEGO_DEGREE", spec.DEFAULT_DEGREE),
			Framed: getEnvBool("STEGO_FRAMED", spec.DEFAULT_FRAMED),
		},
		Crypto: CryptoConfig{
			Iterations:  getEnvInt("STEGO_PBKDF2_ITERS", spec.PBKDF2_ITERS),
			KeySize:     getEnvInt("STEGO_KEY_SIZE", spec.KEY_SIZE),
			Hash:        getEnv("STEGO_KDF_HASH", scrypto.HASH_SHA1),
			PasswordEnv: getEnv("STEGO_PASSWORD_ENV", "STEGO_PASSWORD"),
		},
		DNS: DNSConfig{
			Domain:    getEnv("STEGO_DNS_DOMAIN", "covert.example.com"),
			Addr:      getEnv("STEGO_DNS_ADDR", spec.DEFAULT_DNS_PORT),
			StoreFile: getEnv("STEGO_DNS_STORE", ""),
			TTL:       getEnvInt("STEGO_DNS_TTL", spec.DEFAULT_TXT_TTL),
		},
	}
}

// KDF builds the key derivation settings
func (c *Config) KDF() scrypto.KDFConfig {
	return scrypto.KDFConfig{
		Iterations: c.Crypto.Iterations,
		KeySize:    c.Crypto.KeySize,
		Hash:       c.Crypto.Hash,
	}
}

// Secrets picks the password source: an explicit value wins, then the
// configured environment variable, then an interactive prompt.
func (c *Config) Secrets(explicit string, confirm bool) scrypto.SecretProvider {
	if explicit != "" {
		return scrypto.StaticSecret(explicit)
	}
	if value, ok := os.LookupEnv(c.Crypto.PasswordEnv); ok && value != "" {
		return scrypto.EnvSecret(c.Crypto.PasswordEnv)
	}
	return &scrypto.TerminalSecret{
		Prompt:    "🔑 Enter password: ",
		Confirm:   confirm,
		MinLength: 1,
	}
}

// Validate checks values that would otherwise fail deep inside the codec
func (c *Config) Validate() error {
	if err := bitmask.ValidateDegree(c.Stego.Degree); err != nil {
		return err
	}
	if err := c.KDF().Validate(); err != nil {
		return err
	}
	if c.DNS.Domain == "" {
		return fmt.Errorf("dns domain must not be empty")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`
Stego: degree=%d framed=%v
Crypto: %s (password from $%s)
DNS: %s on %s (store=%q, ttl=%ds)`,
		c.Stego.Degree, c.Stego.Framed,
		c.KDF(), c.Crypto.PasswordEnv,
		c.DNS.Domain, c.DNS.Addr, c.DNS.StoreFile, c.DNS.TTL,
	)
}
