package relay

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faanross/simulacra_ppm/internal/spec"
)

// Config holds the relay server settings.
type Config struct {
	Domain    string        `yaml:"domain"`
	Addr      string        `yaml:"addr"`       // DNS listen address, UDP and TCP
	HTTPAddr  string        `yaml:"http_addr"`  // Empty disables the HTTP API
	TTL       uint32        `yaml:"ttl"`        // Seconds, for manifest and chunk records
	StoreFile string        `yaml:"store_file"` // Empty keeps carriers in memory
	Expire    time.Duration `yaml:"expire"`     // Carrier lifetime, 0 keeps forever
	Publish   []string      `yaml:"publish"`    // Carrier files published at start
	Zone      string        `yaml:"zone"`       // Zone file loaded at start
	Verbose   bool          `yaml:"verbose"`
}

// DefaultConfig returns the built in settings.
func DefaultConfig() Config {
	return Config{
		Domain:   spec.DEFAULT_DOMAIN,
		Addr:     spec.DEFAULT_ADDR,
		HTTPAddr: spec.DEFAULT_HTTP,
		TTL:      spec.DEFAULT_TTL,
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(filename string) (Config, error) {
	conf := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return conf, err
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return conf, conf.Validate()
}

// SaveConfig writes conf as YAML.
func SaveConfig(filename string, conf Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	if c.Domain == "" {
		return errors.New("config: domain is required")
	}
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.Expire < 0 {
		return fmt.Errorf("config: negative expire %v", c.Expire)
	}
	return nil
}

// OpenStore returns the store the config asks for.
func (c Config) OpenStore() (Store, error) {
	if c.StoreFile == "" {
		return NewMemoryStore(), nil
	}
	return NewFileStore(c.StoreFile)
}
