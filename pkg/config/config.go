// Package config loads service configuration from a YAML file and
// overlays environment variables. Later layers win: defaults, then the
// file, then the environment (prefix TALES, e.g. TALES_HTTP_PORT).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound = errors.New("config: file not found")
	ErrInvalid  = errors.New("config: invalid")
)

const envPrefix = "tales"

// Duration reads the "1h30m" form from both YAML and the environment.
// The standard library type decodes from neither.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root service configuration.
type Config struct {
	Service     string `yaml:"service"`
	Environment string `yaml:"environment"`

	HTTP HTTP `yaml:"http"`
	Auth Auth `yaml:"auth"`
	Log  Log  `yaml:"log"`
}

// HTTP configures the listener.
type HTTP struct {
	Addr            string   `yaml:"addr"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     Duration `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" split_words:"true"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes" split_words:"true"`
}

// Auth configures token generation and authorization.
type Auth struct {
	// Secret is the HMAC secret. Usually supplied via TALES_AUTH_SECRET
	// rather than the file.
	Secret string `yaml:"secret" json:"-"`

	Issuer          string   `yaml:"issuer"`
	Algorithm       string   `yaml:"algorithm"`
	TokenTTL        Duration `yaml:"token_ttl" split_words:"true"`
	CapabilityClaim string   `yaml:"capability_claim" split_words:"true"`
	CapabilityFam   string   `yaml:"capability_family" split_words:"true"`
	Capabilities    []string `yaml:"capabilities"`

	// Revocation selects the deny-list backend: empty for in-memory,
	// otherwise a database/sql driver name plus DSN.
	RevocationDriver string `yaml:"revocation_driver" split_words:"true"`
	RevocationDSN    string `yaml:"revocation_dsn" split_words:"true" json:"-"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Service:     "tales",
		Environment: "local",
		HTTP: HTTP{
			Addr:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxBodyBytes:    1 << 20,
		},
		Auth: Auth{
			Algorithm:       "HS256",
			TokenTTL:        Duration(time.Hour),
			CapabilityClaim: "ops_caps",
			CapabilityFam:   "ops",
			Capabilities:    []string{"read", "write", "admin"},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads configuration. Path may be empty, in which case only the
// defaults and the environment apply. Unknown file keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return Config{}, fmt.Errorf("%w: reading %s: %v", ErrInvalid, path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: environment: %v", ErrInvalid, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service == "" {
		return fmt.Errorf("%w: service name required", ErrInvalid)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http port %d out of range", ErrInvalid, c.HTTP.Port)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("%w: token ttl must be non-negative", ErrInvalid)
	}
	switch c.Auth.Algorithm {
	case "", "none", "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("%w: unknown signing algorithm %q", ErrInvalid, c.Auth.Algorithm)
	}
	if c.Auth.CapabilityClaim == "" || c.Auth.CapabilityFam == "" {
		return fmt.Errorf("%w: capability claim and family required", ErrInvalid)
	}
	return nil
}
