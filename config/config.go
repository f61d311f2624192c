// Package config loads the cookieguard YAML configuration and builds the
// middleware stack from it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vitalvas/cookieguard/forcedssl"
	"github.com/vitalvas/cookieguard/kernel"
	"github.com/vitalvas/cookieguard/signedcookie"
	"github.com/vitalvas/cookieguard/signer"
	"gopkg.in/yaml.v3"
)

// ErrNoSecret is returned when signed cookies are configured without a
// secret.
var ErrNoSecret = errors.New("config: signed_cookie.secret or signed_cookie.secret_env is required")

// Config is the root of the YAML document.
type Config struct {
	SignedCookie *SignedCookie `yaml:"signed_cookie"`
	ForcedSSL    *ForcedSSL    `yaml:"forced_ssl"`
}

// SignedCookie configures cookie signing.
type SignedCookie struct {
	// Names lists the signed cookie names; "*" selects all but the session
	// cookie.
	Names []string `yaml:"names"`

	// Secret is the signing key. SecretEnv names an environment variable
	// holding it instead.
	Secret    string `yaml:"secret"`
	SecretEnv string `yaml:"secret_env"`

	HashAlgo       string `yaml:"hash_algo"`
	LegacyHashAlgo string `yaml:"legacy_hash_algo"`

	SessionName string `yaml:"session_name"`

	// LegacySessionCookie keeps accepting session cookies signed by older
	// releases. Defaults to true.
	LegacySessionCookie *bool `yaml:"legacy_session_cookie"`
}

// ForcedSSL configures the HTTPS redirect and HSTS header.
type ForcedSSL struct {
	Enabled             bool     `yaml:"enabled"`
	HSTSMaxAge          *int     `yaml:"hsts_max_age"`
	HSTSSubdomains      bool     `yaml:"hsts_subdomains"`
	HSTSPreload         bool     `yaml:"hsts_preload"`
	AllowList           []string `yaml:"allow_list"`
	Hosts               []string `yaml:"hosts"`
	RedirectStatusCode  int      `yaml:"redirect_status_code"`
	TrustForwardedProto bool     `yaml:"trust_forwarded_proto"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document. Unknown keys are rejected. An empty
// document yields a configuration with nothing enabled.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Recorder receives events from both middlewares. *metrics.Prometheus
// implements it.
type Recorder interface {
	signedcookie.Recorder
	forcedssl.Recorder
}

// Options carries runtime dependencies that do not belong in the file.
type Options struct {
	Logger   *slog.Logger
	Recorder Recorder
}

// Middleware builds the configured middlewares, forced SSL first.
// Sections that are absent or disabled are skipped.
func (c *Config) Middleware(opts Options) (kernel.MiddlewareFunc, error) {
	var mws []kernel.MiddlewareFunc

	if c.ForcedSSL != nil && c.ForcedSSL.Enabled {
		mw, err := forcedssl.Middleware(c.ForcedSSL.config(opts))
		if err != nil {
			return nil, err
		}

		mws = append(mws, mw)
	}

	if c.SignedCookie != nil {
		sc, err := c.SignedCookie.Config(opts)
		if err != nil {
			return nil, err
		}

		mw, err := signedcookie.Middleware(sc)
		if err != nil {
			return nil, err
		}

		mws = append(mws, mw)
	}

	return kernel.Chain(mws...), nil
}

// Config converts the section into a signedcookie.Config, creating the
// signer.
func (s *SignedCookie) Config(opts Options) (signedcookie.Config, error) {
	secret := s.Secret
	if secret == "" && s.SecretEnv != "" {
		secret = os.Getenv(s.SecretEnv)
	}

	if secret == "" {
		return signedcookie.Config{}, ErrNoSecret
	}

	algo, err := signer.ParseAlgorithm(s.HashAlgo)
	if err != nil {
		return signedcookie.Config{}, err
	}

	signerOpts := []signer.Option{signer.WithAlgorithm(algo)}

	if s.LegacyHashAlgo != "" {
		legacy, err := signer.ParseAlgorithm(s.LegacyHashAlgo)
		if err != nil {
			return signedcookie.Config{}, fmt.Errorf("legacy_hash_algo: %w", err)
		}

		signerOpts = append(signerOpts, signer.WithLegacyAlgorithm(legacy))
	}

	sgn, err := signer.New([]byte(secret), signerOpts...)
	if err != nil {
		return signedcookie.Config{}, err
	}

	if err := signedcookie.ValidateNames(s.Names); err != nil {
		return signedcookie.Config{}, err
	}

	cfg := signedcookie.Config{
		Signer:      sgn,
		Policy:      signedcookie.NewNamePolicy(s.Names...),
		SessionName: s.SessionName,
		Logger:      opts.Logger,
		Recorder:    opts.Recorder,
	}

	if s.LegacySessionCookie != nil {
		cfg.DisableLegacySessionCookie = !*s.LegacySessionCookie
	}

	return cfg, nil
}

func (f *ForcedSSL) config(opts Options) forcedssl.Config {
	maxAge := forcedssl.DefaultHSTSMaxAge
	if f.HSTSMaxAge != nil {
		maxAge = *f.HSTSMaxAge
	}

	return forcedssl.Config{
		HSTSMaxAge:            maxAge,
		HSTSIncludeSubDomains: f.HSTSSubdomains,
		HSTSPreload:           f.HSTSPreload,
		AllowList:             f.AllowList,
		Hosts:                 f.Hosts,
		RedirectStatusCode:    f.RedirectStatusCode,
		TrustForwardedProto:   f.TrustForwardedProto,
		Recorder:              opts.Recorder,
	}
}
