// Package config resolves runtime settings from a prioritized chain of
// providers: command-line flags, an HCL file, the process environment and a
// .env file, in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zerofisher/megatable/pkg/store"
)

// Defaults for tuning values no provider sets.
const (
	DefaultBatchSize   = 150
	DefaultConcurrency = 15
	DefaultRetries     = 3
	DefaultBackoff     = time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultAddr        = ":8080"
	DefaultStoreAddr   = ":8081"
	DefaultLogFormat   = "text"
	DefaultLogLevel    = "info"
)

// Settings is the resolved configuration. Providers return partially filled
// Settings; zero values mean "not set".
type Settings struct {
	// Connection. Both come from the same provider.
	URL   string
	Token string

	Ingest IngestSettings
	Server ServerSettings
	Log    LogSettings

	// Source names the provider that supplied URL and Token.
	Source string

	// Warnings lists load errors from lower-priority providers that were
	// skipped because a complete connection had already been found.
	Warnings []string

	missing []string
}

// IngestSettings tune the bulk loader.
type IngestSettings struct {
	BatchSize   int
	Concurrency int
	Retries     int
	Backoff     time.Duration
	RateLimit   float64 // statements per second, 0 = unlimited
}

// ServerSettings tune the HTTP API and the store client.
type ServerSettings struct {
	Addr          string
	Timeout       time.Duration // per store round-trip
	CaseSensitive bool
	MaxLimit      int
	DetailCache   int // entries, 0 = disabled
}

// LogSettings select the log handler.
type LogSettings struct {
	Format string
	Level  string
}

// HasConnection reports whether both URL and token are set.
func (s *Settings) HasConnection() bool {
	return s.URL != "" && s.Token != ""
}

// RequireConnection returns a *store.ConfigurationError naming what is
// missing when no provider supplied a complete connection.
func (s *Settings) RequireConnection() error {
	if s.HasConnection() {
		return nil
	}
	missing := s.missing
	if len(missing) == 0 {
		missing = missingFields(s)
	}
	return &store.ConfigurationError{Missing: missing}
}

// Provider yields a partial configuration.
type Provider interface {
	Name() string
	Load() (*Settings, error)
}

// Chain is an ordered list of providers, highest priority first.
type Chain []Provider

// Resolve queries every provider. The connection comes from the first
// provider yielding both URL and token; values are never mixed across
// providers. Each tuning value is taken from the first provider that sets it,
// then from the defaults. A connection that cannot be resolved is not an
// error here; see RequireConnection.
//
// A provider that fails to load is fatal only while no complete connection
// has been found. After that its error is recorded in Warnings and the
// provider contributes nothing.
func (c Chain) Resolve() (*Settings, error) {
	loaded := make([]*Settings, 0, len(c))
	var warnings []string
	connected := false
	for _, p := range c {
		s, err := p.Load()
		if err != nil {
			err = fmt.Errorf("load %s config: %w", p.Name(), err)
			if !connected {
				return nil, err
			}
			warnings = append(warnings, err.Error())
			continue
		}
		if s == nil {
			s = &Settings{}
		}
		s.URL = strings.TrimSpace(s.URL)
		s.Token = normalizeToken(s.Token)
		s.Source = p.Name()
		loaded = append(loaded, s)
		connected = connected || s.HasConnection()
	}

	out := &Settings{Warnings: warnings}
	for _, s := range loaded {
		if s.HasConnection() {
			out.URL, out.Token, out.Source = s.URL, s.Token, s.Source
			break
		}
	}
	if !out.HasConnection() {
		out.missing = []string{"database url", "auth token"}
		// Report against the highest-priority provider that set anything.
		for _, s := range loaded {
			if s.URL != "" || s.Token != "" {
				out.missing = missingFields(s)
				break
			}
		}
	}

	for _, s := range loaded {
		merge(out, s)
	}
	applyDefaults(out)
	return out, nil
}

// normalizeToken treats the literal "undefined" left behind by some hosting
// environments as absent.
func normalizeToken(t string) string {
	t = strings.TrimSpace(t)
	if t == "undefined" {
		return ""
	}
	return t
}

func missingFields(s *Settings) []string {
	var missing []string
	if s.URL == "" {
		missing = append(missing, "database url")
	}
	if s.Token == "" {
		missing = append(missing, "auth token")
	}
	return missing
}

// merge fills zero fields of dst from src.
func merge(dst, src *Settings) {
	firstInt(&dst.Ingest.BatchSize, src.Ingest.BatchSize)
	firstInt(&dst.Ingest.Concurrency, src.Ingest.Concurrency)
	firstInt(&dst.Ingest.Retries, src.Ingest.Retries)
	firstDuration(&dst.Ingest.Backoff, src.Ingest.Backoff)
	if dst.Ingest.RateLimit == 0 {
		dst.Ingest.RateLimit = src.Ingest.RateLimit
	}

	firstString(&dst.Server.Addr, src.Server.Addr)
	firstDuration(&dst.Server.Timeout, src.Server.Timeout)
	firstInt(&dst.Server.MaxLimit, src.Server.MaxLimit)
	firstInt(&dst.Server.DetailCache, src.Server.DetailCache)
	dst.Server.CaseSensitive = dst.Server.CaseSensitive || src.Server.CaseSensitive

	firstString(&dst.Log.Format, src.Log.Format)
	firstString(&dst.Log.Level, src.Log.Level)
}

func applyDefaults(s *Settings) {
	firstInt(&s.Ingest.BatchSize, DefaultBatchSize)
	firstInt(&s.Ingest.Concurrency, DefaultConcurrency)
	firstInt(&s.Ingest.Retries, DefaultRetries)
	firstDuration(&s.Ingest.Backoff, DefaultBackoff)
	firstString(&s.Server.Addr, DefaultAddr)
	firstDuration(&s.Server.Timeout, DefaultTimeout)
	firstString(&s.Log.Format, DefaultLogFormat)
	firstString(&s.Log.Level, DefaultLogLevel)
}

func firstInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func firstDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

func firstString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// ────────────────────────────────────────────────────────────────────────────────
// Static provider
// ────────────────────────────────────────────────────────────────────────────────

// Static provides fixed settings, typically gathered from command-line flags.
type Static struct {
	Label    string
	Settings Settings
}

// Name implements Provider.
func (p *Static) Name() string {
	if p.Label == "" {
		return "flags"
	}
	return p.Label
}

// Load implements Provider.
func (p *Static) Load() (*Settings, error) {
	s := p.Settings
	return &s, nil
}

// Default returns the standard chain: flags, then the HCL file at path (if
// any), then the process environment, then ./.env.
func Default(flags Settings, path string) Chain {
	return Chain{
		&Static{Label: "flags", Settings: flags},
		&FileProvider{Path: path},
		&EnvProvider{},
		&DotenvProvider{Path: ".env"},
	}
}
