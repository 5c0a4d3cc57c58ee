package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ini/ini"
	"github.com/spf13/cast"
)

// Environment variable names.
const (
	EnvURL           = "TURSO_DATABASE_URL"
	EnvToken         = "TURSO_AUTH_TOKEN"
	EnvBatchSize     = "MEGATABLE_BATCH_SIZE"
	EnvConcurrency   = "MEGATABLE_CONCURRENCY"
	EnvRetries       = "MEGATABLE_RETRIES"
	EnvBackoff       = "MEGATABLE_BACKOFF"
	EnvRateLimit     = "MEGATABLE_RATE_LIMIT"
	EnvAddr          = "MEGATABLE_ADDR"
	EnvTimeout       = "MEGATABLE_TIMEOUT"
	EnvCaseSensitive = "MEGATABLE_CASE_SENSITIVE"
	EnvMaxLimit      = "MEGATABLE_MAX_LIMIT"
	EnvDetailCache   = "MEGATABLE_DETAIL_CACHE"
	EnvLogFormat     = "MEGATABLE_LOG_FORMAT"
	EnvLogLevel      = "MEGATABLE_LOG_LEVEL"
	EnvConfig        = "MEGATABLE_CONFIG"
)

// EnvProvider reads the process environment.
type EnvProvider struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Name implements Provider.
func (p *EnvProvider) Name() string {
	return "env"
}

// Load implements Provider.
func (p *EnvProvider) Load() (*Settings, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return fromVars(func(k string) string {
		v, _ := lookup(k)
		return v
	})
}

// DotenvProvider reads KEY=VALUE lines from a .env file using the same
// variable names as EnvProvider. A missing file yields nothing.
type DotenvProvider struct {
	Path string
}

// Name implements Provider.
func (p *DotenvProvider) Name() string {
	return "dotenv"
}

// Load implements Provider.
func (p *DotenvProvider) Load() (*Settings, error) {
	if p.Path == "" {
		return &Settings{}, nil
	}
	if _, err := os.Stat(p.Path); err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, err
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:       true,
		UnescapeValueDoubleQuotes: true,
	}, p.Path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.Path, err)
	}
	sec := f.Section(ini.DefaultSection)
	return fromVars(func(k string) string {
		return sec.Key(k).String()
	})
}

// fromVars maps variables onto Settings, parsing typed values.
func fromVars(get func(string) string) (*Settings, error) {
	s := &Settings{
		URL:   get(EnvURL),
		Token: get(EnvToken),
	}
	s.Server.Addr = get(EnvAddr)
	s.Log.Format = get(EnvLogFormat)
	s.Log.Level = get(EnvLogLevel)

	var errs []string
	toInt := func(key string, dst *int) {
		if v := get(key); v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q: not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	toInt(EnvBatchSize, &s.Ingest.BatchSize)
	toInt(EnvConcurrency, &s.Ingest.Concurrency)
	toInt(EnvRetries, &s.Ingest.Retries)
	toInt(EnvMaxLimit, &s.Server.MaxLimit)
	toInt(EnvDetailCache, &s.Server.DetailCache)

	if v := get(EnvBackoff); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q: not a duration", EnvBackoff, v))
		}
		s.Ingest.Backoff = d
	}
	if v := get(EnvTimeout); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q: not a duration", EnvTimeout, v))
		}
		s.Server.Timeout = d
	}
	if v := get(EnvRateLimit); v != "" {
		r, err := cast.ToFloat64E(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q: not a number", EnvRateLimit, v))
		}
		s.Ingest.RateLimit = r
	}
	if v := get(EnvCaseSensitive); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q: not a boolean", EnvCaseSensitive, v))
		}
		s.Server.CaseSensitive = b
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return s, nil
}
