package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// FileProvider reads an HCL (or HCL-flavoured JSON, by .json suffix) file:
//
//	database {
//	  url   = "libsql://my-db.turso.io"
//	  token = env("TURSO_AUTH_TOKEN")
//	}
//	ingest {
//	  batch_size  = 150
//	  concurrency = 15
//	  retries     = 3
//	  backoff     = "1s"
//	}
//	server {
//	  addr           = ":8080"
//	  case_sensitive = false
//	}
//	log {
//	  format = "json"
//	}
//
// An empty Path disables the provider.
type FileProvider struct {
	Path string

	// Getenv backs the env() function. Defaults to os.Getenv.
	Getenv func(string) string
}

type fileConfig struct {
	Database *databaseBlock `hcl:"database,block"`
	Ingest   *ingestBlock   `hcl:"ingest,block"`
	Server   *serverBlock   `hcl:"server,block"`
	Log      *logBlock      `hcl:"log,block"`
}

type databaseBlock struct {
	URL   string `hcl:"url,optional"`
	Token string `hcl:"token,optional"`
}

type ingestBlock struct {
	BatchSize   int     `hcl:"batch_size,optional"`
	Concurrency int     `hcl:"concurrency,optional"`
	Retries     int     `hcl:"retries,optional"`
	Backoff     string  `hcl:"backoff,optional"`
	RateLimit   float64 `hcl:"rate_limit,optional"`
}

type serverBlock struct {
	Addr          string `hcl:"addr,optional"`
	Timeout       string `hcl:"timeout,optional"`
	CaseSensitive bool   `hcl:"case_sensitive,optional"`
	MaxLimit      int    `hcl:"max_limit,optional"`
	DetailCache   int    `hcl:"detail_cache,optional"`
}

type logBlock struct {
	Format string `hcl:"format,optional"`
	Level  string `hcl:"level,optional"`
}

// Name implements Provider.
func (p *FileProvider) Name() string {
	return "file"
}

// Load implements Provider.
func (p *FileProvider) Load() (*Settings, error) {
	if p.Path == "" {
		return &Settings{}, nil
	}
	if _, err := os.Stat(p.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", p.Path)
		}
		return nil, err
	}

	var fc fileConfig
	if err := hclsimple.DecodeFile(p.Path, p.evalContext(), &fc); err != nil {
		return nil, err
	}

	s := &Settings{}
	if d := fc.Database; d != nil {
		s.URL, s.Token = d.URL, d.Token
	}
	if in := fc.Ingest; in != nil {
		s.Ingest.BatchSize = in.BatchSize
		s.Ingest.Concurrency = in.Concurrency
		s.Ingest.Retries = in.Retries
		s.Ingest.RateLimit = in.RateLimit
		d, err := parseDuration("ingest.backoff", in.Backoff)
		if err != nil {
			return nil, err
		}
		s.Ingest.Backoff = d
	}
	if sv := fc.Server; sv != nil {
		s.Server.Addr = sv.Addr
		s.Server.CaseSensitive = sv.CaseSensitive
		s.Server.MaxLimit = sv.MaxLimit
		s.Server.DetailCache = sv.DetailCache
		d, err := parseDuration("server.timeout", sv.Timeout)
		if err != nil {
			return nil, err
		}
		s.Server.Timeout = d
	}
	if l := fc.Log; l != nil {
		s.Log.Format, s.Log.Level = l.Format, l.Level
	}
	return s, nil
}

func (p *FileProvider) evalContext() *hcl.EvalContext {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	envFunc := function.New(&function.Spec{
		Params: []function.Parameter{{Name: "name", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.StringVal(getenv(args[0].AsString())), nil
		},
	})
	return &hcl.EvalContext{
		Functions: map[string]function.Function{"env": envFunc},
	}
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
