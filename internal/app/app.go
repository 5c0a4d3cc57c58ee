// Package app provides application-level wiring shared by the CLI commands:
// settings to logger, settings to store client, store client to query service.
package app

import (
	"fmt"
	"io"

	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/internal/logging"
	"github.com/Zerofisher/megatable/internal/tracing"
	"github.com/Zerofisher/megatable/pkg/query"
	"github.com/Zerofisher/megatable/pkg/store/remote"
)

// NewLogger builds the logger selected by s.Log.
func NewLogger(w io.Writer, s *config.Settings) (*logging.Logger, error) {
	l, err := logging.New(w, s.Log.Format, s.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return l, nil
}

// OpenStore creates the remote store client. It fails with a
// *store.ConfigurationError when the connection is incomplete.
func OpenStore(s *config.Settings) (*remote.Client, error) {
	if err := s.RequireConnection(); err != nil {
		return nil, err
	}
	return remote.New(remote.Config{
		URL:       s.URL,
		Token:     s.Token,
		Timeout:   s.Server.Timeout,
		RateLimit: s.Ingest.RateLimit,
	})
}

// NewQueryService builds the read service over client, adding the detail
// cache when configured.
func NewQueryService(client *remote.Client, s *config.Settings) (query.Service, error) {
	engine := query.NewEngine(tracing.WrapExecutor(client), query.Options{
		CaseSensitive: s.Server.CaseSensitive,
		MaxLimit:      s.Server.MaxLimit,
	})
	if s.Server.DetailCache <= 0 {
		return engine, nil
	}
	return query.NewCached(engine, s.Server.DetailCache)
}
