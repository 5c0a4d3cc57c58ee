package ingest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerofisher/megatable/internal/logging"
	"github.com/Zerofisher/megatable/internal/testutil"
	"github.com/Zerofisher/megatable/pkg/store/remote"
	"github.com/Zerofisher/megatable/pkg/store/sqlite"
)

// faultyGateway fronts the sqlite handler and breaks the first request of
// selected batches, keyed by the id of their first record.
type faultyGateway struct {
	next    http.Handler
	status  map[string]bool // respond 503 once
	stall   map[string]bool // hang until the client gives up, once
	mu      sync.Mutex
	tripped map[string]bool
}

func (g *faultyGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	g.mu.Lock()
	var key string
	for k := range g.status {
		if strings.Contains(string(body), `"`+k+`"`) && !g.tripped[k] {
			key = k
		}
	}
	for k := range g.stall {
		if strings.Contains(string(body), `"`+k+`"`) && !g.tripped[k] {
			key = k
		}
	}
	if key != "" {
		g.tripped[key] = true
	}
	g.mu.Unlock()

	switch {
	case g.status[key]:
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	case g.stall[key]:
		<-r.Context().Done()
	default:
		g.next.ServeHTTP(w, r)
	}
}

func TestRun_OverWireRetriesTransportErrors(t *testing.T) {
	s := testutil.NewStore(t)
	gw := &faultyGateway{
		next:    sqlite.NewHandler(s, "tok", logging.Nop()),
		status:  map[string]bool{"u0004": true},
		stall:   map[string]bool{"u0007": true},
		tripped: map[string]bool{},
	}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	client, err := remote.New(remote.Config{URL: srv.URL, Token: "tok", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	p, delays := newTestPipeline(client, Config{BatchSize: 3, Concurrency: 2})
	report, err := p.Run(context.Background(), testutil.Records(10))
	require.NoError(t, err)

	assert.Equal(t, 10, testutil.CountRows(t, s))
	assert.Equal(t, 10, report.CommittedRows)
	assert.Empty(t, report.Failures)
	assert.Equal(t, map[int]int{3: 1, 6: 1}, report.Retried)
	assert.Equal(t, uint64(4), report.Committed.GetCardinality())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *delays)
}
