package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerofisher/megatable/internal/testutil"
	"github.com/Zerofisher/megatable/pkg/ingest"
	"github.com/Zerofisher/megatable/pkg/query"
)

func TestGenerateAndWrite(t *testing.T) {
	s := testutil.NewStore(t)
	records := testutil.Records(1000)
	records[0].Department = "Sales"
	_, err := ingest.New(s, ingest.Config{}).Run(context.Background(), records)
	require.NoError(t, err)

	d, err := Generate(context.Background(), query.NewEngine(s, query.Options{}), "http://localhost:8081")
	require.NoError(t, err)
	assert.Equal(t, 1000, d.Overview.TotalRecords)

	var md bytes.Buffer
	require.NoError(t, WriteMarkdown(&md, d))
	out := md.String()
	assert.Contains(t, out, "**Total records:** 1,000")
	assert.Contains(t, out, "| Platform | 999 | 99.9% |")
	assert.Contains(t, out, "| Sales | 1 | 0.1% |")
	assert.Contains(t, out, "## By status")
	assert.Contains(t, out, "`http://localhost:8081`")

	var js bytes.Buffer
	require.NoError(t, WriteJSON(&js, d))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Contains(t, decoded, "overview")
}

func TestWriteMarkdown_Empty(t *testing.T) {
	var md bytes.Buffer
	require.NoError(t, WriteMarkdown(&md, &Data{Overview: &query.Overview{}}))
	assert.Contains(t, md.String(), "_No records._")
}

func TestWriteIngestSummary(t *testing.T) {
	committed := roaring.BitmapOf(0, 2, 3)
	r := &ingest.Report{
		TotalRecords:  12345,
		CommittedRows: 9000,
		Committed:     committed,
		Abandoned:     roaring.BitmapOf(1),
		Retried:       map[int]int{300: 2},
		Failures: []ingest.BatchFailure{
			{Index: 1, Offset: 150, Size: 150, Attempts: 3, Err: errors.New("store http error: 503")},
		},
		Duration: 3 * time.Second,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteIngestSummary(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "Ingest complete with failures in 3s")
	assert.Contains(t, out, "Records:   12,345")
	assert.Contains(t, out, "Committed: 9,000 rows in 3 batches")
	assert.Contains(t, out, "Rate:      3,000 rows/s")
	assert.Contains(t, out, "Retried:   1 batches (2 retries)")
	assert.Contains(t, out, "Abandoned: 1 batches, 150 rows")
	assert.Contains(t, out, "offset 150")
	assert.Contains(t, out, "store http error: 503")
}

func TestFormatProgress(t *testing.T) {
	line := FormatProgress(ingest.Progress{
		Wave: 2, Waves: 4, Processed: 4500, Total: 9000,
		Percent: 50, Elapsed: 1500 * time.Millisecond, Rate: 3000,
	})
	assert.Contains(t, line, "50.0%")
	assert.Contains(t, line, "4,500 / 9,000 rows")
	assert.Contains(t, line, "3,000 rows/s")
	assert.Contains(t, line, "wave 2/4")
}
