// Package report renders table overviews and ingest summaries.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"github.com/Zerofisher/megatable/pkg/ingest"
	"github.com/Zerofisher/megatable/pkg/query"
)

// Data holds all data for report generation.
type Data struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Endpoint    string          `json:"endpoint,omitempty"`
	Overview    *query.Overview `json:"overview"`
}

// Generate collects a report from the query service.
func Generate(ctx context.Context, svc query.Service, endpoint string) (*Data, error) {
	overview, err := svc.GetOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("get overview: %w", err)
	}
	return &Data{
		GeneratedAt: time.Now(),
		Endpoint:    endpoint,
		Overview:    overview,
	}, nil
}

// WriteMarkdown renders the report as Markdown.
func WriteMarkdown(w io.Writer, d *Data) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Records Report\n\n")
	fmt.Fprintf(&b, "Generated %s", d.GeneratedAt.Format(time.RFC3339))
	if d.Endpoint != "" {
		fmt.Fprintf(&b, " from `%s`", d.Endpoint)
	}
	fmt.Fprintf(&b, "\n\n")

	o := d.Overview
	fmt.Fprintf(&b, "**Total records:** %s  \n", humanize.Comma(int64(o.TotalRecords)))
	fmt.Fprintf(&b, "**Query latency:** %s\n\n", o.Latency.Round(time.Millisecond))

	writeGroups(&b, "Department", o.ByDepartment)
	writeGroups(&b, "Status", o.ByStatus)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeGroups(b *strings.Builder, title string, groups []*query.GroupCount) {
	fmt.Fprintf(b, "## By %s\n\n", strings.ToLower(title))
	if len(groups) == 0 {
		fmt.Fprintf(b, "_No records._\n\n")
		return
	}
	fmt.Fprintf(b, "| %s | Records | Share |\n|---|---:|---:|\n", title)
	for _, g := range groups {
		value := g.Value
		if value == "" {
			value = "_(empty)_"
		}
		fmt.Fprintf(b, "| %s | %s | %.1f%% |\n", value, humanize.Comma(int64(g.Count)), g.Percent)
	}
	b.WriteString("\n")
}

// WriteJSON renders the report as indented JSON.
func WriteJSON(w io.Writer, d *Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// ────────────────────────────────────────────────────────────────────────────────
// Ingest summary
// ────────────────────────────────────────────────────────────────────────────────

// WriteIngestSummary prints the completion report of an ingest run.
func WriteIngestSummary(w io.Writer, r *ingest.Report) error {
	var b strings.Builder

	status := "complete"
	switch {
	case r.Canceled:
		status = "canceled"
	case len(r.Failures) > 0:
		status = "complete with failures"
	}

	fmt.Fprintf(&b, "Ingest %s in %s\n", status, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Records:   %s", humanize.Comma(int64(r.TotalRecords)))
	if r.Filtered > 0 {
		fmt.Fprintf(&b, " (%s filtered out)", humanize.Comma(int64(r.Filtered)))
	}
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "  Committed: %s rows in %s batches\n",
		humanize.Comma(int64(r.CommittedRows)), humanize.Comma(int64(r.Committed.GetCardinality())))
	fmt.Fprintf(&b, "  Rate:      %s rows/s\n", humanize.Comma(int64(r.Rate())))

	if len(r.Retried) > 0 {
		retries := 0
		for _, n := range r.Retried {
			retries += n
		}
		fmt.Fprintf(&b, "  Retried:   %d batches (%d retries)\n", len(r.Retried), retries)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "  Abandoned: %d batches, %s rows\n",
			len(r.Failures), humanize.Comma(int64(r.AbandonedRows())))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "    offset %-10d %d rows after %d attempts: %v\n", f.Offset, f.Size, f.Attempts, f.Err)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FormatProgress renders one progress line.
func FormatProgress(p ingest.Progress) string {
	return fmt.Sprintf("%5.1f%%  %s / %s rows  %s  %s rows/s  wave %d/%d",
		p.Percent,
		humanize.Comma(int64(p.Processed)),
		humanize.Comma(int64(p.Total)),
		p.Elapsed.Round(time.Second),
		humanize.Comma(int64(p.Rate)),
		p.Wave, p.Waves,
	)
}
