// Package ingest provides the bulk loading pipeline for the records table.
// It partitions a materialized dataset into batches, uploads them in bounded
// waves with per-batch retry, and accounts progress after every wave.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Zerofisher/megatable/internal/logging"
	"github.com/Zerofisher/megatable/pkg/model"
	"github.com/Zerofisher/megatable/pkg/store"
)

const (
	DefaultBatchSize   = 150
	DefaultConcurrency = 15
	DefaultRetries     = 3
	DefaultBackoffUnit = time.Second
)

// Config holds configuration for the ingest pipeline.
type Config struct {
	// BatchSize is the number of records per upsert statement.
	// Defaults to DefaultBatchSize if <= 0.
	BatchSize int

	// Concurrency is the wave width: the number of batches uploaded at once.
	// Defaults to DefaultConcurrency if <= 0.
	Concurrency int

	// Retries is the total number of attempts per batch, the first included.
	// Defaults to DefaultRetries if <= 0.
	Retries int

	// BackoffUnit is multiplied by the attempt number to get the delay before
	// the next attempt. Defaults to DefaultBackoffUnit if <= 0.
	BackoffUnit time.Duration

	// Filter drops records for which it returns false. Nil keeps everything.
	Filter func(*model.Record) bool

	// ProgressCallback is called after each wave settles.
	ProgressCallback func(Progress)

	// Logger receives retry, abandon and wave lines. Defaults to logging.Nop().
	Logger *logging.Logger
}

// Progress holds cumulative progress after a wave.
type Progress struct {
	Wave      int
	Waves     int
	Processed int // rows committed or attempted so far
	Total     int
	Percent   float64
	Elapsed   time.Duration
	Rate      float64 // rows per second
}

// BatchFailure describes a batch abandoned after its attempts were exhausted.
type BatchFailure struct {
	Index    int
	Offset   int
	Size     int
	Attempts int
	Err      error
}

// Report holds the result of an ingest run.
type Report struct {
	TotalRecords  int
	Filtered      int // records dropped by Config.Filter
	Batches       int
	Waves         int
	CommittedRows int

	// Committed and Abandoned hold batch indexes.
	Committed *roaring.Bitmap
	Abandoned *roaring.Bitmap

	Failures []BatchFailure

	// Retried maps the offset of every batch that committed after failing
	// to the number of retries it needed.
	Retried map[int]int

	Duration time.Duration
	Canceled bool
}

// Rate returns committed rows per second.
func (r *Report) Rate() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.CommittedRows) / r.Duration.Seconds()
}

// AbandonedRows returns the number of rows in abandoned batches.
func (r *Report) AbandonedRows() int {
	n := 0
	for _, f := range r.Failures {
		n += f.Size
	}
	return n
}

// Pipeline is the main ingest pipeline.
type Pipeline struct {
	cfg  Config
	exec store.Executor
	log  *logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new ingest pipeline writing through exec.
func New(exec store.Executor, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = DefaultBackoffUnit
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{
		cfg:   cfg,
		exec:  exec,
		log:   log,
		sleep: sleepContext,
	}
}

// Config returns the effective configuration after defaults.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// batchOutcome is written by exactly one upload goroutine and read after the
// wave barrier.
type batchOutcome struct {
	attempts int
	err      error
}

// Run uploads records and returns a report. Individual batch failures never
// fail the run; they are logged and listed in the report. If ctx is canceled
// no further waves are started and Run returns the partial report together
// with the context error.
func (p *Pipeline) Run(ctx context.Context, records []model.Record) (*Report, error) {
	start := time.Now()

	report := &Report{
		Committed: roaring.New(),
		Abandoned: roaring.New(),
		Retried:   make(map[int]int),
	}

	// positions maps a kept record to its index in the input, so offsets in
	// logs and the report point into the dataset as given.
	var positions []int
	if p.cfg.Filter != nil {
		kept := make([]model.Record, 0, len(records))
		positions = make([]int, 0, len(records))
		for i := range records {
			if p.cfg.Filter(&records[i]) {
				kept = append(kept, records[i])
				positions = append(positions, i)
			}
		}
		report.Filtered = len(records) - len(kept)
		records = kept
	}
	report.TotalRecords = len(records)

	batches := Partition(records, p.cfg.BatchSize)
	if positions != nil {
		for i := range batches {
			batches[i].Offset = positions[batches[i].Offset]
		}
	}
	waves := Waves(batches, p.cfg.Concurrency)
	report.Batches = len(batches)
	report.Waves = len(waves)

	p.log.InfoContext(ctx, "ingest started",
		"records", len(records),
		"batches", len(batches),
		"waves", len(waves),
		"batch_size", p.cfg.BatchSize,
		"concurrency", p.cfg.Concurrency,
	)

	processed := 0
	for w, wave := range waves {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}

		outcomes := make([]batchOutcome, len(wave))
		var g errgroup.Group
		g.SetLimit(p.cfg.Concurrency)
		for i, b := range wave {
			g.Go(func() error {
				outcomes[i] = p.upload(ctx, b)
				return nil
			})
		}
		_ = g.Wait()

		for i, b := range wave {
			p.account(ctx, report, b, outcomes[i])
			processed += len(b.Records)
		}

		prog := p.progress(w+1, len(waves), processed, len(records), time.Since(start))
		p.log.LogWave(ctx, prog.Wave, prog.Waves, prog.Processed, prog.Total, prog.Elapsed, prog.Rate)
		if p.cfg.ProgressCallback != nil {
			p.cfg.ProgressCallback(prog)
		}
	}

	report.Duration = time.Since(start)
	p.log.InfoContext(ctx, "ingest finished",
		"committed_rows", report.CommittedRows,
		"abandoned_batches", len(report.Failures),
		"retried_batches", len(report.Retried),
		"duration", report.Duration.Round(time.Millisecond),
		"canceled", report.Canceled,
	)

	if report.Canceled {
		return report, fmt.Errorf("ingest canceled: %w", ctx.Err())
	}
	return report, nil
}

// upload runs one batch through its attempts.
func (p *Pipeline) upload(ctx context.Context, b Batch) batchOutcome {
	sql, args := b.UpsertStatement()

	var err error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		_, err = p.exec.Execute(ctx, sql, args...)
		if err == nil {
			return batchOutcome{attempts: attempt}
		}
		if !store.IsRetryable(err) || attempt == p.cfg.Retries {
			return batchOutcome{attempts: attempt, err: err}
		}

		delay := time.Duration(attempt) * p.cfg.BackoffUnit
		p.log.LogBatchRetry(ctx, b.Offset, attempt, delay, err)
		if serr := p.sleep(ctx, delay); serr != nil {
			return batchOutcome{attempts: attempt, err: errors.Join(err, serr)}
		}
	}
	return batchOutcome{attempts: p.cfg.Retries, err: err}
}

func (p *Pipeline) account(ctx context.Context, report *Report, b Batch, o batchOutcome) {
	if o.err != nil {
		p.log.LogBatchFailed(ctx, b.Offset, o.attempts, o.err)
		report.Abandoned.Add(uint32(b.Index))
		report.Failures = append(report.Failures, BatchFailure{
			Index:    b.Index,
			Offset:   b.Offset,
			Size:     len(b.Records),
			Attempts: o.attempts,
			Err:      o.err,
		})
		return
	}

	report.Committed.Add(uint32(b.Index))
	report.CommittedRows += len(b.Records)
	if o.attempts > 1 {
		report.Retried[b.Offset] = o.attempts - 1
		p.log.InfoContext(ctx, "batch committed after retry",
			"offset", b.Offset,
			"retries", o.attempts-1,
		)
	}
}

func (p *Pipeline) progress(wave, waves, processed, total int, elapsed time.Duration) Progress {
	prog := Progress{
		Wave:      wave,
		Waves:     waves,
		Processed: processed,
		Total:     total,
		Elapsed:   elapsed,
	}
	if total > 0 {
		prog.Percent = float64(processed) * 100 / float64(total)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		prog.Rate = float64(processed) / secs
	}
	return prog
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
