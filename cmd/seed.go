package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/internal/app"
	"github.com/Zerofisher/megatable/internal/config"
	"github.com/Zerofisher/megatable/internal/report"
	"github.com/Zerofisher/megatable/internal/tracing"
	"github.com/Zerofisher/megatable/pkg/ingest"
	"github.com/Zerofisher/megatable/pkg/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed [dataset]",
	Short: "Load a dataset into the store",
	Long: `Load a dataset into the store with bounded concurrency.

The dataset (default public/data.json) is read fully into memory, split into
batches, and uploaded in waves of concurrent upserts. A failing batch is
retried with linear backoff; a batch that exhausts its attempts is logged and
skipped, and the run continues.

The dataset may be a JSON array or NDJSON, optionally compressed (.gz, .zst,
.lz4), a local path, "-" for stdin, or s3://bucket/key.`,
	Example: `  megatable seed public/data.json
  megatable seed s3://datasets/users.ndjson.zst --concurrency 30
  megatable seed dump.json --select '$.data' --where 'status == "active"'`,
	GroupID: "data",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runSeed,
}

var (
	seedBatchSize   int
	seedConcurrency int
	seedRetries     int
	seedBackoff     time.Duration
	seedRate        float64
	seedWhere       string
	seedSelect      string
	seedSkipSchema  bool
	seedStrict      bool
)

func init() {
	seedCmd.Flags().IntVarP(&seedBatchSize, "batch-size", "b", 0, fmt.Sprintf("Records per upsert (default %d)", config.DefaultBatchSize))
	seedCmd.Flags().IntVarP(&seedConcurrency, "concurrency", "c", 0, fmt.Sprintf("Batches in flight per wave (default %d)", config.DefaultConcurrency))
	seedCmd.Flags().IntVar(&seedRetries, "retries", 0, fmt.Sprintf("Attempts per batch (default %d)", config.DefaultRetries))
	seedCmd.Flags().DurationVar(&seedBackoff, "backoff", 0, "Backoff unit, multiplied by the attempt number (default 1s)")
	seedCmd.Flags().Float64Var(&seedRate, "rate", 0, "Max statements per second (0 = unlimited)")
	seedCmd.Flags().StringVarP(&seedWhere, "where", "w", "", `Only load records matching an expression, e.g. 'department == "Sales"'`)
	seedCmd.Flags().StringVar(&seedSelect, "select", "", "JSONPath of the records array inside the document")
	seedCmd.Flags().BoolVar(&seedSkipSchema, "skip-schema", false, "Do not create the table and indexes")
	seedCmd.Flags().BoolVar(&seedStrict, "strict", false, "Exit non-zero if any batch was abandoned")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dataset := "public/data.json"
	if len(args) > 0 {
		dataset = args[0]
	}

	settings, logger, err := setup(config.Settings{
		Ingest: config.IngestSettings{
			BatchSize:   seedBatchSize,
			Concurrency: seedConcurrency,
			Retries:     seedRetries,
			Backoff:     seedBackoff,
			RateLimit:   seedRate,
		},
	})
	if err != nil {
		return err
	}

	// Configuration errors are the only ones that stop a run before it starts.
	client, err := app.OpenStore(settings)
	if err != nil {
		return err
	}
	exec := tracing.WrapExecutor(client)

	filter, err := ingest.CompileFilter(seedWhere)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Loading %s...\n", dataset)
	records, err := ingest.Load(ctx, dataset, ingest.LoadOptions{
		Select: seedSelect,
		S3:     ingest.S3OptionsFromEnv(),
	})
	if err != nil {
		return err
	}

	if !seedSkipSchema {
		fmt.Fprintf(os.Stderr, "Preparing schema on %s...\n", client.Endpoint())
		if err := store.EnsureSchema(ctx, exec); err != nil {
			return err
		}
	}

	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	pipeline := ingest.New(exec, ingest.Config{
		BatchSize:   settings.Ingest.BatchSize,
		Concurrency: settings.Ingest.Concurrency,
		Retries:     settings.Ingest.Retries,
		BackoffUnit: settings.Ingest.Backoff,
		Filter:      filter,
		Logger:      logger,
		ProgressCallback: func(p ingest.Progress) {
			if tty {
				fmt.Fprintf(os.Stderr, "\r%s", report.FormatProgress(p))
			} else {
				fmt.Fprintln(os.Stderr, report.FormatProgress(p))
			}
		},
	})

	cfg := pipeline.Config()
	fmt.Fprintf(os.Stderr, "Uploading %d records, %d per batch, %d lanes...\n", len(records), cfg.BatchSize, cfg.Concurrency)

	result, runErr := pipeline.Run(ctx, records)
	if tty {
		fmt.Fprintln(os.Stderr)
	}
	if err := report.WriteIngestSummary(os.Stdout, result); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if seedStrict && len(result.Failures) > 0 {
		return fmt.Errorf("%d batches abandoned", len(result.Failures))
	}
	return nil
}
