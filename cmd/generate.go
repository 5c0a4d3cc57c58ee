package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/megatable/pkg/ingest"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic dataset",
	Long: `Write synthetic records with ULID ids, ready for seed.

The output is a JSON array, or NDJSON for .ndjson/.jsonl names or --ndjson.
A .gz, .zst or .lz4 suffix compresses the output.`,
	Example: `  megatable generate -n 1000000
  megatable generate -n 50000 -o users.ndjson.zst`,
	GroupID: "data",
	Args:    cobra.NoArgs,
	RunE:    runGenerate,
}

var (
	generateCount  int
	generateOutput string
	generateSeed   uint64
	generateNDJSON bool
)

func init() {
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 1_000_000, "Number of records")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "public/data.json", `Output file ("-" for stdout)`)
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "Random seed for field values (default: time based)")
	generateCmd.Flags().BoolVar(&generateNDJSON, "ndjson", false, "Write one record per line")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generateCount < 0 {
		return fmt.Errorf("count must not be negative")
	}
	seed := generateSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	ndjson := generateNDJSON
	base := strings.ToLower(generateOutput)
	for _, ext := range []string{".gz", ".zst", ".zstd", ".lz4"} {
		base = strings.TrimSuffix(base, ext)
	}
	if ext := filepath.Ext(base); ext == ".ndjson" || ext == ".jsonl" {
		ndjson = true
	}

	w, err := ingest.Create(generateOutput)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := ingest.NewGenerator(seed).WriteRecords(w, generateCount, ndjson); err != nil {
		w.Close()
		return fmt.Errorf("generate: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if generateOutput != "-" {
		fmt.Fprintf(os.Stderr, "Wrote %d records to %s in %v\n", generateCount, generateOutput, time.Since(start).Round(time.Millisecond))
	}
	return nil
}
