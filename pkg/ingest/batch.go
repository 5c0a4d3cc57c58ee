package ingest

import (
	"strings"

	"github.com/Zerofisher/megatable/pkg/model"
)

// Batch is a consecutive slice of records written in one statement.
type Batch struct {
	Index   int // position in the partition
	Offset  int // index of the first record in the input dataset
	Records []model.Record
}

// Partition splits records into consecutive batches of size (the last one may
// be shorter). size <= 0 yields a single batch.
func Partition(records []model.Record, size int) []Batch {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(records)
	}

	batches := make([]Batch, 0, (len(records)+size-1)/size)
	for off := 0; off < len(records); off += size {
		end := min(off+size, len(records))
		batches = append(batches, Batch{
			Index:   len(batches),
			Offset:  off,
			Records: records[off:end],
		})
	}
	return batches
}

// Waves groups batches into consecutive runs of at most width.
func Waves(batches []Batch, width int) [][]Batch {
	if width <= 0 {
		width = 1
	}
	waves := make([][]Batch, 0, (len(batches)+width-1)/width)
	for i := 0; i < len(batches); i += width {
		waves = append(waves, batches[i:min(i+width, len(batches))])
	}
	return waves
}

// UpsertStatement builds one multi-row INSERT OR REPLACE for the batch with
// positional arguments in column order.
func (b Batch) UpsertStatement() (string, []any) {
	return upsertStatement(b.Records)
}

func upsertStatement(records []model.Record) (string, []any) {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(model.Columns)), ", ") + ")"

	var sb strings.Builder
	sb.Grow(64 + len(records)*(len(tuple)+2))
	sb.WriteString("INSERT OR REPLACE INTO ")
	sb.WriteString(model.Table)
	sb.WriteString(" (")
	sb.WriteString(model.ColumnList(model.Columns))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(model.Columns))
	for i := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		args = append(args, records[i].Values()...)
	}
	return sb.String(), args
}
