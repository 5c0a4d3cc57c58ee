package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ohler55/ojg/jp"
	"github.com/pierrec/lz4/v4"

	"github.com/Zerofisher/megatable/pkg/model"
)

// S3Options locate an S3-compatible object store for s3:// datasets.
type S3Options struct {
	Endpoint  string // host[:port], defaults to s3.amazonaws.com
	AccessKey string
	SecretKey string
	Insecure  bool // plain HTTP
}

// S3OptionsFromEnv reads AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
// MEGATABLE_S3_ENDPOINT and MEGATABLE_S3_INSECURE.
func S3OptionsFromEnv() S3Options {
	return S3Options{
		Endpoint:  os.Getenv("MEGATABLE_S3_ENDPOINT"),
		AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Insecure:  os.Getenv("MEGATABLE_S3_INSECURE") == "true",
	}
}

// LoadOptions control how a dataset is located and decoded.
type LoadOptions struct {
	// Select is a JSONPath locating the records array inside a document,
	// e.g. "$.data". Empty means the document is the array (or NDJSON).
	Select string

	// Stdin is read when the location is "-". Defaults to os.Stdin.
	Stdin io.Reader

	S3 S3Options
}

// Load reads a whole dataset into memory. location is a local path, "-" for
// stdin, or s3://bucket/key. A .gz, .zst or .lz4 suffix selects decompression.
func Load(ctx context.Context, location string, opts LoadOptions) ([]model.Record, error) {
	rc, err := Open(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	records, err := Decode(rc, opts.Select)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", location, err)
	}
	return records, nil
}

// Open returns a decompressed reader over the dataset at location.
func Open(ctx context.Context, location string, opts LoadOptions) (io.ReadCloser, error) {
	var raw io.ReadCloser
	switch {
	case location == "-":
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		raw = io.NopCloser(in)
	case strings.HasPrefix(location, "s3://"):
		obj, err := openS3(ctx, location, opts.S3)
		if err != nil {
			return nil, err
		}
		raw = obj
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		raw = f
	}

	rc, err := decompress(raw, location)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return rc, nil
}

func openS3(ctx context.Context, location string, opts S3Options) (io.ReadCloser, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q, want s3://bucket/key", location)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	mopts := &minio.Options{Secure: !opts.Insecure}
	if opts.AccessKey != "" {
		mopts.Creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	} else {
		mopts.Creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, mopts)
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3 object: %w", err)
	}
	// GetObject is lazy; Stat surfaces missing keys and bad credentials now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat s3 object %s: %w", location, err)
	}
	return obj, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

func decompress(raw io.ReadCloser, name string) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return readCloser{zr, func() error {
			return errors.Join(zr.Close(), raw.Close())
		}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return readCloser{zr, func() error {
			zr.Close()
			return raw.Close()
		}}, nil
	case ".lz4":
		return readCloser{lz4.NewReader(raw), raw.Close}, nil
	}
	return raw, nil
}

// Decode reads records from r. Without a selector r holds a JSON array of
// records or newline-delimited records. With a selector the whole document
// is parsed and the JSONPath result is taken as the records.
func Decode(r io.Reader, selector string) ([]model.Record, error) {
	var (
		records []model.Record
		err     error
	)
	if selector != "" {
		records, err = decodeSelected(r, selector)
	} else {
		records, err = decodeStream(r)
	}
	if err != nil {
		return nil, err
	}
	if err := validate(records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeStream(r io.Reader) ([]model.Record, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	first, err := firstByte(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var records []model.Record
		if err := dec.Decode(&records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var records []model.Record
	for line := 1; ; line++ {
		var rec model.Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func decodeSelected(r io.Reader, selector string) ([]model.Record, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}

	var root any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}

	results := x.Get(root)
	var items []any
	if len(results) == 1 {
		if arr, ok := results[0].([]any); ok {
			items = arr
		}
	}
	if items == nil {
		items = results
	}

	// Round-trip through the codec so field mapping matches the unselected path.
	buf, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	var records []model.Record
	if err := json.Unmarshal(buf, &records); err != nil {
		return nil, fmt.Errorf("selected values are not records: %w", err)
	}
	return records, nil
}

func validate(records []model.Record) error {
	for i := range records {
		if strings.TrimSpace(records[i].ID) == "" {
			return fmt.Errorf("record %d: missing id", i)
		}
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────────────────
// Output
// ────────────────────────────────────────────────────────────────────────────────

type writeCloser struct {
	io.Writer
	close func() error
}

func (w writeCloser) Close() error { return w.close() }

// Create opens path for writing ("-" is stdout), compressing according to its
// suffix like Open.
func Create(path string) (io.WriteCloser, error) {
	var raw io.WriteCloser
	if path == "-" {
		raw = writeCloser{os.Stdout, func() error { return nil }}
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create directory: %w", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create dataset: %w", err)
		}
		raw = f
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zw := gzip.NewWriter(raw)
		return writeCloser{zw, func() error {
			return errors.Join(zw.Close(), raw.Close())
		}}, nil
	case ".zst", ".zstd":
		zw, err := zstd.NewWriter(raw, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return writeCloser{zw, func() error {
			return errors.Join(zw.Close(), raw.Close())
		}}, nil
	case ".lz4":
		zw := lz4.NewWriter(raw)
		return writeCloser{zw, func() error {
			return errors.Join(zw.Close(), raw.Close())
		}}, nil
	}
	return raw, nil
}
