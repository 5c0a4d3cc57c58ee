package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerofisher/megatable/internal/testutil"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		selector string
		ids      []string
	}{
		{"array", `[{"id":"a","name":"Alice"},{"id":"b","name":"Bob"}]`, "", []string{"a", "b"}},
		{"array with leading space", "\n  [{\"id\":\"a\"}]", "", []string{"a"}},
		{"ndjson", "{\"id\":\"a\"}\n{\"id\":\"b\"}\n\n{\"id\":\"c\"}\n", "", []string{"a", "b", "c"}},
		{"selector", `{"meta":{"n":2},"data":[{"id":"x"},{"id":"y"}]}`, "$.data", []string{"x", "y"}},
		{"selector wildcard", `{"data":[{"id":"x"},{"id":"y"}]}`, "$.data[*]", []string{"x", "y"}},
		{"empty", "   ", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Decode(strings.NewReader(tt.input), tt.selector)
			require.NoError(t, err)
			var ids []string
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestDecode_Fields(t *testing.T) {
	input := `[{"id":"u1","name":"Alice","email":"a@x.com","role":"Engineer","department":"R&D",
		"status":"active","location":"Oslo","salary":123456,"bio":"hi"},{"id":"u2","salary":null}]`
	records, err := Decode(strings.NewReader(input), "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "a@x.com", records[0].Email)
	require.NotNil(t, records[0].Salary)
	assert.Equal(t, int64(123456), *records[0].Salary)
	require.NotNil(t, records[0].Bio)
	assert.Equal(t, "hi", *records[0].Bio)
	assert.Nil(t, records[1].Salary)
	assert.Nil(t, records[1].Bio)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name, input, selector, msg string
	}{
		{"missing id", `[{"id":"a"},{"name":"no id"}]`, "", "record 1: missing id"},
		{"bad ndjson", "{\"id\":\"a\"}\n{oops", "", "record 2"},
		{"bad jsonpath", `{}`, "$.data[", "invalid jsonpath"},
		{"selector on non records", `{"data":[1,2]}`, "$.data", "not records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), tt.selector)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCreateLoad_RoundTrip(t *testing.T) {
	records := testutil.Records(25)

	for _, ext := range []string{".json", ".json.gz", ".json.zst", ".json.lz4"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "data"+ext)
			w, err := Create(path)
			require.NoError(t, err)
			require.NoError(t, json.NewEncoder(w).Encode(records))
			require.NoError(t, w.Close())

			got, err := Load(context.Background(), path, LoadOptions{})
			require.NoError(t, err)
			assert.Equal(t, records, got)
		})
	}
}

func TestLoad_Stdin(t *testing.T) {
	got, err := Load(context.Background(), "-", LoadOptions{
		Stdin: strings.NewReader(`{"id":"s1"}` + "\n" + `{"id":"s2"}`),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[1].ID)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"), LoadOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(context.Background(), "s3://bucket-only", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want s3://bucket/key")

	bad := filepath.Join(t.TempDir(), "bad.json.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not gzip"), 0644))
	_, err = Load(context.Background(), bad, LoadOptions{})
	assert.Error(t, err)
}
