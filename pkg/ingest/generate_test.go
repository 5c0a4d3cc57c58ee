package ingest

import (
	"bytes"
	"sort"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_SortedUniqueIDs(t *testing.T) {
	records, err := NewGenerator(42).Generate(2000)
	require.NoError(t, err)
	require.Len(t, records, 2000)

	ids := make([]string, len(records))
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		_, err := ulid.ParseStrict(r.ID)
		require.NoError(t, err)
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
		ids[i] = r.ID
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestGenerator_CompleteRecords(t *testing.T) {
	records, err := NewGenerator(1).Generate(50)
	require.NoError(t, err)
	for _, r := range records {
		assert.NotEmpty(t, r.Name)
		assert.Contains(t, r.Email, "@")
		assert.NotEmpty(t, r.Role)
		assert.NotEmpty(t, r.Department)
		assert.NotEmpty(t, r.Status)
		assert.NotEmpty(t, r.Location)
		require.NotNil(t, r.Salary)
		assert.GreaterOrEqual(t, *r.Salary, int64(40000))
		require.NotNil(t, r.Bio)
	}
}

func TestGenerator_WriteRecordsDecodes(t *testing.T) {
	for _, ndjson := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, NewGenerator(7).WriteRecords(&buf, 30, ndjson))

		records, err := Decode(&buf, "")
		require.NoError(t, err)
		assert.Len(t, records, 30)
	}
}

func TestGenerator_WriteRecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewGenerator(7).WriteRecords(&buf, 0, false))
	records, err := Decode(&buf, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}
