package reconcile

import (
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyCount(rows []model.Row, idx int, key string) int {
	n := 0
	for _, r := range rows {
		if r.Get(idx) == key {
			n++
		}
	}
	return n
}

func TestMergeByKey(t *testing.T) {
	existing := []model.Row{{"a", 1}, {"b", 2}}
	incoming := []model.Row{{"a", 10}, {"c", 3}, {"c", 30}, {"d", 4}, {"", 5}}

	got := MergeByKey(existing, incoming, 0)

	assert.Equal(t, existing, got.Kept)
	assert.Equal(t, []model.Row{{"c", 3}, {"d", 4}, {"", 5}}, got.Inserted)
	assert.Equal(t, []model.Row{{"a", 10}, {"c", 30}}, got.Skipped)
}

func TestMergeByKey_MultiplicityNeverGrows(t *testing.T) {
	existing := []model.Row{{"a"}, {"a"}, {"b"}}
	incoming := []model.Row{{"a"}, {"b"}, {"b"}, {"new"}, {"new"}}

	got := MergeByKey(existing, incoming, 0)
	output := append(append([]model.Row{}, got.Kept...), got.Inserted...)

	assert.Equal(t, 2, keyCount(output, 0, "a"))
	assert.Equal(t, 1, keyCount(output, 0, "b"))
	assert.Equal(t, 1, keyCount(output, 0, "new"), "a new key is added exactly once")
	assert.Len(t, got.Skipped, 4)
}

func TestMergeByKey_TrimsKeys(t *testing.T) {
	got := MergeByKey([]model.Row{{" k1 "}}, []model.Row{{"k1"}}, 0)
	assert.Empty(t, got.Inserted)
	assert.Len(t, got.Skipped, 1)
}

func TestMergeByDateRange_ReplacesBatchDates(t *testing.T) {
	existing := []model.Row{{"2024-01-01", "10.00"}}
	incoming := []model.Row{{"2024-01-01", "20.00"}, {"2024-01-02", "5.00"}}

	got := MergeByDateRange(existing, incoming, 0)

	assert.Equal(t, []model.Row{{"2024-01-01", "20.00"}, {"2024-01-02", "5.00"}}, got.Rows)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, got.Dates)
	assert.Equal(t, 1, got.Replaced)
	assert.Equal(t, 0, got.Kept)
}

func TestMergeByDateRange_KeepsOtherDates(t *testing.T) {
	existing := []model.Row{
		{"2023-12-31", "1"},
		{"01/01/2024", "2"},
		{"", "undated"},
		{"garbage", "unparseable"},
		{"2024-01-01", "3"},
		{"2024-01-03", "4"},
	}
	incoming := []model.Row{{"2024-01-01", "new"}, {nil, "no date"}}

	got := MergeByDateRange(existing, incoming, 0)

	require.Len(t, got.Rows, 6)
	assert.Equal(t, []model.Row{
		{"2023-12-31", "1"},
		{"", "undated"},
		{"garbage", "unparseable"},
		{"2024-01-03", "4"},
		{"2024-01-01", "new"},
		{nil, "no date"},
	}, got.Rows)
	assert.Equal(t, 2, got.Replaced, "both spellings of 2024-01-01 are replaced")
	assert.Equal(t, 4, got.Kept)
	assert.Equal(t, 1, got.Undated)
	assert.Equal(t, []string{"2024-01-01"}, got.Dates)
}

func TestMergeByDateRange_EmptyBatch(t *testing.T) {
	existing := []model.Row{{"2024-01-01", "1"}}
	got := MergeByDateRange(existing, nil, 0)

	assert.Equal(t, existing, got.Rows)
	assert.Empty(t, got.Dates)
	assert.Zero(t, got.Replaced)
}
