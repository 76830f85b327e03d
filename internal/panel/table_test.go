package panel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableKeyUniqueness(t *testing.T) {
	tbl := NewTable("test", "ret")
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 1), 0.01))

	err := tbl.AddRow("A", NewPeriod(2020, 1), 0.02)
	var kv *KeyViolationError
	require.ErrorAs(t, err, &kv)
	assert.Equal(t, EntityID("A"), kv.Entity)

	// same entity, different period is fine
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 2), 0.02))
	assert.Equal(t, 2, tbl.Len())
}

func TestTableSortedByEntityThenPeriod(t *testing.T) {
	tbl := NewTable("test", "x")
	require.NoError(t, tbl.AddRow("B", NewPeriod(2020, 2), 2))
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 3), 3))
	require.NoError(t, tbl.AddRow("B", NewPeriod(2020, 1), 1))
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 1), 0))

	keys := tbl.Keys()
	want := []Key{
		{Entity: "A", Period: NewPeriod(2020, 1)},
		{Entity: "A", Period: NewPeriod(2020, 3)},
		{Entity: "B", Period: NewPeriod(2020, 1)},
		{Entity: "B", Period: NewPeriod(2020, 2)},
	}
	assert.Equal(t, want, keys)

	col, err := tbl.Column("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 1, 2}, col)
}

func TestTableValueAndMissing(t *testing.T) {
	tbl := NewTable("test", "x")
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 1), 1.5))
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 2), Missing()))

	v, err := tbl.Value("A", NewPeriod(2020, 1), "x")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = tbl.Value("A", NewPeriod(2020, 2), "x")
	require.NoError(t, err)
	assert.True(t, IsMissing(v))

	// absent row is missing, absent field is an error
	v, err = tbl.Value("A", NewPeriod(2021, 1), "x")
	require.NoError(t, err)
	assert.True(t, IsMissing(v))

	_, err = tbl.Value("A", NewPeriod(2020, 1), "nope")
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestTableAddField(t *testing.T) {
	tbl := NewTable("test", "x")
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 1), 1))
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 2), 2))

	require.NoError(t, tbl.AddField("y", []float64{10, 20}))
	col, err := tbl.Column("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, col)

	// nil means all-missing
	require.NoError(t, tbl.AddField("z", nil))
	col, err = tbl.Column("z")
	require.NoError(t, err)
	for _, v := range col {
		assert.True(t, IsMissing(v))
	}

	assert.Error(t, tbl.AddField("y", nil), "duplicate field")
	assert.Error(t, tbl.AddField("w", []float64{1}), "length mismatch")
}

func TestEntitySpansAndSeries(t *testing.T) {
	tbl := NewTable("test", "x")
	require.NoError(t, tbl.AddRow("B", NewPeriod(2020, 1), 3))
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 1), 1))
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 4), 2))

	spans := tbl.EntitySpans()
	require.Len(t, spans, 2)
	assert.Equal(t, EntitySpan{Entity: "A", Start: 0, End: 2}, spans[0])
	assert.Equal(t, EntitySpan{Entity: "B", Start: 2, End: 3}, spans[1])

	s := tbl.EntitySeries("A")
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, NewPeriod(2020, 4), s.Period(1))
	vals, err := s.Values("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vals)

	assert.Nil(t, tbl.EntitySeries("C"))
}

func TestCrossSection(t *testing.T) {
	tbl := NewTable("test", "x")
	require.NoError(t, tbl.AddRow("A", NewPeriod(2020, 1), 1))
	require.NoError(t, tbl.AddRow("B", NewPeriod(2020, 1), 2))
	require.NoError(t, tbl.AddRow("B", NewPeriod(2020, 2), 3))

	rows := tbl.CrossSection(NewPeriod(2020, 1))
	require.Len(t, rows, 2)
	keys := tbl.Keys()
	assert.Equal(t, EntityID("A"), keys[rows[0]].Entity)
	assert.Equal(t, EntityID("B"), keys[rows[1]].Entity)

	assert.Empty(t, tbl.CrossSection(NewPeriod(2021, 1)))
}
