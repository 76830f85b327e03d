package panel

import (
	"fmt"
	"sort"
)

// EntityID identifies one economic entity. The engine imposes no structure
// on it beyond equality and ordering for stable tie-breaks.
type EntityID string

// Key is the (entity, period) pair every panel row is keyed by.
type Key struct {
	Entity EntityID
	Period Period
}

// Less orders keys by entity, then period. Tables keep their rows in this
// order so per-entity runs are contiguous.
func (k Key) Less(other Key) bool {
	if k.Entity != other.Entity {
		return k.Entity < other.Entity
	}
	return k.Period < other.Period
}

// DedupPolicy resolves duplicate (entity, period) rows in a source.
type DedupPolicy int

const (
	// DedupReject fails the load with a KeyViolationError. The default:
	// picking an arbitrary row must be an explicit caller choice.
	DedupReject DedupPolicy = iota
	DedupKeepFirst
	DedupKeepLast
)

// ParseDedupPolicy maps the config spelling to a policy.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch s {
	case "", "reject":
		return DedupReject, nil
	case "keep_first":
		return DedupKeepFirst, nil
	case "keep_last":
		return DedupKeepLast, nil
	default:
		return 0, fmt.Errorf("unknown dedup policy %q", s)
	}
}

// Table is a keyed panel: one row per (entity, period), columns of float64
// values with NaN as the missing marker. Storage is column-major; rows are
// kept sorted by (entity, period) so entity time series are contiguous.
type Table struct {
	name   string
	fields []string
	index  map[string]int
	keys   []Key
	rowIdx map[Key]int
	cols   [][]float64
	sorted bool
}

// NewTable creates an empty table with the given value fields.
func NewTable(name string, fields ...string) *Table {
	t := &Table{
		name:   name,
		fields: append([]string(nil), fields...),
		index:  make(map[string]int, len(fields)),
		rowIdx: make(map[Key]int),
		cols:   make([][]float64, len(fields)),
		sorted: true,
	}
	for i, f := range fields {
		t.index[f] = i
	}
	return t
}

// Name returns the table's source name, used in error messages.
func (t *Table) Name() string { return t.name }

// Len returns the row count.
func (t *Table) Len() int { return len(t.keys) }

// Fields returns the value field names in column order.
func (t *Table) Fields() []string { return append([]string(nil), t.fields...) }

// HasField reports whether the table carries the named field.
func (t *Table) HasField(field string) bool {
	_, ok := t.index[field]
	return ok
}

// AddRow appends one row. values must match the field count; a duplicate
// key yields a KeyViolationError so callers apply an explicit dedup policy.
func (t *Table) AddRow(entity EntityID, period Period, values ...float64) error {
	if len(values) != len(t.fields) {
		return fmt.Errorf("table %q: got %d values for %d fields", t.name, len(values), len(t.fields))
	}
	key := Key{Entity: entity, Period: period}
	if _, dup := t.rowIdx[key]; dup {
		return &KeyViolationError{Entity: entity, Period: period, Source: t.name}
	}
	t.rowIdx[key] = len(t.keys)
	t.keys = append(t.keys, key)
	for i, v := range values {
		t.cols[i] = append(t.cols[i], v)
	}
	t.sorted = false
	return nil
}

// SetRow overwrites the values of an existing row, or appends a new one.
func (t *Table) SetRow(entity EntityID, period Period, values ...float64) error {
	key := Key{Entity: entity, Period: period}
	row, ok := t.rowIdx[key]
	if !ok {
		return t.AddRow(entity, period, values...)
	}
	if len(values) != len(t.fields) {
		return fmt.Errorf("table %q: got %d values for %d fields", t.name, len(values), len(t.fields))
	}
	for i, v := range values {
		t.cols[i][row] = v
	}
	return nil
}

// Value returns the cell for (entity, period, field); missing when the row
// or the observation is absent. An unknown field is an error, not missing.
func (t *Table) Value(entity EntityID, period Period, field string) (float64, error) {
	col, ok := t.index[field]
	if !ok {
		return Missing(), fieldError(t.name, field)
	}
	row, ok := t.rowIdx[Key{Entity: entity, Period: period}]
	if !ok {
		return Missing(), nil
	}
	return t.cols[col][row], nil
}

// Column returns the named field's values in row order. The slice aliases
// table storage; callers that mutate it must own the table.
func (t *Table) Column(field string) ([]float64, error) {
	col, ok := t.index[field]
	if !ok {
		return nil, fieldError(t.name, field)
	}
	t.ensureSorted()
	return t.cols[col], nil
}

// AddField appends a new column aligned with Keys() order. A nil values
// slice adds an all-missing column.
func (t *Table) AddField(field string, values []float64) error {
	if _, dup := t.index[field]; dup {
		return fmt.Errorf("table %q already has field %q", t.name, field)
	}
	t.ensureSorted()
	if values == nil {
		values = missingColumn(t.Len())
	}
	if len(values) != t.Len() {
		return fmt.Errorf("table %q: field %q has %d values for %d rows", t.name, field, len(values), t.Len())
	}
	t.index[field] = len(t.fields)
	t.fields = append(t.fields, field)
	t.cols = append(t.cols, values)
	return nil
}

// Keys returns the row keys sorted by (entity, period).
func (t *Table) Keys() []Key {
	t.ensureSorted()
	return t.keys
}

func (t *Table) ensureSorted() {
	if t.sorted {
		return
	}
	order := make([]int, len(t.keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.keys[order[a]].Less(t.keys[order[b]])
	})
	keys := make([]Key, len(t.keys))
	for i, o := range order {
		keys[i] = t.keys[o]
	}
	for c := range t.cols {
		col := make([]float64, len(t.cols[c]))
		for i, o := range order {
			col[i] = t.cols[c][o]
		}
		t.cols[c] = col
	}
	t.keys = keys
	for i, k := range t.keys {
		t.rowIdx[k] = i
	}
	t.sorted = true
}
