package panel

import (
	"fmt"
	"sort"
)

// How selects the join kind for Merge.
type How int

const (
	Inner How = iota
	Left
	Right
	Outer
)

// ParseHow maps the config spelling to a join kind.
func ParseHow(s string) (How, error) {
	switch s {
	case "inner":
		return Inner, nil
	case "", "left":
		return Left, nil
	case "right":
		return Right, nil
	case "outer":
		return Outer, nil
	default:
		return 0, fmt.Errorf("unknown join kind %q", s)
	}
}

func (h How) String() string {
	switch h {
	case Inner:
		return "inner"
	case Left:
		return "left"
	case Right:
		return "right"
	case Outer:
		return "outer"
	}
	return "unknown"
}

// MergeOptions tunes field-collision handling. With an empty Suffix a
// field present in both tables fails the merge; with a suffix the right
// table's copy is renamed field+Suffix.
type MergeOptions struct {
	Suffix string
}

// Merge joins two tables on (entity, period). Keys absent from one side
// get missing values for that side's fields; keys are never dropped except
// as the join kind dictates.
func Merge(left, right *Table, how How, opts MergeOptions) (*Table, error) {
	rightNames := make([]string, 0, len(right.fields))
	for _, f := range right.fields {
		name := f
		if left.HasField(f) {
			if opts.Suffix == "" {
				return nil, fmt.Errorf("merge %q + %q: field %q present in both (set a suffix to keep both)", left.name, right.name, f)
			}
			name = f + opts.Suffix
		}
		rightNames = append(rightNames, name)
	}

	keys, err := mergeKeys(left, right, how)
	if err != nil {
		return nil, err
	}

	fields := append(left.Fields(), rightNames...)
	out := NewTable(fmt.Sprintf("%s+%s", left.name, right.name), fields...)
	values := make([]float64, len(fields))
	left.ensureSorted()
	right.ensureSorted()
	for _, k := range keys {
		n := 0
		if row, ok := left.rowIdx[k]; ok {
			for c := range left.fields {
				values[n] = left.cols[c][row]
				n++
			}
		} else {
			for range left.fields {
				values[n] = Missing()
				n++
			}
		}
		if row, ok := right.rowIdx[k]; ok {
			for c := range right.fields {
				values[n] = right.cols[c][row]
				n++
			}
		} else {
			for range right.fields {
				values[n] = Missing()
				n++
			}
		}
		if err := out.AddRow(k.Entity, k.Period, values...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mergeKeys(left, right *Table, how How) ([]Key, error) {
	switch how {
	case Inner:
		var keys []Key
		for _, k := range left.Keys() {
			if _, ok := right.rowIdx[k]; ok {
				keys = append(keys, k)
			}
		}
		return keys, nil
	case Left:
		return left.Keys(), nil
	case Right:
		return right.Keys(), nil
	case Outer:
		keys := append([]Key(nil), left.Keys()...)
		for _, k := range right.Keys() {
			if _, ok := left.rowIdx[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(a, b int) bool { return keys[a].Less(keys[b]) })
		return keys, nil
	default:
		return nil, fmt.Errorf("unknown join kind %d", how)
	}
}

// BroadcastMerge joins a per-period table (market factors, macro series)
// onto a full panel by period alone: every left row at period p receives
// the right table's values for p. The right table must be unique per
// period. Only inner and left joins make sense here.
func BroadcastMerge(left, right *Table, how How, opts MergeOptions) (*Table, error) {
	if how != Inner && how != Left {
		return nil, fmt.Errorf("broadcast merge %q + %q: only inner and left joins supported, got %s", left.name, right.name, how)
	}
	rightRow := make(map[Period]int, right.Len())
	right.ensureSorted()
	for i, k := range right.Keys() {
		if _, dup := rightRow[k.Period]; dup {
			return nil, fmt.Errorf("broadcast merge: %q has multiple rows for period %s", right.name, k.Period)
		}
		rightRow[k.Period] = i
	}

	rightNames := make([]string, 0, len(right.fields))
	for _, f := range right.fields {
		name := f
		if left.HasField(f) {
			if opts.Suffix == "" {
				return nil, fmt.Errorf("merge %q + %q: field %q present in both (set a suffix to keep both)", left.name, right.name, f)
			}
			name = f + opts.Suffix
		}
		rightNames = append(rightNames, name)
	}

	fields := append(left.Fields(), rightNames...)
	out := NewTable(fmt.Sprintf("%s+%s", left.name, right.name), fields...)
	values := make([]float64, len(fields))
	left.ensureSorted()
	for _, k := range left.Keys() {
		row, matched := rightRow[k.Period]
		if !matched && how == Inner {
			continue
		}
		n := 0
		lrow := left.rowIdx[k]
		for c := range left.fields {
			values[n] = left.cols[c][lrow]
			n++
		}
		for c := range right.fields {
			if matched {
				values[n] = right.cols[c][row]
			} else {
				values[n] = Missing()
			}
			n++
		}
		if err := out.AddRow(k.Entity, k.Period, values...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RequireFields fails with ErrMissingField naming the first field the
// table does not carry. Loaders and operators call this up front so a
// misdeclared column is a hard error, not an all-missing result.
func (t *Table) RequireFields(fields ...string) error {
	for _, f := range fields {
		if !t.HasField(f) {
			return fieldError(t.name, f)
		}
	}
	return nil
}
