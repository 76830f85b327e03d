package panel

import "sort"

// EntitySpan marks one entity's contiguous run of rows in sorted order.
type EntitySpan struct {
	Entity EntityID
	Start  int // first row index, inclusive
	End    int // last row index, exclusive
}

// EntitySpans returns one span per entity, in entity order. Temporal
// operators and the regression estimator iterate these; spans are disjoint
// so per-entity work parallelizes without locking.
func (t *Table) EntitySpans() []EntitySpan {
	t.ensureSorted()
	var spans []EntitySpan
	for i := 0; i < len(t.keys); {
		j := i + 1
		for j < len(t.keys) && t.keys[j].Entity == t.keys[i].Entity {
			j++
		}
		spans = append(spans, EntitySpan{Entity: t.keys[i].Entity, Start: i, End: j})
		i = j
	}
	return spans
}

// EntitySeries is one entity's rows ordered by period: the unit temporal
// operators and rolling regressions work over. It is a view derived on
// demand; it is invalidated by any mutation of the source table's rows.
type EntitySeries struct {
	Entity EntityID
	table  *Table
	start  int
	end    int
}

// EntitySeries returns the view for one entity; nil if the entity has no rows.
func (t *Table) EntitySeries(entity EntityID) *EntitySeries {
	for _, span := range t.EntitySpans() {
		if span.Entity == entity {
			return &EntitySeries{Entity: entity, table: t, start: span.Start, end: span.End}
		}
	}
	return nil
}

// Series builds the view for a known span without rescanning.
func (t *Table) Series(span EntitySpan) *EntitySeries {
	return &EntitySeries{Entity: span.Entity, table: t, start: span.Start, end: span.End}
}

// Len returns the number of rows in the series.
func (s *EntitySeries) Len() int { return s.end - s.start }

// Period returns the period at series position i.
func (s *EntitySeries) Period(i int) Period { return s.table.keys[s.start+i].Period }

// Values returns the field's values at series positions 0..Len()-1.
// The slice aliases table storage.
func (s *EntitySeries) Values(field string) ([]float64, error) {
	col, err := s.table.Column(field)
	if err != nil {
		return nil, err
	}
	return col[s.start:s.end], nil
}

// RowIndex maps a series position to the table row index.
func (s *EntitySeries) RowIndex(i int) int { return s.start + i }

// Periods returns the distinct periods present in the table, ascending.
func (t *Table) Periods() []Period {
	t.ensureSorted()
	seen := make(map[Period]struct{})
	var periods []Period
	for _, k := range t.keys {
		if _, ok := seen[k.Period]; !ok {
			seen[k.Period] = struct{}{}
			periods = append(periods, k.Period)
		}
	}
	sort.Slice(periods, func(a, b int) bool { return periods[a] < periods[b] })
	return periods
}

// CrossSection returns the row indices of all entities observed at the
// period, in entity order. Membership is re-derived per call; nothing is
// cached across periods.
func (t *Table) CrossSection(period Period) []int {
	t.ensureSorted()
	var rows []int
	for i, k := range t.keys {
		if k.Period == period {
			rows = append(rows, i)
		}
	}
	return rows
}
