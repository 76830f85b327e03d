// Package io loads raw panel sources and writes signal outputs. All paths
// are passed in explicitly; the package holds no ambient state.
package io

import (
	"encoding/csv"
	"errors"
	"fmt"
	stdio "io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// LoadSpec declares one tabular source: the file, the key columns, and the
// value columns the caller wants. Only declared columns are read.
type LoadSpec struct {
	Path         string
	Table        string // table name; defaults to the file's base name
	EntityColumn string
	PeriodColumn string
	Columns      []string
	Dedup        panel.DedupPolicy
	// FillZero names columns whose missing cells load as 0.0. Some return
	// based signals treat months with no recorded return as flat; this
	// makes that an explicit per-source choice instead of a silent default.
	FillZero []string
}

func (s LoadSpec) tableName() string {
	if s.Table != "" {
		return s.Table
	}
	return strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
}

// LoadCSV reads a CSV source into a keyed panel table. A missing file or a
// missing declared column is a hard error wrapping ErrMissingSource; a
// duplicate (entity, period) key is resolved by the spec's dedup policy,
// KeyViolationError when none was chosen.
func LoadCSV(spec LoadSpec) (*panel.Table, error) {
	if spec.EntityColumn == "" || spec.PeriodColumn == "" {
		return nil, fmt.Errorf("load %s: entity and period columns must be declared", spec.Path)
	}
	f, err := os.Open(spec.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("panel file %s: %w", spec.Path, panel.ErrMissingSource)
		}
		return nil, fmt.Errorf("open %s: %w", spec.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", spec.Path, err)
	}

	entityIdx, err := columnIndex(header, spec.EntityColumn, spec.Path)
	if err != nil {
		return nil, err
	}
	periodIdx, err := columnIndex(header, spec.PeriodColumn, spec.Path)
	if err != nil {
		return nil, err
	}
	valueIdx := make([]int, len(spec.Columns))
	for i, c := range spec.Columns {
		if valueIdx[i], err = columnIndex(header, c, spec.Path); err != nil {
			return nil, err
		}
	}

	fillZero := make(map[string]bool, len(spec.FillZero))
	for _, c := range spec.FillZero {
		fillZero[c] = true
	}

	t := panel.NewTable(spec.tableName(), spec.Columns...)
	values := make([]float64, len(spec.Columns))
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, stdio.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", spec.Path, line+1, err)
		}
		line++

		entity := panel.EntityID(strings.TrimSpace(rec[entityIdx]))
		period, err := panel.ParsePeriod(rec[periodIdx])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", spec.Path, line, err)
		}
		for i, idx := range valueIdx {
			v, err := parseCell(rec[idx])
			if err != nil {
				return nil, fmt.Errorf("%s line %d, column %q: %w", spec.Path, line, spec.Columns[i], err)
			}
			if panel.IsMissing(v) && fillZero[spec.Columns[i]] {
				v = 0
			}
			values[i] = v
		}

		err = t.AddRow(entity, period, values...)
		var kv *panel.KeyViolationError
		if errors.As(err, &kv) {
			switch spec.Dedup {
			case panel.DedupKeepFirst:
				continue
			case panel.DedupKeepLast:
				if err := t.SetRow(entity, period, values...); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("load %s: %w", spec.Path, err)
			}
		} else if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func columnIndex(header []string, name, path string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("panel file %s has no column %q: %w", path, name, panel.ErrMissingSource)
}

// parseCell reads one numeric cell. Empty and the usual NA spellings are
// missing; anything else must parse as a float.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", ".", "NA", "NaN", "nan":
		return panel.Missing(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}
