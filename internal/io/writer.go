package io

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// WriteSignalCSV writes the field as a three-column signal table: entity,
// yyyymm period, value. Rows with a missing value are dropped here and
// only here; upstream operators keep missing rows so merges stay
// key-complete. The file lands atomically. Returns how many rows were
// written and how many were dropped as missing.
func WriteSignalCSV(path string, t *panel.Table, field, signalName string) (written, dropped int, err error) {
	col, err := t.Column(field)
	if err != nil {
		return 0, 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, 0, err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, 0, err
	}
	w := csv.NewWriter(f)

	if err := w.Write([]string{"entity", "yyyymm", signalName}); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, 0, err
	}
	for i, key := range t.Keys() {
		if panel.IsMissing(col[i]) {
			dropped++
			continue
		}
		rec := []string{
			string(key.Entity),
			strconv.Itoa(key.Period.YYYYMM()),
			strconv.FormatFloat(col[i], 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			os.Remove(tmp)
			return 0, 0, err
		}
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, 0, fmt.Errorf("finalize %s: %w", path, err)
	}
	return written, dropped, nil
}
