package signal

import (
	"context"
	"path/filepath"

	xio "github.com/aepodrez/crosssignals/internal/io"
	"github.com/aepodrez/crosssignals/internal/panel"
)

// CSVSink writes each signal as <dir>/<name>.csv, the batch's canonical
// output format.
type CSVSink struct {
	Dir string
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) WriteSignal(_ context.Context, signalName string, t *panel.Table, field string) (int, int, error) {
	path := filepath.Join(s.Dir, signalName+".csv")
	return xio.WriteSignalCSV(path, t, field, signalName)
}
