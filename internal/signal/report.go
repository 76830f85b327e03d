package signal

import (
	"time"

	"github.com/google/uuid"
)

// Report summarizes one signal's run: rows loaded per input, cells
// computed vs dropped at output, duration, and the error when the signal
// aborted. Reports let a batch be diagnosed without stopping it.
type Report struct {
	RunID          string         `json:"run_id"`
	Signal         string         `json:"signal"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       string         `json:"duration"`
	RowsLoaded     map[string]int `json:"rows_loaded"`
	CellsComputed  int            `json:"cells_computed"`
	CellsDropped   int            `json:"cells_dropped"`
	Outputs        []SinkResult   `json:"outputs,omitempty"`
	ForwardLooking bool           `json:"forward_looking,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// SinkResult records what one sink received.
type SinkResult struct {
	Sink    string `json:"sink"`
	Written int    `json:"written"`
	Dropped int    `json:"dropped"`
}

func newReport(def *Definition) *Report {
	return &Report{
		RunID:          uuid.NewString(),
		Signal:         def.Name,
		StartedAt:      time.Now().UTC(),
		RowsLoaded:     make(map[string]int),
		ForwardLooking: def.UsesLead(),
	}
}
