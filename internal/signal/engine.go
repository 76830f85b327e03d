package signal

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aepodrez/crosssignals/internal/config"
	"github.com/aepodrez/crosssignals/internal/crosssection"
	xio "github.com/aepodrez/crosssignals/internal/io"
	"github.com/aepodrez/crosssignals/internal/metrics"
	"github.com/aepodrez/crosssignals/internal/panel"
	"github.com/aepodrez/crosssignals/internal/regress"
	"github.com/aepodrez/crosssignals/internal/temporal"
)

// Sink receives a finished signal table. The sink is where missing cells
// are dropped; everything upstream keeps them.
type Sink interface {
	Name() string
	WriteSignal(ctx context.Context, signalName string, t *panel.Table, field string) (written, dropped int, err error)
}

// Engine executes signal definitions: load, merge, per-entity phase,
// cross-sectional phase, write. Per-entity steps fan out across a bounded
// worker pool; cross-sectional steps run after the barrier because they
// need each period's full cross-section.
type Engine struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Registry
	sinks   []Sink
}

// NewEngine wires an engine. metrics may be nil; at least one sink is
// required to receive output.
func NewEngine(cfg config.Config, log zerolog.Logger, reg *metrics.Registry, sinks ...Sink) (*Engine, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("engine needs at least one output sink")
	}
	return &Engine{cfg: cfg, log: log, metrics: reg, sinks: sinks}, nil
}

// RunAll computes every definition. A failed signal is reported and logged
// but never aborts the batch.
func (e *Engine) RunAll(ctx context.Context, defs []*Definition) []*Report {
	reports := make([]*Report, 0, len(defs))
	for _, def := range defs {
		rep := e.Run(ctx, def)
		reports = append(reports, rep)
		if e.cfg.ReportDir != "" {
			path := filepath.Join(e.cfg.ReportDir, fmt.Sprintf("%s_%s.json", def.Name, rep.RunID))
			if err := xio.WriteJSONAtomic(path, rep); err != nil {
				e.log.Warn().Err(err).Str("signal", def.Name).Msg("could not write run report")
			}
		}
	}
	return reports
}

// Run computes one signal end to end. Errors are folded into the report;
// the report is never nil.
func (e *Engine) Run(ctx context.Context, def *Definition) *Report {
	rep := newReport(def)
	log := e.log.With().Str("signal", def.Name).Str("run_id", rep.RunID).Logger()
	start := time.Now()

	if def.UsesLead() {
		log.Warn().Msg("definition uses a forward-looking lead step")
	}

	err := e.run(ctx, def, rep, log)
	rep.Duration = time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		rep.Error = err.Error()
		log.Error().Err(err).Msg("signal failed")
		if e.metrics != nil {
			e.metrics.SignalsTotal.WithLabelValues("failed").Inc()
		}
		return rep
	}
	log.Info().
		Int("cells_computed", rep.CellsComputed).
		Int("cells_dropped", rep.CellsDropped).
		Str("duration", rep.Duration).
		Msg("signal complete")
	if e.metrics != nil {
		e.metrics.SignalsTotal.WithLabelValues("ok").Inc()
		e.metrics.CellsComputed.WithLabelValues(def.Name).Add(float64(rep.CellsComputed))
		e.metrics.CellsDropped.WithLabelValues(def.Name).Add(float64(rep.CellsDropped))
		e.metrics.SignalDuration.WithLabelValues(def.Name).Observe(time.Since(start).Seconds())
	}
	return rep
}

func (e *Engine) run(ctx context.Context, def *Definition, rep *Report, log zerolog.Logger) error {
	tables, err := e.loadInputs(def, rep, log)
	if err != nil {
		return err
	}

	working := tables[def.Inputs[0].Table]
	for _, m := range def.Merges {
		how, _ := panel.ParseHow(m.How)
		opts := panel.MergeOptions{Suffix: m.Suffix}
		if m.On == "period" {
			working, err = panel.BroadcastMerge(working, tables[m.Table], how, opts)
		} else {
			working, err = panel.Merge(working, tables[m.Table], how, opts)
		}
		if err != nil {
			return err
		}
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.applyStep(ctx, working, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	if err := working.RequireFields(def.Output); err != nil {
		return err
	}
	for _, sink := range e.sinks {
		written, dropped, err := sink.WriteSignal(ctx, def.Name, working, def.Output)
		if err != nil {
			return fmt.Errorf("sink %s: %w", sink.Name(), err)
		}
		rep.Outputs = append(rep.Outputs, SinkResult{Sink: sink.Name(), Written: written, Dropped: dropped})
	}
	// Top-level counts come from the primary sink; per-sink detail stays
	// in Outputs.
	if len(rep.Outputs) > 0 {
		rep.CellsComputed = rep.Outputs[0].Written
		rep.CellsDropped = rep.Outputs[0].Dropped
	}
	return nil
}

func (e *Engine) loadInputs(def *Definition, rep *Report, log zerolog.Logger) (map[string]*panel.Table, error) {
	tables := make(map[string]*panel.Table, len(def.Inputs))
	for _, in := range def.Inputs {
		dedup, _ := panel.ParseDedupPolicy(in.Dedup)
		path := in.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.cfg.DataDir, path)
		}
		t, err := xio.LoadCSV(xio.LoadSpec{
			Path:         path,
			Table:        in.Table,
			EntityColumn: in.EntityColumn,
			PeriodColumn: in.PeriodColumn,
			Columns:      in.Columns,
			Dedup:        dedup,
			FillZero:     in.FillZero,
		})
		if err != nil {
			return nil, err
		}
		rep.RowsLoaded[in.Table] = t.Len()
		if e.metrics != nil {
			e.metrics.RowsLoaded.WithLabelValues(in.Table).Add(float64(t.Len()))
		}
		log.Debug().Str("table", in.Table).Int("rows", t.Len()).Msg("input loaded")
		tables[in.Table] = t
	}
	return tables, nil
}

// applyStep runs one operator and attaches its output column(s).
func (e *Engine) applyStep(ctx context.Context, t *panel.Table, s *Step) error {
	mode, _ := temporal.ParseMode(s.Mode)
	switch s.Op {
	case "lag", "lead":
		k := s.K
		if s.Op == "lead" {
			k = -k
		}
		out := missingColumn(t.Len())
		err := e.perEntity(ctx, t, func(chunk []panel.EntitySpan) error {
			return temporal.LagSpans(t, s.Field, k, mode, chunk, out)
		})
		if err != nil {
			return err
		}
		return t.AddField(s.Out, out)

	case "rolling":
		minValid := s.MinValid
		if minValid == 0 {
			minValid = s.Window // full window unless relaxed explicitly
		}
		stat, _ := temporal.ParseStat(s.Stat)
		out := missingColumn(t.Len())
		err := e.perEntity(ctx, t, func(chunk []panel.EntitySpan) error {
			return temporal.RollingSpans(t, s.Field, s.Window, minValid, stat, mode, chunk, out)
		})
		if err != nil {
			return err
		}
		return t.AddField(s.Out, out)

	case "compound_return":
		out := missingColumn(t.Len())
		err := e.perEntity(ctx, t, func(chunk []panel.EntitySpan) error {
			return temporal.CompoundReturnSpans(t, s.Field, s.FromLag, s.ToLag, mode, chunk, out)
		})
		if err != nil {
			return err
		}
		return t.AddField(s.Out, out)

	case "regress":
		minObs := s.MinObs
		if minObs == 0 {
			minObs = s.Window // full window unless relaxed explicitly
		}
		cfg := regress.Config{
			Dependent:      s.Dependent,
			Regressors:     s.Regressors,
			Window:         s.Window,
			MinObs:         minObs,
			NoIntercept:    s.NoIntercept,
			ExcludeCurrent: s.ExcludeCurrent,
			Mode:           mode,
		}
		res := regress.NewResults(cfg, t.Len())
		err := e.perEntity(ctx, t, func(chunk []panel.EntitySpan) error {
			return regress.RollingOLSSpans(t, cfg, chunk, res)
		})
		if err != nil {
			return err
		}
		return attachRegressOutputs(t, cfg, res, s.Outputs)

	case "bucket":
		out, err := crosssection.QuantileBucket(t, s.Field, s.Buckets)
		if err != nil {
			return err
		}
		return t.AddField(s.Out, out)

	case "group_adjust":
		stat, _ := crosssection.ParseGroupStat(s.GroupStat)
		out, err := crosssection.GroupAdjust(t, s.Field, s.GroupField, stat)
		if err != nil {
			return err
		}
		return t.AddField(s.Out, out)

	case "winsorize":
		out, err := crosssection.Winsorize(t, s.Field, s.LowPct, s.HighPct)
		if err != nil {
			return err
		}
		return t.AddField(s.Out, out)

	case "combine":
		out, err := combine(t, s)
		if err != nil {
			return err
		}
		return t.AddField(s.Out, out)

	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
}

// perEntity fans span chunks out to the worker pool. Chunks write to
// disjoint row ranges, so no synchronization beyond the join is needed.
func (e *Engine) perEntity(ctx context.Context, t *panel.Table, fn func(chunk []panel.EntitySpan) error) error {
	spans := t.EntitySpans()
	if len(spans) == 0 {
		return nil
	}
	chunkSize := e.cfg.ChunkEntities
	if chunkSize < 1 {
		chunkSize = 1
	}
	var chunks [][]panel.EntitySpan
	for i := 0; i < len(spans); i += chunkSize {
		j := i + chunkSize
		if j > len(spans) {
			j = len(spans)
		}
		chunks = append(chunks, spans[i:j])
	}

	workers := e.cfg.Workers
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers <= 1 {
		for _, c := range chunks {
			if err := fn(c); err != nil {
				return err
			}
		}
		return nil
	}

	jobs := make(chan []panel.EntitySpan)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if err := fn(c); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	for _, c := range chunks {
		select {
		case jobs <- c:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

// attachRegressOutputs maps result keys like "coef.mktrf", "stderr.const",
// "r2", "resid", "nobs" onto new table fields.
func attachRegressOutputs(t *panel.Table, cfg regress.Config, res *regress.Results, outputs map[string]string) error {
	paramIdx := make(map[string]int, len(res.Params))
	for i, name := range res.Params {
		paramIdx[name] = i
	}
	for key, field := range outputs {
		var col []float64
		switch key {
		case "r2":
			col = res.R2
		case "resid":
			col = res.Resid
		case "nobs":
			col = res.NObs
		default:
			kind, param, ok := splitRegressKey(key)
			if !ok {
				return fmt.Errorf("unknown regression output %q", key)
			}
			j, ok := paramIdx[param]
			if !ok {
				return fmt.Errorf("regression output %q names no fitted parameter", key)
			}
			switch kind {
			case "coef":
				col = res.Coef[j]
			case "stderr":
				col = res.StdErr[j]
			case "tstat":
				col = res.TStat[j]
			}
		}
		if err := t.AddField(field, col); err != nil {
			return err
		}
	}
	return nil
}

func splitRegressKey(key string) (kind, param string, ok bool) {
	for _, k := range []string{"coef.", "stderr.", "tstat."} {
		if len(key) > len(k) && key[:len(k)] == k {
			return k[:len(k)-1], key[len(k):], true
		}
	}
	return "", "", false
}

func missingColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = panel.Missing()
	}
	return col
}
