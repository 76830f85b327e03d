// Package signal turns declarative definitions into panel computations.
// A signal names its input tables, the merges that join them, a sequence
// of operator steps, and the output field; the engine executes that
// composition. Each signal used to be its own bespoke script; the step
// vocabulary here is the shared substance those scripts reimplemented.
package signal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aepodrez/crosssignals/internal/crosssection"
	"github.com/aepodrez/crosssignals/internal/panel"
	"github.com/aepodrez/crosssignals/internal/temporal"
)

// Definition is one signal's declarative recipe.
type Definition struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Inputs      []Input     `yaml:"inputs"`
	Merges      []MergeSpec `yaml:"merges,omitempty"`
	Steps       []Step      `yaml:"steps"`
	// Output names the field written as the signal's value.
	Output string `yaml:"output"`
}

// Input declares one source table. The first input is the working table
// the merges fold the others into.
type Input struct {
	Table        string   `yaml:"table"`
	Path         string   `yaml:"path"`
	EntityColumn string   `yaml:"entity_column"`
	PeriodColumn string   `yaml:"period_column"`
	Columns      []string `yaml:"columns"`
	Dedup        string   `yaml:"dedup,omitempty"`
	FillZero     []string `yaml:"fill_zero,omitempty"`
}

// MergeSpec joins a named input into the working table. On selects the
// join key: the full (entity, period) key, or period alone for per-period
// tables (market factors) broadcast to every entity.
type MergeSpec struct {
	Table  string `yaml:"table"`
	How    string `yaml:"how,omitempty"`
	On     string `yaml:"on,omitempty"` // "key" (default) or "period"
	Suffix string `yaml:"suffix,omitempty"`
}

// Step is one operator application. Op selects the operator; the other
// fields are that operator's parameters.
type Step struct {
	Op  string `yaml:"op"`
	Out string `yaml:"out,omitempty"`

	// lag, lead, rolling, compound_return, bucket, group_adjust, winsorize
	Field string `yaml:"field,omitempty"`
	// lag / lead
	K    int    `yaml:"k,omitempty"`
	Mode string `yaml:"mode,omitempty"`
	// rolling
	Window   int    `yaml:"window,omitempty"`
	MinValid int    `yaml:"min_valid,omitempty"`
	Stat     string `yaml:"stat,omitempty"`
	// compound_return
	FromLag int `yaml:"from_lag,omitempty"`
	ToLag   int `yaml:"to_lag,omitempty"`
	// regress
	Dependent      string            `yaml:"dependent,omitempty"`
	Regressors     []string          `yaml:"regressors,omitempty"`
	MinObs         int               `yaml:"min_obs,omitempty"`
	NoIntercept    bool              `yaml:"no_intercept,omitempty"`
	ExcludeCurrent bool              `yaml:"exclude_current,omitempty"`
	Outputs        map[string]string `yaml:"outputs,omitempty"`
	// bucket
	Buckets int `yaml:"buckets,omitempty"`
	// group_adjust
	GroupField string `yaml:"group_field,omitempty"`
	GroupStat  string `yaml:"group_stat,omitempty"`
	// winsorize
	LowPct  float64 `yaml:"low_pct,omitempty"`
	HighPct float64 `yaml:"high_pct,omitempty"`
	// combine
	Fn    string   `yaml:"fn,omitempty"`
	Left  string   `yaml:"left,omitempty"`
	Right string   `yaml:"right,omitempty"`
	Const *float64 `yaml:"const,omitempty"`
}

// Validate checks the definition is executable before any data is read.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("signal definition needs a name")
	}
	if len(d.Inputs) == 0 {
		return fmt.Errorf("signal %s: needs at least one input", d.Name)
	}
	for i, in := range d.Inputs {
		if in.Path == "" || in.EntityColumn == "" || in.PeriodColumn == "" {
			return fmt.Errorf("signal %s: input %d must declare path, entity_column, period_column", d.Name, i)
		}
		if len(in.Columns) == 0 {
			return fmt.Errorf("signal %s: input %d declares no value columns", d.Name, i)
		}
		if _, err := panel.ParseDedupPolicy(in.Dedup); err != nil {
			return fmt.Errorf("signal %s: input %d: %w", d.Name, i, err)
		}
	}
	tables := make(map[string]bool, len(d.Inputs))
	for _, in := range d.Inputs {
		tables[in.Table] = true
	}
	for _, m := range d.Merges {
		if !tables[m.Table] {
			return fmt.Errorf("signal %s: merge references unknown table %q", d.Name, m.Table)
		}
		if _, err := panel.ParseHow(m.How); err != nil {
			return fmt.Errorf("signal %s: %w", d.Name, err)
		}
		switch m.On {
		case "", "key", "period":
		default:
			return fmt.Errorf("signal %s: merge on %q: want key or period", d.Name, m.On)
		}
	}
	if d.Output == "" {
		return fmt.Errorf("signal %s: needs an output field", d.Name)
	}
	for i := range d.Steps {
		if err := d.Steps[i].validate(d.Name, i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Step) validate(signal string, i int) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("signal %s step %d (%s): %s", signal, i, s.Op, fmt.Sprintf(format, args...))
	}
	if s.Op != "regress" && s.Out == "" {
		return fail("needs an out field")
	}
	if _, err := temporal.ParseMode(s.Mode); err != nil {
		return fail("%v", err)
	}
	switch s.Op {
	case "lag", "lead":
		if s.Field == "" || s.K <= 0 {
			return fail("needs field and positive k")
		}
	case "rolling":
		if s.Field == "" || s.Window <= 0 {
			return fail("needs field and positive window")
		}
		if s.MinValid < 0 || s.MinValid > s.Window {
			return fail("min_valid %d out of range for window %d", s.MinValid, s.Window)
		}
		if _, err := temporal.ParseStat(s.Stat); err != nil {
			return fail("%v", err)
		}
	case "compound_return":
		if s.Field == "" || s.FromLag > s.ToLag {
			return fail("needs field and from_lag <= to_lag")
		}
	case "regress":
		if s.Dependent == "" || len(s.Regressors) == 0 {
			return fail("needs dependent and regressors")
		}
		if s.Window <= 0 {
			return fail("needs positive window")
		}
		if s.MinObs < 0 || s.MinObs > s.Window {
			return fail("min_obs %d out of range for window %d", s.MinObs, s.Window)
		}
		if len(s.Outputs) == 0 {
			return fail("needs at least one output mapping")
		}
		for key := range s.Outputs {
			if err := validateRegressKey(key, s); err != nil {
				return fail("%v", err)
			}
		}
	case "bucket":
		if s.Field == "" || s.Buckets < 2 {
			return fail("needs field and at least 2 buckets")
		}
	case "group_adjust":
		if s.Field == "" || s.GroupField == "" {
			return fail("needs field and group_field")
		}
		if _, err := crosssection.ParseGroupStat(s.GroupStat); err != nil {
			return fail("%v", err)
		}
	case "winsorize":
		if s.Field == "" || s.LowPct < 0 || s.HighPct > 100 || s.LowPct >= s.HighPct {
			return fail("needs field and 0 <= low_pct < high_pct <= 100")
		}
	case "combine":
		if !validCombineFn(s.Fn) {
			return fail("unknown fn %q", s.Fn)
		}
		if s.Left == "" {
			return fail("needs a left field")
		}
		if !combineFns[s.Fn].unary && s.Right == "" && s.Const == nil {
			return fail("needs a right field or a const")
		}
	default:
		return fail("unknown op")
	}
	return nil
}

func validateRegressKey(key string, s *Step) error {
	switch key {
	case "r2", "resid", "nobs":
		return nil
	}
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("unknown regression output %q", key)
	}
	switch parts[0] {
	case "coef", "stderr", "tstat":
	default:
		return fmt.Errorf("unknown regression output %q", key)
	}
	if parts[1] == "const" && !s.NoIntercept {
		return nil
	}
	for _, r := range s.Regressors {
		if parts[1] == r {
			return nil
		}
	}
	return fmt.Errorf("regression output %q names no fitted parameter", key)
}

// UsesLead reports whether any step looks forward in time. Forward-looking
// targets must be an explicit, documented exception; callers surface this.
func (d *Definition) UsesLead() bool {
	for _, s := range d.Steps {
		if s.Op == "lead" {
			return true
		}
	}
	return false
}

// LoadDefinition reads and validates one YAML signal definition.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signal definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse signal definition %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinitionDir reads every *.yaml definition in a directory, sorted
// by file name.
func LoadDefinitionDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read signal directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	defs := make([]*Definition, 0, len(paths))
	for _, p := range paths {
		def, err := LoadDefinition(p)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
