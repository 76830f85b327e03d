package panel

import (
	"fmt"
	"strconv"
	"strings"
)

// Period identifies one calendar month on the panel's time axis. It is
// stored as a flat month index (year*12 + month-1) so month arithmetic
// across year boundaries is plain integer addition.
type Period int

// NewPeriod builds a Period from a calendar year and month (1-12).
func NewPeriod(year, month int) Period {
	return Period(year*12 + month - 1)
}

// Year returns the calendar year of the period.
func (p Period) Year() int { return int(p) / 12 }

// Month returns the calendar month of the period (1-12).
func (p Period) Month() int { return int(p)%12 + 1 }

// Add returns the period k months later (earlier for negative k).
func (p Period) Add(k int) Period { return p + Period(k) }

// YYYYMM encodes the period as year*100+month, the on-disk integer format.
func (p Period) YYYYMM() int { return p.Year()*100 + p.Month() }

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year(), p.Month())
}

// PeriodFromYYYYMM decodes a year*100+month integer.
func PeriodFromYYYYMM(v int) (Period, error) {
	year, month := v/100, v%100
	if month < 1 || month > 12 || year < 1 {
		return 0, fmt.Errorf("invalid yyyymm period %d", v)
	}
	return NewPeriod(year, month), nil
}

// ParsePeriod parses a period from the formats source panels carry:
// "yyyymm", "yyyy-mm", or a full date "yyyy-mm-dd" (day ignored).
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, "-"):
		parts := strings.SplitN(s, "-", 3)
		year, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", s, err)
		}
		month, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", s, err)
		}
		if month < 1 || month > 12 {
			return 0, fmt.Errorf("invalid period %q: month out of range", s)
		}
		return NewPeriod(year, month), nil
	case len(s) == 6:
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", s, err)
		}
		return PeriodFromYYYYMM(v)
	default:
		return 0, fmt.Errorf("invalid period %q: want yyyymm, yyyy-mm, or yyyy-mm-dd", s)
	}
}
