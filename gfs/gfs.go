// Package gfs names the GFS 0.25 degree analysis files in the NCAR RDA
// archive (ds084.1) and the wind objects extracted from them.
package gfs

import (
	"fmt"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
)

// DefaultBaseURL is the NCAR RDA ds084.1 archive root.
const DefaultBaseURL = "https://data.rda.ucar.edu/ds084.1"

// DateLayout is the accepted date format.
const DateLayout = "2006-01-02"

// DefaultHours are the four daily GFS cycles.
var DefaultHours = []int{0, 6, 12, 18}

// Cycle is one model run: a UTC date and an hour.
type Cycle struct {
	Date time.Time
	Hour int
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.InvalidInput("parseDate", "invalid date %q (use YYYY-MM-DD)", s)
	}
	return t, nil
}

// Cycles lists every cycle from start to end inclusive, day by day, in hour
// order. hours defaults to DefaultHours when empty.
func Cycles(start, end time.Time, hours []int) ([]Cycle, error) {
	start, end = truncateDay(start), truncateDay(end)
	if start.After(end) {
		return nil, errors.InvalidInput("cycles", "start date %s is after end date %s",
			start.Format(DateLayout), end.Format(DateLayout))
	}
	if len(hours) == 0 {
		hours = DefaultHours
	}
	for _, h := range hours {
		if h < 0 || h > 23 {
			return nil, errors.InvalidInput("cycles", "hour %d is outside 0..23", h)
		}
	}

	var cycles []Cycle
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, h := range hours {
			cycles = append(cycles, Cycle{Date: d, Hour: h})
		}
	}
	return cycles, nil
}

// URL returns the analysis file location under base, e.g.
// <base>/2020/20200101/gfs.0p25.2020010100.f000.grib2.
func (c Cycle) URL(base string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	day := c.day()
	return fmt.Sprintf("%s/%s/%s/gfs.0p25.%s%s.f000.grib2",
		strings.TrimRight(base, "/"), c.Date.Format("2006"), day, day, c.hour())
}

// Key returns the destination object key <prefix>/wind_YYYYMMDD_HH.grb2.
// Trailing slashes of prefix are ignored; an empty prefix yields a bare name.
func (c Cycle) Key(prefix string) string {
	name := fmt.Sprintf("wind_%s_%s.grb2", c.day(), c.hour())
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// String returns the cycle as YYYY-MM-DD HH.
func (c Cycle) String() string {
	return c.Date.Format(DateLayout) + " " + c.hour()
}

func (c Cycle) day() string {
	return c.Date.Format("20060102")
}

func (c Cycle) hour() string {
	return fmt.Sprintf("%02d", c.Hour)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
