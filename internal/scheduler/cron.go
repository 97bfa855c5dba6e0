// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpr is a parsed five-field cron expression
// (minute hour day-of-month month day-of-week).
type CronExpr struct {
	minute fieldSet
	hour   fieldSet
	dom    fieldSet
	month  fieldSet
	dow    fieldSet
}

// fieldSet holds the allowed values of one cron field. wildcard records
// whether the field was written as a bare *, which matters for the
// standard day-of-month/day-of-week union rule.
type fieldSet struct {
	allowed  map[int]bool
	wildcard bool
}

func (f fieldSet) has(v int) bool {
	return f.allowed[v]
}

// cron @aliases accepted alongside the five-field form.
var cronAliases = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
}

// ParseCron parses a five-field cron expression or one of the @aliases.
// Fields support wildcards, values, ranges, steps and comma lists, e.g.
// "*/15 9-17 1,15 * 1-5".
func ParseCron(expr string) (*CronExpr, error) {
	expr = strings.TrimSpace(expr)
	if alias, ok := cronAliases[strings.ToLower(expr)]; ok {
		expr = alias
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	specs := []struct {
		name string
		min  int
		max  int
		dst  *fieldSet
	}{
		{"minute", 0, 59, nil},
		{"hour", 0, 23, nil},
		{"day-of-month", 1, 31, nil},
		{"month", 1, 12, nil},
		{"day-of-week", 0, 6, nil},
	}

	c := &CronExpr{}
	specs[0].dst = &c.minute
	specs[1].dst = &c.hour
	specs[2].dst = &c.dom
	specs[3].dst = &c.month
	specs[4].dst = &c.dow

	for i, spec := range specs {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron: invalid %s field %q: %w", spec.name, fields[i], err)
		}
		*spec.dst = set
	}

	// day-of-week 7 is a common spelling of Sunday
	if c.dow.allowed[7] {
		delete(c.dow.allowed, 7)
		c.dow.allowed[0] = true
	}

	return c, nil
}

func parseField(field string, min, max int) (fieldSet, error) {
	set := fieldSet{allowed: make(map[int]bool)}

	if field == "*" {
		set.wildcard = true
		for v := min; v <= max; v++ {
			set.allowed[v] = true
		}
		return set, nil
	}

	for _, part := range strings.Split(field, ",") {
		if err := parsePart(part, min, max, set.allowed); err != nil {
			return fieldSet{}, err
		}
	}
	return set, nil
}

// parsePart handles one comma-separated element: a value, a range, or
// either with a /step suffix. Sunday-as-7 is tolerated in day-of-week
// and remapped by the caller.
func parsePart(part string, min, max int, into map[int]bool) error {
	step := 1
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		n, err := strconv.Atoi(part[idx+1:])
		if err != nil || n <= 0 {
			return fmt.Errorf("bad step %q", part[idx+1:])
		}
		step = n
		part = part[:idx]
	}

	start, end := min, max
	switch {
	case part == "*":
		// full range with step
	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		var err error
		if start, err = strconv.Atoi(bounds[0]); err != nil {
			return fmt.Errorf("bad range start %q", bounds[0])
		}
		if end, err = strconv.Atoi(bounds[1]); err != nil {
			return fmt.Errorf("bad range end %q", bounds[1])
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("bad value %q", part)
		}
		start, end = v, v
	}

	// tolerate 7 for Sunday when the field range is day-of-week
	upper := max
	if min == 0 && max == 6 {
		upper = 7
	}
	if start < min || end > upper || start > end {
		return fmt.Errorf("range %d-%d outside [%d-%d]", start, end, min, max)
	}

	for v := start; v <= end; v += step {
		into[v] = true
	}
	return nil
}

// Next returns the first time strictly after from that matches the
// expression, in from's location. The zero time means no match within
// the four-year search horizon.
func (c *CronExpr) Next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	horizon := from.AddDate(4, 0, 0)

	for t.Before(horizon) {
		if !c.month.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !c.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !c.hour.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !c.minute.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

// dayMatches applies the standard cron day rule: when both day-of-month
// and day-of-week are restricted, a day matching either fires; when one
// is a wildcard, only the restricted field decides.
func (c *CronExpr) dayMatches(t time.Time) bool {
	domMatch := c.dom.has(t.Day())
	dowMatch := c.dow.has(int(t.Weekday()))

	if !c.dom.wildcard && !c.dow.wildcard {
		return domMatch || dowMatch
	}
	return domMatch && dowMatch
}

// NextN returns the next n firing times after from.
func (c *CronExpr) NextN(from time.Time, n int) []time.Time {
	times := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = c.Next(t)
		if t.IsZero() {
			break
		}
		times = append(times, t)
	}
	return times
}
