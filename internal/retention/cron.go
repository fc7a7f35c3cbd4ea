package retention

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cron is a parsed 5-field cron expression (minute, hour, day-of-month,
// month, day-of-week). Each field is a bitset of the values it allows.
type Cron struct {
	minute, hour, dom, month, dow uint64

	// restricted day fields are OR-ed as in classic cron
	domAny, dowAny bool
}

var aliases = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
}

func ParseCron(expr string) (*Cron, error) {
	if a, ok := aliases[strings.TrimSpace(expr)]; ok {
		expr = a
	}
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	c := &Cron{domAny: fields[2] == "*", dowAny: fields[4] == "*"}
	specs := []struct {
		name     string
		min, max int
		dst      *uint64
	}{
		{"minute", 0, 59, &c.minute},
		{"hour", 0, 23, &c.hour},
		{"day-of-month", 1, 31, &c.dom},
		{"month", 1, 12, &c.month},
		{"day-of-week", 0, 7, &c.dow},
	}
	for i, s := range specs {
		bits, err := parseField(fields[i], s.min, s.max)
		if err != nil {
			return nil, fmt.Errorf("%s field: %w", s.name, err)
		}
		*s.dst = bits
	}
	// 7 is Sunday too
	if c.dow&(1<<7) != 0 {
		c.dow |= 1
	}
	return c, nil
}

func (c *Cron) Matches(t time.Time) bool {
	if !has(c.minute, t.Minute()) || !has(c.hour, t.Hour()) || !has(c.month, int(t.Month())) {
		return false
	}
	dom, dow := has(c.dom, t.Day()), has(c.dow, int(t.Weekday()))
	switch {
	case c.domAny && c.dowAny:
		return true
	case c.domAny:
		return dow
	case c.dowAny:
		return dom
	}
	return dom || dow
}

// Next returns the first minute strictly after t that matches, or the zero
// time when none does within five years.
func (c *Cron) Next(t time.Time) time.Time {
	t = t.Truncate(time.Minute).Add(time.Minute)
	for end := t.AddDate(5, 0, 0); t.Before(end); t = t.Add(time.Minute) {
		if c.Matches(t) {
			return t
		}
	}
	return time.Time{}
}

func has(bits uint64, v int) bool {
	return bits&(1<<uint(v)) != 0
}

// parseField supports *, */n, n, n-m, n-m/s and comma-separated lists.
func parseField(field string, min, max int) (uint64, error) {
	var bits uint64
	for _, part := range strings.Split(field, ",") {
		lo, hi, step, err := parseRange(part, min, max)
		if err != nil {
			return 0, err
		}
		for v := lo; v <= hi; v += step {
			bits |= 1 << uint(v)
		}
	}
	return bits, nil
}

func parseRange(part string, min, max int) (lo, hi, step int, err error) {
	step = 1
	rng, stepStr, stepped := strings.Cut(part, "/")
	if stepped {
		if step, err = strconv.Atoi(stepStr); err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid step: %s", part)
		}
	}

	switch {
	case rng == "*":
		lo, hi = min, max
	case strings.Contains(rng, "-"):
		a, b, _ := strings.Cut(rng, "-")
		if lo, err = strconv.Atoi(a); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range start: %s", a)
		}
		if hi, err = strconv.Atoi(b); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range end: %s", b)
		}
	default:
		if lo, err = strconv.Atoi(rng); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid value: %s", rng)
		}
		hi = lo
		if stepped {
			hi = max
		}
	}
	if lo < min || hi > max || lo > hi {
		return 0, 0, 0, fmt.Errorf("value %s out of range %d-%d", rng, min, max)
	}
	return lo, hi, step, nil
}
