package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField is the set of values a single cron field matches.
type cronField struct {
	star bool
	bits uint64
}

func (f cronField) matches(v int) bool {
	return f.bits&(1<<uint(v)) != 0
}

// parseCronField parses one field: "*", "5", "1,15", "9-17", "*/10" or
// "0-30/5", validated against [lo, hi].
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" || field == "?" {
		return cronField{star: true, bits: rangeBits(lo, hi, 1)}, nil
	}

	var f cronField
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		rng, stepStr, hasStep := strings.Cut(part, "/")

		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid step %q", stepStr)
			}
			step = n
		}

		start, end := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if start, err = strconv.Atoi(a); err != nil {
				return cronField{}, fmt.Errorf("invalid range start %q", a)
			}
			if end, err = strconv.Atoi(b); err != nil {
				return cronField{}, fmt.Errorf("invalid range end %q", b)
			}
		default:
			n, err := strconv.Atoi(rng)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron field value %q", rng)
			}
			start = n
			end = n
			if hasStep {
				end = hi
			}
		}

		if start < lo || end > hi || start > end {
			return cronField{}, fmt.Errorf("value %q out of range %d-%d", part, lo, hi)
		}
		f.bits |= rangeBits(start, end, step)
	}
	return f, nil
}

func rangeBits(lo, hi, step int) uint64 {
	var b uint64
	for v := lo; v <= hi; v += step {
		b |= 1 << uint(v)
	}
	return b
}

// Schedule is a parsed cron expression. Both the classic five-field form
// (minute hour day-of-month month day-of-week) and the six-field form with a
// leading seconds field are accepted.
type Schedule struct {
	expr       string
	second     cronField
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

// Parse parses a cron expression.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	switch len(fields) {
	case 5:
		fields = append([]string{"0"}, fields...)
	case 6:
	default:
		return nil, fmt.Errorf("scheduler: cron expression %q must have 5 or 6 fields, got %d", expr, len(fields))
	}

	specs := []struct {
		name   string
		lo, hi int
	}{
		{"second", 0, 59},
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 7},
	}
	parsed := make([]cronField, len(specs))
	for i, spec := range specs {
		f, err := parseCronField(fields[i], spec.lo, spec.hi)
		if err != nil {
			return nil, fmt.Errorf("scheduler: parsing %s field: %w", spec.name, err)
		}
		parsed[i] = f
	}

	// 7 is an alias for Sunday.
	dow := parsed[5]
	if dow.matches(7) {
		dow.bits |= 1
	}

	return &Schedule{
		expr:       expr,
		second:     parsed[0],
		minute:     parsed[1],
		hour:       parsed[2],
		dayOfMonth: parsed[3],
		month:      parsed[4],
		dayOfWeek:  dow,
	}, nil
}

// String returns the original expression.
func (s *Schedule) String() string { return s.expr }

// matchesDay applies the usual cron rule: when both day fields are
// restricted, either may match.
func (s *Schedule) matchesDay(t time.Time) bool {
	dom := s.dayOfMonth.matches(t.Day())
	dow := s.dayOfWeek.matches(int(t.Weekday()))
	if !s.dayOfMonth.star && !s.dayOfWeek.star {
		return dom || dow
	}
	return dom && dow
}

func (s *Schedule) matchesMinute(t time.Time) bool {
	return s.month.matches(int(t.Month())) &&
		s.matchesDay(t) &&
		s.hour.matches(t.Hour()) &&
		s.minute.matches(t.Minute())
}

// Next returns the first activation strictly after the given time. It
// searches minute by minute up to one year ahead and returns the zero time
// if nothing matches.
func (s *Schedule) Next(after time.Time) time.Time {
	candidate := after.Truncate(time.Second).Add(time.Second)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if s.matchesMinute(candidate) {
			for sec := candidate.Second(); sec < 60; sec++ {
				if s.second.matches(sec) {
					return candidate.Truncate(time.Minute).Add(time.Duration(sec) * time.Second)
				}
			}
		}
		candidate = candidate.Truncate(time.Minute).Add(time.Minute)
	}
	return time.Time{}
}
