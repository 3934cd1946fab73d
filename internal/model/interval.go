package model

import (
	"fmt"
	"time"
)

// Interval is a supported bucket width for price history.
type Interval string

// Supported intervals.
const (
	Interval1m Interval = "1m"
	Interval1h Interval = "1h"
	Interval6h Interval = "6h"
	Interval1d Interval = "1d"
	Interval1w Interval = "1w"
)

var intervalWidths = map[Interval]time.Duration{
	Interval1m: time.Minute,
	Interval1h: time.Hour,
	Interval6h: 6 * time.Hour,
	Interval1d: 24 * time.Hour,
	Interval1w: 7 * 24 * time.Hour,
}

// Intervals returns all supported intervals, narrowest first.
func Intervals() []Interval {
	return []Interval{Interval1m, Interval1h, Interval6h, Interval1d, Interval1w}
}

// ParseInterval validates s as a supported interval.
// The source's "max" pseudo-interval is not a bucket width and is rejected.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalWidths[iv]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInterval, s)
	}
	return iv, nil
}

// Valid reports whether the interval is supported.
func (i Interval) Valid() bool {
	_, ok := intervalWidths[i]
	return ok
}

// Width returns the bucket width. Zero for unsupported intervals.
func (i Interval) Width() time.Duration {
	return intervalWidths[i]
}

// WidthMicro returns the bucket width in microseconds.
func (i Interval) WidthMicro() int64 {
	return i.Width().Microseconds()
}

// Floor aligns ts (µs since epoch) to the start of its bucket.
// Buckets are aligned to the Unix epoch, so weekly buckets start on Thursdays.
func (i Interval) Floor(ts int64) int64 {
	w := i.WidthMicro()
	if w <= 0 {
		return ts
	}
	r := ts % w
	if r < 0 {
		r += w
	}
	return ts - r
}

func (i Interval) String() string {
	return string(i)
}
