// Package normalize maps raw source samples onto interval buckets.
//
// Each sample lands in the bucket floor(ts / width) * width. When several samples
// share a bucket, the one with the latest raw timestamp wins; on an exact tie the
// sample that appears later in the input wins. Output is sorted ascending by
// bucket and contains at most one point per bucket.
package normalize

import (
	"sort"

	"github.com/rickgao/polymarket-data/internal/model"
)

// Normalize buckets samples for one token and interval. The interval must be
// valid; callers validate before calling. Empty input yields empty output.
func Normalize(tokenID string, interval model.Interval, samples []model.Sample) []model.PricePoint {
	if len(samples) == 0 {
		return []model.PricePoint{}
	}

	type winner struct {
		ts    int64
		price int
	}
	buckets := make(map[int64]winner, len(samples))

	for _, s := range samples {
		b := interval.Floor(s.TS)
		cur, ok := buckets[b]
		if !ok || s.TS >= cur.ts {
			buckets[b] = winner{ts: s.TS, price: s.Price}
		}
	}

	points := make([]model.PricePoint, 0, len(buckets))
	for b, w := range buckets {
		points = append(points, model.PricePoint{
			TokenID:  tokenID,
			Interval: interval,
			BucketTS: b,
			Price:    w.price,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].BucketTS < points[j].BucketTS
	})

	return points
}

// InWindow drops samples outside r.
func InWindow(samples []model.Sample, r model.TimeRange) []model.Sample {
	out := samples[:0:0]
	for _, s := range samples {
		if r.Contains(s.TS) {
			out = append(out, s)
		}
	}
	return out
}

// FillGaps forward-fills missing buckets between the first and last point.
// Points must be sorted ascending and share one interval. The input is not modified.
func FillGaps(points []model.PricePoint) []model.PricePoint {
	if len(points) < 2 {
		return append([]model.PricePoint(nil), points...)
	}

	step := points[0].Interval.WidthMicro()
	if step <= 0 {
		return append([]model.PricePoint(nil), points...)
	}

	out := make([]model.PricePoint, 0, len(points))
	out = append(out, points[0])
	for _, p := range points[1:] {
		prev := out[len(out)-1]
		for ts := prev.BucketTS + step; ts < p.BucketTS; ts += step {
			filled := prev
			filled.BucketTS = ts
			out = append(out, filled)
		}
		out = append(out, p)
	}
	return out
}

// Floor returns the start of the bucket containing ts.
func Floor(ts int64, interval model.Interval) int64 {
	return interval.Floor(ts)
}
