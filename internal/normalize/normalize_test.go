package normalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) int64 {
	return base.Add(d).UnixMicro()
}

func TestNormalize(t *testing.T) {
	t.Run("later sample wins within bucket", func(t *testing.T) {
		samples := []model.Sample{
			{TS: at(3 * time.Minute), Price: 40000},
			{TS: at(41 * time.Minute), Price: 42000},
		}
		got := Normalize("tok", model.Interval1h, samples)
		want := []model.PricePoint{
			{TokenID: "tok", Interval: model.Interval1h, BucketTS: at(0), Price: 42000},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Normalize() = %+v, want %+v", got, want)
		}
	})

	t.Run("input order does not matter", func(t *testing.T) {
		samples := []model.Sample{
			{TS: at(41 * time.Minute), Price: 42000},
			{TS: at(3 * time.Minute), Price: 40000},
		}
		got := Normalize("tok", model.Interval1h, samples)
		if len(got) != 1 || got[0].Price != 42000 {
			t.Errorf("Normalize() = %+v, want single point at 42000", got)
		}
	})

	t.Run("equal timestamps keep the later element", func(t *testing.T) {
		samples := []model.Sample{
			{TS: at(10 * time.Minute), Price: 1},
			{TS: at(10 * time.Minute), Price: 2},
		}
		got := Normalize("tok", model.Interval1h, samples)
		if len(got) != 1 || got[0].Price != 2 {
			t.Errorf("Normalize() = %+v, want price 2", got)
		}
	})

	t.Run("sorted ascending one point per bucket", func(t *testing.T) {
		samples := []model.Sample{
			{TS: at(5*time.Hour + time.Minute), Price: 5},
			{TS: at(time.Hour), Price: 1},
			{TS: at(3*time.Hour + 59*time.Minute), Price: 3},
			{TS: at(time.Hour + 30*time.Minute), Price: 11},
		}
		got := Normalize("tok", model.Interval1h, samples)
		wantBuckets := []int64{at(time.Hour), at(3 * time.Hour), at(5 * time.Hour)}
		wantPrices := []int{11, 3, 5}
		if len(got) != len(wantBuckets) {
			t.Fatalf("len = %d, want %d", len(got), len(wantBuckets))
		}
		for i := range got {
			if got[i].BucketTS != wantBuckets[i] || got[i].Price != wantPrices[i] {
				t.Errorf("point[%d] = %+v, want bucket %d price %d", i, got[i], wantBuckets[i], wantPrices[i])
			}
		}
	})

	t.Run("empty in empty out", func(t *testing.T) {
		got := Normalize("tok", model.Interval1d, nil)
		if got == nil || len(got) != 0 {
			t.Errorf("Normalize(nil) = %#v, want empty non-nil slice", got)
		}
	})

	t.Run("idempotent on its own output", func(t *testing.T) {
		samples := []model.Sample{
			{TS: at(time.Minute), Price: 1},
			{TS: at(2 * time.Hour), Price: 2},
		}
		first := Normalize("tok", model.Interval1h, samples)
		again := make([]model.Sample, len(first))
		for i, p := range first {
			again[i] = model.Sample{TS: p.BucketTS, Price: p.Price}
		}
		second := Normalize("tok", model.Interval1h, again)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("renormalized = %+v, want %+v", second, first)
		}
	})
}

func TestInWindow(t *testing.T) {
	samples := []model.Sample{{TS: 1}, {TS: 5}, {TS: 10}, {TS: 11}}
	got := InWindow(samples, model.TimeRange{Start: 5, End: 10})
	if len(got) != 2 || got[0].TS != 5 || got[1].TS != 10 {
		t.Errorf("InWindow() = %+v", got)
	}
	if len(samples) != 4 || samples[0].TS != 1 {
		t.Error("InWindow modified its input")
	}
}

func TestFillGaps(t *testing.T) {
	pt := func(h int, price int) model.PricePoint {
		return model.PricePoint{TokenID: "tok", Interval: model.Interval1h, BucketTS: at(time.Duration(h) * time.Hour), Price: price}
	}

	t.Run("fills missing buckets with previous price", func(t *testing.T) {
		got := FillGaps([]model.PricePoint{pt(0, 10), pt(3, 40)})
		want := []model.PricePoint{pt(0, 10), pt(1, 10), pt(2, 10), pt(3, 40)}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("FillGaps() = %+v, want %+v", got, want)
		}
	})

	t.Run("contiguous unchanged", func(t *testing.T) {
		in := []model.PricePoint{pt(0, 1), pt(1, 2)}
		if got := FillGaps(in); !reflect.DeepEqual(got, in) {
			t.Errorf("FillGaps() = %+v, want %+v", got, in)
		}
	})

	t.Run("short input", func(t *testing.T) {
		if got := FillGaps(nil); len(got) != 0 {
			t.Errorf("FillGaps(nil) = %+v", got)
		}
	})
}
