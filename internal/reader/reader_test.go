package reader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/store"
)

const hour = int64(3600 * 1_000_000)

// brokenStore fails every query.
type brokenStore struct {
	store.Store
}

func (brokenStore) GetMarket(ctx context.Context, tokenID string) (model.Market, error) {
	return model.Market{}, errors.New("connection refused")
}

func newSeededStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.UpsertMarkets(ctx, []model.Market{
		{TokenID: "tok-a", Volume24h: 10, Active: true, UpdatedAt: 1},
		{TokenID: "tok-empty", Volume24h: 5, Active: true, UpdatedAt: 1},
	}); err != nil {
		t.Fatal(err)
	}

	points := []model.PricePoint{
		{TokenID: "tok-a", Interval: model.Interval1h, BucketTS: 1 * hour, Price: 100},
		{TokenID: "tok-a", Interval: model.Interval1h, BucketTS: 2 * hour, Price: 200},
		{TokenID: "tok-a", Interval: model.Interval1h, BucketTS: 5 * hour, Price: 500},
		{TokenID: "tok-a", Interval: model.Interval1d, BucketTS: 0, Price: 42},
	}
	if _, err := st.UpsertPricePoints(ctx, points); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestGetPriceHistory(t *testing.T) {
	ctx := context.Background()
	svc := New(newSeededStore(t))

	tests := []struct {
		name  string
		token string
		iv    model.Interval
		q     Query
		want  []int64
	}{
		{"all ascending", "tok-a", model.Interval1h, Query{}, []int64{1 * hour, 2 * hour, 5 * hour}},
		{"range", "tok-a", model.Interval1h, Query{Start: 2 * hour, End: 5 * hour}, []int64{2 * hour, 5 * hour}},
		{"limit keeps earliest", "tok-a", model.Interval1h, Query{Limit: 2}, []int64{1 * hour, 2 * hour}},
		{"fill gaps", "tok-a", model.Interval1h, Query{Start: 2 * hour, FillGaps: true}, []int64{2 * hour, 3 * hour, 4 * hour, 5 * hour}},
		{"other interval", "tok-a", model.Interval1d, Query{}, []int64{0}},
		{"inverted range", "tok-a", model.Interval1h, Query{Start: 5 * hour, End: 1 * hour}, []int64{}},
		{"known market no data", "tok-empty", model.Interval1h, Query{}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetPriceHistory(ctx, tt.token, tt.iv, tt.q)
			if err != nil {
				t.Fatalf("GetPriceHistory: %v", err)
			}
			if got == nil {
				t.Fatal("got nil slice, want non-nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d points, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, ts := range tt.want {
				if got[i].BucketTS != ts {
					t.Errorf("point %d bucket = %d, want %d", i, got[i].BucketTS, ts)
				}
			}
		})
	}
}

func TestGetPriceHistory_FillCarriesPrice(t *testing.T) {
	svc := New(newSeededStore(t))
	got, err := svc.GetPriceHistory(context.Background(), "tok-a", model.Interval1h, Query{Start: 2 * hour, FillGaps: true})
	if err != nil {
		t.Fatal(err)
	}
	if got[1].Price != 200 || got[2].Price != 200 || got[3].Price != 500 {
		t.Errorf("filled prices = %+v", got)
	}
}

func TestGetPriceHistory_Errors(t *testing.T) {
	ctx := context.Background()
	seeded := newSeededStore(t)

	tests := []struct {
		name  string
		store store.Store
		token string
		iv    model.Interval
		want  error
	}{
		{"unsupported interval", seeded, "tok-a", "max", model.ErrUnsupportedInterval},
		{"unknown market", seeded, "tok-missing", model.Interval1h, model.ErrUnknownMarket},
		{"store down", brokenStore{seeded}, "tok-a", model.Interval1h, model.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.store).GetPriceHistory(ctx, tt.token, tt.iv, Query{})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPriceChanges(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) int64 { return now.Add(-d).UnixMicro() }

	st := store.NewMemory()
	if err := st.UpsertMarkets(ctx, []model.Market{{TokenID: "tok-a", UpdatedAt: 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.UpsertPricePoints(ctx, []model.PricePoint{
		{TokenID: "tok-a", Interval: model.Interval1h, BucketTS: at(10 * 24 * time.Hour), Price: 30000},
		{TokenID: "tok-a", Interval: model.Interval1h, BucketTS: at(25 * time.Hour), Price: 50000},
		{TokenID: "tok-a", Interval: model.Interval1h, BucketTS: at(time.Hour), Price: 55000},
	}); err != nil {
		t.Fatal(err)
	}

	svc := New(st, WithClock(func() time.Time { return now }))

	got, err := svc.PriceChanges(ctx, "tok-a", 60000)
	if err != nil {
		t.Fatalf("PriceChanges: %v", err)
	}
	if got.Daily == nil || *got.Daily != 10 {
		t.Errorf("Daily = %v, want 10", got.Daily)
	}
	if got.Weekly == nil || *got.Weekly != 30 {
		t.Errorf("Weekly = %v, want 30", got.Weekly)
	}
	if got.Monthly != nil {
		t.Errorf("Monthly = %v, want nil", *got.Monthly)
	}

	fromStore, err := svc.PriceChanges(ctx, "tok-a", CurrentFromStore)
	if err != nil {
		t.Fatal(err)
	}
	if fromStore.Current != 55000 || *fromStore.Daily != 5 {
		t.Errorf("from store = %+v, daily %v", fromStore, *fromStore.Daily)
	}

	if _, err := svc.PriceChanges(ctx, "tok-missing", 1); !errors.Is(err, model.ErrUnknownMarket) {
		t.Errorf("unknown market err = %v", err)
	}
}

func TestListMarkets(t *testing.T) {
	svc := New(newSeededStore(t))
	got, err := svc.ListMarkets(context.Background(), model.MarketFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].TokenID != "tok-a" {
		t.Errorf("ListMarkets = %+v", got)
	}

	empty, err := New(store.NewMemory()).ListMarkets(context.Background(), model.MarketFilter{})
	if err != nil || empty == nil {
		t.Errorf("empty catalog = %#v, %v; want empty non-nil", empty, err)
	}
}
