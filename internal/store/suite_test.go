package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rickgao/polymarket-data/internal/model"
)

const hour = int64(3600 * 1_000_000)

func testMarket(token string, vol float64, updatedAt int64) model.Market {
	return model.Market{
		TokenID:      token,
		MarketID:     "m-" + token,
		Question:     "Question " + token,
		Slug:         "slug-" + token,
		YesPrice:     52000,
		NoPrice:      48000,
		Volume24h:    vol,
		VolumeTotal:  vol * 10,
		Tags:         []string{"Politics"},
		Outcomes:     []string{"Yes", "No"},
		ClobTokenIDs: []string{token, token + "-no"},
		Active:       true,
		UpdatedAt:    updatedAt,
	}
}

func pt(token string, iv model.Interval, bucket int64, price int) model.PricePoint {
	return model.PricePoint{TokenID: token, Interval: iv, BucketTS: bucket, Price: price}
}

// runStoreSuite checks the Store contract against any backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("market upsert and get", func(t *testing.T) {
		s := newStore(t)

		if _, err := s.GetMarket(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetMarket(missing) err = %v, want ErrNotFound", err)
		}

		m := testMarket("tok-a", 100, 10)
		if err := s.UpsertMarkets(ctx, []model.Market{m}); err != nil {
			t.Fatalf("UpsertMarkets: %v", err)
		}
		got, err := s.GetMarket(ctx, "tok-a")
		if err != nil {
			t.Fatalf("GetMarket: %v", err)
		}
		if got.Question != m.Question || got.YesPrice != 52000 || got.Volume24h != 100 || !got.Active {
			t.Errorf("GetMarket = %+v", got)
		}
		if len(got.Tags) != 1 || got.Tags[0] != "Politics" || len(got.ClobTokenIDs) != 2 {
			t.Errorf("lists = %v / %v", got.Tags, got.ClobTokenIDs)
		}
	})

	t.Run("market last write wins on updated_at", func(t *testing.T) {
		s := newStore(t)

		newer := testMarket("tok-a", 100, 20)
		newer.Question = "newer"
		older := testMarket("tok-a", 100, 10)
		older.Question = "older"

		if err := s.UpsertMarkets(ctx, []model.Market{newer}); err != nil {
			t.Fatal(err)
		}
		if err := s.UpsertMarkets(ctx, []model.Market{older}); err != nil {
			t.Fatal(err)
		}
		got, _ := s.GetMarket(ctx, "tok-a")
		if got.Question != "newer" {
			t.Errorf("Question = %q, want newer (stale write applied)", got.Question)
		}

		tie := testMarket("tok-a", 100, 20)
		tie.Question = "tie"
		if err := s.UpsertMarkets(ctx, []model.Market{tie}); err != nil {
			t.Fatal(err)
		}
		got, _ = s.GetMarket(ctx, "tok-a")
		if got.Question != "tie" {
			t.Errorf("Question = %q, want tie (incoming wins on equal updated_at)", got.Question)
		}
	})

	t.Run("list markets ordering and filters", func(t *testing.T) {
		s := newStore(t)
		closed := testMarket("tok-c", 500, 1)
		closed.Closed = true
		markets := []model.Market{
			testMarket("tok-a", 10, 1),
			testMarket("tok-b", 300, 1),
			closed,
		}
		if err := s.UpsertMarkets(ctx, markets); err != nil {
			t.Fatal(err)
		}

		all, err := s.ListMarkets(ctx, model.MarketFilter{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 || all[0].TokenID != "tok-c" || all[2].TokenID != "tok-a" {
			t.Errorf("ListMarkets order = %v", tokens(all))
		}

		active, _ := s.ListMarkets(ctx, model.MarketFilter{ActiveOnly: true})
		if len(active) != 2 || active[0].TokenID != "tok-b" {
			t.Errorf("ActiveOnly = %v", tokens(active))
		}

		big, _ := s.ListMarkets(ctx, model.MarketFilter{MinVolume: 100})
		if len(big) != 2 {
			t.Errorf("MinVolume = %v", tokens(big))
		}

		one, _ := s.ListMarkets(ctx, model.MarketFilter{Limit: 1})
		if len(one) != 1 {
			t.Errorf("Limit = %v", tokens(one))
		}
	})

	t.Run("price points idempotent upsert", func(t *testing.T) {
		s := newStore(t)
		points := []model.PricePoint{
			pt("tok-a", model.Interval1h, 0, 100),
			pt("tok-a", model.Interval1h, hour, 200),
		}

		n, err := s.UpsertPricePoints(ctx, points)
		if err != nil {
			t.Fatalf("UpsertPricePoints: %v", err)
		}
		if n != 2 {
			t.Errorf("first upsert changed = %d, want 2", n)
		}

		n, err = s.UpsertPricePoints(ctx, points)
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("repeat upsert changed = %d, want 0", n)
		}

		n, err = s.UpsertPricePoints(ctx, []model.PricePoint{pt("tok-a", model.Interval1h, hour, 250)})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("price change upsert changed = %d, want 1", n)
		}

		got, err := s.QueryPricePoints(ctx, "tok-a", model.Interval1h, model.TimeRange{}, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Price != 100 || got[1].Price != 250 {
			t.Errorf("QueryPricePoints = %+v", got)
		}
	})

	t.Run("duplicate keys in one batch keep the last", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertPricePoints(ctx, []model.PricePoint{
			pt("tok-a", model.Interval1h, 0, 1),
			pt("tok-a", model.Interval1h, 0, 2),
		})
		if err != nil {
			t.Fatalf("UpsertPricePoints: %v", err)
		}
		got, _ := s.QueryPricePoints(ctx, "tok-a", model.Interval1h, model.TimeRange{}, 0)
		if len(got) != 1 || got[0].Price != 2 {
			t.Errorf("QueryPricePoints = %+v, want single point priced 2", got)
		}
	})

	t.Run("series are isolated by interval and token", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertPricePoints(ctx, []model.PricePoint{
			pt("tok-a", model.Interval1h, 0, 1),
			pt("tok-a", model.Interval1d, 0, 2),
			pt("tok-b", model.Interval1h, 0, 3),
		})
		if err != nil {
			t.Fatal(err)
		}
		got, _ := s.QueryPricePoints(ctx, "tok-a", model.Interval1d, model.TimeRange{}, 0)
		if len(got) != 1 || got[0].Price != 2 || got[0].Interval != model.Interval1d {
			t.Errorf("1d series = %+v", got)
		}
	})

	t.Run("query range and limit", func(t *testing.T) {
		s := newStore(t)
		var points []model.PricePoint
		for i := int64(1); i <= 5; i++ {
			points = append(points, pt("tok-a", model.Interval1h, i*hour, int(i)))
		}
		if _, err := s.UpsertPricePoints(ctx, points); err != nil {
			t.Fatal(err)
		}

		got, _ := s.QueryPricePoints(ctx, "tok-a", model.Interval1h, model.TimeRange{Start: 2 * hour, End: 4 * hour}, 0)
		if len(got) != 3 || got[0].BucketTS != 2*hour || got[2].BucketTS != 4*hour {
			t.Errorf("range query = %+v", got)
		}

		got, _ = s.QueryPricePoints(ctx, "tok-a", model.Interval1h, model.TimeRange{Start: 2 * hour}, 2)
		if len(got) != 2 || got[0].BucketTS != 2*hour || got[1].BucketTS != 3*hour {
			t.Errorf("limited query = %+v", got)
		}

		empty, err := s.QueryPricePoints(ctx, "tok-z", model.Interval1h, model.TimeRange{}, 0)
		if err != nil || empty == nil || len(empty) != 0 {
			t.Errorf("empty series = %#v, %v; want empty non-nil", empty, err)
		}
	})

	t.Run("max timestamp", func(t *testing.T) {
		s := newStore(t)
		if _, ok, err := s.MaxTimestamp(ctx, "tok-a", model.Interval1h); err != nil || ok {
			t.Fatalf("empty MaxTimestamp ok = %v, err = %v", ok, err)
		}
		_, err := s.UpsertPricePoints(ctx, []model.PricePoint{
			pt("tok-a", model.Interval1h, 3*hour, 1),
			pt("tok-a", model.Interval1h, hour, 1),
			pt("tok-a", model.Interval1d, 100*hour, 1),
		})
		if err != nil {
			t.Fatal(err)
		}
		ts, ok, err := s.MaxTimestamp(ctx, "tok-a", model.Interval1h)
		if err != nil || !ok || ts != 3*hour {
			t.Errorf("MaxTimestamp = %d, %v, %v; want %d", ts, ok, err, 3*hour)
		}
	})

	t.Run("concurrent upserts converge", func(t *testing.T) {
		s := newStore(t)
		points := []model.PricePoint{
			pt("tok-a", model.Interval1h, 0, 7),
			pt("tok-a", model.Interval1h, hour, 8),
		}
		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.UpsertPricePoints(ctx, points); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent upsert: %v", err)
		}
		got, _ := s.QueryPricePoints(ctx, "tok-a", model.Interval1h, model.TimeRange{}, 0)
		if len(got) != 2 {
			t.Errorf("after concurrent upserts = %+v", got)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func tokens(ms []model.Market) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.TokenID
	}
	return out
}
