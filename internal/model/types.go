package model

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// Market is a prediction market as recorded in the catalog.
type Market struct {
	TokenID     string // Primary key: YES-outcome CLOB token id
	MarketID    string // Gamma market id
	ConditionID string // CTF condition id
	Question    string // Display question
	Slug        string // Market slug
	EventSlug   string // Parent event slug (may be empty)
	Description string

	// Current prices (hundred-thousandths, 0-100,000)
	YesPrice int
	NoPrice  int

	// Volume and liquidity (USD)
	Volume24h   float64
	VolumeTotal float64
	Liquidity   float64

	Tags         []string
	Outcomes     []string
	ClobTokenIDs []string // All outcome token ids, YES first

	Active bool
	Closed bool

	// Timing (µs since epoch)
	EndTS     int64 // Scheduled end (0 if unknown)
	UpdatedAt int64 // Catalog refresh time; newer wins on upsert
}

// RankingVolume returns the volume used for high-volume filtering: the 24h
// volume, or total volume when no 24h figure is reported.
func (m Market) RankingVolume() float64 {
	if m.Volume24h > 0 {
		return m.Volume24h
	}
	return m.VolumeTotal
}

// MarketFilter narrows catalog listings.
type MarketFilter struct {
	ActiveOnly bool    // Exclude inactive or closed markets
	MinVolume  float64 // Minimum RankingVolume (0 = no minimum)
	Limit      int     // Max rows (0 = no limit)
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// Sample is a raw observation returned by the market source.
type Sample struct {
	TS    int64 // Observation time (µs since epoch)
	Price int   // hundred-thousandths
}

// PricePoint is one normalized bucket of price history.
// Unique on (TokenID, Interval, BucketTS).
type PricePoint struct {
	TokenID  string
	Interval Interval
	BucketTS int64 // Bucket start (µs since epoch), aligned to Interval
	Price    int   // hundred-thousandths
}

// TimeRange is a closed range of timestamps (µs since epoch).
// A zero Start or End leaves that side unbounded.
type TimeRange struct {
	Start int64
	End   int64
}

// Contains reports whether ts falls inside the range.
func (r TimeRange) Contains(ts int64) bool {
	if r.Start != 0 && ts < r.Start {
		return false
	}
	if r.End != 0 && ts > r.End {
		return false
	}
	return true
}
