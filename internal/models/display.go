package models

import (
	"github.com/sdcoffey/big"
)

// MarketCapBucket labels used by list views for grouping and color coding.
const (
	BucketMicro = "micro" // < $50k
	BucketSmall = "small" // $50k - $500k
	BucketMid   = "mid"   // $500k - $5M
	BucketLarge = "large" // >= $5M
)

// MarketCapBucket returns the display bucket for a market cap value.
// A nil or non-positive market cap falls into the micro bucket.
func MarketCapBucket(marketCap *float64) string {
	if marketCap == nil || *marketCap <= 0 {
		return BucketMicro
	}
	switch {
	case *marketCap < 50_000:
		return BucketMicro
	case *marketCap < 500_000:
		return BucketSmall
	case *marketCap < 5_000_000:
		return BucketMid
	default:
		return BucketLarge
	}
}

// FormatPrice renders a price for display. Meme-coin prices are frequently
// far below one cent, so small values keep more precision than large ones.
func FormatPrice(price *float64) string {
	if price == nil {
		return "-"
	}
	d := big.NewDecimal(*price)
	switch {
	case *price <= 0:
		return "$0.00"
	case *price < 0.01:
		return "$" + d.FormattedString(8)
	case *price < 1:
		return "$" + d.FormattedString(4)
	default:
		return "$" + d.FormattedString(2)
	}
}

// FormatMarketCap renders a market cap with a magnitude suffix.
func FormatMarketCap(marketCap *float64) string {
	if marketCap == nil || *marketCap <= 0 {
		return "-"
	}
	mc := *marketCap
	switch {
	case mc >= 1_000_000_000:
		return "$" + big.NewDecimal(mc/1_000_000_000).FormattedString(2) + "B"
	case mc >= 1_000_000:
		return "$" + big.NewDecimal(mc/1_000_000).FormattedString(2) + "M"
	case mc >= 1_000:
		return "$" + big.NewDecimal(mc/1_000).FormattedString(2) + "K"
	default:
		return "$" + big.NewDecimal(mc).FormattedString(0)
	}
}
