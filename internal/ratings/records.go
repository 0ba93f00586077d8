// Package ratings cleans scraped Sustainalytics ESG ratings and selects the
// long and short candidate books.
package ratings

import "strings"

// RiskBucket is the coarse risk category used for book construction.
type RiskBucket string

const (
	BucketLow     RiskBucket = "Low Risk"    // negligible or low ESG risk
	BucketMedium  RiskBucket = "Medium Risk" // medium ESG risk, not traded
	BucketHigh    RiskBucket = "High Risk"   // high or severe ESG risk
	BucketUnknown RiskBucket = "Unknown"     // unrecognized raw risk level
)

// riskLevels maps the raw Sustainalytics risk labels onto buckets.
var riskLevels = map[string]RiskBucket{
	"Negligible ESG Risk": BucketLow,
	"Low ESG Risk":        BucketLow,
	"Medium ESG Risk":     BucketMedium,
	"High ESG Risk":       BucketHigh,
	"Severe ESG Risk":     BucketHigh,
}

// MapRiskLevel buckets a raw risk label. Unrecognized labels map to
// BucketUnknown; the caller decides whether that is worth a warning.
func MapRiskLevel(raw string) RiskBucket {
	if bucket, ok := riskLevels[strings.TrimSpace(raw)]; ok {
		return bucket
	}
	return BucketUnknown
}

// Record is one company's ESG rating as it moves through the cleaning
// pipeline. Records are plain values; every pipeline step returns a new
// slice and leaves its input alone.
type Record struct {
	Company     string     `json:"company"`      // company display name
	Ticker      string     `json:"ticker"`       // raw listing, e.g. "NAS:AAPL"
	Exchange    string     `json:"exchange"`     // parsed exchange code, empty if unlisted
	CleanTicker string     `json:"clean_ticker"` // parsed bare symbol, empty if unlisted
	ESGScore    float64    `json:"esg_score"`    // Sustainalytics risk score, higher is riskier
	RiskLevel   string     `json:"risk_level"`   // raw label, e.g. "Low ESG Risk"
	RiskBucket  RiskBucket `json:"risk_bucket"`  // bucketed category
}

// ParseTicker splits a raw listing of the form "EXCH:SYMBOL". A bare "-"
// marks an unlisted company and yields empty parts, as does a listing with
// no exchange separator.
func ParseTicker(raw string) (exchange, clean string) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return "", ""
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
