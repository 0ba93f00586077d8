package ratings

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/esgrun/internal/domain"
)

// DefaultExchanges are the listings kept for tradability. Symbols outside
// these venues have no Databento price coverage in this pipeline.
var DefaultExchanges = []string{"NAS", "NYS"}

// Processor runs the rating pipeline: parse listings, keep major exchanges,
// bucket risk levels.
type Processor struct {
	exchanges map[string]struct{}
}

// NewProcessor creates a processor keeping the given exchanges, or
// DefaultExchanges when none are given.
func NewProcessor(exchanges []string) *Processor {
	if len(exchanges) == 0 {
		exchanges = DefaultExchanges
	}
	keep := make(map[string]struct{}, len(exchanges))
	for _, e := range exchanges {
		keep[e] = struct{}{}
	}
	return &Processor{exchanges: keep}
}

// Result is the processed rating table plus everything worth reporting
// about how it was cleaned.
type Result struct {
	Records  []Record
	Warnings []domain.Warning
	Dropped  int // records removed by parsing or the exchange filter
}

// Process runs the full chain on raw records. Input is never modified.
func (p *Processor) Process(raw []Record) Result {
	parsed := SplitTickers(raw)
	listed := p.FilterExchanges(parsed)
	bucketed, warnings := CategorizeRisk(listed)

	result := Result{
		Records:  bucketed,
		Warnings: warnings,
		Dropped:  len(raw) - len(bucketed),
	}

	log.Info().
		Int("input", len(raw)).
		Int("kept", len(bucketed)).
		Int("dropped", result.Dropped).
		Int("warnings", len(warnings)).
		Msg("Processed ESG ratings")

	return result
}

// SplitTickers parses each record's raw listing into exchange and clean
// ticker. Unlisted records survive with empty parts; the exchange filter
// removes them later.
func SplitTickers(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.Exchange, r.CleanTicker = ParseTicker(r.Ticker)
		out[i] = r
	}
	return out
}

// FilterExchanges keeps only records listed on the configured exchanges.
func (p *Processor) FilterExchanges(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if _, ok := p.exchanges[r.Exchange]; ok {
			out = append(out, r)
		}
	}
	return out
}

// CategorizeRisk buckets each record's raw risk level. Records with an
// unrecognized level are kept with BucketUnknown and reported as warnings;
// candidate selection skips them.
func CategorizeRisk(records []Record) ([]Record, []domain.Warning) {
	out := make([]Record, len(records))
	var warnings []domain.Warning
	for i, r := range records {
		r.RiskBucket = MapRiskLevel(r.RiskLevel)
		if r.RiskBucket == BucketUnknown {
			warnings = append(warnings, domain.Warning{
				Kind:   domain.WarnUnknownRisk,
				Symbol: r.CleanTicker,
				Detail: fmt.Sprintf("unrecognized risk level %q", r.RiskLevel),
			})
		}
		out[i] = r
	}
	return out, warnings
}

// Candidates extracts one bucket's symbol→score map for book construction.
// A clean ticker that appears more than once keeps its first score and
// produces a warning for the rest.
func Candidates(records []Record, bucket RiskBucket) (map[string]float64, []domain.Warning) {
	scores := make(map[string]float64)
	var warnings []domain.Warning
	for _, r := range records {
		if r.RiskBucket != bucket || r.CleanTicker == "" {
			continue
		}
		if _, seen := scores[r.CleanTicker]; seen {
			warnings = append(warnings, domain.Warning{
				Kind:   domain.WarnDuplicateRating,
				Symbol: r.CleanTicker,
				Detail: fmt.Sprintf("duplicate rating in %s bucket, keeping the first", bucket),
			})
			continue
		}
		scores[r.CleanTicker] = r.ESGScore
	}
	return scores, warnings
}

// BucketStats summarizes one risk bucket.
type BucketStats struct {
	Bucket    RiskBucket `json:"bucket"`
	Count     int        `json:"count"`
	MeanScore float64    `json:"mean_score"`
	MinScore  float64    `json:"min_score"`
	MaxScore  float64    `json:"max_score"`
}

// Distribution summarizes score counts per bucket, ordered Low, Medium,
// High, Unknown with empty buckets omitted.
func Distribution(records []Record) []BucketStats {
	byBucket := make(map[RiskBucket][]float64)
	for _, r := range records {
		byBucket[r.RiskBucket] = append(byBucket[r.RiskBucket], r.ESGScore)
	}

	order := []RiskBucket{BucketLow, BucketMedium, BucketHigh, BucketUnknown}
	var out []BucketStats
	for _, bucket := range order {
		scores := byBucket[bucket]
		if len(scores) == 0 {
			continue
		}
		sort.Float64s(scores)
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		out = append(out, BucketStats{
			Bucket:    bucket,
			Count:     len(scores),
			MeanScore: sum / float64(len(scores)),
			MinScore:  scores[0],
			MaxScore:  scores[len(scores)-1],
		})
	}
	return out
}
