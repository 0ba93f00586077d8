package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/perf"
	"github.com/sawpanic/esgrun/internal/pipeline"
	"github.com/sawpanic/esgrun/internal/portfolio"
	"github.com/sawpanic/esgrun/internal/ratings"
)

func testResult(t *testing.T) *pipeline.Result {
	t.Helper()
	dates := panel.MustDateIndex([]time.Time{
		time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC),
	})
	long := portfolio.ValueSeries{Label: pipeline.LabelLong, Dates: dates, Values: []float64{1.0, 1.02, 1.01}}
	short := portfolio.ValueSeries{Label: pipeline.LabelShort, Dates: dates, Values: []float64{1.0, 1.0, 1.0}}
	spread, err := portfolio.Spread(long, short)
	require.NoError(t, err)

	var summaries []perf.Summary
	for _, series := range []portfolio.ValueSeries{long, short, spread} {
		s, err := perf.Summarize(series)
		require.NoError(t, err)
		summaries = append(summaries, s)
	}

	started := time.Date(2023, 10, 2, 6, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		RunID:        "run-persist-1",
		Long:         long,
		Short:        short,
		Spread:       spread,
		LongWeights:  map[string]float64{"AAA": 0.6, "BBB": 0.4},
		ShortWeights: map[string]float64{"CCC": 1.0},
		Summaries:    summaries,
		Diagnostics: pipeline.Diagnostics{
			RunID:          "run-persist-1",
			StartedAt:      started,
			FinishedAt:     started.Add(2 * time.Second),
			DroppedSymbols: []string{"EEE"},
		},
	}
}

func TestFromResult(t *testing.T) {
	res := testResult(t)
	run, summaries, points := FromResult(res)

	assert.Equal(t, "run-persist-1", run.RunID)
	assert.Equal(t, res.Diagnostics.StartedAt, run.StartedAt)
	assert.Equal(t, res.Diagnostics.FinishedAt, run.FinishedAt)
	// The window starts at the first trading day, not the anchor.
	assert.Equal(t, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), run.WindowStart)
	assert.Equal(t, time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC), run.WindowEnd)
	assert.Equal(t, []string{"EEE"}, run.DroppedSymbols)
	assert.Equal(t, 0.6, run.LongWeights["AAA"])

	require.Len(t, summaries, 3)
	for _, row := range summaries {
		assert.Equal(t, "run-persist-1", row.RunID)
		assert.Equal(t, 3, row.TradingDays)
	}
	// The long leg moved, so its Sharpe is stored; the flat short leg's is not.
	byLabel := make(map[string]SummaryRow, len(summaries))
	for _, row := range summaries {
		byLabel[row.Label] = row
	}
	require.NotNil(t, byLabel[pipeline.LabelLong].Sharpe)
	assert.Nil(t, byLabel[pipeline.LabelShort].Sharpe)

	require.Len(t, points, 9)
	assert.Equal(t, pipeline.LabelLong, points[0].Label)
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), points[0].Date)
	assert.Equal(t, 1.0, points[0].Value)
	last := points[len(points)-1]
	assert.Equal(t, pipeline.LabelSpread, last.Label)
	assert.Equal(t, time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC), last.Date)
}

func TestFromRecords(t *testing.T) {
	scrapedAt := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)
	records := []ratings.Record{
		{
			Company: "Alpha Corp", Ticker: "NAS:AAA", Exchange: "NAS", CleanTicker: "AAA",
			ESGScore: 12.5, RiskLevel: "Low ESG Risk", RiskBucket: ratings.BucketLow,
		},
		{
			Company: "Private Co", Ticker: "-", ESGScore: 20,
			RiskLevel: "Medium ESG Risk", RiskBucket: ratings.BucketMedium,
		},
	}

	rows := FromRecords(records, scrapedAt)
	require.Len(t, rows, 1, "unlisted companies are skipped")

	row := rows[0]
	assert.Equal(t, "AAA", row.Ticker)
	assert.Equal(t, "Alpha Corp", row.Company)
	assert.Equal(t, "NAS", row.Exchange)
	assert.Equal(t, 12.5, row.ESGScore)
	assert.Equal(t, "Low ESG Risk", row.RiskLevel)
	assert.Equal(t, string(ratings.BucketLow), row.RiskBucket)
	assert.Equal(t, scrapedAt, row.ScrapedAt)
}
