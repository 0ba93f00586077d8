package persistence

import (
	"time"

	"github.com/sawpanic/esgrun/internal/pipeline"
	"github.com/sawpanic/esgrun/internal/portfolio"
	"github.com/sawpanic/esgrun/internal/ratings"
)

// FromResult flattens a pipeline result into its storage rows.
func FromResult(res *pipeline.Result) (Run, []SummaryRow, []SeriesPoint) {
	run := Run{
		RunID:          res.RunID,
		StartedAt:      res.Diagnostics.StartedAt,
		FinishedAt:     res.Diagnostics.FinishedAt,
		LongWeights:    res.LongWeights,
		ShortWeights:   res.ShortWeights,
		DroppedSymbols: res.Diagnostics.DroppedSymbols,
	}
	if res.Long.Len() > 1 {
		run.WindowStart = res.Long.Dates.At(1)
		run.WindowEnd = res.Long.Dates.Last()
	}

	summaries := make([]SummaryRow, 0, len(res.Summaries))
	for _, s := range res.Summaries {
		row := SummaryRow{
			RunID:        res.RunID,
			Label:        s.Label,
			TradingDays:  s.TradingDays,
			TotalReturn:  s.TotalReturn,
			PeriodReturn: s.PeriodReturn,
			PeriodVol:    s.PeriodVol,
		}
		if s.SharpeDefined {
			sharpe := s.Sharpe
			row.Sharpe = &sharpe
		}
		summaries = append(summaries, row)
	}

	var points []SeriesPoint
	for _, series := range []portfolio.ValueSeries{res.Long, res.Short, res.Spread} {
		for i := 0; i < series.Len(); i++ {
			points = append(points, SeriesPoint{
				RunID: res.RunID,
				Label: series.Label,
				Date:  series.Dates.At(i),
				Value: series.Values[i],
			})
		}
	}

	return run, summaries, points
}

// FromRecords converts processed rating records into storage rows,
// skipping unlisted companies that have no clean ticker.
func FromRecords(records []ratings.Record, scrapedAt time.Time) []RatingRow {
	rows := make([]RatingRow, 0, len(records))
	for _, r := range records {
		if r.CleanTicker == "" {
			continue
		}
		rows = append(rows, RatingRow{
			Ticker:     r.CleanTicker,
			Company:    r.Company,
			Exchange:   r.Exchange,
			ESGScore:   r.ESGScore,
			RiskLevel:  r.RiskLevel,
			RiskBucket: string(r.RiskBucket),
			ScrapedAt:  scrapedAt,
		})
	}
	return rows
}
