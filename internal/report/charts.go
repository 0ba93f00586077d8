package report

import (
	"fmt"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/sawpanic/esgrun/internal/pipeline"
)

// performanceChart renders all three portfolio series on one canvas.
func performanceChart(res *pipeline.Result) ([]byte, error) {
	values := [][]float64{res.Long.Values, res.Short.Values, res.Spread.Values}
	names := []string{res.Long.Label, res.Short.Label, res.Spread.Label}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc("ESG Long-Short Performance"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        dateLabels(res.Long.Dates),
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: 10,
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

// spreadHistogram renders the distribution of day-to-day spread changes.
func spreadHistogram(res *pipeline.Result) ([]byte, error) {
	labels, counts := spreadBuckets(res.Spread.Values, 10)
	if len(counts) == 0 {
		return nil, fmt.Errorf("spread series too short for a histogram")
	}

	painter, err := charts.BarRender([][]float64{counts},
		charts.TitleTextOptionFunc("Daily Spread Changes"),
		charts.XAxisDataOptionFunc(labels),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(400),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

// spreadBuckets bins the first differences of a series into equal-width
// buckets. Labels carry each bucket's midpoint. A constant-difference
// series collapses to a single bucket.
func spreadBuckets(values []float64, bins int) ([]string, []float64) {
	if len(values) < 2 || bins < 1 {
		return nil, nil
	}
	diffs := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs = append(diffs, values[i]-values[i-1])
	}

	low, high := diffs[0], diffs[0]
	for _, d := range diffs[1:] {
		if d < low {
			low = d
		}
		if d > high {
			high = d
		}
	}
	if low == high {
		return []string{fmt.Sprintf("%.4f", low)}, []float64{float64(len(diffs))}
	}

	width := (high - low) / float64(bins)
	counts := make([]float64, bins)
	for _, d := range diffs {
		i := int((d - low) / width)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	labels := make([]string, bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.4f", low+width*(float64(i)+0.5))
	}
	return labels, counts
}
