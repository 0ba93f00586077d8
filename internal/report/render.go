package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/pipeline"
)

const levelNote = "Period figures use the level-series convention: mean and stdev of " +
	"portfolio levels scaled by N and sqrt(N). They are not return-based " +
	"annualized figures."

// RenderText prints the performance summary to w the way the CLI shows it
// after a run.
func RenderText(w io.Writer, res *pipeline.Result) {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, " PORTFOLIO PERFORMANCE SUMMARY")
	fmt.Fprintln(w, line)

	if res.Long.Len() > 1 {
		fmt.Fprintf(w, " Window: %s to %s (%d trading days)\n",
			res.Long.Dates.At(1).Format("2006-01-02"),
			res.Long.Dates.Last().Format("2006-01-02"),
			res.Long.Len()-1)
	}

	for _, s := range res.Summaries {
		fmt.Fprintf(w, "\n %s\n", s.Label)
		fmt.Fprintf(w, "   Total Return:   %.4f%%\n", s.TotalReturn*100)
		fmt.Fprintf(w, "   Period Return:  %.4f  (level convention)\n", s.PeriodReturn)
		fmt.Fprintf(w, "   Period Vol:     %.4f  (level convention)\n", s.PeriodVol)
		fmt.Fprintf(w, "   Sharpe:         %s\n", s.SharpeString())
	}

	fmt.Fprintf(w, "\n Long book:  %s\n", formatWeights(res.LongWeights))
	fmt.Fprintf(w, " Short book: %s\n", formatWeights(res.ShortWeights))

	diag := res.Diagnostics
	if len(diag.DroppedSymbols) > 0 {
		fmt.Fprintf(w, " Dropped:    %s\n", strings.Join(diag.DroppedSymbols, ", "))
	}
	if counts := diag.WarningsByKind(); len(counts) > 0 {
		fmt.Fprintf(w, " Warnings:   %s\n", formatCounts(counts))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, " Note: "+levelNote)
	fmt.Fprintln(w, line)
}

// generateMarkdown builds the full markdown report body.
func generateMarkdown(summary RunSummary) string {
	var b strings.Builder

	b.WriteString("# ESG Long-Short Performance Report\n\n")
	b.WriteString(fmt.Sprintf("**Run**: %s\n", summary.RunID))
	b.WriteString(fmt.Sprintf("**Generated**: %s\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))
	if !summary.Window.Start.IsZero() {
		b.WriteString(fmt.Sprintf("**Window**: %s to %s\n",
			summary.Window.Start.Format("2006-01-02"),
			summary.Window.End.Format("2006-01-02")))
	}
	b.WriteString("\n## Performance\n\n")
	b.WriteString("| Component | Total Return | Period Return | Period Vol | Sharpe |\n")
	b.WriteString("|-----------|--------------|---------------|------------|--------|\n")
	for _, s := range summary.Summaries {
		b.WriteString(fmt.Sprintf("| %s | %.4f%% | %.4f | %.4f | %s |\n",
			s.Label, s.TotalReturn*100, s.PeriodReturn, s.PeriodVol, s.SharpeString()))
	}
	b.WriteString("\n" + levelNote + "\n")

	b.WriteString("\n## Books\n\n")
	b.WriteString(fmt.Sprintf("- **Long**: %s\n", formatWeights(summary.LongWeights)))
	b.WriteString(fmt.Sprintf("- **Short**: %s\n", formatWeights(summary.ShortWeights)))

	diag := summary.Diagnostics
	b.WriteString("\n## Diagnostics\n\n")
	if len(diag.DroppedSymbols) > 0 {
		b.WriteString(fmt.Sprintf("- **Dropped symbols**: %s\n", strings.Join(diag.DroppedSymbols, ", ")))
	} else {
		b.WriteString("- **Dropped symbols**: none\n")
	}
	if counts := diag.WarningsByKind(); len(counts) > 0 {
		b.WriteString(fmt.Sprintf("- **Warnings**: %s\n", formatCounts(counts)))
	} else {
		b.WriteString("- **Warnings**: none\n")
	}

	if len(diag.RiskDistribution) > 0 {
		b.WriteString("\n### Risk Distribution\n\n")
		b.WriteString("| Bucket | Count | Mean Score | Min | Max |\n")
		b.WriteString("|--------|-------|------------|-----|-----|\n")
		for _, stats := range diag.RiskDistribution {
			b.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %.2f |\n",
				stats.Bucket, stats.Count, stats.MeanScore, stats.MinScore, stats.MaxScore))
		}
	}

	if len(diag.Timings) > 0 {
		b.WriteString("\n### Stage Timings\n\n")
		for _, timing := range diag.Timings {
			b.WriteString(fmt.Sprintf("- %s: %v\n", timing.Stage, timing.Elapsed))
		}
	}

	return b.String()
}

// formatWeights renders a weight map as "SYM 66.67%, SYM 33.33%" in
// symbol order.
func formatWeights(weights map[string]float64) string {
	parts := make([]string, 0, len(weights))
	for _, sym := range panel.SortedSymbols(weights) {
		parts = append(parts, fmt.Sprintf("%s %.2f%%", sym, weights[sym]*100))
	}
	return strings.Join(parts, ", ")
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
