package scrape

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sawpanic/esgrun/internal/ratings"
)

func listingHTML(selected, total int, companies ...[3]string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")

	sb.WriteString(`<div id="victor-pagination">`)
	for p := 1; p <= total; p++ {
		class := "pagination-page"
		if p == selected {
			class += " selected"
		}
		fmt.Fprintf(&sb, `<a class="%s">%d</a>`, class, p)
	}
	sb.WriteString("</div>")

	sb.WriteString(`<div class="company-row d-flex no-border"><div class="w-50">Company</div></div>`)
	for _, c := range companies {
		fmt.Fprintf(&sb, `<div class="company-row d-flex">
			<div class="w-50"><a href="/esg-rating/x">%s</a><small>%s</small></div>
			<div class="company-score"><div class="col-2">%s</div><div class="col-lg-6 col-md-10">Low ESG Risk</div></div>
		</div>`, c[0], c[1], c[2])
	}

	sb.WriteString("</body></html>")
	return sb.String()
}

func TestParseCompaniesExtractsRows(t *testing.T) {
	html := listingHTML(1, 3,
		[3]string{"Apple Inc", "NAS:AAPL", "17.2"},
		[3]string{"Microsoft Corp", "NAS:MSFT", "13.9"},
	)

	records, err := ParseCompanies(html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Company != "Apple Inc" || records[0].Ticker != "NAS:AAPL" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[0].ESGScore != 17.2 || records[0].RiskLevel != "Low ESG Risk" {
		t.Errorf("score/level not parsed: %+v", records[0])
	}
}

func TestParseCompaniesSkipsHeaderAndBrokenRows(t *testing.T) {
	html := listingHTML(1, 1,
		[3]string{"Good Co", "NYS:GOOD", "20.5"},
		[3]string{"", "NYS:NONAME", "10"},
		[3]string{"Bad Score", "NYS:BAD", "n/a"},
	)

	records, err := ParseCompanies(html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Company != "Good Co" {
		t.Errorf("expected only the valid row, got %+v", records)
	}

	if _, err := ParseCompanies("<html><body>nothing here</body></html>"); err == nil {
		t.Error("expected error for a page with no company rows")
	}
}

func TestParsePagination(t *testing.T) {
	html := listingHTML(2, 7, [3]string{"X", "NAS:X", "1"})

	total, err := ParseTotalPages(html)
	if err != nil || total != 7 {
		t.Errorf("total pages = %d (err=%v), want 7", total, err)
	}

	selected, err := ParseSelectedPage(html)
	if err != nil || selected != 2 {
		t.Errorf("selected page = %d (err=%v), want 2", selected, err)
	}

	if _, err := ParseTotalPages("<html></html>"); err == nil {
		t.Error("expected error without a pagination widget")
	}
}

// fakeSource serves canned listing pages keyed by page number.
type fakeSource struct {
	pages     map[int]string
	failPages map[int]int // page -> failures left before success
	opens     int
}

func (f *fakeSource) Open(ctx context.Context, url string) (string, error) {
	f.opens++
	return f.pages[1], nil
}

func (f *fakeSource) GotoPage(ctx context.Context, page int) (string, error) {
	if left := f.failPages[page]; left > 0 {
		f.failPages[page] = left - 1
		return "", fmt.Errorf("navigation flake on page %d", page)
	}
	html, ok := f.pages[page]
	if !ok {
		return "", fmt.Errorf("no page %d", page)
	}
	return html, nil
}

func (f *fakeSource) Close() {}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.RPS = 1000
	return cfg
}

func TestScraperWalksAllPages(t *testing.T) {
	src := &fakeSource{pages: map[int]string{
		1: listingHTML(1, 3, [3]string{"A Co", "NAS:A", "10"}, [3]string{"B Co", "NAS:B", "20"}),
		2: listingHTML(2, 3, [3]string{"C Co", "NYS:C", "30"}),
		3: listingHTML(3, 3, [3]string{"D Co", "NYS:D", "40"}),
	}}

	cfg := testConfig(t)
	records, err := New(src, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records across 3 pages, got %d", len(records))
	}

	// The final dataset must land on disk.
	final := filepath.Join(cfg.OutputDir, "esg_ratings_final.csv")
	if _, err := os.Stat(final); err != nil {
		t.Errorf("final CSV missing: %v", err)
	}
	saved, err := ratings.LoadCSV(final)
	if err != nil {
		t.Fatalf("failed to reload final CSV: %v", err)
	}
	if len(saved) != 4 {
		t.Errorf("final CSV has %d records, want 4", len(saved))
	}
}

func TestScraperHonorsConfiguredEndPage(t *testing.T) {
	src := &fakeSource{pages: map[int]string{
		1: listingHTML(1, 9, [3]string{"A Co", "NAS:A", "10"}),
		2: listingHTML(2, 9, [3]string{"B Co", "NAS:B", "20"}),
	}}

	cfg := testConfig(t)
	cfg.EndPage = 2
	records, err := New(src, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records from 2 pages, got %d", len(records))
	}
}

func TestScraperRecoversFromNavigationFlake(t *testing.T) {
	src := &fakeSource{
		pages: map[int]string{
			1: listingHTML(1, 2, [3]string{"A Co", "NAS:A", "10"}),
			2: listingHTML(2, 2, [3]string{"B Co", "NAS:B", "20"}),
		},
		failPages: map[int]int{2: 1},
	}

	records, err := New(src, testConfig(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected recovery to collect both pages, got %d records", len(records))
	}
	if src.opens < 2 {
		t.Errorf("expected a listing reload during recovery, opens=%d", src.opens)
	}
}

func TestScraperSkipsPersistentlyBrokenPage(t *testing.T) {
	src := &fakeSource{
		pages: map[int]string{
			1: listingHTML(1, 3, [3]string{"A Co", "NAS:A", "10"}),
			3: listingHTML(3, 3, [3]string{"C Co", "NYS:C", "30"}),
		},
		failPages: map[int]int{2: 99},
	}

	records, err := New(src, testConfig(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected pages 1 and 3 despite page 2 failing, got %d records", len(records))
	}
}
