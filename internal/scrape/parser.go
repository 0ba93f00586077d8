// Package scrape pulls the public Sustainalytics company ratings pages and
// turns them into rating records.
package scrape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sawpanic/esgrun/internal/ratings"
)

// Selectors on the ratings listing page. The pagination widget and row
// layout are stable across pages; rows flagged no-border are separators.
const (
	selPagination  = "#victor-pagination a.pagination-page"
	selCompanyRow  = "div.company-row.d-flex"
	selCompanyCell = "div.w-50"
	selScoreBlock  = "div.company-score"
	selScoreValue  = "div.col-2"
	selRiskLevel   = "div.col-lg-6.col-md-10"
	classNoBorder  = "no-border"
	classSelected  = "selected"
)

// ParseCompanies extracts the rating rows from one listing page. Rows that
// are missing a name, ticker or score are skipped; a page with no usable
// rows is an error, since it means the page layout changed.
func ParseCompanies(html string) ([]ratings.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	var records []ratings.Record
	doc.Find(selCompanyRow).Each(func(i int, row *goquery.Selection) {
		if row.HasClass(classNoBorder) {
			return
		}

		companyCell := row.Find(selCompanyCell).First()
		name := strings.TrimSpace(companyCell.Find("a").First().Text())
		ticker := strings.TrimSpace(companyCell.Find("small").First().Text())

		scoreBlock := row.Find(selScoreBlock).First()
		scoreText := strings.TrimSpace(scoreBlock.Find(selScoreValue).First().Text())
		riskLevel := strings.TrimSpace(scoreBlock.Find(selRiskLevel).First().Text())

		if name == "" || ticker == "" || scoreText == "" {
			return
		}
		score, err := strconv.ParseFloat(scoreText, 64)
		if err != nil {
			return
		}

		records = append(records, ratings.Record{
			Company:   name,
			Ticker:    ticker,
			ESGScore:  score,
			RiskLevel: riskLevel,
		})
	})

	if len(records) == 0 {
		return nil, fmt.Errorf("no company rows found on page")
	}
	return records, nil
}

// ParseTotalPages reads the highest page number from the pagination widget.
func ParseTotalPages(html string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("failed to parse pagination: %w", err)
	}

	max := 0
	doc.Find(selPagination).Each(func(i int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > max {
			max = n
		}
	})
	if max == 0 {
		return 0, fmt.Errorf("pagination widget not found")
	}
	return max, nil
}

// ParseSelectedPage reads the currently highlighted page number.
func ParseSelectedPage(html string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("failed to parse pagination: %w", err)
	}

	text := ""
	doc.Find(selPagination).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.HasClass(classSelected) {
			text = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})
	if text == "" {
		return 0, fmt.Errorf("no selected page in pagination widget")
	}

	page, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("selected page %q is not a number", text)
	}
	return page, nil
}
