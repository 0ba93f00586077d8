package ratings

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads a ratings file. The scraper emits
// company_name,ticker,esg_score,risk_level; processed files additionally
// carry exchange and clean_ticker, which are picked up when present.
func LoadCSV(filePath string) ([]Record, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ratings CSV: %w", err)
	}
	defer file.Close()

	records, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return records, nil
}

// ReadCSV decodes rating records from an open CSV stream.
func ReadCSV(src io.Reader) ([]Record, error) {
	csvReader := csv.NewReader(src)

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columnMap := make(map[string]int)
	for i, column := range header {
		columnMap[normalizeColumn(column)] = i
	}
	for _, required := range []string{"ticker", "esg_score", "risk_level"} {
		if _, exists := columnMap[required]; !exists {
			return nil, fmt.Errorf("ratings CSV missing required %q column", required)
		}
	}

	cell := func(record []string, name string) string {
		if i, ok := columnMap[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var out []Record
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		score, err := strconv.ParseFloat(cell(record, "esg_score"), 64)
		if err != nil {
			return nil, fmt.Errorf("row %v: bad esg_score: %w", record, err)
		}

		out = append(out, Record{
			Company:     cell(record, "company"),
			Ticker:      cell(record, "ticker"),
			Exchange:    cell(record, "exchange"),
			CleanTicker: cell(record, "clean_ticker"),
			ESGScore:    score,
			RiskLevel:   cell(record, "risk_level"),
			RiskBucket:  RiskBucket(cell(record, "risk_bucket")),
		})
	}

	return out, nil
}

func normalizeColumn(column string) string {
	switch strings.ToLower(strings.TrimSpace(column)) {
	case "company", "company_name", "name":
		return "company"
	case "ticker", "symbol":
		return "ticker"
	case "esg_score", "score":
		return "esg_score"
	case "risk_level", "esg_risk":
		return "risk_level"
	case "risk_bucket", "risk_category":
		return "risk_bucket"
	default:
		return strings.ToLower(strings.TrimSpace(column))
	}
}

// SaveCSV writes processed records with the full column set.
func SaveCSV(filePath string, records []Record) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create ratings CSV: %w", err)
	}
	defer file.Close()
	return WriteCSV(file, records)
}

// WriteCSV writes records to an open stream.
func WriteCSV(w io.Writer, records []Record) error {
	csvWriter := csv.NewWriter(w)

	header := []string{"company_name", "ticker", "exchange", "clean_ticker", "esg_score", "risk_level", "risk_category"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write ratings header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Company,
			r.Ticker,
			r.Exchange,
			r.CleanTicker,
			strconv.FormatFloat(r.ESGScore, 'f', -1, 64),
			r.RiskLevel,
			string(r.RiskBucket),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write ratings row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
