package panel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PriceRow is one observation from a long-format price file.
type PriceRow struct {
	Date   time.Time // observation date (UTC calendar day)
	Symbol string    // instrument symbol
	Close  float64   // closing price
}

// CSVReader reads long-format price CSVs (ts_event, symbol, close) and
// tolerates common header and timestamp variants.
type CSVReader struct {
	dateFormats []string // supported timestamp layouts, tried in order
}

// NewCSVReader creates a reader with the supported timestamp formats.
func NewCSVReader() *CSVReader {
	return &CSVReader{
		dateFormats: []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05Z",
			"2006-01-02 15:04:05.000",
			"2006-01-02",
		},
	}
}

// LoadPrices reads every row of a price CSV file.
func (r *CSVReader) LoadPrices(filePath string) ([]PriceRow, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open price CSV: %w", err)
	}
	defer file.Close()

	rows, err := r.ReadPrices(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return rows, nil
}

// ReadPrices decodes price rows from an open CSV stream.
func (r *CSVReader) ReadPrices(src io.Reader) ([]PriceRow, error) {
	csvReader := csv.NewReader(src)

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columnMap := r.mapColumns(header)
	for _, required := range []string{"ts_event", "symbol", "close"} {
		if _, exists := columnMap[required]; !exists {
			return nil, fmt.Errorf("price CSV missing required %q column", required)
		}
	}

	var rows []PriceRow
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		ts, err := r.parseTimestamp(record[columnMap["ts_event"]])
		if err != nil {
			return nil, fmt.Errorf("row %v: %w", record, err)
		}
		closePx, err := strconv.ParseFloat(strings.TrimSpace(record[columnMap["close"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %v: bad close price: %w", record, err)
		}

		rows = append(rows, PriceRow{
			Date:   Day(ts),
			Symbol: strings.TrimSpace(record[columnMap["symbol"]]),
			Close:  closePx,
		})
	}

	return rows, nil
}

// mapColumns creates a mapping from normalized column names to indices.
func (r *CSVReader) mapColumns(header []string) map[string]int {
	columnMap := make(map[string]int)
	for i, column := range header {
		columnMap[r.normalizeColumnName(column)] = i
	}
	return columnMap
}

// normalizeColumnName folds common header variants onto the canonical names.
func (r *CSVReader) normalizeColumnName(column string) string {
	switch strings.ToLower(strings.TrimSpace(column)) {
	case "ts", "time", "date", "datetime", "timestamp", "ts_event":
		return "ts_event"
	case "ticker", "instrument", "symbol":
		return "symbol"
	case "close", "close_px", "price", "px":
		return "close"
	default:
		return strings.ToLower(strings.TrimSpace(column))
	}
}

// parseTimestamp tries each supported layout in turn.
func (r *CSVReader) parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, format := range r.dateFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", raw)
}

// PivotClose reshapes long-format price rows into a wide close-price panel:
// one row per distinct date, one column per symbol, NaN where a symbol has
// no observation for a date. A duplicate (date, symbol) observation is an
// error.
func PivotClose(rows []PriceRow) (*Panel, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no price rows to pivot")
	}

	dateSet := make(map[time.Time]struct{})
	bySymbol := make(map[string]map[time.Time]float64)
	for _, row := range rows {
		if row.Symbol == "" {
			return nil, fmt.Errorf("price row with empty symbol at %s", row.Date.Format("2006-01-02"))
		}
		dateSet[row.Date] = struct{}{}
		cells, ok := bySymbol[row.Symbol]
		if !ok {
			cells = make(map[time.Time]float64)
			bySymbol[row.Symbol] = cells
		}
		if _, dup := cells[row.Date]; dup {
			return nil, fmt.Errorf("duplicate observation for %s on %s", row.Symbol, row.Date.Format("2006-01-02"))
		}
		cells[row.Date] = row.Close
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	index, err := NewDateIndex(dates)
	if err != nil {
		return nil, err
	}

	cols := make(map[string][]float64, len(bySymbol))
	for sym, cells := range bySymbol {
		col := make([]float64, index.Len())
		for i := 0; i < index.Len(); i++ {
			if v, ok := cells[index.At(i)]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		cols[sym] = col
	}

	return NewPanel(index, cols)
}

// WriteCSV writes the panel in wide format: a date column followed by one
// column per symbol. NaN cells are written empty.
func (p *Panel) WriteCSV(w io.Writer) error {
	csvWriter := csv.NewWriter(w)

	header := append([]string{"date"}, p.symbols...)
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write panel header: %w", err)
	}

	for i := 0; i < p.index.Len(); i++ {
		record := make([]string, 0, len(p.symbols)+1)
		record = append(record, p.index.At(i).Format("2006-01-02"))
		for _, sym := range p.symbols {
			v := p.cols[sym][i]
			if math.IsNaN(v) {
				record = append(record, "")
			} else {
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write panel row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// SaveCSV writes the panel to a file in wide format.
func (p *Panel) SaveCSV(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create panel CSV: %w", err)
	}
	defer file.Close()
	return p.WriteCSV(file)
}

// SortedSymbols returns symbol set keys in sorted order, a small helper for
// deterministic iteration over symbol maps.
func SortedSymbols(set map[string]float64) []string {
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
