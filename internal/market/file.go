package market

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileSource serves bars from a directory of per-symbol files:
// {dir}/{SYMBOL}_{timeframe}.json or .csv. JSON files hold an array of bars;
// CSV files have a date,open,high,low,close,volume header row. Dates parse as
// YYYY-MM-DD or RFC 3339.
type FileSource struct {
	dir string
}

// NewFileSource creates a bar source over a data directory
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Bars implements BarSource
func (f *FileSource) Bars(ctx context.Context, symbol string, tf Timeframe) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Join(f.dir, fmt.Sprintf("%s_%s", symbol, tf))
	if bars, err := loadJSON(base + ".json"); err == nil {
		return checkOrdered(symbol, bars)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s.json: %w", base, err)
	}

	bars, err := loadCSV(base + ".csv")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no data for %s (%s): %s.{json,csv} not found", symbol, tf, base)
		}
		return nil, fmt.Errorf("load %s.csv: %w", base, err)
	}
	return checkOrdered(symbol, bars)
}

func checkOrdered(symbol string, bars []Bar) ([]Bar, error) {
	if !IsOrdered(bars) {
		return nil, fmt.Errorf("bars for %s are not strictly ascending by date", symbol)
	}
	return bars, nil
}

func loadJSON(path string) ([]Bar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bars []Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return bars, nil
}

func loadCSV(path string) ([]Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	// Skip the header row
	bars := make([]Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+2, len(rec))
		}
		date, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		fields := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+2, j+2, err)
			}
			fields[j] = v
		}
		bars = append(bars, Bar{
			Date:   date,
			Open:   fields[0],
			High:   fields[1],
			Low:    fields[2],
			Close:  fields[3],
			Volume: fields[4],
		})
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return t, nil
}
