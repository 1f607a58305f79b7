package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func TestFileSourceCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AAPL_daily.csv", `date,open,high,low,close,volume
2024-01-02,185.0,186.5,184.0,186.0,50000000
2024-01-03,186.0,187.0,185.5,186.5,42000000
`)

	source := NewFileSource(dir)
	bars, err := source.Bars(context.Background(), "AAPL", TimeframeDaily)
	require.NoError(t, err)

	require.Len(t, bars, 2)
	assert.Equal(t, 186.0, bars[0].Close)
	assert.Equal(t, 42000000.0, bars[1].Volume)
	assert.True(t, IsOrdered(bars))
}

func TestFileSourceJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "MSFT_weekly.json", `[
  {"date":"2024-01-05T00:00:00Z","open":370,"high":375,"low":368,"close":374,"volume":100},
  {"date":"2024-01-12T00:00:00Z","open":374,"high":380,"low":373,"close":379,"volume":120}
]`)

	source := NewFileSource(dir)
	bars, err := source.Bars(context.Background(), "MSFT", TimeframeWeekly)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 379.0, bars[1].Close)
}

func TestFileSourceMissingSymbol(t *testing.T) {
	source := NewFileSource(t.TempDir())
	_, err := source.Bars(context.Background(), "NOPE", TimeframeDaily)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data for NOPE")
}

func TestFileSourceUnorderedRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BAD_daily.csv", `date,open,high,low,close,volume
2024-01-03,1,1,1,1,1
2024-01-02,1,1,1,1,1
`)

	source := NewFileSource(dir)
	_, err := source.Bars(context.Background(), "BAD", TimeframeDaily)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascending")
}

func TestFileSourceMalformedRow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BAD_daily.csv", `date,open,high,low,close,volume
2024-01-02,not-a-number,1,1,1,1
`)

	source := NewFileSource(dir)
	_, err := source.Bars(context.Background(), "BAD", TimeframeDaily)
	require.Error(t, err)
}
