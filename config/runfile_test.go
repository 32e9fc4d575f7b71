package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestEngine/internal/domain"
)

func TestRunFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"run.yaml", "nested/run.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, DefaultRunFile().SaveToFile(path))

			rf, err := LoadRunFile(path)
			require.NoError(t, err)
			assert.Equal(t, DefaultRunFile(), rf)
		})
	}
}

func TestLoadRunFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := `strategy: sma_trend
params:
  period: 10
symbols: [AAPL, MSFT]
start: "2023-01-03"
end: "2023-12-29"
sweep:
  period: [5, 10, 20]
export:
  dir: out
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	rf, err := LoadRunFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sma_trend", rf.Strategy)
	assert.Equal(t, 10.0, rf.Params["period"])
	assert.Equal(t, []float64{5, 10, 20}, rf.Sweep["period"])
	assert.Equal(t, "out", rf.Export.Dir)
	assert.Equal(t, domain.TimeframeDaily, rf.TimeframeOrDefault())

	start, end, err := rf.Dates()
	require.NoError(t, err)
	assert.Equal(t, "2023-01-03", start.Format(domain.DateLayout))
	assert.Equal(t, "2023-12-29", end.Format(domain.DateLayout))
}

func TestRunFileValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunFile)
		wantErr string
	}{
		{"valid", func(r *RunFile) {}, ""},
		{"missing strategy", func(r *RunFile) { r.Strategy = "" }, "strategy is required"},
		{"unknown strategy", func(r *RunFile) { r.Strategy = "martingale" }, "unknown strategy"},
		{"no symbols", func(r *RunFile) { r.Symbols = nil }, "at least one symbol"},
		{"blank symbol", func(r *RunFile) { r.Symbols = []string{"AAA", " "} }, "must not be blank"},
		{"bad start", func(r *RunFile) { r.Start = "01/02/2024" }, "start:"},
		{"reversed", func(r *RunFile) { r.Start, r.End = r.End, r.Start }, "end must not be before start"},
		{"timeframe", func(r *RunFile) { r.Timeframe = "5m" }, "timeframe must be"},
		{"empty sweep", func(r *RunFile) { r.Sweep["dip"] = nil }, "sweep.dip has no values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := DefaultRunFile()
			tt.mutate(rf)
			err := rf.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadRunFileErrors(t *testing.T) {
	_, err := LoadRunFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read run file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: dip_buy\nsymbols: []\nstart: \"2024-01-01\"\nend: \"2024-01-02\"\n"), 0644))
	_, err = LoadRunFile(path)
	assert.ErrorContains(t, err, "invalid run file")
}
