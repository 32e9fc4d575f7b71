package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/strategy/strategies"
)

// RunFile describes one backtest (or sweep) request on disk.
type RunFile struct {
	Strategy  string               `json:"strategy" yaml:"strategy"`
	Params    map[string]float64   `json:"params,omitempty" yaml:"params,omitempty"`
	Symbols   []string             `json:"symbols" yaml:"symbols"`
	Start     string               `json:"start" yaml:"start"` // YYYY-MM-DD
	End       string               `json:"end" yaml:"end"`     // YYYY-MM-DD
	Timeframe string               `json:"timeframe,omitempty" yaml:"timeframe,omitempty"`
	Sweep     map[string][]float64 `json:"sweep,omitempty" yaml:"sweep,omitempty"`
	Export    ExportConfig         `json:"export,omitempty" yaml:"export,omitempty"`
}

// ExportConfig names the directory CSV tables are written to; empty disables it.
type ExportConfig struct {
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// DefaultRunFile returns a runnable example request.
func DefaultRunFile() *RunFile {
	return &RunFile{
		Strategy:  strategies.DipBuyName,
		Params:    map[string]float64{"dip": 0.03, "take_profit": 0.05, "stop_loss": 0.05, "fraction": 0.2},
		Symbols:   []string{"BTCUSDT", "ETHUSDT"},
		Start:     "2024-01-01",
		End:       "2024-06-30",
		Timeframe: string(domain.TimeframeDaily),
		Sweep:     map[string][]float64{"dip": {0.02, 0.03, 0.05}},
	}
}

// LoadRunFile loads a run file (YAML, or JSON as a fallback) and validates it.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}

	rf := &RunFile{}
	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, rf); err != nil {
		if jerr := json.Unmarshal(data, rf); jerr != nil {
			return nil, fmt.Errorf("parse run file (tried YAML and JSON): %w", err)
		}
	}

	if err := rf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run file: %w", err)
	}
	return rf, nil
}

// SaveToFile writes the run file as YAML, or JSON when path ends in .json.
func (r *RunFile) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = yaml.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("marshal run file: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create run file directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write run file: %w", err)
	}
	return nil
}

// Validate checks the request shape. Strategy parameters are checked by the
// strategy constructor.
func (r *RunFile) Validate() error {
	var errs []string
	if r.Strategy == "" {
		errs = append(errs, "strategy is required")
	} else if !knownStrategy(r.Strategy) {
		errs = append(errs, fmt.Sprintf("unknown strategy %q (available: %s)", r.Strategy, strings.Join(strategies.Names(), ", ")))
	}
	if len(r.Symbols) == 0 {
		errs = append(errs, "at least one symbol is required")
	}
	for _, s := range r.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "symbols must not be blank")
			break
		}
	}

	start, startErr := domain.ParseDate(r.Start)
	if startErr != nil {
		errs = append(errs, fmt.Sprintf("start: %v", startErr))
	}
	end, endErr := domain.ParseDate(r.End)
	if endErr != nil {
		errs = append(errs, fmt.Sprintf("end: %v", endErr))
	}
	if startErr == nil && endErr == nil && end.Before(start) {
		errs = append(errs, "end must not be before start")
	}

	switch domain.Timeframe(r.Timeframe) {
	case "", domain.TimeframeDaily, domain.TimeframeHourly:
	default:
		errs = append(errs, fmt.Sprintf("timeframe must be 1d or 1h (got %q)", r.Timeframe))
	}

	names := make([]string, 0, len(r.Sweep))
	for name := range r.Sweep {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(r.Sweep[name]) == 0 {
			errs = append(errs, fmt.Sprintf("sweep.%s has no values", name))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Dates returns the parsed start and end days.
func (r *RunFile) Dates() (time.Time, time.Time, error) {
	start, err := domain.ParseDate(r.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := domain.ParseDate(r.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// TimeframeOrDefault returns the requested timeframe, daily when unset.
func (r *RunFile) TimeframeOrDefault() domain.Timeframe {
	if r.Timeframe == "" {
		return domain.TimeframeDaily
	}
	return domain.Timeframe(r.Timeframe)
}

func knownStrategy(name string) bool {
	for _, n := range strategies.Names() {
		if n == name {
			return true
		}
	}
	return false
}
