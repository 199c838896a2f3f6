package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ExportMetrics writes the run's metrics as an indented JSON blob.
func ExportMetrics(result *Result, path string) error {
	blob := struct {
		Instrument  string  `json:"instrument"`
		StrategyID  string  `json:"strategy_id"`
		StartEquity float64 `json:"start_equity"`
		Metrics     Metrics `json:"metrics"`
		Trades      []Trade `json:"trades"`
	}{
		Instrument:  result.Instrument,
		StrategyID:  result.StrategyID,
		StartEquity: result.StartEquity,
		Metrics:     result.Metrics,
		Trades:      result.Trades,
	}

	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}

// ExportEquityCurve writes the equity curve as a timestamp,equity CSV.
func ExportEquityCurve(result *Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating equity curve file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "equity"}); err != nil {
		return err
	}
	for _, p := range result.EquityCurve {
		row := []string{
			p.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(p.Equity, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
