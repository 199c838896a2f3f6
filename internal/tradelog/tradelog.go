// Package tradelog appends signal decisions and execution outcomes to
// flat date-stamped CSV files.
package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"futures-trading-bot/internal/risk"
	"futures-trading-bot/internal/signal"
)

var signalHeader = []string{
	"timestamp", "strategy_id", "signal_id", "instrument", "direction",
	"entry_price", "stop_price", "tp1", "tp2", "tp3", "max_loss_usd", "notes",
}

var executionHeader = []string{
	"timestamp", "strategy_id", "signal_id", "instrument", "direction",
	"status", "position_size", "entry_price", "stop_price",
	"risk_usd", "risk_pct", "r_multiple", "reason",
}

// Logger writes the two append-only CSV logs. Files are created per day
// with the header written once.
type Logger struct {
	dir string

	mu  sync.Mutex
	now func() time.Time
}

// NewLogger creates a trade logger writing under dir, creating it when
// missing.
func NewLogger(dir string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &Logger{dir: dir, now: time.Now}, nil
}

// LogSignal appends one signal decision row.
func (l *Logger) LogSignal(sig *signal.TradeSignal) error {
	tps := [3]string{}
	for i := 0; i < 3 && i < len(sig.TakeProfits); i++ {
		tps[i] = formatPrice(sig.TakeProfits[i])
	}

	row := []string{
		l.timestamp(),
		sig.StrategyID,
		sig.SignalID,
		sig.Instrument,
		string(sig.Direction),
		formatPrice(sig.EntryPrice),
		formatPrice(sig.StopPrice),
		tps[0], tps[1], tps[2],
		strconv.FormatFloat(sig.MaxLossUSD, 'f', 2, 64),
		sig.Notes,
	}
	return l.append("signals", signalHeader, row)
}

// LogExecution appends one execution outcome row. details may be nil
// for rejections.
func (l *Logger) LogExecution(sig *signal.TradeSignal, status string, details *risk.Details, reason string) error {
	size, riskUSD, riskPct, rMultiple := "", "", "", ""
	if details != nil {
		size = strconv.Itoa(details.PositionSize)
		riskUSD = strconv.FormatFloat(details.ActualRiskUSD, 'f', 2, 64)
		riskPct = strconv.FormatFloat(details.ActualRiskPct, 'f', 2, 64)
		if len(details.RMultiples) > 0 {
			rMultiple = strconv.FormatFloat(details.RMultiples[0], 'f', 2, 64)
		}
	}

	row := []string{
		l.timestamp(),
		sig.StrategyID,
		sig.SignalID,
		sig.Instrument,
		string(sig.Direction),
		status,
		size,
		formatPrice(sig.EntryPrice),
		formatPrice(sig.StopPrice),
		riskUSD, riskPct, rMultiple,
		reason,
	}
	return l.append("executions", executionHeader, row)
}

func (l *Logger) timestamp() string {
	return l.now().Format(time.RFC3339)
}

// append opens (or creates) today's file for the given log and writes
// one row, emitting the header on creation.
func (l *Logger) append(name string, header, row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, fmt.Sprintf("%s_%s.csv", name, l.now().Format("2006-01-02")))

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s log: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
