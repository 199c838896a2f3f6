package backtest

import (
	"math"
	"time"
)

// Metrics is the terminal performance summary of a run. Every field is
// zero/neutral when no trades occurred.
type Metrics struct {
	TotalTrades       int     `json:"total_trades"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRate           float64 `json:"win_rate"`
	AvgR              float64 `json:"avg_r"`
	NetPnL            float64 `json:"net_pnl"`
	GrossProfit       float64 `json:"gross_profit"`
	GrossLoss         float64 `json:"gross_loss"`
	ProfitFactor      float64 `json:"profit_factor"`
	AvgWin            float64 `json:"avg_win"`
	AvgLoss           float64 `json:"avg_loss"`
	AvgWinR           float64 `json:"avg_win_r"`
	AvgLossR          float64 `json:"avg_loss_r"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	LongestWinStreak  int     `json:"longest_win_streak"`
	LongestLossStreak int     `json:"longest_loss_streak"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	MaxDrawdownPct    float64 `json:"max_drawdown_pct"`
	FinalEquity       float64 `json:"final_equity"`

	EquityCurveSummary EquitySummary `json:"equity_curve_summary"`
}

// EquitySummary condenses the equity curve to its extremes.
type EquitySummary struct {
	MinEquity  float64    `json:"min_equity"`
	MaxEquity  float64    `json:"max_equity"`
	PeakDate   *time.Time `json:"peak_date,omitempty"`
	PeakEquity float64    `json:"peak_equity"`
}

func computeMetrics(trades []Trade, curve []EquityPoint, startEquity, finalEquity, maxDrawdown, maxDrawdownPct float64) Metrics {
	m := Metrics{
		FinalEquity:        finalEquity,
		EquityCurveSummary: EquitySummary{MinEquity: finalEquity, MaxEquity: finalEquity, PeakEquity: finalEquity},
	}

	if len(curve) > 0 {
		minEq, maxEq := curve[0].Equity, curve[0].Equity
		var peakAt time.Time
		for _, p := range curve {
			if p.Equity < minEq {
				minEq = p.Equity
			}
			if p.Equity > maxEq {
				maxEq = p.Equity
				peakAt = p.Timestamp
			}
		}
		if peakAt.IsZero() {
			peakAt = curve[0].Timestamp
		}
		m.EquityCurveSummary = EquitySummary{MinEquity: minEq, MaxEquity: maxEq, PeakDate: &peakAt, PeakEquity: maxEq}
	}

	if len(trades) == 0 {
		return m
	}

	m.TotalTrades = len(trades)
	m.MaxDrawdown = maxDrawdown
	m.MaxDrawdownPct = maxDrawdownPct

	var sumR, grossProfit, grossLoss, sumWinR, sumLossR float64
	winStreak, lossStreak := 0, 0

	for _, t := range trades {
		m.NetPnL += t.PnL
		sumR += t.RAchieved

		if t.Win {
			m.Wins++
			grossProfit += t.PnL
			sumWinR += t.RAchieved
			winStreak++
			lossStreak = 0
			if winStreak > m.LongestWinStreak {
				m.LongestWinStreak = winStreak
			}
		} else {
			m.Losses++
			grossLoss += -t.PnL
			sumLossR += math.Abs(t.RAchieved)
			lossStreak++
			winStreak = 0
			if lossStreak > m.LongestLossStreak {
				m.LongestLossStreak = lossStreak
			}
		}
	}

	m.WinRate = float64(m.Wins) / float64(m.TotalTrades) * 100
	m.AvgR = sumR / float64(m.TotalTrades)
	m.GrossProfit = grossProfit
	m.GrossLoss = grossLoss

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = grossProfit
	}

	if m.Wins > 0 {
		m.AvgWin = grossProfit / float64(m.Wins)
		m.AvgWinR = sumWinR / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = grossLoss / float64(m.Losses)
		m.AvgLossR = sumLossR / float64(m.Losses)
	}

	m.SharpeRatio = sharpe(trades)
	return m
}

// sharpe is the simplified annualized Sharpe ratio: mean trade P&L over
// its standard deviation, scaled by sqrt(252). Zero for fewer than two
// trades or flat returns.
func sharpe(trades []Trade) float64 {
	if len(trades) < 2 {
		return 0
	}

	mean := 0.0
	for _, t := range trades {
		mean += t.PnL
	}
	mean /= float64(len(trades))

	variance := 0.0
	for _, t := range trades {
		d := t.PnL - mean
		variance += d * d
	}
	variance /= float64(len(trades))

	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}
	return mean / stdev * math.Sqrt(252)
}
