package stats

import (
	"math"
	"time"

	"trade-journal/internal/models"
)

// DetailedStats is the full report bundle. Metrics that need data the trade
// model does not carry (MAE/MFE, K-ratio, probability of random chance) are
// always nil.
type DetailedStats struct {
	TotalGainLoss float64 `json:"total_gain_loss"`
	LargestGain   float64 `json:"largest_gain"`
	LargestLoss   float64 `json:"largest_loss"`

	AverageDailyGainLoss float64 `json:"average_daily_gain_loss"`
	AverageDailyVolume   float64 `json:"average_daily_volume"`

	AveragePerShareGainLoss float64 `json:"average_per_share_gain_loss"`
	AverageTradeGainLoss    float64 `json:"average_trade_gain_loss"`
	AverageWinningTrade     float64 `json:"average_winning_trade"`
	AverageLosingTrade      float64 `json:"average_losing_trade"`

	TotalNumberOfTrades   int `json:"total_number_of_trades"`
	NumberOfWinningTrades int `json:"number_of_winning_trades"`
	NumberOfLosingTrades  int `json:"number_of_losing_trades"`
	NumberOfScratchTrades int `json:"number_of_scratch_trades"`

	AverageHoldTimeScratchSeconds float64 `json:"average_hold_time_scratch_trades_seconds"`
	AverageHoldTimeWinningSeconds float64 `json:"average_hold_time_winning_trades_seconds"`
	AverageHoldTimeLosingSeconds  float64 `json:"average_hold_time_losing_trades_seconds"`

	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	TradePnLStandardDeviation float64 `json:"trade_pnl_standard_deviation"`
	SystemQualityNumber       float64 `json:"system_quality_number_sqn"`
	KellyPercentage           float64 `json:"kelly_percentage"`
	ProfitFactor              float64 `json:"profit_factor"`
	TotalCommissions          float64 `json:"total_commissions"`
	TotalFees                 float64 `json:"total_fees"`

	ProbabilityOfRandomChance *float64 `json:"probability_of_random_chance"`
	KRatio                    *float64 `json:"k_ratio"`
	AveragePositionMAE        *float64 `json:"average_position_mae"`
	AveragePositionMFE        *float64 `json:"average_position_mfe"`
}

// SQN is mean(pnl) / stddev(pnl) * sqrt(n), or 0 when the deviation is 0.
func SQN(pnls []float64) float64 {
	sd := sampleStdDev(pnls)
	if sd == 0 {
		return 0
	}
	return mean(pnls) / sd * math.Sqrt(float64(len(pnls)))
}

// Kelly returns p - (1-p)/b as a fraction, with b = avgWin / |avgLoss|.
// Without losers b is undefined and the result is 0.
func Kelly(winFraction, avgWin, avgLoss float64) float64 {
	b := safeDiv(avgWin, math.Abs(avgLoss))
	if b <= 0 {
		return 0
	}
	return winFraction - (1-winFraction)/b
}

func avgHold(trades []models.Trade) float64 {
	var durations []float64
	for _, t := range trades {
		if t.DurationSeconds != nil {
			durations = append(durations, float64(*t.DurationSeconds))
		}
	}
	return mean(durations)
}

// Detailed computes the report bundle over trades.
func Detailed(trades []models.Trade) DetailedStats {
	var s DetailedStats
	if len(trades) == 0 {
		return s
	}

	pnls := make([]float64, 0, len(trades))
	var winners, losers, scratches []models.Trade
	var perShare []float64
	var winSum, lossSum, commissions float64
	largestGain, largestLoss := math.Inf(-1), math.Inf(1)
	for _, t := range trades {
		pnls = append(pnls, t.PnL)
		largestGain = math.Max(largestGain, t.PnL)
		largestLoss = math.Min(largestLoss, t.PnL)
		commissions += t.Commissions
		if t.Shares > 0 {
			perShare = append(perShare, t.PnL/t.Shares)
		}
		switch OutcomeOf(t) {
		case Win:
			winners = append(winners, t)
			winSum += t.PnL
		case Loss:
			losers = append(losers, t)
			lossSum += t.PnL
		default:
			scratches = append(scratches, t)
		}
	}

	total := 0.0
	for _, p := range pnls {
		total += p
	}

	days := dailyPnL(trades)
	daySums := make([]float64, 0, len(days))
	for _, v := range days {
		daySums = append(daySums, v)
	}
	perDay := make(map[time.Time]int, len(days))
	for _, t := range trades {
		perDay[dateOf(t.Date)]++
	}

	avgWin := safeDiv(winSum, float64(len(winners)))
	avgLoss := safeDiv(lossSum, float64(len(losers)))
	winFraction := safeDiv(float64(len(winners)), float64(len(trades)))
	streaks := ComputeStreaks(trades)

	s.TotalGainLoss = round2(total)
	s.LargestGain = round2(largestGain)
	s.LargestLoss = round2(largestLoss)
	s.AverageDailyGainLoss = round2(mean(daySums))
	s.AverageDailyVolume = round2(safeDiv(float64(len(trades)), float64(len(perDay))))
	s.AveragePerShareGainLoss = round(mean(perShare), 4)
	s.AverageTradeGainLoss = round2(safeDiv(total, float64(len(trades))))
	s.AverageWinningTrade = round2(avgWin)
	s.AverageLosingTrade = round2(avgLoss)
	s.TotalNumberOfTrades = len(trades)
	s.NumberOfWinningTrades = len(winners)
	s.NumberOfLosingTrades = len(losers)
	s.NumberOfScratchTrades = len(scratches)
	s.AverageHoldTimeScratchSeconds = round2(avgHold(scratches))
	s.AverageHoldTimeWinningSeconds = round2(avgHold(winners))
	s.AverageHoldTimeLosingSeconds = round2(avgHold(losers))
	s.MaxConsecutiveWins = streaks.MaxWin
	s.MaxConsecutiveLosses = streaks.MaxLoss
	s.TradePnLStandardDeviation = round2(sampleStdDev(pnls))
	s.SystemQualityNumber = round2(SQN(pnls))
	s.KellyPercentage = round2(Kelly(winFraction, avgWin, avgLoss) * 100)
	s.ProfitFactor = round2(ProfitFactor(trades))
	s.TotalCommissions = round2(commissions)
	s.TotalFees = round2(commissions)
	return s
}
