package market

import (
	"math"
	"time"

	"FXPulse/internal/domain/models"
)

// Indicator periods. Fixed, matching the public API contract.
const (
	rsiPeriod       = 14
	atrPeriod       = 14
	adxPeriod       = 14
	macdFastPeriod  = 12
	macdSlowPeriod  = 26
	macdSignal      = 9
	bollingerPeriod = 20
	bollingerWidth  = 2.0
)

// Analyze computes the full indicator set over a closed-candle series,
// oldest first. Indicators whose minimum history is not met are left nil;
// insufficient history is never an error.
func Analyze(candles []models.Candle, symbol string, timeframe string) models.Indicators {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	ind := models.Indicators{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: time.Now().UTC(),
	}

	ind.SMA20 = SMA(closes, 20)
	ind.SMA50 = SMA(closes, 50)
	ind.SMA200 = SMA(closes, 200)
	ind.EMA12 = EMA(closes, macdFastPeriod)
	ind.EMA26 = EMA(closes, macdSlowPeriod)

	ind.RSI14 = RSI(closes, rsiPeriod)
	ind.MACD, ind.MACDSignal, ind.MACDHistogram = MACD(closes)

	ind.BollingerUpper, ind.BollingerMid, ind.BollingerLower = Bollinger(closes, bollingerPeriod, bollingerWidth)
	ind.ATR14 = ATR(candles, atrPeriod)
	ind.ADX = ADX(candles, adxPeriod)

	ind.Trend = models.TrendLabel(ind.SMA20, ind.SMA50)
	ind.RSISignal = models.RSILabel(ind.RSI14)

	return ind
}

// SMA returns the simple moving average of the last period values, or nil
// with insufficient history.
func SMA(values []float64, period int) *float64 {
	if len(values) < period || period <= 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	avg := sum / float64(period)
	return &avg
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded by the SMA of the first period values.
func EMA(values []float64, period int) *float64 {
	series := emaSeries(values, period)
	if series == nil {
		return nil
	}
	last := series[len(series)-1]
	return &last
}

// emaSeries computes the EMA over values, seeded with the SMA of the first
// period entries. The result is aligned to values[period-1:].
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	ema := seed
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
		out = append(out, ema)
	}
	return out
}

// RSI returns the relative strength index using Wilder's smoothing of
// average gains and losses. Needs period+1 values.
func RSI(values []float64, period int) *float64 {
	if len(values) < period+1 || period <= 0 {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		v := 100.0
		return &v
	}
	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)
	return &rsi
}

// MACD returns (macd, signal, histogram): EMA(12)−EMA(26), signal = EMA(9)
// of the MACD line, histogram = macd − signal.
func MACD(values []float64) (*float64, *float64, *float64) {
	fast := emaSeries(values, macdFastPeriod)
	slow := emaSeries(values, macdSlowPeriod)
	if fast == nil || slow == nil {
		return nil, nil, nil
	}

	// Both series end at the last close; align on the tail.
	n := len(slow)
	macdLine := make([]float64, n)
	for i := 0; i < n; i++ {
		macdLine[i] = fast[len(fast)-n+i] - slow[i]
	}

	signalSeries := emaSeries(macdLine, macdSignal)
	if signalSeries == nil {
		return nil, nil, nil
	}

	macd := macdLine[len(macdLine)-1]
	signal := signalSeries[len(signalSeries)-1]
	hist := macd - signal
	return &macd, &signal, &hist
}

// Bollinger returns (upper, middle, lower) = SMA(period) ± width·stddev.
func Bollinger(values []float64, period int, width float64) (*float64, *float64, *float64) {
	mid := SMA(values, period)
	if mid == nil {
		return nil, nil, nil
	}

	variance := 0.0
	for _, v := range values[len(values)-period:] {
		d := v - *mid
		variance += d * d
	}
	variance /= float64(period)
	std := math.Sqrt(variance)

	upper := *mid + width*std
	lower := *mid - width*std
	return &upper, mid, &lower
}

// ATR returns the average true range with Wilder's smoothing. Needs
// period+1 candles.
func ATR(candles []models.Candle, period int) *float64 {
	trs := trueRanges(candles)
	if len(trs) < period || period <= 0 {
		return nil
	}

	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)

	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return &atr
}

// ADX returns the average directional index, with directional movement and
// true range smoothed the same way as ATR. Needs 2·period+1 candles.
func ADX(candles []models.Candle, period int) *float64 {
	if len(candles) < 2*period+1 || period <= 0 {
		return nil
	}

	n := len(candles) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trs := trueRanges(candles)

	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
	}

	var smTR, smPlus, smMinus float64
	for i := 0; i < period; i++ {
		smTR += trs[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dxs := make([]float64, 0, n-period+1)
	if dx, ok := directionalIndex(smPlus, smMinus, smTR); ok {
		dxs = append(dxs, dx)
	}
	for i := period; i < n; i++ {
		smTR = smTR - smTR/float64(period) + trs[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		if dx, ok := directionalIndex(smPlus, smMinus, smTR); ok {
			dxs = append(dxs, dx)
		}
	}

	if len(dxs) < period {
		return nil
	}

	adx := 0.0
	for _, dx := range dxs[:period] {
		adx += dx
	}
	adx /= float64(period)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return &adx
}

func directionalIndex(smPlus, smMinus, smTR float64) (float64, bool) {
	if smTR == 0 {
		return 0, false
	}
	plusDI := 100 * smPlus / smTR
	minusDI := 100 * smMinus / smTR
	sum := plusDI + minusDI
	if sum == 0 {
		return 0, false
	}
	return 100 * math.Abs(plusDI-minusDI) / sum, true
}

// trueRanges returns the true range per candle transition, length
// len(candles)-1.
func trueRanges(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	trs := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		trs[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return trs
}
