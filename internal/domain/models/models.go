package models

import (
	"strings"
	"time"
)

// Tick is a single validated bid/ask quote for an instrument.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Timestamp time.Time `json:"timestamp"`
}

// Mid returns the mid price of the quote.
func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// PriceState is the latest known price of an instrument plus derived spread.
type PriceState struct {
	Symbol     string    `json:"symbol"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Mid        float64   `json:"mid"`
	Spread     float64   `json:"spread"`
	SpreadPips float64   `json:"spread_pips"`
	Timestamp  time.Time `json:"timestamp"`
	Stale      bool      `json:"stale,omitempty"`
}

// NormalizeSymbol canonicalizes an instrument code: trimmed, uppercase.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// PipSize returns the pip size for an instrument: 0.01 for JPY crosses and
// XAU-style metals, 0.0001 otherwise.
func PipSize(symbol string) float64 {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "JPY") || strings.Contains(s, "XAU") {
		return 0.01
	}
	return 0.0001
}

// NewPriceState builds the cacheable price state for a tick.
func NewPriceState(t Tick) PriceState {
	spread := t.Ask - t.Bid
	return PriceState{
		Symbol:     t.Symbol,
		Bid:        t.Bid,
		Ask:        t.Ask,
		Mid:        t.Mid(),
		Spread:     spread,
		SpreadPips: spread / PipSize(t.Symbol),
		Timestamp:  t.Timestamp,
	}
}

// Candle is one OHLC bucket of mid-price movement.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Start     time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// AlertCondition selects the trigger rule for a price alert.
type AlertCondition string

const (
	CondAbove     AlertCondition = "above"
	CondBelow     AlertCondition = "below"
	CondCrossUp   AlertCondition = "cross_up"
	CondCrossDown AlertCondition = "cross_down"
)

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	switch c {
	case CondAbove, CondBelow, CondCrossUp, CondCrossDown:
		return true
	}
	return false
}

// AlertState is the lifecycle state of an alert.
type AlertState string

const (
	AlertArmed     AlertState = "armed"
	AlertTriggered AlertState = "triggered"
)

// Alert is a user-defined price alert.
type Alert struct {
	ID          int64          `json:"id"`
	GuildID     int64          `json:"guild_id"`
	UserID      int64          `json:"user_id"`
	ChannelID   int64          `json:"channel_id"`
	Symbol      string         `json:"symbol"`
	Condition   AlertCondition `json:"condition"`
	TargetPrice float64        `json:"target_price"`
	State       AlertState     `json:"state"`
	CreatedAt   time.Time      `json:"created_at"`
	TriggeredAt *time.Time     `json:"triggered_at,omitempty"`
}

// TriggeredAlert couples a fired alert with the tick that fired it.
type TriggeredAlert struct {
	Alert          Alert     `json:"alert"`
	TriggeredPrice float64   `json:"triggered_price"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

// Indicators is the technical analysis snapshot for one instrument and
// timeframe. Nil fields mean the candle history was too short for that
// indicator.
type Indicators struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`

	SMA20  *float64 `json:"sma_20,omitempty"`
	SMA50  *float64 `json:"sma_50,omitempty"`
	SMA200 *float64 `json:"sma_200,omitempty"`
	EMA12  *float64 `json:"ema_12,omitempty"`
	EMA26  *float64 `json:"ema_26,omitempty"`

	RSI14         *float64 `json:"rsi_14,omitempty"`
	MACD          *float64 `json:"macd,omitempty"`
	MACDSignal    *float64 `json:"macd_signal,omitempty"`
	MACDHistogram *float64 `json:"macd_histogram,omitempty"`

	ATR14          *float64 `json:"atr_14,omitempty"`
	BollingerUpper *float64 `json:"bollinger_upper,omitempty"`
	BollingerMid   *float64 `json:"bollinger_middle,omitempty"`
	BollingerLower *float64 `json:"bollinger_lower,omitempty"`

	ADX *float64 `json:"adx,omitempty"`

	Trend     string `json:"trend_direction"`
	RSISignal string `json:"rsi_signal"`
}

// TrendLabel classifies the SMA20/SMA50 relation. This is the single
// definition of the trend labels used everywhere.
func TrendLabel(sma20, sma50 *float64) string {
	if sma20 != nil && sma50 != nil {
		switch {
		case *sma20 > *sma50:
			return "bullish"
		case *sma20 < *sma50:
			return "bearish"
		}
	}
	return "neutral"
}

// RSILabel classifies an RSI value. Single definition of the RSI labels.
func RSILabel(rsi *float64) string {
	if rsi != nil {
		switch {
		case *rsi >= 70:
			return "overbought"
		case *rsi <= 30:
			return "oversold"
		}
	}
	return "neutral"
}
