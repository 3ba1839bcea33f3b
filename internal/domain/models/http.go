package models

// Requests for forex HTTP endpoints. Defined in domain for consistency and reuse.

type OHLCRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=500"`
}

type IndicatorsRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h"`
}

type CreateAlertRequest struct {
	GuildID     int64   `json:"guild_id" validate:"required"`
	UserID      int64   `json:"user_id" validate:"required"`
	ChannelID   int64   `json:"channel_id" validate:"required"`
	Symbol      string  `json:"symbol" validate:"required"`
	Condition   string  `json:"condition" validate:"oneof=above below cross_up cross_down"`
	TargetPrice float64 `json:"target_price" validate:"required,gt=0"`
}
