package models

import "time"

// Candle represents one OHLCV bar. Sequences are ordered ascending by Timestamp.
type Candle struct {
	Market    string    `json:"market,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Ticker is the latest trade summary for one market.
type Ticker struct {
	Market            string    `json:"market"`
	TradePrice        float64   `json:"trade_price"`
	High              float64   `json:"high_price"`
	Low               float64   `json:"low_price"`
	AccTradePrice24h  float64   `json:"acc_trade_price_24h"`
	AccTradeVolume24h float64   `json:"acc_trade_volume_24h"`
	Timestamp         time.Time `json:"timestamp"`
}

// MarketInfo describes a tradable market listed by the exchange.
type MarketInfo struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
	Warning     string `json:"market_warning"`
}

// MarketSnapshot is a point-in-time feature vector for one market.
type MarketSnapshot struct {
	Symbol           string  `json:"symbol"`
	LastPrice        float64 `json:"last_price"`
	Volume24h        float64 `json:"volume_24h"`
	SpreadPct        float64 `json:"spread_pct"`
	VolatilityPct    float64 `json:"volatility_pct"`
	TrendStrengthPct float64 `json:"trend_strength_pct"`
}

// CoinScore pairs a snapshot with its composite selection score.
type CoinScore struct {
	Snapshot MarketSnapshot
	Score    float64
}

// MarketRecommendation is the exposed result of one auto-selection pass.
type MarketRecommendation struct {
	Market           string  `json:"market"`
	Score            float64 `json:"score"`
	LastPrice        float64 `json:"last_price"`
	Volume24h        float64 `json:"volume_24h"`
	VolatilityPct    float64 `json:"volatility_pct"`
	TrendStrengthPct float64 `json:"trend_strength_pct"`
}

// RecommendationFrom converts a scored snapshot to its exposed form.
func RecommendationFrom(s CoinScore) MarketRecommendation {
	return MarketRecommendation{
		Market:           s.Snapshot.Symbol,
		Score:            s.Score,
		LastPrice:        s.Snapshot.LastPrice,
		Volume24h:        s.Snapshot.Volume24h,
		VolatilityPct:    s.Snapshot.VolatilityPct,
		TrendStrengthPct: s.Snapshot.TrendStrengthPct,
	}
}
