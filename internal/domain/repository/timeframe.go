package repository

// CandleUnit is the minute resolution of exchange candles.
type CandleUnit int

const (
	Unit1m   CandleUnit = 1
	Unit3m   CandleUnit = 3
	Unit5m   CandleUnit = 5
	Unit15m  CandleUnit = 15
	Unit30m  CandleUnit = 30
	Unit60m  CandleUnit = 60
	Unit240m CandleUnit = 240
)

// IsValidCandleUnit returns true if u is a unit the exchange serves.
func IsValidCandleUnit(u CandleUnit) bool {
	switch u {
	case Unit1m, Unit3m, Unit5m, 10, Unit15m, Unit30m, Unit60m, Unit240m:
		return true
	default:
		return false
	}
}

// DefaultCandleUnit returns the default unit.
func DefaultCandleUnit() CandleUnit { return Unit1m }

// NormalizeCandleUnit converts a raw minute count to a valid unit (or default).
func NormalizeCandleUnit(n int) CandleUnit {
	u := CandleUnit(n)
	if IsValidCandleUnit(u) {
		return u
	}
	return DefaultCandleUnit()
}
