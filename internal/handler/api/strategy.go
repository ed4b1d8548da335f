package api

import (
	"BtcTrader/internal/domain/models"
	"BtcTrader/internal/services/strategy"
	xhttp "BtcTrader/pkg/http"

	"github.com/labstack/echo/v4"
)

type StrategyHandler struct{}

func NewStrategyHandler() *StrategyHandler { return &StrategyHandler{} }

func (h *StrategyHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/strategy/defaults", h.Defaults)
}

type strategyDefaults struct {
	Mode            strategy.Mode       `json:"mode"`
	Parameters      strategy.Parameters `json:"parameters"`
	RiskPerTradePct map[string]float64  `json:"risk_per_trade_pct"`
}

// Defaults returns the base profile for a mode. Unknown modes get the AUTO profile.
func (h *StrategyHandler) Defaults(c echo.Context) error {
	req := &models.StrategyDefaultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	mode := strategy.ParseMode(req.Mode)
	return xhttp.SuccessResponse(c, strategyDefaults{
		Mode:       mode,
		Parameters: strategy.ProfileFor(mode),
		RiskPerTradePct: map[string]float64{
			string(strategy.RiskConservative): strategy.RiskConservative.RiskPerTradePct(),
			string(strategy.RiskStandard):     strategy.RiskStandard.RiskPerTradePct(),
			string(strategy.RiskAggressive):   strategy.RiskAggressive.RiskPerTradePct(),
		},
	})
}
