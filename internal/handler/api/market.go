package api

import (
	"context"
	"strings"
	"time"

	"BtcTrader/internal/domain/models"
	apimetrics "BtcTrader/internal/service/metrics"
	xhttp "BtcTrader/pkg/http"
	xlogger "BtcTrader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketService serves recommendations and candle history.
type MarketService interface {
	RecommendTop(ctx context.Context, topN int) ([]models.MarketRecommendation, error)
	CandlesForMarket(ctx context.Context, market string) ([]models.Candle, error)
}

type MarketHandler struct {
	logger *xlogger.Logger
	market MarketService
}

func NewMarketHandler(logger *xlogger.Logger, market MarketService) *MarketHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &MarketHandler{logger: logger, market: market}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/market")
	g.GET("/recommendations", h.Recommendations)
	g.GET("/candles", h.Candles)
}

func (h *MarketHandler) Recommendations(c echo.Context) error {
	defer observe("market_recommendations", time.Now())
	req := &models.RecommendationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.market.RecommendTop(c.Request().Context(), req.TopN)
	if err != nil {
		apimetrics.APIErrors.WithLabelValues("market_recommendations").Inc()
		h.logger.Error("recommendations usecase error", xlogger.Int("top_n", req.TopN), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Candles(c echo.Context) error {
	defer observe("market_candles", time.Now())
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	market := strings.ToUpper(strings.TrimSpace(req.Market))
	res, err := h.market.CandlesForMarket(c.Request().Context(), market)
	if err != nil {
		apimetrics.APIErrors.WithLabelValues("market_candles").Inc()
		h.logger.Error("candles usecase error", xlogger.String("market", market), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}
