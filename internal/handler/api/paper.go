package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"BtcTrader/internal/domain/models"
	apimetrics "BtcTrader/internal/service/metrics"
	xhttp "BtcTrader/pkg/http"
	xlogger "BtcTrader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PaperService is the account surface the paper endpoints need.
type PaperService interface {
	Summary(userID string) models.PaperSummary
	RecordEquity(ctx context.Context, userID string) error
	Performance(ctx context.Context, userID string, days, weeks int) (models.PaperPerformance, error)
	Reset(userID string, initialCash float64) models.PaperSummary
}

// SummaryStream hands out per-user summary subscriptions.
type SummaryStream interface {
	Subscribe(userID string) (<-chan models.PaperSummary, func())
}

type PaperHandler struct {
	logger    *xlogger.Logger
	paper     PaperService
	stream    SummaryStream
	keepAlive time.Duration
}

func NewPaperHandler(logger *xlogger.Logger, paper PaperService, stream SummaryStream) *PaperHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PaperHandler{logger: logger, paper: paper, stream: stream, keepAlive: 15 * time.Second}
}

func (h *PaperHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/paper")
	g.GET("/summary", h.Summary)
	g.GET("/performance", h.Performance)
	g.POST("/reset", h.Reset)
	g.GET("/stream", h.Stream)
}

// Summary records an equity snapshot and returns the account view. A failed
// snapshot write does not fail the read.
func (h *PaperHandler) Summary(c echo.Context) error {
	defer observe("paper_summary", time.Now())
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.paper.RecordEquity(c.Request().Context(), req.UserID); err != nil {
		apimetrics.APIErrors.WithLabelValues("paper_summary").Inc()
		h.logger.Warn("record equity failed", xlogger.String("user_id", req.UserID), xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, h.paper.Summary(req.UserID))
}

func (h *PaperHandler) Performance(c echo.Context) error {
	defer observe("paper_performance", time.Now())
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.paper.Performance(c.Request().Context(), req.UserID, req.Days, req.Weeks)
	if err != nil {
		apimetrics.APIErrors.WithLabelValues("paper_performance").Inc()
		h.logger.Error("performance usecase error", xlogger.String("user_id", req.UserID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("performance unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PaperHandler) Reset(c echo.Context) error {
	defer observe("paper_reset", time.Now())
	req := &models.ResetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s := h.paper.Reset(req.UserID, req.InitialCash)
	h.logger.Info("paper account reset", xlogger.String("user_id", req.UserID), xlogger.Float64("initial_cash", req.InitialCash))
	return xhttp.SuccessResponse(c, s)
}

// Stream serves server-sent events: the current summary first, then one
// event per scheduler tick until the client goes away.
func (h *PaperHandler) Stream(c echo.Context) error {
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	updates, cancel := h.stream.Subscribe(req.UserID)
	defer cancel()
	apimetrics.StreamSubscribers.Inc()
	defer apimetrics.StreamSubscribers.Dec()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, "summary", h.paper.Summary(req.UserID)); err != nil {
		return nil
	}

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(res, "summary", s); err != nil {
				h.logger.Debug("summary stream closed", xlogger.String("user_id", req.UserID), xlogger.Error(err))
				return nil
			}
		case <-ping.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, event string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func observe(endpoint string, start time.Time) {
	apimetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
