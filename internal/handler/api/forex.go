package api

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"FXPulse/internal/alerts"
	"FXPulse/internal/domain/models"
	domrepo "FXPulse/internal/domain/repository"
	"FXPulse/internal/hub"
	"FXPulse/internal/market"
	"FXPulse/internal/usecase"
	xhttp "FXPulse/pkg/http"
	xlogger "FXPulse/pkg/logger"
)

// indicator history window passed to the analyzer
const indicatorWindow = 250

// ForexHandler serves the REST and websocket surface.
type ForexHandler struct {
	logger     *xlogger.Logger
	cache      *market.PriceCache
	candles    *market.Aggregator
	alerts     *alerts.Engine
	hub        *hub.Hub
	supervisor *usecase.FeedSupervisor
}

func NewForexHandler(
	logger *xlogger.Logger,
	cache *market.PriceCache,
	candles *market.Aggregator,
	engine *alerts.Engine,
	h *hub.Hub,
	supervisor *usecase.FeedSupervisor,
) *ForexHandler {
	return &ForexHandler{
		logger:     logger,
		cache:      cache,
		candles:    candles,
		alerts:     engine,
		hub:        h,
		supervisor: supervisor,
	}
}

func (h *ForexHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/forex")
	g.GET("/price/:symbol", h.Price)
	g.GET("/prices", h.Prices)
	g.GET("/ohlc/:symbol", h.OHLC)
	g.GET("/indicators/:symbol", h.IndicatorsFor)
	g.POST("/alerts", h.CreateAlert)
	g.GET("/alerts", h.ListAlerts)
	g.GET("/alerts/user/:user_id", h.ListUserAlerts)
	g.DELETE("/alerts/:id", h.DeleteAlert)
	g.GET("/ws", h.WebSocket)
}

// Health reports process liveness and feed state.
func (h *ForexHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":  "ok",
		"feed":    h.supervisor.State().String(),
		"symbols": h.cache.Len(),
	})
}

// Price returns the latest quote for one instrument.
func (h *ForexHandler) Price(c echo.Context) error {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	ps, ok := h.cache.Get(symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no price for %s", symbol))
	}
	return xhttp.SuccessResponse(c, ps)
}

// Prices returns the full cache snapshot.
func (h *ForexHandler) Prices(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.cache.Snapshot())
}

// OHLC returns the candle series for one instrument and timeframe,
// oldest first, the still-forming candle last.
func (h *ForexHandler) OHLC(c echo.Context) error {
	req := &models.OHLCRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	tf := domrepo.NormalizeTimeframe(req.Timeframe)

	series := h.candles.Series(symbol, tf, req.Limit)
	if len(series) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no candles for %s", symbol))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":    symbol,
		"timeframe": string(tf),
		"candles":   series,
	})
}

// IndicatorsFor computes technical indicators over closed candles.
func (h *ForexHandler) IndicatorsFor(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	tf := domrepo.NormalizeTimeframe(req.Timeframe)

	closed := h.candles.ClosedSeries(symbol, tf, indicatorWindow)
	if len(closed) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no candles for %s", symbol))
	}
	return xhttp.SuccessResponse(c, market.Analyze(closed, symbol, string(tf)))
}

// CreateAlert arms a new price alert.
func (h *ForexHandler) CreateAlert(c echo.Context) error {
	req := &models.CreateAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbol := models.NormalizeSymbol(req.Symbol)
	if _, ok := h.cache.Get(symbol); !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no price for %s", symbol))
	}

	a, err := h.alerts.Create(
		req.GuildID, req.UserID, req.ChannelID,
		symbol,
		models.AlertCondition(req.Condition),
		req.TargetPrice,
	)
	if err != nil {
		h.logger.Warn("alert create rejected", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.CreatedResponse(c, a)
}

// ListAlerts returns armed alerts, optionally filtered by user_id.
func (h *ForexHandler) ListAlerts(c echo.Context) error {
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("user_id must be an integer"))
		}
		rows := h.alerts.ListByUser(userID)
		return xhttp.ListResponse(c, rows, int64(len(rows)))
	}
	rows := h.alerts.List()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// ListUserAlerts returns armed alerts owned by one user.
func (h *ForexHandler) ListUserAlerts(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("user_id must be an integer"))
	}
	rows := h.alerts.ListByUser(userID)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// DeleteAlert removes one alert by id.
func (h *ForexHandler) DeleteAlert(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("id must be an integer"))
	}
	if !h.alerts.Delete(id) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("alert %d not found", id))
	}
	return xhttp.SuccessResponse(c, map[string]int64{"deleted": id})
}
