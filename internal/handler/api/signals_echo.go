package api

import (
	"time"

	models "OptionPulse/internal/domain/models"
	svcmetrics "OptionPulse/internal/service/metrics"
	"OptionPulse/internal/usecase"
	xhttp "OptionPulse/pkg/http"
	xlogger "OptionPulse/pkg/logger"
	xutil "OptionPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler exposes the engine's read-only query surface.
type SignalsEchoHandler struct {
	logger  *xlogger.Logger
	queries *usecase.SignalQueryUseCase
}

func NewSignalsEchoHandler(logger *xlogger.Logger, queries *usecase.SignalQueryUseCase) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, queries: queries}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	guard := newClientGuard(120, time.Minute)
	g := e.Group("/api", guard.Middleware)
	g.GET("/signals/active", h.Active)
	g.GET("/signals/history", h.History)
	g.GET("/engine/status", h.Status)
}

func (h *SignalsEchoHandler) Active(c echo.Context) error {
	start := time.Now()
	req := &models.ActiveSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.SignalAPIErrors.WithLabelValues("active").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	signals := h.queries.ActiveSignals(req.Symbol)
	svcmetrics.SignalAPILatency.WithLabelValues("active").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, signals)
}

func (h *SignalsEchoHandler) History(c echo.Context) error {
	start := time.Now()
	req := &models.SignalHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.SignalAPIErrors.WithLabelValues("history").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	// Default window: the current trading day up to now.
	now := time.Now()
	from := xhttp.ParseTimeDefault(req.From, xutil.TradingDay(now, time.Local))
	to, ok := xhttp.ParseTime(req.To)
	if !ok {
		to = now
	}

	events, err := h.queries.History(c.Request().Context(), req, from, to)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		svcmetrics.SignalAPIErrors.WithLabelValues("history").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	svcmetrics.SignalAPILatency.WithLabelValues("history").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, events)
}

func (h *SignalsEchoHandler) Status(c echo.Context) error {
	start := time.Now()
	res := h.queries.Status(c.Request().Context())
	svcmetrics.SignalAPILatency.WithLabelValues("status").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, res)
}
